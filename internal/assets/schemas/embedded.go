// Package schemasassets provides the embedded JSON Schema documents used to
// validate group configuration files, ensuring validation works correctly
// regardless of the working directory or installation location.
package schemasassets

import _ "embed"

// GroupDocumentSchema is the embedded schema for a group configuration
// document ({group, origins: [{name, base_url, job: [...]}]}).
//
//go:embed group-document.schema.json
var GroupDocumentSchema []byte
