// Package swaggen emits a skeleton group document from an OpenAPI/Swagger
// spec or a Postman collection, per SPEC_FULL.md §6.5. It is a thin
// collaborator: the emitted Group is a starting point an operator edits,
// not a faithful reproduction of the source spec.
package swaggen

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/pb33f/libopenapi"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"
	postman "github.com/rbretecher/go-postman-collection"

	"github.com/3leaps/gorunner/pkg/groupconfig"
)

// FromOpenAPI parses an OpenAPI 3.x (or Swagger 2.0, via libopenapi's own
// upconversion) document and emits one Origin per servers[0].url, one
// request Job per operation.
func FromOpenAPI(specBytes []byte, groupName string) (*groupconfig.Group, error) {
	document, err := libopenapi.NewDocument(specBytes)
	if err != nil {
		return nil, fmt.Errorf("swaggen: parse openapi document: %w", err)
	}
	model, errs := document.BuildV3Model()
	if len(errs) > 0 {
		return nil, fmt.Errorf("swaggen: build v3 model: %w", errs[0])
	}

	baseURL := ""
	if len(model.Model.Servers) > 0 {
		baseURL = model.Model.Servers[0].URL
	}

	origin := groupconfig.Origin{Name: sanitizeName(groupName), BaseURL: baseURL}

	for pair := model.Model.Paths.PathItems.First(); pair != nil; pair = pair.Next() {
		path := pair.Key()
		item := pair.Value()

		ops := map[string]*v3.Operation{
			"GET":    item.Get,
			"POST":   item.Post,
			"PUT":    item.Put,
			"DELETE": item.Delete,
			"PATCH":  item.Patch,
		}
		for method, op := range ops {
			if op == nil {
				continue
			}
			origin.Jobs = append(origin.Jobs, jobFromOperation(method, path, op))
		}
	}

	return &groupconfig.Group{Name: groupName, Origins: []groupconfig.Origin{origin}}, nil
}

func jobFromOperation(method, path string, op *v3.Operation) groupconfig.Job {
	job := groupconfig.Job{
		ID:          jobID(op.OperationId, method, path),
		Description: op.Summary,
		Type:        groupconfig.JobTypeRequest,
		Method:      method,
		Path:        path,
	}

	params := make(map[string]string)
	for _, p := range op.Parameters {
		if p.In == "query" {
			params[p.Name] = ""
		}
	}
	if len(params) > 0 {
		job.Params = params
	}

	if op.RequestBody != nil {
		job.Payload = map[string]any{}
	}

	return job
}

func jobID(operationID, method, path string) string {
	if operationID != "" {
		return operationID
	}
	slug := strings.NewReplacer("/", "_", "{", "", "}", "").Replace(path)
	return strings.ToLower(method) + slug
}

// FromPostman parses a Postman Collection v2.1 export and emits one request
// Job per request item found (recursing through folders), grouped under a
// single Origin whose base URL is inferred from the first request's URL.
func FromPostman(body io.Reader, groupName string) (*groupconfig.Group, error) {
	collection, err := postman.ParseCollection(body)
	if err != nil {
		return nil, fmt.Errorf("swaggen: parse postman collection: %w", err)
	}

	origin := groupconfig.Origin{Name: sanitizeName(groupName)}
	seq := 0
	walkPostmanItems(collection.Items, &origin, &seq)

	return &groupconfig.Group{Name: groupName, Origins: []groupconfig.Origin{origin}}, nil
}

func walkPostmanItems(items []*postman.Items, origin *groupconfig.Origin, seq *int) {
	for _, item := range items {
		if item.IsGroup() {
			walkPostmanItems(item.Items, origin, seq)
			continue
		}
		if item.Request == nil {
			continue
		}
		req := item.Request
		*seq++

		job := groupconfig.Job{
			ID:          fmt.Sprintf("req_%d", *seq),
			Description: item.Name,
			Type:        groupconfig.JobTypeRequest,
			Method:      string(req.Method),
		}

		if req.URL != nil {
			path := req.URL.Raw
			if origin.BaseURL == "" {
				base, rest := splitBaseURL(req.URL.Raw)
				origin.BaseURL, path = base, rest
			} else if strings.HasPrefix(path, origin.BaseURL) {
				path = strings.TrimPrefix(path, origin.BaseURL)
			}
			job.Path = path

			params := make(map[string]string)
			for _, q := range req.URL.Query {
				params[q.Key] = q.Value
			}
			if len(params) > 0 {
				job.Params = params
			}
		}

		if len(req.Header) > 0 {
			headers := make(map[string]string, len(req.Header))
			for _, h := range req.Header {
				headers[h.Key] = ""
			}
			job.Headers = headers
		}

		if req.Body != nil {
			job.Payload = map[string]any{}
		}

		origin.Jobs = append(origin.Jobs, job)
	}
}

// splitBaseURL separates a full request URL into scheme://host and the
// remaining path+query, so downstream jobs can share one Origin.BaseURL.
func splitBaseURL(raw string) (base, rest string) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", raw
	}
	base = u.Scheme + "://" + u.Host
	rest = u.Path
	if u.RawQuery != "" {
		rest += "?" + u.RawQuery
	}
	return base, rest
}

func sanitizeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "origin"
	}
	return strings.ReplaceAll(s, " ", "_")
}
