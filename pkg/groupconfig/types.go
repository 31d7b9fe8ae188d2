// Package groupconfig holds the domain types loaded from a group document
// and their YAML/JSON decoding and schema validation, per SPEC_FULL.md §3.
// Grounded on the teacher's manifest domain types in pkg/manifest/manifest.go
// and its ValidationError(s) shape in pkg/manifest/validate.go.
package groupconfig

// Group is a named collection of Origins loaded from a single document.
type Group struct {
	Name    string   `yaml:"group" json:"group"`
	Origins []Origin `yaml:"origins" json:"origins"`
}

// Origin is a configured remote service with a list of Jobs. Job ids must
// be unique within an Origin.
type Origin struct {
	Name             string            `yaml:"name" json:"name"`
	BaseURL          string            `yaml:"base_url" json:"base_url"`
	ConnectionString string            `yaml:"connection_string,omitempty" json:"connection_string,omitempty"`
	Labels           map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
	Jobs             []Job             `yaml:"job" json:"job"`
}

// JobType enumerates the two kinds of job.
type JobType string

const (
	JobTypeAuth    JobType = "auth"
	JobTypeRequest JobType = "request"
)

// JobMode enumerates the two run modes.
type JobMode string

const (
	JobModeProduction JobMode = "production"
	JobModeTest        JobMode = "test"
)

// ResponseFormat enumerates the response body interpretations a job may
// declare; it is advisory to the Sink, which otherwise infers from
// Content-Type.
type ResponseFormat string

const (
	ResponseFormatJSON ResponseFormat = "json"
	ResponseFormatXML  ResponseFormat = "xml"
	ResponseFormatText ResponseFormat = "text"
)

// RetryPolicy configures the HTTP Client's retry loop for a job.
type RetryPolicy struct {
	MaxAttempts int    `yaml:"max_attempts" json:"max_attempts"`
	Delay       int    `yaml:"delay" json:"delay"` // milliseconds
	Backoff     string `yaml:"backoff,omitempty" json:"backoff,omitempty"` // "fixed" (default) | "exponential"
}

// AuthRef configures how a request job attaches a stored token.
type AuthRef struct {
	Type string `yaml:"type,omitempty" json:"type,omitempty"` // default "Bearer"
}

// FileOutput configures the file sink variant.
type FileOutput struct {
	Path      string `yaml:"path" json:"path"`
	Filename  string `yaml:"filename" json:"filename"`
	Format    string `yaml:"format,omitempty" json:"format,omitempty"`
	Overwrite bool   `yaml:"overwrite,omitempty" json:"overwrite,omitempty"`
}

// DatabaseOutput configures the database sink variant.
type DatabaseOutput struct {
	Driver            string            `yaml:"driver" json:"driver"`
	Table             string            `yaml:"table" json:"table"`
	DataPath          string            `yaml:"data_path,omitempty" json:"data_path,omitempty"`
	Columns           map[string]string `yaml:"columns,omitempty" json:"columns,omitempty"`
	ClearBeforeInsert bool              `yaml:"clear_before_insert,omitempty" json:"clear_before_insert,omitempty"`
	ConnectionString  string            `yaml:"connection_string,omitempty" json:"connection_string,omitempty"`
	MetadataColumns   *bool             `yaml:"metadata_columns,omitempty" json:"metadata_columns,omitempty"` // default true
}

// Output configures where a request job's response is sent.
type Output struct {
	Enabled  bool            `yaml:"enabled" json:"enabled"`
	Type     string          `yaml:"type" json:"type"` // "file" | "database"
	File     *FileOutput     `yaml:"file,omitempty" json:"file,omitempty"`
	Database *DatabaseOutput `yaml:"database,omitempty" json:"database,omitempty"`
}

// Job is a declarative unit of work: a login (auth) or a request, per
// SPEC_FULL.md §3.
type Job struct {
	ID          string   `yaml:"id" json:"id"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Type        JobType  `yaml:"type" json:"type"`
	Mode        JobMode  `yaml:"mode,omitempty" json:"mode,omitempty"`
	Method      string   `yaml:"method" json:"method"`
	Path        string   `yaml:"path" json:"path"`
	Headers     map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Params      map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
	Payload     any               `yaml:"payload,omitempty" json:"payload,omitempty"`
	Timeout     int               `yaml:"timeout,omitempty" json:"timeout,omitempty"` // milliseconds
	RetryPolicy RetryPolicy       `yaml:"retry_policy,omitempty" json:"retry_policy,omitempty"`

	Dependencies []string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`

	// auth-only fields
	SessionName               string `yaml:"session_name,omitempty" json:"session_name,omitempty"`
	TokenIdentifier           string `yaml:"token_identifier,omitempty" json:"token_identifier,omitempty"`
	TokenExpirationIdentifier string `yaml:"token_expiration_identifier,omitempty" json:"token_expiration_identifier,omitempty"`
	TokenExpirationTime       float64 `yaml:"token_expiration_time,omitempty" json:"token_expiration_time,omitempty"`

	// request-only fields
	Auth AuthRef `yaml:"auth,omitempty" json:"auth,omitempty"`

	ResponseFormat ResponseFormat `yaml:"response_format,omitempty" json:"response_format,omitempty"`
	Output         *Output        `yaml:"output,omitempty" json:"output,omitempty"`
}
