// Package filesink implements the file variant of Sink: it writes a
// response payload to a templated path, per SPEC_FULL.md §4.6. Grounded on
// the teacher's atomic create-temp-then-rename idiom in
// pkg/jobregistry/store.go, generalized from a fixed job.json name to a
// templated, format-inferred target path.
package filesink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/3leaps/gorunner/pkg/sink"
)

// Config configures a single file sink invocation.
type Config struct {
	Path      string // destination directory
	Filename  string // may contain $JOBID, $TS placeholders
	Format    string // "json" | "xml" | "txt" | "auto" | ""
	Overwrite bool
}

// FileSink writes Response payloads to disk.
type FileSink struct {
	cfg Config
}

// New returns a FileSink for cfg.
func New(cfg Config) *FileSink {
	return &FileSink{cfg: cfg}
}

var _ sink.Sink = (*FileSink)(nil)

// Write implements sink.Sink.
func (f *FileSink) Write(_ context.Context, resp sink.Response, sinkCtx sink.Context) error {
	filename := expandFilename(f.cfg.Filename, sinkCtx)
	format := resolveFormat(f.cfg.Format, resp.Headers["Content-Type"])
	if !strings.Contains(filename, ".") {
		filename = filename + "." + format
	}

	if err := os.MkdirAll(f.cfg.Path, 0o755); err != nil {
		return fmt.Errorf("filesink: create target directory: %w", err)
	}

	target := filepath.Join(f.cfg.Path, filename)
	if !f.cfg.Overwrite {
		if _, err := os.Stat(target); err == nil {
			return fmt.Errorf("filesink: file already exists: %s", target)
		}
	}

	payload, err := serialize(format, resp.Data)
	if err != nil {
		return fmt.Errorf("filesink: serialize: %w", err)
	}

	return writeAtomic(target, payload)
}

func expandFilename(pattern string, sinkCtx sink.Context) string {
	r := strings.NewReplacer(
		"$JOBID", sinkCtx.JobID,
		"$TS", sinkCtx.Timestamp.Format("2006-01-02_15-04-05"),
	)
	return r.Replace(pattern)
}

// resolveFormat implements spec.md §4.6: an explicit non-"auto" format
// wins; otherwise infer from the response Content-Type.
func resolveFormat(explicit, contentType string) string {
	if explicit != "" && explicit != "auto" {
		return explicit
	}
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "application/json"):
		return "json"
	case strings.HasPrefix(ct, "application/xml"), strings.HasPrefix(ct, "text/xml"):
		return "xml"
	case strings.HasPrefix(ct, "text/"):
		return "txt"
	default:
		return "txt"
	}
}

// serialize implements spec.md §4.6: json formats get pretty-printed JSON;
// xml/txt write the value as-is when it is already a string, else fall
// back to pretty JSON.
func serialize(format string, data any) ([]byte, error) {
	if format == "json" {
		return prettyJSON(data)
	}
	if s, ok := data.(string); ok {
		return []byte(s), nil
	}
	return prettyJSON(data)
}

func prettyJSON(data any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func writeAtomic(target string, payload []byte) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".filesink.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
