package groupconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a single group document (YAML or JSON; both are parsed by
// the YAML decoder, whatever the extension) from path, validates it against
// the embedded schema, and decodes it into a Group.
func LoadFile(path string) (*Group, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("groupconfig: read %s: %w", path, err)
	}
	return decode(raw, path)
}

func decode(raw []byte, path string) (*Group, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("groupconfig: parse %s: %w", path, err)
	}
	doc = normalizeForJSONSchema(doc)

	if err := ValidateRaw(doc); err != nil {
		return nil, fmt.Errorf("groupconfig: %s: %w", path, err)
	}

	var g Group
	if err := yaml.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("groupconfig: decode %s: %w", path, err)
	}
	if err := ValidateSemantics(&g); err != nil {
		return nil, fmt.Errorf("groupconfig: %s: %w", path, err)
	}
	return &g, nil
}

// normalizeForJSONSchema converts the map[any]any nodes yaml.v3 may produce
// for nested maps into map[string]any, which jsonschema.Validate requires.
func normalizeForJSONSchema(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeForJSONSchema(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprintf("%v", k)] = normalizeForJSONSchema(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeForJSONSchema(val)
		}
		return out
	default:
		return v
	}
}

// DiscoverFiles globs dir for *.yaml/*.yml/*.json group documents, using
// doublestar so a pattern like "**/*.yaml" reaches nested subdirectories
// the way the teacher's pkg/match glob-matches object keys.
func DiscoverFiles(dir string) ([]string, error) {
	var out []string
	for _, pattern := range []string{"**/*.yaml", "**/*.yml", "**/*.json"} {
		matches, err := doublestar.Glob(os.DirFS(dir), pattern)
		if err != nil {
			return nil, fmt.Errorf("groupconfig: glob %s in %s: %w", pattern, dir, err)
		}
		for _, m := range matches {
			out = append(out, filepath.Join(dir, m))
		}
	}
	return out, nil
}

// LoadDir loads and validates every group document discovered under dir.
func LoadDir(dir string) ([]*Group, error) {
	files, err := DiscoverFiles(dir)
	if err != nil {
		return nil, err
	}
	groups := make([]*Group, 0, len(files))
	for _, f := range files {
		if !strings.HasSuffix(f, ".yaml") && !strings.HasSuffix(f, ".yml") && !strings.HasSuffix(f, ".json") {
			continue
		}
		g, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}
