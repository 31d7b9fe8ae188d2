// Package config resolves where group documents come from (a single file
// or a directory walk) and, for production imports, copies validated
// documents into the system config directory.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/3leaps/gorunner/pkg/groupconfig"
)

const sysconfSubdir = "gorunner"
const defaultDocsDir = "docs"

// Discovery bundles the -f/-d flag pair into a single resolution: a
// specific file wins outright, otherwise dir (defaulting to "docs/") is
// walked for every group document it contains.
type Discovery struct {
	File string
	Dir  string
}

func (d Discovery) dir() string {
	if d.Dir != "" {
		return d.Dir
	}
	return defaultDocsDir
}

// Resolve returns the set of group document paths to load. Paths are not
// made absolute: -f is returned as given, directory matches are joined to
// the directory.
func (d Discovery) Resolve() ([]string, error) {
	if d.File != "" {
		return []string{d.File}, nil
	}
	return groupconfig.DiscoverFiles(d.dir())
}

// Load resolves and loads every document the Discovery selects.
func (d Discovery) Load() ([]*groupconfig.Group, error) {
	paths, err := d.Resolve()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("config: no group documents found under %s", d.dir())
	}
	groups := make([]*groupconfig.Group, 0, len(paths))
	for _, p := range paths {
		g, err := groupconfig.LoadFile(p)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// SysconfDir returns <os.UserConfigDir()>/gorunner, creating it if absent.
func SysconfDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve system config directory: %w", err)
	}
	dir := filepath.Join(base, sysconfSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("config: create %s: %w", dir, err)
	}
	return dir, nil
}

// Import validates every document Discovery selects (Load already does
// this) and copies each as pretty-printed JSON into the system config
// directory, named after the group.
func Import(d Discovery) ([]string, error) {
	groups, err := d.Load()
	if err != nil {
		return nil, err
	}
	dir, err := SysconfDir()
	if err != nil {
		return nil, err
	}
	written := make([]string, 0, len(groups))
	for _, g := range groups {
		name := strings.ReplaceAll(g.Name, " ", "_") + ".json"
		dest := filepath.Join(dir, name)
		body, err := json.MarshalIndent(g, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("config: marshal group %s: %w", g.Name, err)
		}
		if err := os.WriteFile(dest, body, 0o644); err != nil {
			return nil, fmt.Errorf("config: write %s: %w", dest, err)
		}
		written = append(written, dest)
	}
	return written, nil
}
