package config

import (
	"os"
	"path/filepath"
	"testing"
)

const fixture = `
group: demo
origins:
  - name: svc1
    base_url: https://example.com
    job:
      - id: fetch
        type: request
        method: GET
        path: /data
`

func TestDiscoveryResolveSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "demo.yaml")
	if err := os.WriteFile(path, []byte(fixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	d := Discovery{File: path}
	paths, err := d.Resolve()
	if err != nil || len(paths) != 1 || paths[0] != path {
		t.Fatalf("Resolve() = %v, %v", paths, err)
	}
}

func TestDiscoveryResolveDirectoryDefault(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "demo.yaml"), []byte(fixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	d := Discovery{Dir: dir}
	groups, err := d.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(groups) != 1 || groups[0].Name != "demo" {
		t.Fatalf("unexpected groups: %+v", groups)
	}
}

func TestDiscoveryLoadNoDocumentsFails(t *testing.T) {
	dir := t.TempDir()
	d := Discovery{Dir: dir}
	if _, err := d.Load(); err == nil {
		t.Fatal("expected error for empty directory")
	}
}

func TestImportWritesJSONToSysconfDir(t *testing.T) {
	dir := t.TempDir()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home)
	if err := os.WriteFile(filepath.Join(dir, "demo.yaml"), []byte(fixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	written, err := Import(Discovery{Dir: dir})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(written) != 1 {
		t.Fatalf("expected 1 written file, got %v", written)
	}
	if _, err := os.Stat(written[0]); err != nil {
		t.Fatalf("expected file at %s: %v", written[0], err)
	}
}
