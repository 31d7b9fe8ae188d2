package groupconfig

import (
	"os"
	"path/filepath"
	"testing"
)

const validDoc = `
group: demo
origins:
  - name: svc1
    base_url: https://example.com
    job:
      - id: login
        type: auth
        method: POST
        path: /auth
        session_name: S
        token_identifier: access_token
      - id: fetch
        type: request
        method: GET
        path: /data
        session_name: S
        dependencies: [login]
`

func TestLoadFileValidDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "demo.yaml")
	if err := os.WriteFile(path, []byte(validDoc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	g, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if g.Name != "demo" || len(g.Origins) != 1 || len(g.Origins[0].Jobs) != 2 {
		t.Fatalf("unexpected group: %+v", g)
	}
}

func TestLoadFileRejectsMissingRequiredField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	bad := `
group: demo
origins:
  - name: svc1
    job:
      - id: fetch
        type: request
        method: GET
        path: /data
`
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected validation error for missing base_url")
	}
}

func TestFindJobAcrossOrigins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "demo.yaml")
	if err := os.WriteFile(path, []byte(validDoc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	g, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	origin, job, ok := g.FindJob("fetch")
	if !ok || origin.Name != "svc1" || job.ID != "fetch" {
		t.Fatalf("FindJob failed: origin=%v job=%v ok=%v", origin, job, ok)
	}
}

func TestFindAuthJobBySessionName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "demo.yaml")
	if err := os.WriteFile(path, []byte(validDoc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	g, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	origin, job, ok := FindAuthJobBySessionName(&g.Origins[0], g.Origins, "S")
	if !ok || job.ID != "login" || origin.Name != "svc1" {
		t.Fatalf("FindAuthJobBySessionName failed: %v %v %v", origin, job, ok)
	}
}

func TestLoadFileRejectsDuplicateJobIDWithinOrigin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dup.yaml")
	dup := `
group: demo
origins:
  - name: svc1
    base_url: https://example.com
    job:
      - id: fetch
        type: request
        method: GET
        path: /a
      - id: fetch
        type: request
        method: GET
        path: /b
`
	if err := os.WriteFile(path, []byte(dup), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected error for duplicate job id within one origin")
	}
}

func TestLoadFileRejectsCrossOriginDependency(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cross.yaml")
	cross := `
group: demo
origins:
  - name: svc1
    base_url: https://example.com
    job:
      - id: login
        type: auth
        method: POST
        path: /auth
        session_name: S
        token_identifier: access_token
  - name: svc2
    base_url: https://example.org
    job:
      - id: fetch
        type: request
        method: GET
        path: /data
        dependencies: [login]
`
	if err := os.WriteFile(path, []byte(cross), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected error for dependency reaching into another origin")
	}
}

func TestDiscoverFilesFindsNestedYAML(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "sub")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(nested, "demo.yaml"), []byte(validDoc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	files, err := DiscoverFiles(dir)
	if err != nil {
		t.Fatalf("DiscoverFiles: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %v", files)
	}
}
