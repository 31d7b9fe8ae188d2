package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

const doctorFixture = `
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

func TestRunDoctorReportsValidConfiguration(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "demo.yaml"), []byte(doctorFixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("LOG_DIR", t.TempDir())
	t.Setenv("LOG_SILENT", "true")

	doctorDir = dir
	defer func() { doctorDir = "" }()

	// runDoctor logs rather than returning a value; it must not panic
	// against a valid configuration directory.
	runDoctor(doctorCmd, nil)
}

func TestRunDoctorReportsInvalidConfiguration(t *testing.T) {
	dir := t.TempDir()
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
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(bad), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("LOG_DIR", t.TempDir())
	t.Setenv("LOG_SILENT", "true")

	doctorDir = dir
	defer func() { doctorDir = "" }()

	runDoctor(doctorCmd, nil)
}
