package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/3leaps/gorunner/pkg/groupconfig"
)

const generateConfigFixtureSpec = `{
  "openapi": "3.0.0",
  "info": {"title": "demo", "version": "1.0.0"},
  "servers": [{"url": "https://api.example.com"}],
  "paths": {
    "/widgets": {
      "get": {"operationId": "listWidgets", "responses": {"200": {"description": "ok"}}}
    }
  }
}`

func TestGenerateConfigFromSwagger(t *testing.T) {
	dir := t.TempDir()
	specPath := filepath.Join(dir, "spec.json")
	if err := os.WriteFile(specPath, []byte(generateConfigFixtureSpec), 0o644); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	outPath := filepath.Join(dir, "demo.yaml")

	generateConfigSwagger = specPath
	generateConfigPostman = ""
	generateConfigOutput = outPath
	defer func() {
		generateConfigSwagger, generateConfigPostman, generateConfigOutput = "", "", ""
	}()

	if err := generateConfigCmd.RunE(generateConfigCmd, nil); err != nil {
		t.Fatalf("generate-config: %v", err)
	}

	g, err := groupconfig.LoadFile(outPath)
	if err != nil {
		t.Fatalf("LoadFile generated doc: %v", err)
	}
	if len(g.Origins) != 1 || len(g.Origins[0].Jobs) != 1 {
		t.Fatalf("unexpected generated document: %+v", g)
	}
}

func TestGenerateConfigRequiresExactlyOneSource(t *testing.T) {
	generateConfigSwagger = ""
	generateConfigPostman = ""
	generateConfigOutput = filepath.Join(t.TempDir(), "out.yaml")
	defer func() {
		generateConfigSwagger, generateConfigPostman, generateConfigOutput = "", "", ""
	}()

	if err := generateConfigCmd.RunE(generateConfigCmd, nil); err == nil {
		t.Fatal("expected error when neither --swagger nor --postman given")
	}
}
