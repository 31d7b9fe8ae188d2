package observability

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"DEBUG":   zapcore.DebugLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFallbackLogDirUsesXDGStateHome(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/tmp/xdgstate")
	got := fallbackLogDir()
	if got != "/tmp/xdgstate/gorunner" {
		t.Fatalf("fallbackLogDir() = %q", got)
	}
}

func TestInitPopulatesCLILogger(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LOG_DIR", dir)
	t.Setenv("LOG_SILENT", "true")
	t.Setenv("LOG_LEVEL", "debug")
	if err := Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if CLILogger == nil {
		t.Fatal("CLILogger not set")
	}
	CLILogger.Info("probe")
}
