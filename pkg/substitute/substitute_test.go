package substitute

import (
	"testing"
	"time"

	"github.com/3leaps/gorunner/internal/secret"
)

func fixedOpts(env map[string]string, sess map[string]string, results map[string]any) Options {
	return Options{
		Env: func(name string) (string, bool) {
			v, ok := env[name]
			return v, ok
		},
		Session: func(name string) (string, bool) {
			v, ok := sess[name]
			return v, ok
		},
		Results: func(jobID string) (any, bool) {
			v, ok := results[jobID]
			return v, ok
		},
		Now: func() time.Time { return time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC) },
	}
}

func TestIdempotenceOnPlainString(t *testing.T) {
	opts := fixedOpts(nil, nil, nil)
	in := "no placeholders here"
	if got := String(in, opts); got != in {
		t.Fatalf("expected unchanged string, got %q", got)
	}
}

func TestEnvSubstitution(t *testing.T) {
	opts := fixedOpts(map[string]string{"ENV_FOO": "bar"}, nil, nil)
	got := String("value=$ENV_FOO!", opts)
	if got != "value=bar!" {
		t.Fatalf("got %q", got)
	}
}

func TestEnvMissingLeavesLiteral(t *testing.T) {
	var warned string
	opts := fixedOpts(nil, nil, nil)
	opts.OnWarning = func(msg string) { warned = msg }
	got := String("$ENV_MISSING", opts)
	if got != "$ENV_MISSING" {
		t.Fatalf("expected literal placeholder preserved, got %q", got)
	}
	if warned == "" {
		t.Fatalf("expected a warning to be emitted")
	}
}

func TestSessionSubstitution(t *testing.T) {
	opts := fixedOpts(nil, map[string]string{"SESSION_TOKEN": "T"}, nil)
	got := String("Bearer $SESSION_TOKEN", opts)
	if got != "Bearer T" {
		t.Fatalf("got %q", got)
	}
}

func TestDateSubstitution(t *testing.T) {
	opts := fixedOpts(nil, nil, nil)
	got := String("today is $DATE", opts)
	if got != "today is 2026-07-30" {
		t.Fatalf("got %q", got)
	}
}

func TestTemplatePathResolution(t *testing.T) {
	results := map[string]any{
		"a": map[string]any{"items": []any{map[string]any{"token": "Z"}}},
	}
	opts := fixedOpts(nil, nil, results)
	got := String("Bearer {{a.items[0].token}}", opts)
	if got != "Bearer Z" {
		t.Fatalf("got %q", got)
	}
}

func TestTemplatePathMissingLeavesLiteral(t *testing.T) {
	results := map[string]any{"a": map[string]any{"x": 1}}
	opts := fixedOpts(nil, nil, results)
	got := String("{{a.missing}}", opts)
	if got != "{{a.missing}}" {
		t.Fatalf("expected literal preserved, got %q", got)
	}
}

func TestEncThenEnvOrder(t *testing.T) {
	// ENC: decrypt must run before $ENV_ substitution so a password placeholder
	// embedded in an encrypted connection string still resolves.
	opts := fixedOpts(map[string]string{"ENV_PW": "secret"}, nil, nil)
	opts.MasterKey = "masterkey"
	encrypted := mustEncrypt(t, opts.MasterKey, "server=db;password=$ENV_PW;")
	got := String(encrypted, opts)
	if got != "server=db;password=secret;" {
		t.Fatalf("got %q", got)
	}
}

func mustEncrypt(t *testing.T, key, plain string) string {
	t.Helper()
	enc, err := secret.Encrypt(key, plain)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	return enc
}

func TestDeepAppliesRecursively(t *testing.T) {
	opts := fixedOpts(map[string]string{"ENV_FOO": "bar"}, nil, nil)
	in := map[string]any{
		"headers": map[string]any{"Authorization": "$ENV_FOO"},
		"list":    []any{"$ENV_FOO", 42, nil},
	}
	out := Deep(in, opts).(map[string]any)
	headers := out["headers"].(map[string]any)
	if headers["Authorization"] != "bar" {
		t.Fatalf("got %v", headers)
	}
	list := out["list"].([]any)
	if list[0] != "bar" || list[1] != 42 || list[2] != nil {
		t.Fatalf("got %v", list)
	}
}
