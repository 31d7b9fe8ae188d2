// Package substitute implements the variable substitution engine: a pure
// function over strings and nested structures that resolves three
// placeholder families against environment variables, the session store,
// and the per-invocation result cache, per SPEC_FULL.md §4.2.
package substitute

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/3leaps/gorunner/internal/secret"
	"github.com/3leaps/gorunner/pkg/jsonpath"
)

var (
	envPattern     = regexp.MustCompile(`\$ENV_[A-Z_][A-Z0-9_]*`)
	sessionPattern = regexp.MustCompile(`\$SESSION_[A-Z_][A-Z0-9_]*`)
	datePattern    = regexp.MustCompile(`\$DATE`)
	pathPattern    = regexp.MustCompile(`\{\{[^}]+\}\}`)
)

// EnvLookup resolves an environment variable name (including the ENV_
// prefix, per spec.md §4.2: "the ENV_ prefix is part of the variable
// name") to a value.
type EnvLookup func(name string) (string, bool)

// SessionLookup resolves a session key (including the SESSION_ prefix) to
// its stored value.
type SessionLookup func(name string) (string, bool)

// ResultCache resolves a job id to its invocation-cache entry's decoded
// response data, used to satisfy {{jobId.field...}} placeholders.
type ResultCache func(jobID string) (any, bool)

// Options bundles the three resolution sources plus the master key used
// to decrypt ENC:-prefixed strings before substitution runs.
type Options struct {
	Env        EnvLookup
	Session    SessionLookup
	Results    ResultCache
	MasterKey  string
	Now        func() time.Time // defaults to time.Now; overridable for tests
	OnWarning  func(msg string)
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) warn(format string, args ...any) {
	if o.OnWarning != nil {
		o.OnWarning(fmt.Sprintf(format, args...))
	}
}

// Deep recursively substitutes every string found in value (maps, slices,
// scalars) and returns a new value of the same shape. Non-string scalars
// pass through unchanged.
func Deep(value any, opts Options) any {
	switch v := value.(type) {
	case string:
		return String(v, opts)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = Deep(val, opts)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = Deep(val, opts)
		}
		return out
	default:
		return value
	}
}

// String applies the substitution pipeline to a single string: decrypt (if
// ENC:-prefixed) → $ENV_ → $SESSION_ → {{path}} → $DATE, in that order, per
// spec.md §4.2. A string with no placeholders is returned byte-for-byte
// unchanged (idempotence, per spec.md §8).
func String(s string, opts Options) string {
	if secret.IsEncrypted(s) {
		plain, err := secret.Decrypt(opts.MasterKey, s)
		if err != nil {
			opts.warn("failed to decrypt ENC: value: %v", err)
		} else {
			s = plain
		}
	}

	s = substituteEnv(s, opts)
	s = substituteSession(s, opts)
	s = substitutePath(s, opts)
	s = substituteDate(s, opts)
	return s
}

func substituteEnv(s string, opts Options) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[1:] // strip leading '$'; ENV_ prefix stays part of the name
		if opts.Env == nil {
			opts.warn("no environment lookup configured for %s", match)
			return match
		}
		val, ok := opts.Env(name)
		if !ok {
			opts.warn("environment variable %s is not set", name)
			return match
		}
		return val
	})
}

func substituteSession(s string, opts Options) string {
	return sessionPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[1:] // strip leading '$'; SESSION_ prefix stays part of the name
		if opts.Session == nil {
			opts.warn("no session lookup configured for %s", match)
			return match
		}
		val, ok := opts.Session(name)
		if !ok {
			opts.warn("session value %s is not set", name)
			return match
		}
		return val
	})
}

func substitutePath(s string, opts Options) string {
	return pathPattern.ReplaceAllStringFunc(s, func(match string) string {
		inner := match[2 : len(match)-2] // strip {{ }}
		jobID, rest, ok := splitJobPath(inner)
		if !ok {
			opts.warn("malformed template path %s", match)
			return match
		}
		if opts.Results == nil {
			opts.warn("no result cache configured for %s", match)
			return match
		}
		data, ok := opts.Results(jobID)
		if !ok {
			opts.warn("no cached result for job %s referenced by %s", jobID, match)
			return match
		}
		if rest == "" {
			if str, ok := data.(string); ok {
				return str
			}
			opts.warn("template path %s does not resolve to a string", match)
			return match
		}
		val, ok := jsonpath.Get(data, rest)
		if !ok {
			opts.warn("template path %s could not be resolved", match)
			return match
		}
		return stringify(val)
	})
}

// splitJobPath splits "jobId.field[0].sub" into ("jobId", "field[0].sub").
// A bare "jobId" (no dot) is valid and returns rest == "".
func splitJobPath(inner string) (jobID, rest string, ok bool) {
	for i, r := range inner {
		if r == '.' {
			if i == 0 {
				return "", "", false
			}
			return inner[:i], inner[i+1:], true
		}
		if r == '[' {
			// "jobId[0]" — indices applied directly to the job's data.
			if i == 0 {
				return "", "", false
			}
			return inner[:i], inner[i:], true
		}
	}
	if inner == "" {
		return "", "", false
	}
	return inner, "", true
}

func substituteDate(s string, opts Options) string {
	return datePattern.ReplaceAllStringFunc(s, func(string) string {
		return opts.now().Format("2006-01-02")
	})
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
