// Package auth implements the Authenticator: it issues an auth job's login
// request, extracts a token and its expiry from the response body, and
// stores the token in the Session Store under a declared session name, per
// SPEC_FULL.md §4.5.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/3leaps/gorunner/pkg/httpclient"
	"github.com/3leaps/gorunner/pkg/jsonpath"
	"github.com/3leaps/gorunner/pkg/session"
)

const defaultTokenTTL = 3600 * time.Second

// Job is the subset of a configured auth job the Authenticator needs. The
// caller (the Job Executor) is responsible for substituting Headers and
// Payload before calling Authenticate.
type Job struct {
	ID                        string
	Method                    string
	URL                       string
	Headers                   map[string]string
	Payload                   any
	TokenIdentifier           string // dotted path to the token string in the response
	TokenExpirationIdentifier string // dotted path to a numeric/numeric-string lifetime, optional
	TokenExpirationTime       float64 // static fallback seconds, optional (0 means unset)
	SessionName               string  // defaults to SESSION_<ORIGIN>_TOKEN when empty
	Timeout                   time.Duration
	Retries                   int
	RetryDelay                time.Duration
	RetryBackoff              string // httpclient.BackoffFixed (default) | httpclient.BackoffExponential
}

// ExtractionError means the response body did not carry a usable token at
// TokenIdentifier; it is fatal to the auth job and its dependents per
// spec.md §7 (AuthTokenExtractionFailed).
type ExtractionError struct {
	JobID string
	Path  string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("auth job %s: no string token found at %q in response", e.JobID, e.Path)
}

// Authenticator issues login requests and stores the resulting token in the
// Session Store under the job's session name (SessionName, or its
// origin-derived default). Every lookup is keyed by that same session name
// rather than by origin, since a request job's auth job (found via
// groupconfig.FindAuthJobBySessionName) may live in a different origin than
// the request job itself — origin-keyed lookups would miss in that case.
type Authenticator struct {
	client   *httpclient.Client
	sessions *session.Store
}

// New returns an Authenticator backed by client and store.
func New(client *httpclient.Client, store *session.Store) *Authenticator {
	return &Authenticator{client: client, sessions: store}
}

func sessionName(origin string, job Job) string {
	if job.SessionName != "" {
		return job.SessionName
	}
	return "SESSION_" + strings.ToUpper(origin) + "_TOKEN"
}

// Authenticate issues job's login request, extracts the token from the
// response, and stores it in the Session Store under job's session name.
func (a *Authenticator) Authenticate(ctx context.Context, origin string, job Job) error {
	resp, err := a.client.Do(ctx, httpclient.Request{
		Method:  job.Method,
		URL:     job.URL,
		Headers: job.Headers,
		Body:    job.Payload,
		Timeout: job.Timeout,
		Retries: job.Retries,
		Delay:   job.RetryDelay,
		Backoff: job.RetryBackoff,
	})
	if err != nil {
		return fmt.Errorf("auth job %s: login request failed: %w", job.ID, err)
	}

	token, ok := jsonpath.GetString(resp.Data, job.TokenIdentifier)
	if !ok {
		return &ExtractionError{JobID: job.ID, Path: job.TokenIdentifier}
	}

	ttl := tokenTTL(resp.Data, job)
	name := sessionName(origin, job)
	a.sessions.Set(name, token, ttl)
	return nil
}

// tokenTTL implements spec.md §4.5 step 4: prefer a numeric (or numeric
// string) value at TokenExpirationIdentifier, else the static fallback,
// else the 3600s default.
func tokenTTL(data any, job Job) time.Duration {
	if job.TokenExpirationIdentifier != "" {
		if n, ok := jsonpath.GetNumber(data, job.TokenExpirationIdentifier); ok {
			return time.Duration(n * float64(time.Second))
		}
	}
	if job.TokenExpirationTime > 0 {
		return time.Duration(job.TokenExpirationTime * float64(time.Second))
	}
	return defaultTokenTTL
}

// RefreshAuthentication is a no-op if job's session still holds an
// unexpired token; otherwise it calls Authenticate.
func (a *Authenticator) RefreshAuthentication(ctx context.Context, origin string, job Job) error {
	name := sessionName(origin, job)
	if _, ok := a.sessions.Get(name); ok {
		return nil
	}
	return a.Authenticate(ctx, origin, job)
}

// GetToken returns the token currently stored under sessionName, or "" and
// false if none is tracked or it has expired. Callers pass the request
// job's own declared (or defaulted) session name, not an origin name, so
// the lookup works regardless of which origin actually owns the auth job.
func (a *Authenticator) GetToken(sessionName string) (string, bool) {
	if sessionName == "" {
		return "", false
	}
	return a.sessions.Get(sessionName)
}

// Logout deletes job's session entry, if any.
func (a *Authenticator) Logout(origin string, job Job) {
	a.sessions.Delete(sessionName(origin, job))
}

// ForceExpire deletes job's current token so the next RefreshAuthentication
// re-authenticates. Used by the Job Executor's 401 replay (spec.md §4.8
// MAYBE_REAUTH): the prior token is invalidated before the replayed request
// fetches a new one.
func (a *Authenticator) ForceExpire(origin string, job Job) {
	a.Logout(origin, job)
}
