// Package executor implements the Job Executor: the per-job state machine
// PREPARE → AUTH_CHECK → REQUEST → MAYBE_REAUTH → SINK → DONE that composes
// the Substitutor, Authenticator, HTTP Client, and Sink, per SPEC_FULL.md
// §4.8. Grounded on the teacher's staged-pipeline shape in
// pkg/transfer/transfer.go (Transfer.Run sequencing list→match→copy) and
// the re-entrancy bookkeeping style of pkg/jobregistry's PID-liveness
// check, generalized here to an in-process "already running" guard.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	neturl "net/url"
	"strings"
	"sync"
	"time"

	"github.com/3leaps/gorunner/pkg/auth"
	"github.com/3leaps/gorunner/pkg/groupconfig"
	"github.com/3leaps/gorunner/pkg/httpclient"
	"github.com/3leaps/gorunner/pkg/session"
	"github.com/3leaps/gorunner/pkg/sink"
	"github.com/3leaps/gorunner/pkg/sink/dbsink"
	"github.com/3leaps/gorunner/pkg/sink/filesink"
	"github.com/3leaps/gorunner/pkg/substitute"
)

// InvocationCache is the per-run store of already-executed job results,
// consulted by template-path substitution (pkg/substitute.ResultCache) and
// populated by DONE.
type InvocationCache struct {
	mu      sync.RWMutex
	entries map[string]any
}

// NewInvocationCache returns an empty cache.
func NewInvocationCache() *InvocationCache {
	return &InvocationCache{entries: make(map[string]any)}
}

// Get implements substitute.ResultCache.
func (c *InvocationCache) Get(jobID string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[jobID]
	return v, ok
}

func (c *InvocationCache) set(jobID string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[jobID] = v
}

// Overrides lets the caller (CLI flags --payload-file/--params-file)
// replace a job's payload or params wholesale before substitution, per
// spec.md §4.8 PREPARE / §9 open question.
type Overrides struct {
	Payload any
	Params  map[string]string
}

// Executor runs jobs to completion, composing the Substitutor,
// Authenticator, HTTP Client, and Sink.
type Executor struct {
	client        *httpclient.Client
	authenticator *auth.Authenticator
	sessions      *session.Store
	cache         *InvocationCache
	masterKey     string
	env           func(string) (string, bool)
	onWarning     func(string)

	mu         sync.Mutex
	runningSet map[string]bool
}

// New returns an Executor. env resolves $ENV_ placeholders (typically
// os.LookupEnv); masterKey decrypts ENC:-prefixed strings.
func New(client *httpclient.Client, authenticator *auth.Authenticator, sessions *session.Store, cache *InvocationCache, masterKey string, env func(string) (string, bool)) *Executor {
	return &Executor{
		client:        client,
		authenticator: authenticator,
		sessions:      sessions,
		cache:         cache,
		masterKey:     masterKey,
		env:           env,
		runningSet:    make(map[string]bool),
	}
}

// OnWarning installs a callback invoked for non-fatal substitution warnings
// (EnvMissing, SessionMissing, TemplatePathMissing per spec.md §7).
func (e *Executor) OnWarning(fn func(string)) {
	e.onWarning = fn
}

// Result is what Execute returns for a completed job. DONE caches only part
// of it: a request job's Data, or an authenticated marker for an auth job
// (see publish).
type Result struct {
	Authenticated bool      `json:"authenticated,omitempty"`
	Data          any       `json:"data,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Status        int       `json:"status,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Execute runs job within origin to completion. allOrigins is the full
// group's origin list, consulted by AUTH_CHECK to locate an auth job for a
// session name outside the current origin.
func (e *Executor) Execute(ctx context.Context, origin *groupconfig.Origin, job *groupconfig.Job, allOrigins []groupconfig.Origin, overrides Overrides) (*Result, error) {
	key := origin.Name + "_" + job.ID
	if err := e.enter(key); err != nil {
		return nil, err
	}
	defer e.leave(key)

	prepared := e.prepare(*job, overrides)

	if prepared.Type == groupconfig.JobTypeAuth {
		authJob := e.toAuthJob(origin.BaseURL, prepared)
		if err := e.authenticator.Authenticate(ctx, origin.Name, authJob); err != nil {
			return nil, fmt.Errorf("job %s: %w", job.ID, err)
		}
		result := &Result{Authenticated: true, Timestamp: time.Now()}
		e.publish(job.ID, result)
		return result, nil
	}

	if prepared.SessionName != "" {
		authOrigin, rawAuthJob, ok := groupconfig.FindAuthJobBySessionName(origin, allOrigins, prepared.SessionName)
		if ok {
			substitutedAuthJob := e.prepare(*rawAuthJob, Overrides{})
			if err := e.authenticator.RefreshAuthentication(ctx, authOrigin.Name, e.toAuthJob(authOrigin.BaseURL, substitutedAuthJob)); err != nil {
				return nil, fmt.Errorf("job %s: auth refresh: %w", job.ID, err)
			}
		}
	}

	resp, _, err := e.requestWithReauth(ctx, origin, allOrigins, prepared, false)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}

	result := &Result{
		Data:      resp.Data,
		Headers:   flattenHeaders(resp.Headers),
		Status:    resp.Status,
		Timestamp: time.Now(),
	}

	if prepared.Output != nil && prepared.Output.Enabled {
		if err := e.dispatchSink(ctx, origin, job.ID, prepared, sink.Response{Data: resp.Data, Headers: result.Headers, Status: resp.Status}); err != nil {
			if e.onWarning != nil {
				e.onWarning(fmt.Sprintf("job %s: sink failed: %v", job.ID, err))
			}
		}
	}

	e.publish(job.ID, result)
	return result, nil
}

func (e *Executor) enter(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runningSet[key] {
		return fmt.Errorf("job %s is already running", key)
	}
	e.runningSet[key] = true
	return nil
}

func (e *Executor) leave(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.runningSet, key)
}

// prepare implements spec.md §4.8 PREPARE: deep-substitute against env,
// session, and the invocation cache; overlay payload/params overrides
// verbatim (replacing the field wholesale, before substitution, per §9's
// canonical resolution of the payload-file open question).
func (e *Executor) prepare(job groupconfig.Job, overrides Overrides) groupconfig.Job {
	if overrides.Payload != nil {
		job.Payload = overrides.Payload
	}
	if overrides.Params != nil {
		job.Params = overrides.Params
	}

	opts := substitute.Options{
		Env:       e.env,
		Session:   e.sessions.Get,
		Results:   e.cache.Get,
		MasterKey: e.masterKey,
		OnWarning: e.onWarning,
	}

	job.Headers = deepStringMap(job.Headers, opts)
	job.Params = deepStringMap(job.Params, opts)
	job.Path = substitute.String(job.Path, opts)
	if job.Payload != nil {
		job.Payload = substitute.Deep(job.Payload, opts)
	}
	if job.Output != nil && job.Output.Database != nil && job.Output.Database.ConnectionString != "" {
		job.Output.Database.ConnectionString = substitute.String(job.Output.Database.ConnectionString, opts)
	}
	return job
}

func deepStringMap(m map[string]string, opts substitute.Options) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = substitute.String(v, opts)
	}
	return out
}

func (e *Executor) toAuthJob(baseURL string, job groupconfig.Job) auth.Job {
	return auth.Job{
		ID:                        job.ID,
		Method:                    job.Method,
		URL:                       baseURL + job.Path,
		Headers:                   job.Headers,
		Payload:                   job.Payload,
		TokenIdentifier:           job.TokenIdentifier,
		TokenExpirationIdentifier: job.TokenExpirationIdentifier,
		TokenExpirationTime:       job.TokenExpirationTime,
		SessionName:               job.SessionName,
		Timeout:                   timeoutOf(job),
		Retries:                   retriesOf(job),
		RetryDelay:                delayOf(job),
		RetryBackoff:              job.RetryPolicy.Backoff,
	}
}

func timeoutOf(job groupconfig.Job) time.Duration {
	if job.Timeout <= 0 {
		return 0
	}
	return time.Duration(job.Timeout) * time.Millisecond
}

func retriesOf(job groupconfig.Job) int {
	if job.RetryPolicy.MaxAttempts <= 0 {
		return 0
	}
	return job.RetryPolicy.MaxAttempts
}

func delayOf(job groupconfig.Job) time.Duration {
	if job.RetryPolicy.Delay <= 0 {
		return 0
	}
	return time.Duration(job.RetryPolicy.Delay) * time.Millisecond
}

// requestWithReauth implements spec.md §4.8 REQUEST / MAYBE_REAUTH: on a
// 401 (status or a transport error whose message names HTTP 401), force a
// re-authentication and replay exactly once. A second 401 after the replay
// surfaces as a failure.
func (e *Executor) requestWithReauth(ctx context.Context, origin *groupconfig.Origin, allOrigins []groupconfig.Origin, job groupconfig.Job, alreadyReauthed bool) (*httpclient.Response, bool, error) {
	url := origin.BaseURL + job.Path
	if len(job.Params) > 0 {
		query := neturl.Values{}
		for k, v := range job.Params {
			query.Set(k, v)
		}
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url += sep + query.Encode()
	}
	headers := job.Headers
	if job.SessionName != "" {
		if token, ok := e.authenticator.GetToken(job.SessionName); ok {
			headers = withAuthHeader(headers, job.Auth.Type, token)
		}
	}

	resp, err := e.client.Do(ctx, httpclient.Request{
		Method:  job.Method,
		URL:     url,
		Headers: headers,
		Body:    job.Payload,
		Timeout: timeoutOf(job),
		Retries: retriesOf(job),
		Delay:   delayOf(job),
		Backoff: job.RetryPolicy.Backoff,
	})

	if is401(resp, err) && !alreadyReauthed && job.SessionName != "" {
		authOrigin, rawAuthJob, ok := groupconfig.FindAuthJobBySessionName(origin, allOrigins, job.SessionName)
		if ok {
			substitutedAuthJob := e.prepare(*rawAuthJob, Overrides{})
			authJob := e.toAuthJob(authOrigin.BaseURL, substitutedAuthJob)
			e.authenticator.ForceExpire(authOrigin.Name, authJob)
			if refreshErr := e.authenticator.RefreshAuthentication(ctx, authOrigin.Name, authJob); refreshErr != nil {
				return nil, true, fmt.Errorf("re-authentication failed: %w", refreshErr)
			}
		}
		return e.requestWithReauth(ctx, origin, allOrigins, job, true)
	}
	if err != nil {
		return nil, alreadyReauthed, err
	}
	return resp, alreadyReauthed, nil
}

func is401(resp *httpclient.Response, err error) bool {
	if resp != nil && resp.Status == http.StatusUnauthorized {
		return true
	}
	if err != nil {
		if te, ok := err.(*httpclient.TransportError); ok {
			return te.Status == http.StatusUnauthorized || strings.Contains(te.Message, "HTTP 401")
		}
	}
	return false
}

func withAuthHeader(headers map[string]string, authType, token string) map[string]string {
	out := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		out[k] = v
	}
	if authType == "" {
		authType = "Bearer"
	}
	out["Authorization"] = authType + " " + token
	return out
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

func (e *Executor) dispatchSink(ctx context.Context, origin *groupconfig.Origin, jobID string, job groupconfig.Job, resp sink.Response) error {
	out := job.Output
	sinkCtx := sink.Context{JobID: jobID, Origin: origin.Name, Timestamp: time.Now()}

	switch out.Type {
	case "file":
		if out.File == nil {
			return fmt.Errorf("output.type=file requires output.file")
		}
		fs := filesink.New(filesink.Config{
			Path: out.File.Path, Filename: out.File.Filename,
			Format: out.File.Format, Overwrite: out.File.Overwrite,
		})
		return fs.Write(ctx, resp, sinkCtx)
	case "database":
		if out.Database == nil {
			return fmt.Errorf("output.type=database requires output.database")
		}
		connStr := out.Database.ConnectionString
		if connStr == "" {
			connStr = origin.ConnectionString
		}
		metadataColumns := true
		if out.Database.MetadataColumns != nil {
			metadataColumns = *out.Database.MetadataColumns
		}
		ds := dbsink.New(dbsink.Config{
			Driver: out.Database.Driver, Table: out.Database.Table,
			Columns: out.Database.Columns, DataPath: out.Database.DataPath,
			ClearBeforeInsert: out.Database.ClearBeforeInsert,
			ConnectionString:  connStr, MetadataColumns: metadataColumns,
		})
		return ds.Write(ctx, resp, sinkCtx)
	default:
		return fmt.Errorf("unknown output type %q", out.Type)
	}
}

// publish implements spec.md §4.8 DONE: publish to the invocation cache and
// mirror into the Session Store under job_result_<id> with a 1-hour TTL.
// request jobs cache their response data directly (so {{jobId.field}}
// navigates straight into it); auth jobs cache the authenticated marker.
func (e *Executor) publish(jobID string, result *Result) {
	var mirror any = result.Data
	if result.Authenticated {
		mirror = map[string]any{"authenticated": true, "timestamp": result.Timestamp}
	}
	e.cache.set(jobID, mirror)
	e.sessions.Set("job_result_"+jobID, stringifyMirror(mirror), time.Hour)
}

func stringifyMirror(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
