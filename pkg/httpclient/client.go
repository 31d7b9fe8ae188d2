// Package httpclient issues single HTTP requests with timeout,
// retry-with-backoff, and content-type-driven response parsing, per
// SPEC_FULL.md §4.4. Grounded on the teacher's retryable-body handling in
// pkg/transfer/transfer.go, generalized from "retry an S3 PUT" to "retry
// any REST call" and widened with an explicit retry-eligibility policy.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// BackoffFixed and BackoffExponential are the two retry-delay growth
// policies a Request may declare.
const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// Request describes a single logical call; it may be attempted more than
// once per Retries.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any // string, or a JSON-serializable object/array; nil for none
	Timeout time.Duration
	Retries int           // additional attempts beyond the first; 0 means exactly one attempt
	Delay   time.Duration // base delay between attempts
	Backoff string        // BackoffFixed (default) | BackoffExponential: Delay doubles per retry
}

// Response is the normalized result of a successful request.
type Response struct {
	Status        int
	StatusText    string
	Headers       http.Header
	Data          any // parsed JSON, a string, or []byte, depending on Content-Type
	URL           string
	CorrelationID string
}

// TransportError is returned for non-2xx responses (after retries are
// exhausted) and for transport-level failures; the Executor inspects
// Status/Message to decide whether to trigger the 401 re-auth flow.
type TransportError struct {
	Status  int // 0 for a pure transport failure (no response received)
	Message string
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// Client issues requests using an underlying *http.Client, pacing retry
// attempts with a rate limiter in the teacher's style of wiring
// golang.org/x/time/rate into retry loops rather than a bare time.Sleep.
type Client struct {
	httpClient *http.Client
}

// New returns a Client. httpClient may be nil to use http.DefaultClient's
// transport with no client-level timeout (per-request timeouts are applied
// via context instead, since a single Client issues requests of differing
// Request.Timeout).
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{httpClient: httpClient}
}

// Do issues req, retrying per its policy, and returns the normalized
// Response or a *TransportError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	attempts := req.Retries + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := pace(ctx, retryDelay(req, attempt)); err != nil {
				return nil, err
			}
		}

		resp, err := c.attempt(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !retryable(err) {
			return nil, err
		}
	}

	return nil, lastErr
}

// retryDelay computes the delay before the given retry attempt (1-indexed:
// the delay before the 1st retry, 2nd retry, and so on). BackoffExponential
// doubles req.Delay per retry (attempt 1 waits Delay, attempt 2 waits
// 2xDelay, attempt 3 waits 4xDelay, ...); BackoffFixed (the default) always
// waits req.Delay.
func retryDelay(req Request, attempt int) time.Duration {
	if req.Backoff != BackoffExponential || req.Delay <= 0 {
		return req.Delay
	}
	return req.Delay * time.Duration(1<<uint(attempt-1))
}

// pace blocks for delay (or until ctx is done), using a single-token rate
// limiter the way the teacher throttles retry loops elsewhere rather than
// a bare time.Sleep, so a future caller can share one limiter across
// concurrent retries if needed.
func pace(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	lim := rate.NewLimiter(rate.Every(delay), 1)
	_ = lim.Reserve() // consume the initial burst token
	return lim.Wait(ctx)
}

func (c *Client) attempt(ctx context.Context, req Request) (*Response, error) {
	attemptCtx := ctx
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	bodyReader, contentType, err := encodeBody(req.Method, req.Body)
	if err != nil {
		return nil, &TransportError{Message: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, &TransportError{Message: err.Error()}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	correlationID := httpReq.Header.Get("X-Request-Id")
	if correlationID == "" {
		correlationID = uuid.New().String()
		httpReq.Header.Set("X-Request-Id", correlationID)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Message: err.Error()}
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := parseBody(httpResp)
	if err != nil {
		return nil, &TransportError{Status: httpResp.StatusCode, Message: err.Error()}
	}

	resp := &Response{
		Status:        httpResp.StatusCode,
		StatusText:    httpResp.Status,
		Headers:       httpResp.Header,
		Data:          data,
		URL:           req.URL,
		CorrelationID: correlationID,
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return resp, &TransportError{Status: httpResp.StatusCode, Message: httpResp.Status}
	}

	return resp, nil
}

// retryable decides retry eligibility per spec.md §4.4: retry on transport
// errors and 408; never on other 4xx; retry on 5xx.
func retryable(err error) bool {
	te, ok := err.(*TransportError)
	if !ok {
		return false
	}
	switch {
	case te.Status == 0:
		return true // transport-level failure (DNS, connection refused, timeout, ...)
	case te.Status == http.StatusRequestTimeout:
		return true
	case te.Status >= 500:
		return true
	default:
		return false
	}
}

func encodeBody(method string, body any) (io.Reader, string, error) {
	upper := strings.ToUpper(method)
	if upper == http.MethodGet || upper == http.MethodHead || body == nil {
		return nil, "", nil
	}

	switch b := body.(type) {
	case string:
		return strings.NewReader(b), "", nil
	case []byte:
		return bytes.NewReader(b), "", nil
	default:
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("httpclient: encode body: %w", err)
		}
		return bytes.NewReader(encoded), "application/json", nil
	}
}

func parseBody(resp *http.Response) (any, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	ct := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(ct)

	switch {
	case strings.HasPrefix(mediaType, "application/json"):
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("parse json response: %w", err)
		}
		return v, nil
	case strings.HasPrefix(mediaType, "text/"):
		return string(raw), nil
	default:
		return raw, nil
	}
}
