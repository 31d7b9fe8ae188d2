// Package sink defines the shared contract for the two sink variants (file,
// database) that receive a request job's normalized response, per
// SPEC_FULL.md §4.6/§4.7. Concrete implementations live in the filesink and
// dbsink subpackages. This package holds no dispatch logic: the Job
// Executor (pkg/executor) picks the variant from the job's output type.
package sink

import (
	"context"
	"time"
)

// Response is the normalized result a job produced, the input every sink
// variant consumes.
type Response struct {
	Data    any
	Headers map[string]string
	Status  int
}

// Context carries the job/origin identity a sink attaches as metadata
// (job_id, timestamp, origin) and needs for filename/path templating.
type Context struct {
	JobID     string
	Origin    string
	Timestamp time.Time
}

// Sink writes a Response somewhere. Implementations must not fail the
// owning job on error; per spec.md §4.8 SINK, a sink failure is a warning,
// not a job failure — callers should log Write's error and continue.
type Sink interface {
	Write(ctx context.Context, resp Response, sinkCtx Context) error
}
