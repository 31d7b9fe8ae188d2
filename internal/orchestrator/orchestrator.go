// Package orchestrator drives a single invocation: load configuration,
// resolve the dependency closure of a target job, and walk the Executor
// over it in order, per SPEC_FULL.md §4.9.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/3leaps/gorunner/internal/config"
	"github.com/3leaps/gorunner/internal/observability"
	"github.com/3leaps/gorunner/pkg/auth"
	"github.com/3leaps/gorunner/pkg/depgraph"
	"github.com/3leaps/gorunner/pkg/executor"
	"github.com/3leaps/gorunner/pkg/groupconfig"
	"github.com/3leaps/gorunner/pkg/httpclient"
	"github.com/3leaps/gorunner/pkg/session"
)

// Options carries everything a single orchestrator run needs, mirroring
// the CLI flags in spec.md §6.
type Options struct {
	Discovery   config.Discovery
	TargetJobID string
	PayloadFile string
	ParamsFile  string
	MasterKey   string
	Silent      bool
}

// Report summarizes a completed run for the caller (used by
// --output-response-params; cmd picks the exit code from Run's error).
type Report struct {
	Order   []string
	Results map[string]*executor.Result
}

// DependencyError wraps a failure in resolving the job graph itself —
// duplicate ids, cross-origin references, cycles, dangling references, or an
// unresolvable/ambiguous target — as distinct from a job actually failing to
// execute. cmd maps it to cliutil.ExitDependencyError.
type DependencyError struct {
	Err error
}

func (e *DependencyError) Error() string { return e.Err.Error() }
func (e *DependencyError) Unwrap() error { return e.Err }

// Run executes opts.TargetJobID and its transitive prerequisites in
// dependency order. It returns a non-nil error on the first job failure,
// at which point downstream jobs are not attempted.
func Run(ctx context.Context, opts Options) (*Report, error) {
	groups, err := opts.Discovery.Load()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	var allOrigins []groupconfig.Origin
	for _, g := range groups {
		allOrigins = append(allOrigins, g.Origins...)
	}

	// Job ids are only required to be unique within an origin (spec.md:32),
	// and a dependency only ever resolves to a sibling job in the same
	// origin (spec.md:38,49). Qualify every node id by its owning origin
	// before handing the set to depgraph.Resolve, so the same job id
	// reused across two origins can never collide or let one origin's
	// dependency silently resolve into another's job.
	nodes := make([]depgraph.Node, 0)
	jobIndex := make(map[string]*groupconfig.Job)       // qualified id -> job
	originIndex := make(map[string]*groupconfig.Origin) // qualified id -> origin
	seen := make(map[string]bool)
	for i := range allOrigins {
		o := &allOrigins[i]
		for j := range o.Jobs {
			jb := &o.Jobs[j]
			qid := qualify(o.Name, jb.ID)
			if seen[qid] {
				return nil, &DependencyError{Err: fmt.Errorf("orchestrator: duplicate job id %q in origin %q", jb.ID, o.Name)}
			}
			seen[qid] = true

			deps := make([]string, len(jb.Dependencies))
			for k, d := range jb.Dependencies {
				deps[k] = qualify(o.Name, d)
			}
			nodes = append(nodes, depgraph.Node{ID: qid, Dependencies: deps})
			jobIndex[qid] = jb
			originIndex[qid] = o
		}
	}

	targetQID, err := resolveTarget(allOrigins, opts.TargetJobID)
	if err != nil {
		return nil, &DependencyError{Err: err}
	}

	qualifiedOrder, err := depgraph.Resolve(nodes, targetQID)
	if err != nil {
		return nil, &DependencyError{Err: fmt.Errorf("orchestrator: %w", err)}
	}
	order := make([]string, len(qualifiedOrder))
	for i, qid := range qualifiedOrder {
		order[i] = jobIndex[qid].ID
	}

	overrides, err := loadOverrides(opts)
	if err != nil {
		return nil, err
	}

	client := httpclient.New(nil)
	sessions := session.New()
	go sessions.RunSweeper(ctx, 60*time.Second)
	authenticator := auth.New(client, sessions)
	cache := executor.NewInvocationCache()
	ex := executor.New(client, authenticator, sessions, cache, opts.MasterKey, lookupEnv)
	if !opts.Silent {
		ex.OnWarning(func(msg string) { observability.CLILogger.Warn(msg) })
	}

	report := &Report{Order: order, Results: make(map[string]*executor.Result, len(order))}

	for i, qid := range qualifiedOrder {
		job := jobIndex[qid]
		origin := originIndex[qid]
		jobID := job.ID

		var ov executor.Overrides
		if qid == targetQID {
			ov = overrides
		}

		if !opts.Silent {
			observability.CLILogger.Info(fmt.Sprintf("[%d/%d] %s :: %s (%s %s)", i+1, len(order), origin.Name, jobID, job.Method, job.Path))
		}

		result, err := ex.Execute(ctx, origin, job, allOrigins, ov)
		if err != nil {
			return report, fmt.Errorf("orchestrator: job %q failed: %w", jobID, err)
		}
		report.Results[jobID] = result
	}

	return report, nil
}

func lookupEnv(name string) (string, bool) {
	return os.LookupEnv(name)
}

// qualify namespaces a job id by its owning origin so ids that repeat
// across origins (permitted, since spec.md only requires uniqueness within
// one origin) never collide in the flattened node set depgraph.Resolve
// operates on.
func qualify(originName, jobID string) string {
	return originName + "::" + jobID
}

// resolveTarget finds the single origin/job matching targetJobID across
// every loaded origin and returns its qualified id. An id that names jobs
// in more than one origin is rejected as ambiguous rather than silently
// picking one.
func resolveTarget(origins []groupconfig.Origin, targetJobID string) (string, error) {
	var matches []string
	for i := range origins {
		o := &origins[i]
		for j := range o.Jobs {
			if o.Jobs[j].ID == targetJobID {
				matches = append(matches, qualify(o.Name, targetJobID))
			}
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("orchestrator: job %q not found in configuration", targetJobID)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("orchestrator: job id %q is ambiguous across origins; found in %d origins", targetJobID, len(matches))
	}
}

// loadOverrides reads --payload-file / --params-file, when set, as the
// verbatim replacement values spec.md §4.8 PREPARE overlays onto the
// target job before substitution runs.
func loadOverrides(opts Options) (executor.Overrides, error) {
	var ov executor.Overrides
	if opts.PayloadFile != "" {
		body, err := os.ReadFile(opts.PayloadFile)
		if err != nil {
			return ov, fmt.Errorf("orchestrator: read payload file %s: %w", opts.PayloadFile, err)
		}
		var payload any
		if err := json.Unmarshal(body, &payload); err != nil {
			return ov, fmt.Errorf("orchestrator: parse payload file %s: %w", opts.PayloadFile, err)
		}
		ov.Payload = payload
	}
	if opts.ParamsFile != "" {
		body, err := os.ReadFile(opts.ParamsFile)
		if err != nil {
			return ov, fmt.Errorf("orchestrator: read params file %s: %w", opts.ParamsFile, err)
		}
		var params map[string]string
		if err := json.Unmarshal(body, &params); err != nil {
			return ov, fmt.Errorf("orchestrator: parse params file %s: %w", opts.ParamsFile, err)
		}
		ov.Params = params
	}
	return ov, nil
}
