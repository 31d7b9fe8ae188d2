package groupconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	schemasassets "github.com/3leaps/gorunner/internal/assets/schemas"
)

const schemaID = "gorunner/v1.0.0/group-document"

var (
	validatorOnce sync.Once
	validator     *jsonschema.Schema
	validatorErr  error
)

// ValidationError is a single schema violation, reported with a JSON
// pointer to the offending field.
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors collects every violation found in one document.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "group document failed validation with %d errors:\n", len(e))
	for i, err := range e {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func getValidator() (*jsonschema.Schema, error) {
	validatorOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaID, bytes.NewReader(schemasassets.GroupDocumentSchema)); err != nil {
			validatorErr = fmt.Errorf("groupconfig: add schema resource: %w", err)
			return
		}
		sch, err := c.Compile(schemaID)
		if err != nil {
			validatorErr = fmt.Errorf("groupconfig: compile schema: %w", err)
			return
		}
		validator = sch
	})
	return validator, validatorErr
}

// ValidateRaw validates raw decoded JSON (maps/slices, as produced by
// encoding/json.Unmarshal into `any`) against the embedded group-document
// schema.
func ValidateRaw(doc any) error {
	v, err := getValidator()
	if err != nil {
		return err
	}
	if err := v.Validate(doc); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			return flatten(ve)
		}
		return err
	}
	return nil
}

// Validate marshals g and validates it against the schema. Prefer
// ValidateRaw when the original decoded document is available, since
// marshaling a Group loses unknown fields.
func Validate(g *Group) error {
	b, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("groupconfig: marshal group for validation: %w", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("groupconfig: re-decode group for validation: %w", err)
	}
	if err := ValidateRaw(doc); err != nil {
		return err
	}
	return ValidateSemantics(g)
}

// ValidateSemantics enforces the structural invariants the JSON Schema
// cannot express: job ids are unique within an origin, and every
// dependency resolves to a sibling job in that same origin (spec.md's
// invariants that job ids are origin-scoped and dependencies never cross
// an origin boundary).
func ValidateSemantics(g *Group) error {
	var errs ValidationErrors
	for oi, origin := range g.Origins {
		seenAt := make(map[string]int, len(origin.Jobs))
		for ji, job := range origin.Jobs {
			if prev, dup := seenAt[job.ID]; dup {
				errs = append(errs, ValidationError{
					Path:    fmt.Sprintf("/origins/%d/job/%d/id", oi, ji),
					Message: fmt.Sprintf("duplicate job id %q in origin %q (also at job %d)", job.ID, origin.Name, prev),
				})
				continue
			}
			seenAt[job.ID] = ji
		}
		for ji, job := range origin.Jobs {
			for di, dep := range job.Dependencies {
				if _, ok := seenAt[dep]; !ok {
					errs = append(errs, ValidationError{
						Path:    fmt.Sprintf("/origins/%d/job/%d/dependencies/%d", oi, ji, di),
						Message: fmt.Sprintf("dependency %q does not resolve to a job in origin %q", dep, origin.Name),
					})
				}
			}
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func flatten(root *jsonschema.ValidationError) ValidationErrors {
	var out ValidationErrors
	var walk func(*jsonschema.ValidationError)
	walk = func(ve *jsonschema.ValidationError) {
		if len(ve.Causes) == 0 {
			out = append(out, ValidationError{Path: ve.InstanceLocation, Message: ve.Message})
			return
		}
		for _, c := range ve.Causes {
			walk(c)
		}
	}
	walk(root)
	return out
}
