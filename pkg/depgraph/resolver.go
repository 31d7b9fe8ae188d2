// Package depgraph computes a safe execution order for a targeted job and
// its transitive prerequisites, per SPEC_FULL.md §4.3.
package depgraph

import (
	"fmt"
	"strings"
)

// Node is the minimal shape the resolver needs from a job: its identifier
// and the ids it depends on.
type Node struct {
	ID           string
	Dependencies []string
}

// CycleError reports a dependency cycle reachable from the requested
// target, naming the offending id.
type CycleError struct {
	JobID string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected at job %q", e.JobID)
}

// DanglingRefError lists every dependency reference across the job set
// that does not resolve to a known job id.
type DanglingRefError struct {
	Refs []string // "jobID -> missingID"
}

func (e *DanglingRefError) Error() string {
	return fmt.Sprintf("dangling dependency references: %s", strings.Join(e.Refs, ", "))
}

type color int

const (
	white color = iota // unvisited
	gray               // visiting
	black              // visited
)

// Resolve returns the topological order of the closure reachable from
// target. When target is empty, the closure of every node in nodes is
// resolved, with roots taken in the order they appear in nodes. The result
// is the post-order of a depth-first traversal that visits each node's
// dependencies in the order that node lists them, before the node itself;
// independent dependencies therefore keep their listed order.
func Resolve(nodes []Node, target string) ([]string, error) {
	byID := make(map[string]Node, len(nodes))
	declOrder := make(map[string]int, len(nodes))
	for i, n := range nodes {
		byID[n.ID] = n
		declOrder[n.ID] = i
	}

	if dangling := findDangling(nodes, byID); len(dangling) > 0 {
		return nil, &DanglingRefError{Refs: dangling}
	}

	roots := []string{target}
	if target == "" {
		roots = roots[:0]
		for _, n := range nodes {
			roots = append(roots, n.ID)
		}
	} else if _, ok := byID[target]; !ok {
		return nil, fmt.Errorf("depgraph: target job %q not found", target)
	}

	colors := make(map[string]color, len(nodes))
	var order []string
	var visit func(id string) error
	visit = func(id string) error {
		switch colors[id] {
		case black:
			return nil
		case gray:
			return &CycleError{JobID: id}
		}
		colors[id] = gray
		for _, dep := range byID[id].Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		colors[id] = black
		order = append(order, id)
		return nil
	}

	for _, root := range roots {
		if err := visit(root); err != nil {
			return nil, err
		}
	}

	return order, nil
}

func findDangling(nodes []Node, byID map[string]Node) []string {
	var refs []string
	for _, n := range nodes {
		for _, dep := range n.Dependencies {
			if _, ok := byID[dep]; !ok {
				refs = append(refs, fmt.Sprintf("%s -> %s", n.ID, dep))
			}
		}
	}
	return refs
}
