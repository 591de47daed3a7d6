package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Schema names the fields that carry runtime versions.
type Schema struct {
	// MatrixKeys are the strategy.matrix keys holding a version list.
	MatrixKeys []string
	// SetupActionMarker is matched as a substring of a step's uses value.
	SetupActionMarker string
	// PinnedField is the key under a setup step's with mapping.
	PinnedField string
}

// DefaultSchema targets actions/setup-node workflows.
var DefaultSchema = Schema{
	MatrixKeys:        []string{"node", "node_version"},
	SetupActionMarker: "actions/setup-node",
	PinnedField:       "node-version",
}

// MatrixRef locates a version list under strategy.matrix.
type MatrixRef struct {
	Job    string
	Field  string
	Path   []string
	Values []string
	node   Node
}

// PinnedRef locates a single pinned version on a setup step.
type PinnedRef struct {
	Job       string
	StepIndex int
	Path      []string
	Value     string
	node      Node
}

// WarningKind classifies non-fatal findings.
type WarningKind string

const (
	WarnAmbiguousMatrix WarningKind = "ambiguous-matrix"
	WarnAmbiguousSteps  WarningKind = "ambiguous-steps"
	WarnParseFailed     WarningKind = "parse-failed"
)

// Warning is a finding the host should surface to the operator.
type Warning struct {
	Kind    WarningKind
	Job     string
	Message string
}

func (w Warning) String() string {
	if w.Job == "" {
		return fmt.Sprintf("%s: %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("%s: job %q: %s", w.Kind, w.Job, w.Message)
}

func (s Schema) isMatrixKey(key string) bool {
	for _, k := range s.MatrixKeys {
		if k == key {
			return true
		}
	}
	return false
}

func (s Schema) matrixCandidates(job Job) []MatrixRef {
	matrix, ok := job.Node.Get("strategy", "matrix")
	if !ok {
		return nil
	}
	m, ok := matrix.AsMapping()
	if !ok {
		return nil
	}
	var refs []MatrixRef
	for _, e := range m.Entries() {
		if !s.isMatrixKey(e.Key) {
			continue
		}
		values, ok := scalarValues(e.Value)
		if !ok {
			continue
		}
		refs = append(refs, MatrixRef{
			Job:    job.Name,
			Field:  e.Key,
			Path:   job.path("strategy", "matrix", e.Key),
			Values: values,
			node:   e.Value,
		})
	}
	return refs
}

// scalarValues reads a version list. A bare scalar counts as a one-element list.
func scalarValues(n Node) ([]string, bool) {
	if sc, ok := n.AsScalar(); ok {
		return []string{sc.Value()}, true
	}
	seq, ok := n.AsSequence()
	if !ok {
		return nil, false
	}
	values := make([]string, 0, seq.Len())
	for _, item := range seq.Items() {
		if sc, ok := item.AsScalar(); ok {
			values = append(values, sc.Value())
		}
	}
	return values, true
}

func (s Schema) pinnedCandidates(job Job) []PinnedRef {
	steps, ok := job.Node.Get("steps")
	if !ok {
		return nil
	}
	seq, ok := steps.AsSequence()
	if !ok {
		return nil
	}
	var refs []PinnedRef
	for i, step := range seq.Items() {
		uses, ok := step.Get("uses")
		if !ok {
			continue
		}
		usesScalar, ok := uses.AsScalar()
		if !ok || !strings.Contains(usesScalar.Value(), s.SetupActionMarker) {
			continue
		}
		pinned, ok := step.Get("with", s.PinnedField)
		if !ok {
			continue
		}
		sc, ok := pinned.AsScalar()
		if !ok {
			continue
		}
		refs = append(refs, PinnedRef{
			Job:       job.Name,
			StepIndex: i,
			Path:      job.path("steps", strconv.Itoa(i), "with", s.PinnedField),
			Value:     sc.Value(),
			node:      pinned,
		})
	}
	return refs
}

// FindMatrixVersionField returns the first version list under the job's
// strategy.matrix. Jobs without a matrix yield false.
func (s Schema) FindMatrixVersionField(job Job) (MatrixRef, bool) {
	refs := s.matrixCandidates(job)
	if len(refs) == 0 {
		return MatrixRef{}, false
	}
	return refs[0], true
}

// FindPinnedVersionStep returns the first setup step carrying a pinned version.
func (s Schema) FindPinnedVersionStep(job Job) (PinnedRef, bool) {
	refs := s.pinnedCandidates(job)
	if len(refs) == 0 {
		return PinnedRef{}, false
	}
	return refs[0], true
}

// Ambiguities flags jobs where only the first of several candidates would be
// considered.
func (s Schema) Ambiguities(job Job) []Warning {
	var warnings []Warning
	if refs := s.matrixCandidates(job); len(refs) > 1 {
		fields := make([]string, 0, len(refs))
		for _, r := range refs {
			fields = append(fields, r.Field)
		}
		warnings = append(warnings, Warning{
			Kind:    WarnAmbiguousMatrix,
			Job:     job.Name,
			Message: fmt.Sprintf("matrix declares %s; only %q is considered", strings.Join(fields, ", "), refs[0].Field),
		})
	}
	if refs := s.pinnedCandidates(job); len(refs) > 1 {
		idx := make([]string, 0, len(refs))
		for _, r := range refs {
			idx = append(idx, strconv.Itoa(r.StepIndex))
		}
		warnings = append(warnings, Warning{
			Kind:    WarnAmbiguousSteps,
			Job:     job.Name,
			Message: fmt.Sprintf("steps %s pin %s; only step %d is considered", strings.Join(idx, ", "), s.PinnedField, refs[0].StepIndex),
		})
	}
	return warnings
}
