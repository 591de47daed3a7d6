package core

// Status is the outcome of transforming one workflow file.
type Status int

const (
	StatusUnchanged Status = iota
	StatusRewritten
	StatusParseFailed
)

func (s Status) String() string {
	switch s {
	case StatusRewritten:
		return "rewritten"
	case StatusParseFailed:
		return "parse_failed"
	default:
		return "unchanged"
	}
}

// ChangeKind tells which kind of reference was rewritten.
type ChangeKind string

const (
	ChangeMatrix ChangeKind = "matrix"
	ChangePinned ChangeKind = "pinned"
)

// Change describes one rewritten field.
type Change struct {
	Job    string     `json:"job"`
	Kind   ChangeKind `json:"kind"`
	Field  string     `json:"field"`
	Path   []string   `json:"path"`
	Before []string   `json:"before"`
	After  []string   `json:"after"`
}

// Result is what the host receives for one file. Output holds the original
// bytes unless Status is StatusRewritten.
type Result struct {
	Status   Status
	Output   []byte
	Changes  []Change
	Warnings []Warning
	Err      error
}

// Changed reports whether Output differs from the input.
func (r Result) Changed() bool { return r.Status == StatusRewritten }

// Transformer rewrites workflow documents for one schema. The zero value
// uses DefaultSchema.
type Transformer struct {
	Schema Schema
}

// Transform runs a file through DefaultSchema.
func Transform(data []byte, vs VersionSet) Result {
	return Transformer{}.Transform(data, vs)
}

type pendingRewrite struct {
	matrix *MatrixRef
	pinned *PinnedRef
}

// Transform parses data, finds every version reference that holds a version
// slated for removal, rewrites all of them, and serializes the document once.
// Invalid input is reported as StatusParseFailed and never panics. A version
// set that fails validation leaves the file unchanged with Err set.
func (t Transformer) Transform(data []byte, vs VersionSet) Result {
	schema := t.Schema
	if len(schema.MatrixKeys) == 0 && schema.SetupActionMarker == "" {
		schema = DefaultSchema
	}

	doc, err := Parse(data)
	if err != nil {
		return Result{
			Status:   StatusParseFailed,
			Output:   data,
			Err:      err,
			Warnings: []Warning{{Kind: WarnParseFailed, Message: err.Error()}},
		}
	}

	var (
		pending  []pendingRewrite
		warnings []Warning
	)
	for _, job := range Jobs(doc) {
		warnings = append(warnings, schema.Ambiguities(job)...)
		if ref, ok := schema.FindMatrixVersionField(job); ok && ShouldRemove(ref.Values, vs.Remove) {
			pending = append(pending, pendingRewrite{matrix: &ref})
		}
		if ref, ok := schema.FindPinnedVersionStep(job); ok && ShouldRemove([]string{ref.Value}, vs.Remove) {
			pending = append(pending, pendingRewrite{pinned: &ref})
		}
	}

	unchanged := Result{Status: StatusUnchanged, Output: data, Warnings: warnings}
	if len(pending) == 0 {
		return unchanged
	}
	if err := vs.Validate(); err != nil {
		unchanged.Err = err
		return unchanged
	}

	changes := make([]Change, 0, len(pending))
	for _, p := range pending {
		switch {
		case p.matrix != nil:
			if err := ApplyMatrixReplacement(doc, *p.matrix, vs.Install); err != nil {
				unchanged.Err = err
				return unchanged
			}
			changes = append(changes, Change{
				Job:    p.matrix.Job,
				Kind:   ChangeMatrix,
				Field:  p.matrix.Field,
				Path:   p.matrix.Path,
				Before: p.matrix.Values,
				After:  append([]string(nil), vs.Install...),
			})
		case p.pinned != nil:
			latest := vs.Latest()
			if err := ApplyPinnedReplacement(doc, *p.pinned, latest); err != nil {
				unchanged.Err = err
				return unchanged
			}
			changes = append(changes, Change{
				Job:    p.pinned.Job,
				Kind:   ChangePinned,
				Field:  schema.PinnedField,
				Path:   p.pinned.Path,
				Before: []string{p.pinned.Value},
				After:  []string{latest},
			})
		}
	}

	out, err := doc.Serialize()
	if err != nil {
		unchanged.Err = err
		return unchanged
	}
	return Result{Status: StatusRewritten, Output: out, Changes: changes, Warnings: warnings}
}
