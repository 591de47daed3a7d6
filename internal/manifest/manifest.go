// Package manifest patches the minimum supported runtime in package.json.
// Edits are made in place so key order and formatting elsewhere survive.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/buger/jsonparser"

	"eolsweep/internal/core"
)

// ErrInvalid means the manifest is not a JSON object.
var ErrInvalid = errors.New("manifest: not a JSON object")

// Constraint renders the engines value for a minimum version.
func Constraint(minVersion string) string {
	return ">=" + minVersion
}

// PatchEngines sets engines.<field> to ">=minVersion". It reports false when
// the manifest already carries that exact constraint.
func PatchEngines(data []byte, field, minVersion string) ([]byte, bool, error) {
	if !json.Valid(data) {
		return nil, false, ErrInvalid
	}
	if _, dt, _, err := jsonparser.Get(data); err != nil || dt != jsonparser.Object {
		return nil, false, ErrInvalid
	}
	want := Constraint(minVersion)
	current, err := jsonparser.GetString(data, "engines", field)
	if err == nil && current == want {
		return data, false, nil
	}
	value, err := json.Marshal(want)
	if err != nil {
		return nil, false, fmt.Errorf("manifest: encode constraint: %w", err)
	}
	out, err := jsonparser.Set(data, value, "engines", field)
	if err != nil {
		return nil, false, fmt.Errorf("manifest: set engines.%s: %w", field, err)
	}
	return out, true, nil
}

// MinimumVersion returns the numerically smallest install entry. Entries
// that are not numbers are ignored unless nothing else is available.
func MinimumVersion(install core.VersionList) string {
	best := ""
	bestVal := 0.0
	for _, v := range install {
		f, err := strconv.ParseFloat(core.NormalizeVersion(v), 64)
		if err != nil {
			continue
		}
		if best == "" || f < bestVal {
			best, bestVal = core.NormalizeVersion(v), f
		}
	}
	if best == "" && len(install) > 0 {
		return install[0]
	}
	return best
}
