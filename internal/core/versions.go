package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// VersionList is an ordered list of runtime version identifiers. In YAML it
// may be written with numbers, strings, or a mix of both.
type VersionList []string

// ParseVersionList splits a comma or space separated list.
func ParseVersionList(s string) VersionList {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil
	}
	return VersionList(fields)
}

// String implements flag.Value.
func (l *VersionList) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(*l, ",")
}

// Set implements flag.Value. Each call replaces the list.
func (l *VersionList) Set(s string) error {
	*l = ParseVersionList(s)
	return nil
}

// UnmarshalYAML accepts a sequence of scalars or a single scalar.
func (l *VersionList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*l = VersionList{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make(VersionList, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("version list: line %d: expected scalar, got %s", item.Line, Node{raw: item}.Kind())
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("version list: line %d: expected sequence", value.Line)
	}
}

// Contains reports whether v matches any entry after normalization.
func (l VersionList) Contains(v string) bool {
	want := NormalizeVersion(v)
	for _, item := range l {
		if NormalizeVersion(item) == want {
			return true
		}
	}
	return false
}

// VersionSet drives one run: what to drop and what to install instead.
type VersionSet struct {
	Remove  VersionList `yaml:"remove" json:"remove"`
	Install VersionList `yaml:"install" json:"install"`
}

// Validate checks that there is something to install and that no installed
// version is also slated for removal.
func (vs VersionSet) Validate() error {
	if len(vs.Install) == 0 {
		return errors.New("version set: install list is empty")
	}
	for _, v := range vs.Install {
		if strings.TrimSpace(v) == "" {
			return errors.New("version set: install list has a blank entry")
		}
		if vs.Remove.Contains(v) {
			return fmt.Errorf("version set: %s is both removed and installed", v)
		}
	}
	return nil
}

// Latest is the last install entry, used for single pinned versions.
func (vs VersionSet) Latest() string {
	if len(vs.Install) == 0 {
		return ""
	}
	return vs.Install[len(vs.Install)-1]
}

// NormalizeVersion maps a version identifier to the canonical string used for
// comparison. Numerals collapse to their shortest decimal form so that 18,
// "18" and 18.0 compare equal; anything else is compared as trimmed text.
func NormalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return v
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ShouldRemove reports whether any of values is slated for removal.
func ShouldRemove(values []string, remove VersionList) bool {
	if len(remove) == 0 {
		return false
	}
	for _, v := range values {
		if remove.Contains(v) {
			return true
		}
	}
	return false
}
