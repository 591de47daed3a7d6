package core

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ErrPathNotFound is returned by SetAt when the target does not exist.
var ErrPathNotFound = errors.New("core: path not found")

// ParseError reports input that is not a valid YAML document.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("core: parse workflow: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes raw workflow bytes into a Document. Empty input yields an
// empty document, not an error. Every "---" separated document is kept; the
// workflow is the first one and the rest are carried through unchanged.
func Parse(data []byte) (*Document, error) {
	doc := &Document{root: &yaml.Node{}, indent: detectIndent(data)}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for i := 0; ; i++ {
		var n yaml.Node
		err := dec.Decode(&n)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Err: err}
		}
		if i == 0 {
			doc.root = &n
			continue
		}
		doc.rest = append(doc.rest, &n)
	}
	return doc, nil
}

const (
	defaultIndent = 2
	maxIndent     = 8
)

// detectIndent returns the smallest positive indentation used by a content
// line, which is the indentation unit of block-style YAML.
func detectIndent(data []byte) int {
	best := 0
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		trimmed := bytes.TrimLeft(line, " ")
		if len(trimmed) == 0 || trimmed[0] == '#' {
			continue
		}
		n := len(line) - len(trimmed)
		if n > 0 && (best == 0 || n < best) {
			best = n
		}
	}
	if best < defaultIndent || best > maxIndent {
		return defaultIndent
	}
	return best
}
