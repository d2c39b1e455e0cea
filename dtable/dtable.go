// Package dtable implements the expansion dictionary (WMO table D), mapping
// sequence descriptors to the descriptors they stand for.
package dtable

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/sdifrance/gobufr/bufrerr"
	"github.com/sdifrance/gobufr/varcode"
)

type entry struct {
	code varcode.Code
	ops  varcode.Opcodes
}

// Table is an expansion dictionary. It is read-only once built and safe for
// concurrent use.
type Table struct {
	id      string
	entries []entry // sorted by code
}

// New builds a table from a map of sequence descriptors to their expansion.
// Expansions may reference other sequences; they are resolved at lookup time.
func New(id string, sequences map[varcode.Code][]varcode.Code) (*Table, error) {
	t := &Table{id: id}
	for code, seq := range sequences {
		if code.Kind() != varcode.Expansion {
			return nil, fmt.Errorf("table %s: %s is not a sequence descriptor", id, code)
		}
		if len(seq) == 0 {
			return nil, fmt.Errorf("table %s: sequence %s is empty", id, code)
		}
		t.entries = append(t.entries, entry{code, varcode.NewOpcodes(seq)})
	}
	slices.SortFunc(t.entries, func(a, b entry) bool { return a.code < b.code })
	if err := t.checkCycles(); err != nil {
		return nil, err
	}
	return t, nil
}

// checkCycles rejects a sequence that expands, directly or through other
// sequences, to itself. Sequences missing from the table are not followed.
func (t *Table) checkCycles() error {
	const (
		active = iota + 1
		done
	)
	state := make(map[varcode.Code]int, len(t.entries))
	var visit func(code varcode.Code, path []varcode.Code) error
	visit = func(code varcode.Code, path []varcode.Code) error {
		path = append(path, code)
		switch state[code] {
		case active:
			return bufrerr.Errorf(bufrerr.UnknownExpansion, "table %s: sequence %s expands to itself: %v", t.id, code, path)
		case done:
			return nil
		}
		ops, err := t.Query(code)
		if err != nil {
			return nil
		}
		state[code] = active
		for _, c := range ops.Codes() {
			if c.Kind() != varcode.Expansion {
				continue
			}
			if err := visit(c, path); err != nil {
				return err
			}
		}
		state[code] = done
		return nil
	}
	for _, e := range t.entries {
		if err := visit(e.code, nil); err != nil {
			return err
		}
	}
	return nil
}

// ID returns the table identifier.
func (t *Table) ID() string { return t.id }

// Len returns the number of sequences.
func (t *Table) Len() int { return len(t.entries) }

// Query returns the expansion of a sequence descriptor.
func (t *Table) Query(code varcode.Code) (varcode.Opcodes, error) {
	i, found := slices.BinarySearchFunc(t.entries, code, func(e entry, c varcode.Code) int {
		return int(e.code) - int(c)
	})
	if !found {
		return varcode.Opcodes{}, bufrerr.Errorf(bufrerr.UnknownExpansion, "sequence %s not found in table %s", code, t.id)
	}
	return t.entries[i].ops, nil
}
