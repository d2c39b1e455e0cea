package bulletin

import (
	"fmt"
	"io"
)

// Subset is the list of values of one report, in descriptor order.
type Subset struct {
	vars []*Var
}

// Len returns the number of values.
func (s *Subset) Len() int { return len(s.vars) }

// At returns the i-th value.
func (s *Subset) At(i int) *Var { return s.vars[i] }

// Vars returns the values.
func (s *Subset) Vars() []*Var { return s.vars }

// Append adds a value at the end of the subset.
func (s *Subset) Append(v *Var) {
	s.vars = append(s.vars, v)
}

// Dump writes one line per value.
func (s *Subset) Dump(w io.Writer) {
	for i, v := range s.vars {
		fmt.Fprintf(w, " %3d %s %-12s %s\n", i, v.Code(), v.Format(), v.Info().Desc)
		for _, a := range v.Attrs() {
			fmt.Fprintf(w, "      * %s %s %s\n", a.Code(), a.Format(), a.Info().Desc)
		}
	}
}
