package varcode

import (
	"strings"
)

// Opcodes is a window over a shared, never modified slice of codes. Taking a
// sub-sequence or dropping codes from the front only moves the window, so
// expanding sequences and iterating replications allocates nothing.
type Opcodes struct {
	vals       []Code
	begin, end int
}

// NewOpcodes returns a sequence over a private copy of codes.
func NewOpcodes(codes []Code) Opcodes {
	vals := make([]Code, len(codes))
	copy(vals, codes)
	return Opcodes{vals: vals, end: len(vals)}
}

// Len returns the number of codes in the sequence.
func (o Opcodes) Len() int { return o.end - o.begin }

// Empty reports whether the sequence has no codes left.
func (o Opcodes) Empty() bool { return o.begin >= o.end }

// Head returns the first code. It must not be called on an empty sequence.
func (o Opcodes) Head() Code { return o.vals[o.begin] }

// At returns the i-th code.
func (o Opcodes) At(i int) Code { return o.vals[o.begin+i] }

// Next returns the sequence without its first code.
func (o Opcodes) Next() Opcodes { return o.Skip(1) }

// Skip returns the sequence without its first n codes.
func (o Opcodes) Skip(n int) Opcodes {
	o.begin += n
	if o.begin > o.end {
		o.begin = o.end
	}
	return o
}

// Sub returns the n codes starting at index first.
func (o Opcodes) Sub(first, n int) Opcodes {
	b := o.begin + first
	e := b + n
	if b > o.end {
		b = o.end
	}
	if e > o.end {
		e = o.end
	}
	return Opcodes{vals: o.vals, begin: b, end: e}
}

// Codes returns a copy of the codes in the sequence.
func (o Opcodes) Codes() []Code {
	out := make([]Code, o.Len())
	copy(out, o.vals[o.begin:o.end])
	return out
}

// String formats the codes separated by spaces.
func (o Opcodes) String() string {
	var sb strings.Builder
	for i := o.begin; i < o.end; i++ {
		if i > o.begin {
			sb.WriteByte(' ')
		}
		sb.WriteString(o.vals[i].String())
	}
	return sb.String()
}
