// Package varcode defines the descriptor codes used by BUFR and CREX messages.
//
// A descriptor is an F-X-Y triple. F selects the kind of descriptor
// (element, replication, operator, sequence), X the class or category and Y
// the item within it. See WMO Manual on Codes, FM 94 BUFR, regulation 94.5.
//
//	Bits  Content
//	1-2   F (0 = element, 1 = replication, 2 = operator, 3 = sequence)
//	3-8   X
//	9-16  Y
package varcode

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// Code is a descriptor packed the same way it is packed on the wire, so codes
// order the same way tables sort them.
type Code uint16

// Kind is the F part of a descriptor.
type Kind uint8

const (
	// Element descriptors reference a variable table entry.
	Element Kind = 0
	// Replication descriptors repeat the descriptors following them.
	Replication Kind = 1
	// Modifier descriptors are operators changing how data is interpreted.
	Modifier Kind = 2
	// Expansion descriptors reference an expansion table sequence.
	Expansion Kind = 3
)

var kindLetters = [...]byte{'B', 'R', 'C', 'D'}

func (k Kind) String() string {
	switch k {
	case Element:
		return "element"
	case Replication:
		return "replication"
	case Modifier:
		return "modifier"
	case Expansion:
		return "expansion"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// New builds a code from its F, X and Y parts.
func New(f Kind, x, y int) Code {
	return Code(uint16(f&0x3)<<14 | uint16(x&0x3f)<<8 | uint16(y&0xff))
}

// B builds an element descriptor.
func B(x, y int) Code { return New(Element, x, y) }

// R builds a replication descriptor.
func R(group, count int) Code { return New(Replication, group, count) }

// C builds an operator descriptor.
func C(x, y int) Code { return New(Modifier, x, y) }

// D builds a sequence descriptor.
func D(x, y int) Code { return New(Expansion, x, y) }

// Kind returns the F part of the code.
func (c Code) Kind() Kind { return Kind(c >> 14) }

// X returns the class, category or replication group size.
func (c Code) X() int { return int(c>>8) & 0x3f }

// Y returns the item, operand or replication count.
func (c Code) Y() int { return int(c) & 0xff }

// String formats the code the way tables and CREX messages spell it, for
// example B12101 or R01000.
func (c Code) String() string {
	return fmt.Sprintf("%c%02d%03d", kindLetters[c.Kind()], c.X(), c.Y())
}

// FXY formats the code as the six digit FXXYYY number.
func (c Code) FXY() string {
	return fmt.Sprintf("%d%02d%03d", c.Kind(), c.X(), c.Y())
}

// Parse reads a code written either as a letter form (B01001, R02000,
// C01130, D01001) or as six FXXYYY digits (001001).
func Parse(s string) (Code, error) {
	if len(s) != 6 {
		return 0, errors.Errorf("descriptor %q: expected 6 characters", s)
	}
	var f Kind
	switch s[0] {
	case 'B', 'b', '0':
		f = Element
	case 'R', 'r', '1':
		f = Replication
	case 'C', 'c', '2':
		f = Modifier
	case 'D', 'd', '3':
		f = Expansion
	default:
		return 0, errors.Errorf("descriptor %q: unknown descriptor type %q", s, s[0])
	}
	x, err := strconv.Atoi(s[1:3])
	if err != nil || x < 0 || x > 63 {
		return 0, errors.Errorf("descriptor %q: invalid X part", s)
	}
	y, err := strconv.Atoi(s[3:6])
	if err != nil || y < 0 || y > 255 {
		return 0, errors.Errorf("descriptor %q: invalid Y part", s)
	}
	return New(f, x, y), nil
}

// MustParse is like Parse but panics on error. Meant for tests and constant
// tables.
func MustParse(s string) Code {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseList parses a list of codes.
func ParseList(ss ...string) ([]Code, error) {
	out := make([]Code, 0, len(ss))
	for _, s := range ss {
		c, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// MarshalText implements encoding.TextMarshaler.
func (c Code) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Code) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Codes used by the interpreter.
var (
	// DataPresentIndicator is the one bit element a bitmap replicates.
	DataPresentIndicator = B(31, 31)
	// DelayedReplicationFactor is the CREX replication count element.
	DelayedReplicationFactor = B(31, 2)
)
