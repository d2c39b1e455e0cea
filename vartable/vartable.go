// Package vartable implements the variable dictionary (WMO table B) used to
// interpret element descriptors.
//
// Each entry gives the physical unit and decimal scale of a variable, plus
// how it is packed in BUFR (unit, scale, reference value, bit width) and
// written in CREX (unit, scale, number of characters).
package vartable

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/sdifrance/gobufr/bufrerr"
	"github.com/sdifrance/gobufr/varcode"
)

// Varinfo describes a variable. Varinfo values are immutable once built and
// shared by every Var referring to them.
type Varinfo struct {
	Code varcode.Code
	Desc string

	// Unit and Scale are the representation used for decoded values.
	Unit  string
	Scale int

	// BUFR representation.
	BufrUnit  string
	BufrScale int
	BitRef    int
	BitLen    int

	// CREX representation.
	CrexUnit  string
	CrexScale int
	CrexLen   int

	// IsString is set for character (CCITT IA5) variables.
	IsString bool

	// Bounds of the packed integer (raw + BitRef) and of the physical value
	// in BufrUnit. The all-ones raw value is reserved for missing data.
	IMin, IMax int64
	DMin, DMax float64
}

// String returns a short description of the variable.
func (v *Varinfo) String() string {
	return fmt.Sprintf("%s %s [%s]", v.Code, v.Desc, v.Unit)
}

// IsTable reports whether the variable is a code or flag table, whose values
// are never altered by width or scale operators.
func (v *Varinfo) IsTable() bool {
	u := strings.ToUpper(v.BufrUnit)
	return strings.HasPrefix(u, "CODE TABLE") || strings.HasPrefix(u, "FLAG TABLE")
}

// HasMissing reports whether the all-ones pattern of the field means a
// missing value. It does not for one bit fields and for the replication
// factors and bitmap counts B31000, B31001, B31002, B31011 and B31012, where
// every pattern is a value as WMO FM 94 defines them.
// Such fields cannot be missing: decoding all ones gives a value, and encoding
// them unset fails with ValueOutOfRange.
func (v *Varinfo) HasMissing() bool {
	if v.BitLen <= 1 {
		return false
	}
	if v.Code.Kind() == varcode.Element && v.Code.X() == 31 {
		switch v.Code.Y() {
		case 0, 1, 2, 11, 12:
			return false
		}
	}
	return true
}

// maxRaw returns the largest packed value that is not the missing pattern.
func maxRaw(v *Varinfo) uint64 {
	if v.HasMissing() {
		return bitsMax(v.BitLen) - 1
	}
	return bitsMax(v.BitLen)
}

// ByteLen returns the length in bytes of a string field.
func (v *Varinfo) ByteLen() int {
	return v.BitLen / 8
}

func (v *Varinfo) computeBounds() {
	if v.IsString || v.BitLen == 0 {
		v.IMin, v.IMax = 0, 0
		v.DMin, v.DMax = 0, 0
		return
	}
	v.IMin = int64(v.BitRef)
	if v.BitLen >= 63 {
		v.IMax = math.MaxInt64
	} else {
		v.IMax = int64(v.BitRef) + int64(maxRaw(v))
	}
	v.DMin = float64(v.IMin) * math.Pow10(-v.BufrScale)
	v.DMax = float64(v.IMax) * math.Pow10(-v.BufrScale)
}

// isStringUnit reports whether unit marks a character variable.
func isStringUnit(unit string) bool {
	u := strings.ToUpper(strings.ReplaceAll(unit, " ", ""))
	return u == "CCITTIA5" || u == "CHARACTER"
}

// Entry is the on-disk and literal form of a table B row.
type Entry struct {
	Code varcode.Code `json:"code"`
	Desc string       `json:"desc"`
	// Unit, Scale, Ref and Bits give the BUFR packing.
	Unit  string `json:"unit"`
	Scale int    `json:"scale"`
	Ref   int    `json:"ref"`
	Bits  int    `json:"bits"`
	// LocalUnit and LocalScale give the decoded representation; they
	// default to Unit and Scale.
	LocalUnit  string `json:"local_unit,omitempty"`
	LocalScale *int   `json:"local_scale,omitempty"`
	// CREX packing; defaults to the BUFR unit and scale, with enough digits
	// for the BUFR range.
	CrexUnit   string `json:"crex_unit,omitempty"`
	CrexScale  *int   `json:"crex_scale,omitempty"`
	CrexDigits int    `json:"crex_digits,omitempty"`
}

func (e Entry) varinfo() (*Varinfo, error) {
	if e.Code.Kind() != varcode.Element {
		return nil, fmt.Errorf("%s is not an element descriptor", e.Code)
	}
	if e.Bits <= 0 || e.Bits > 32 && !isStringUnit(e.Unit) {
		return nil, fmt.Errorf("%s: invalid bit width %d", e.Code, e.Bits)
	}
	v := &Varinfo{
		Code:      e.Code,
		Desc:      e.Desc,
		Unit:      e.Unit,
		Scale:     e.Scale,
		BufrUnit:  e.Unit,
		BufrScale: e.Scale,
		BitRef:    e.Ref,
		BitLen:    e.Bits,
		CrexUnit:  e.Unit,
		CrexScale: e.Scale,
		IsString:  isStringUnit(e.Unit),
	}
	if e.LocalUnit != "" {
		v.Unit = e.LocalUnit
	}
	if e.LocalScale != nil {
		v.Scale = *e.LocalScale
	}
	if e.CrexUnit != "" {
		v.CrexUnit = e.CrexUnit
	}
	if e.CrexScale != nil {
		v.CrexScale = *e.CrexScale
	}
	switch {
	case e.CrexDigits > 0:
		v.CrexLen = e.CrexDigits
	case v.IsString:
		v.CrexLen = e.Bits / 8
	default:
		v.CrexLen = digitsFor(e.Bits, e.Ref)
	}
	v.computeBounds()
	return v, nil
}

// digitsFor returns the number of decimal digits needed for every value of a
// bits wide field offset by ref.
func digitsFor(bits, ref int) int {
	max := int64(ref) + int64(bitsMax(bits))
	if min := int64(ref); -min > max {
		max = -min
	}
	n := 1
	for max >= 10 {
		max /= 10
		n++
	}
	return n
}

func bitsMax(bits int) uint64 {
	if bits >= 64 {
		return math.MaxUint64
	}
	return uint64(1)<<uint(bits) - 1
}

type alteration struct {
	code                   varcode.Code
	widthDelta, scaleDelta int
}

// Table is a variable dictionary. Lookups are safe for concurrent use.
type Table struct {
	id      string
	entries []*Varinfo // sorted by code

	mu      sync.Mutex
	altered map[alteration]*Varinfo
}

// New builds a table from its entries.
func New(id string, entries []Entry) (*Table, error) {
	t := &Table{id: id, altered: make(map[alteration]*Varinfo)}
	for _, e := range entries {
		v, err := e.varinfo()
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", id, err)
		}
		t.entries = append(t.entries, v)
	}
	slices.SortFunc(t.entries, func(a, b *Varinfo) bool { return a.Code < b.Code })
	for i := 1; i < len(t.entries); i++ {
		if t.entries[i].Code == t.entries[i-1].Code {
			return nil, fmt.Errorf("table %s: duplicate entry %s", id, t.entries[i].Code)
		}
	}
	return t, nil
}

// ID returns the table identifier.
func (t *Table) ID() string { return t.id }

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.entries) }

// Query returns the description of code.
func (t *Table) Query(code varcode.Code) (*Varinfo, error) {
	i, found := slices.BinarySearchFunc(t.entries, code, func(v *Varinfo, c varcode.Code) int {
		return int(v.Code) - int(c)
	})
	if !found {
		return nil, bufrerr.Errorf(bufrerr.UnknownVariable, "variable %s not found in table %s", code, t.id)
	}
	return t.entries[i], nil
}

// QueryAltered returns the description of code with its bit width changed by
// widthDelta and its scales changed by scaleDelta. The base description is
// returned when both deltas are zero. Altered descriptions are created once
// and reused; they never change once returned.
func (t *Table) QueryAltered(code varcode.Code, widthDelta, scaleDelta int) (*Varinfo, error) {
	base, err := t.Query(code)
	if err != nil {
		return nil, err
	}
	if widthDelta == 0 && scaleDelta == 0 {
		return base, nil
	}
	key := alteration{code, widthDelta, scaleDelta}

	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.altered[key]; ok {
		return v, nil
	}
	v := *base
	v.BitLen += widthDelta
	v.Scale += scaleDelta
	v.BufrScale += scaleDelta
	v.CrexScale += scaleDelta
	if v.BitLen <= 0 || v.BitLen > 32 && !v.IsString {
		return nil, bufrerr.Errorf(bufrerr.ValueOutOfRange, "%s: width change %+d gives invalid width %d", code, widthDelta, v.BitLen)
	}
	if !v.IsString {
		v.CrexLen = digitsFor(v.BitLen, v.BitRef)
	}
	v.computeBounds()
	t.altered[key] = &v
	return &v, nil
}

// NewStringInfo returns a description for a synthetic character variable of
// n characters, used for inserted strings and data present bitmaps.
func NewStringInfo(code varcode.Code, desc string, n int) *Varinfo {
	return &Varinfo{
		Code:     code,
		Desc:     desc,
		Unit:     "CCITTIA5",
		BufrUnit: "CCITTIA5",
		CrexUnit: "CHARACTER",
		BitLen:   n * 8,
		CrexLen:  n,
		IsString: true,
	}
}
