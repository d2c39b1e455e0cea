package bulletin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/sdifrance/gobufr/bufrerr"
	"github.com/sdifrance/gobufr/varcode"
	"github.com/sdifrance/gobufr/vartable"
)

// Var is a value of a variable, optionally qualified by attributes.
//
// Numeric values are stored as decimal strings with exactly Info().Scale
// decimals, so a value read from a message is written back unchanged.
// A Var without a value is missing.
type Var struct {
	info  *vartable.Varinfo
	value string
	isSet bool
	// attrs is sorted by code. Attributes never have attributes themselves.
	attrs []*Var
}

// NewVar returns a missing value for info.
func NewVar(info *vartable.Varinfo) *Var {
	return &Var{info: info}
}

// NewBitmap returns a data present bitmap introduced by the operator code,
// with one '+' (present) or '-' (absent) per element it covers.
func NewBitmap(code varcode.Code, value string) *Var {
	v := NewVar(vartable.NewStringInfo(code, "DATA PRESENT BITMAP", len(value)))
	v.SetValue(value)
	return v
}

// Code returns the variable code.
func (v *Var) Code() varcode.Code { return v.info.Code }

// Info returns the variable description.
func (v *Var) Info() *vartable.Varinfo { return v.info }

// IsSet reports whether the variable has a value.
func (v *Var) IsSet() bool { return v.isSet }

// Value returns the stored value in its canonical form, or "" when missing.
func (v *Var) Value() string { return v.value }

// SetValue stores a value already in canonical form. It is meant for
// decoders; use Setc, Seti or Setd otherwise.
func (v *Var) SetValue(s string) {
	v.value = s
	v.isSet = true
}

// Unset makes the variable missing.
func (v *Var) Unset() {
	v.value = ""
	v.isSet = false
}

// Setc sets the value from a string. Numeric variables accept any decimal
// spelling, which is normalised to the variable scale.
func (v *Var) Setc(s string) error {
	if v.info.IsString {
		v.SetValue(s)
		return nil
	}
	ival, err := vartable.ParseDecimal(s, v.info.Scale)
	if err != nil {
		return bufrerr.Errorf(bufrerr.ValueOutOfRange, "%s: %v", v.Code(), err)
	}
	v.SetValue(vartable.FormatDecimal(ival, v.info.Scale))
	return nil
}

// Seti sets a numeric value from an integer.
func (v *Var) Seti(i int) {
	if v.info.IsString {
		v.SetValue(strconv.Itoa(i))
		return
	}
	v.SetValue(vartable.FormatInt(int64(i), v.info.Scale))
}

// Setd sets a numeric value from a float, rounded to the variable scale.
func (v *Var) Setd(d float64) error {
	if v.info.IsString {
		v.SetValue(strconv.FormatFloat(d, 'f', -1, 64))
		return nil
	}
	s, err := vartable.FormatFloat(d, v.info.Scale)
	if err != nil {
		return errors.Wrapf(err, "%s", v.Code())
	}
	v.SetValue(s)
	return nil
}

// Enqc returns the value as a string.
func (v *Var) Enqc() (string, error) {
	if !v.isSet {
		return "", errors.Errorf("%s is not set", v.Code())
	}
	return v.value, nil
}

// Enqi returns the value rounded to an integer.
func (v *Var) Enqi() (int, error) {
	if !v.isSet {
		return 0, errors.Errorf("%s is not set", v.Code())
	}
	i, err := vartable.ParseDecimal(v.value, 0)
	if err != nil {
		return 0, errors.Wrapf(err, "%s", v.Code())
	}
	return int(i), nil
}

// Enqd returns the value as a float.
func (v *Var) Enqd() (float64, error) {
	if !v.isSet {
		return 0, errors.Errorf("%s is not set", v.Code())
	}
	d, err := strconv.ParseFloat(v.value, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "%s", v.Code())
	}
	return d, nil
}

// Attrs returns the attributes sorted by code.
func (v *Var) Attrs() []*Var { return v.attrs }

func (v *Var) attrIndex(code varcode.Code) (int, bool) {
	return slices.BinarySearchFunc(v.attrs, code, func(a *Var, c varcode.Code) int {
		return int(a.Code()) - int(c)
	})
}

// Attr returns the attribute with the given code, or nil.
func (v *Var) Attr(code varcode.Code) *Var {
	if i, ok := v.attrIndex(code); ok {
		return v.attrs[i]
	}
	return nil
}

// SetAttr stores a copy of a, without its own attributes, replacing any
// attribute with the same code.
func (v *Var) SetAttr(a *Var) {
	c := &Var{info: a.info, value: a.value, isSet: a.isSet}
	i, ok := v.attrIndex(a.Code())
	if ok {
		v.attrs[i] = c
		return
	}
	v.attrs = slices.Insert(v.attrs, i, c)
}

// Copy returns a deep copy of the variable and its attributes.
func (v *Var) Copy() *Var {
	c := &Var{info: v.info, value: v.value, isSet: v.isSet}
	if len(v.attrs) > 0 {
		c.attrs = make([]*Var, len(v.attrs))
		for i, a := range v.attrs {
			c.attrs[i] = a.Copy()
		}
	}
	return c
}

// Equals reports whether two variables have the same code, value and
// attributes.
func (v *Var) Equals(o *Var) bool {
	if v.Code() != o.Code() || v.isSet != o.isSet || v.value != o.value {
		return false
	}
	if len(v.attrs) != len(o.attrs) {
		return false
	}
	for i := range v.attrs {
		if !v.attrs[i].Equals(o.attrs[i]) {
			return false
		}
	}
	return true
}

// Format returns the value as text, "(undef)" when missing.
func (v *Var) Format() string {
	if !v.isSet {
		return "(undef)"
	}
	if v.info.IsString {
		return strconv.Quote(v.value)
	}
	return v.value
}

// String returns the code, value and attributes.
func (v *Var) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s", v.Code(), v.Format())
	for _, a := range v.attrs {
		fmt.Fprintf(&sb, " [%s %s]", a.Code(), a.Format())
	}
	return sb.String()
}
