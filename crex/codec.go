package crex

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sdifrance/gobufr/bufrerr"
	"github.com/sdifrance/gobufr/bulletin"
	"github.com/sdifrance/gobufr/varcode"
	"github.com/sdifrance/gobufr/vartable"
)

// countDigits is the width of delayed replication counts, which CREX writes
// in the data without a descriptor of their own.
const (
	countDigits = 4
	maxCount    = 9999
)

func missingField(n int) string {
	return strings.Repeat("/", n)
}

func isMissing(f string) bool {
	return strings.Trim(f, "/") == ""
}

// checkDigit returns the check digit of the i-th (from 0) value of a
// subset.
func checkDigit(i int) byte {
	return byte('0' + (i+1)%10)
}

func formatInt(ival int64, n int) string {
	if ival < 0 {
		return fmt.Sprintf("-%0*d", n, -ival)
	}
	return fmt.Sprintf("%0*d", n, ival)
}

// formatValue returns the text of v in a field described by info.
func formatValue(info *vartable.Varinfo, v *bulletin.Var) (string, error) {
	if v == nil || !v.IsSet() {
		return missingField(info.CrexLen), nil
	}
	if info.IsString {
		s := v.Value()
		if len(s) > info.CrexLen {
			return "", bufrerr.Errorf(bufrerr.ValueOutOfRange, "%s: %q is longer than %d characters", info.Code, s, info.CrexLen)
		}
		return s + strings.Repeat(" ", info.CrexLen-len(s)), nil
	}
	ival, err := info.EncodeDecimal(v.Value())
	if err != nil {
		return "", err
	}
	return formatInt(ival, info.CrexLen), nil
}

// decoder reads the values of one subset.
type decoder struct {
	s          *scanner
	subset     *bulletin.Subset
	checkDigit bool
	// index counts the values read in the subset.
	index int
}

// field reads the n characters of the next value. Numeric fields may be
// preceded by a minus sign.
func (d *decoder) field(n int, numeric bool) (string, bool, error) {
	if numeric || d.checkDigit {
		d.s.skipSpace()
	} else {
		// Character fields may start with spaces: skip line breaks and the
		// separator only.
		for !d.s.atEnd() && (d.s.data[d.s.pos] == '\r' || d.s.data[d.s.pos] == '\n') {
			d.s.pos++
		}
		if d.index > 0 && d.s.hasPrefix(" ") {
			d.s.pos++
		}
	}
	if d.checkDigit {
		c, err := d.s.next(1)
		if err != nil {
			return "", false, err
		}
		if want := checkDigit(d.index); c[0] != want {
			return "", false, bufrerr.Errorf(bufrerr.MalformedFraming, "check digit of value %d is %q, expected %q", d.index, c, want)
		}
	}
	d.index++
	neg := false
	if numeric && d.s.hasPrefix("-") {
		neg = true
		d.s.pos++
	}
	f, err := d.s.next(n)
	return f, neg, err
}

func (d *decoder) readInt(n int) (int, error) {
	f, _, err := d.field(n, true)
	if err != nil {
		return 0, err
	}
	i, err := strconv.Atoi(f)
	if err != nil {
		return 0, bufrerr.Errorf(bufrerr.MalformedFraming, "invalid count %q", f)
	}
	return i, nil
}

func (d *decoder) read(info *vartable.Varinfo) (*bulletin.Var, error) {
	v := bulletin.NewVar(info)
	f, neg, err := d.field(info.CrexLen, !info.IsString)
	if err != nil {
		return nil, err
	}
	if isMissing(f) {
		return v, nil
	}
	if info.IsString {
		v.SetValue(strings.TrimRight(f, " "))
		return v, nil
	}
	ival, err := strconv.ParseInt(f, 10, 64)
	if err != nil || ival < 0 {
		return nil, bufrerr.Errorf(bufrerr.MalformedFraming, "%s: invalid numeric field %q", info.Code, f)
	}
	if neg {
		ival = -ival
	}
	s, err := info.DecodeDecimal(ival)
	if err != nil {
		return nil, err
	}
	v.SetValue(s)
	return v, nil
}

func (d *decoder) Element(info *vartable.Varinfo) error {
	v, err := d.read(info)
	if err != nil {
		return err
	}
	d.subset.Append(v)
	return nil
}

func (d *decoder) Attribute(info *vartable.Varinfo, pos int) error {
	a, err := d.read(info)
	if err != nil {
		return err
	}
	d.subset.At(pos).SetAttr(a)
	return nil
}

func (d *decoder) DelayedCount(info *vartable.Varinfo) (int, error) {
	n, err := d.readInt(countDigits)
	if err != nil {
		return 0, err
	}
	v := bulletin.NewVar(info)
	v.Seti(n)
	d.subset.Append(v)
	return n, nil
}

func (d *decoder) Bitmap(code varcode.Code, countInfo *vartable.Varinfo, n int, bitInfo *vartable.Varinfo) (string, int, error) {
	if countInfo != nil {
		var err error
		if n, err = d.readInt(countDigits); err != nil {
			return "", 0, err
		}
	}
	bm := make([]byte, n)
	for i := range bm {
		bit, err := d.readInt(bitInfo.CrexLen)
		if err != nil {
			return "", 0, err
		}
		bm[i] = '-'
		if bit == 0 {
			bm[i] = '+'
		}
	}
	anchor := d.subset.Len()
	d.subset.Append(bulletin.NewBitmap(code, string(bm)))
	return string(bm), anchor, nil
}

func (d *decoder) Reference() *bulletin.Subset { return d.subset }

// encoder writes the values of one subset.
type encoder struct {
	sb         *strings.Builder
	subset     *bulletin.Subset
	checkDigit bool
	pos        int
	index      int
}

func (e *encoder) field(text string) {
	if e.index > 0 {
		e.sb.WriteByte(' ')
	}
	if e.checkDigit {
		e.sb.WriteByte(checkDigit(e.index))
	}
	e.index++
	e.sb.WriteString(text)
}

func (e *encoder) next(code varcode.Code) (*bulletin.Var, error) {
	if e.pos >= e.subset.Len() {
		return nil, bufrerr.Errorf(bufrerr.SubsetMismatch, "subset has %d values, %s expected after them", e.subset.Len(), code)
	}
	v := e.subset.At(e.pos)
	if v.Code() != code {
		return nil, bufrerr.Errorf(bufrerr.SubsetMismatch, "value %d is %s, %s expected", e.pos, v.Code(), code)
	}
	e.pos++
	return v, nil
}

func (e *encoder) done() error {
	if e.pos != e.subset.Len() {
		return bufrerr.Errorf(bufrerr.SubsetMismatch, "%d values left after the last descriptor", e.subset.Len()-e.pos)
	}
	return nil
}

func (e *encoder) write(info *vartable.Varinfo, v *bulletin.Var) error {
	f, err := formatValue(info, v)
	if err != nil {
		return err
	}
	e.field(f)
	return nil
}

func (e *encoder) writeCount(n int) error {
	if n < 0 || n > maxCount {
		return bufrerr.Errorf(bufrerr.ValueOutOfRange, "replication count %d does not fit in %d digits", n, countDigits)
	}
	e.field(formatInt(int64(n), countDigits))
	return nil
}

func (e *encoder) Element(info *vartable.Varinfo) error {
	v, err := e.next(info.Code)
	if err != nil {
		return err
	}
	return e.write(info, v)
}

func (e *encoder) Attribute(info *vartable.Varinfo, pos int) error {
	return e.write(info, e.subset.At(pos).Attr(info.Code))
}

func (e *encoder) DelayedCount(info *vartable.Varinfo) (int, error) {
	v, err := e.next(info.Code)
	if err != nil {
		return 0, err
	}
	n, err := v.Enqi()
	if err != nil {
		return 0, bufrerr.Errorf(bufrerr.SubsetMismatch, "%s: missing replication count", info.Code)
	}
	return n, e.writeCount(n)
}

func (e *encoder) Bitmap(code varcode.Code, countInfo *vartable.Varinfo, n int, bitInfo *vartable.Varinfo) (string, int, error) {
	v, err := e.next(code)
	if err != nil {
		return "", 0, err
	}
	value := v.Value()
	if countInfo != nil {
		if err := e.writeCount(len(value)); err != nil {
			return "", 0, err
		}
	} else if len(value) != n {
		return "", 0, bufrerr.Errorf(bufrerr.SubsetMismatch, "%s: bitmap has %d entries, %d expected", code, len(value), n)
	}
	for i := 0; i < len(value); i++ {
		var bit int64
		switch value[i] {
		case '+':
		case '-':
			bit = 1
		default:
			return "", 0, bufrerr.Errorf(bufrerr.ValueOutOfRange, "%s: invalid bitmap %q", code, value)
		}
		e.field(formatInt(bit, bitInfo.CrexLen))
	}
	return value, e.pos - 1, nil
}

func (e *encoder) Reference() *bulletin.Subset { return e.subset }
