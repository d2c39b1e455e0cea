package bufr

import (
	"github.com/sdifrance/gobufr/bitio"
	"github.com/sdifrance/gobufr/bufrerr"
	"github.com/sdifrance/gobufr/bulletin"
	"github.com/sdifrance/gobufr/varcode"
	"github.com/sdifrance/gobufr/vartable"
)

// encodeString returns the octets of a character field: the value padded
// with spaces, or all ones when missing.
func encodeString(info *vartable.Varinfo, v *bulletin.Var) ([]byte, error) {
	if info.BitLen%8 != 0 {
		return nil, bufrerr.Errorf(bufrerr.ValueOutOfRange,
			"%s: character field of %d bits is not a whole number of octets", info.Code, info.BitLen)
	}
	out := make([]byte, info.ByteLen())
	if v == nil || !v.IsSet() {
		for i := range out {
			out[i] = 0xff
		}
		return out, nil
	}
	s := v.Value()
	if len(s) > len(out) {
		return nil, bufrerr.Errorf(bufrerr.ValueOutOfRange,
			"%s: %q is longer than %d characters", info.Code, s, len(out))
	}
	n := copy(out, s)
	for i := n; i < len(out); i++ {
		out[i] = ' '
	}
	return out, nil
}

// encodeRaw returns the packed form of a numeric value; ok is false when the
// value is missing.
func encodeRaw(info *vartable.Varinfo, v *bulletin.Var) (raw uint32, ok bool, err error) {
	if v == nil || !v.IsSet() {
		if !info.HasMissing() {
			return 0, false, bufrerr.Errorf(bufrerr.ValueOutOfRange, "%s cannot be missing", info.Code)
		}
		return 0, false, nil
	}
	raw, err = info.EncodeBinary(v.Value())
	return raw, err == nil, err
}

func writeValue(w *bitio.Writer, info *vartable.Varinfo, v *bulletin.Var) error {
	if info.IsString {
		raw, err := encodeString(info, v)
		if err != nil {
			return err
		}
		w.WriteBytes(raw)
		return nil
	}
	raw, ok, err := encodeRaw(info, v)
	if err != nil {
		return err
	}
	if !ok {
		raw = bitio.AllOnes(info.BitLen)
	}
	return w.WriteBits(raw, info.BitLen)
}

// bitmapBits parses a bitmap value.
func bitmapBits(code varcode.Code, value string) ([]uint32, error) {
	bits := make([]uint32, len(value))
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case '+':
		case '-':
			bits[i] = 1
		default:
			return nil, bufrerr.Errorf(bufrerr.ValueOutOfRange, "%s: invalid bitmap %q", code, value)
		}
	}
	return bits, nil
}

// encoder writes the values of one subset of an uncompressed message.
type encoder struct {
	w      *bitio.Writer
	subset *bulletin.Subset
	pos    int
}

// next returns the next value of the subset, which must have the given code.
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

// done checks that every value of the subset was written.
func (e *encoder) done() error {
	if e.pos != e.subset.Len() {
		return bufrerr.Errorf(bufrerr.SubsetMismatch, "%d values left after the last descriptor", e.subset.Len()-e.pos)
	}
	return nil
}

func (e *encoder) Element(info *vartable.Varinfo) error {
	v, err := e.next(info.Code)
	if err != nil {
		return err
	}
	return writeValue(e.w, info, v)
}

func (e *encoder) Attribute(info *vartable.Varinfo, pos int) error {
	return writeValue(e.w, info, e.subset.At(pos).Attr(info.Code))
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
	return n, writeValue(e.w, info, v)
}

func (e *encoder) Bitmap(code varcode.Code, countInfo *vartable.Varinfo, n int, bitInfo *vartable.Varinfo) (string, int, error) {
	v, err := e.next(code)
	if err != nil {
		return "", 0, err
	}
	value := v.Value()
	bits, err := bitmapBits(code, value)
	if err != nil {
		return "", 0, err
	}
	if countInfo != nil {
		if err := writeValue(e.w, countInfo, countVar(countInfo, len(value))); err != nil {
			return "", 0, err
		}
	} else if len(value) != n {
		return "", 0, bufrerr.Errorf(bufrerr.SubsetMismatch, "%s: bitmap has %d entries, %d expected", code, len(value), n)
	}
	for _, bit := range bits {
		if err := e.w.WriteBits(bit, bitInfo.BitLen); err != nil {
			return "", 0, err
		}
	}
	return value, e.pos - 1, nil
}

func (e *encoder) Reference() *bulletin.Subset { return e.subset }

// compressedEncoder writes the values of all subsets of a compressed message
// at once.
type compressedEncoder struct {
	w       *bitio.Writer
	subsets []*bulletin.Subset
	pos     int
}

func (e *compressedEncoder) next(code varcode.Code) ([]*bulletin.Var, error) {
	vars := make([]*bulletin.Var, len(e.subsets))
	for i, s := range e.subsets {
		if e.pos >= s.Len() {
			return nil, bufrerr.Errorf(bufrerr.SubsetMismatch, "subset %d has %d values, %s expected after them", i, s.Len(), code)
		}
		v := s.At(e.pos)
		if v.Code() != code {
			return nil, bufrerr.Errorf(bufrerr.SubsetMismatch, "subset %d value %d is %s, %s expected", i, e.pos, v.Code(), code)
		}
		vars[i] = v
	}
	e.pos++
	return vars, nil
}

func (e *compressedEncoder) done() error {
	for i, s := range e.subsets {
		if e.pos != s.Len() {
			return bufrerr.Errorf(bufrerr.SubsetMismatch, "subset %d: %d values left after the last descriptor", i, s.Len()-e.pos)
		}
	}
	return nil
}

// deltaWidth returns the number of bits needed for differences up to diff.
// The all-ones difference is kept for missing values, except that one bit
// differences are used when no value is missing.
func deltaWidth(diff uint32, anyMissing bool) int {
	if !anyMissing && diff == 1 {
		return 1
	}
	w := 1
	if anyMissing {
		w = 2
	}
	for w < bitio.MaxBits && bitio.AllOnes(w) <= diff {
		w++
	}
	return w
}

// writeRaw writes a compressed numeric field from per subset packed values.
func (e *compressedEncoder) writeRaw(info *vartable.Varinfo, raws []uint32, ok []bool) error {
	anyMissing, allMissing := false, true
	var lo, hi uint32
	for i := range raws {
		if !ok[i] {
			anyMissing = true
			continue
		}
		if allMissing || raws[i] < lo {
			lo = raws[i]
		}
		if allMissing || raws[i] > hi {
			hi = raws[i]
		}
		allMissing = false
	}
	if allMissing {
		if err := e.w.WriteBits(bitio.AllOnes(info.BitLen), info.BitLen); err != nil {
			return err
		}
		return e.w.WriteBits(0, deltaWidthBits)
	}
	if err := e.w.WriteBits(lo, info.BitLen); err != nil {
		return err
	}
	if !anyMissing && lo == hi {
		return e.w.WriteBits(0, deltaWidthBits)
	}
	width := deltaWidth(hi-lo, anyMissing)
	if err := e.w.WriteBits(uint32(width), deltaWidthBits); err != nil {
		return err
	}
	for i := range raws {
		delta := bitio.AllOnes(width)
		if ok[i] {
			delta = raws[i] - lo
		}
		if err := e.w.WriteBits(delta, width); err != nil {
			return err
		}
	}
	return nil
}

func (e *compressedEncoder) writeStrings(info *vartable.Varinfo, vars []*bulletin.Var) error {
	fields := make([][]byte, len(vars))
	same := true
	for i, v := range vars {
		f, err := encodeString(info, v)
		if err != nil {
			return err
		}
		fields[i] = f
		same = same && string(f) == string(fields[0])
	}
	if same {
		e.w.WriteBytes(fields[0])
		return e.w.WriteBits(0, deltaWidthBits)
	}
	width := info.ByteLen()
	if width >= 1<<deltaWidthBits {
		return bufrerr.Errorf(bufrerr.ValueOutOfRange,
			"%s: %d characters differ between subsets, at most %d can be compressed", info.Code, width, 1<<deltaWidthBits-1)
	}
	e.w.WriteBytes(make([]byte, width))
	if err := e.w.WriteBits(uint32(width), deltaWidthBits); err != nil {
		return err
	}
	for _, f := range fields {
		e.w.WriteBytes(f)
	}
	return nil
}

func (e *compressedEncoder) write(info *vartable.Varinfo, vars []*bulletin.Var) error {
	if info.IsString {
		return e.writeStrings(info, vars)
	}
	raws := make([]uint32, len(vars))
	ok := make([]bool, len(vars))
	for i, v := range vars {
		var err error
		if raws[i], ok[i], err = encodeRaw(info, v); err != nil {
			return err
		}
	}
	return e.writeRaw(info, raws, ok)
}

func (e *compressedEncoder) Element(info *vartable.Varinfo) error {
	vars, err := e.next(info.Code)
	if err != nil {
		return err
	}
	return e.write(info, vars)
}

func (e *compressedEncoder) Attribute(info *vartable.Varinfo, pos int) error {
	vars := make([]*bulletin.Var, len(e.subsets))
	for i, s := range e.subsets {
		vars[i] = s.At(pos).Attr(info.Code)
	}
	return e.write(info, vars)
}

func (e *compressedEncoder) DelayedCount(info *vartable.Varinfo) (int, error) {
	vars, err := e.next(info.Code)
	if err != nil {
		return 0, err
	}
	n, err := vars[0].Enqi()
	if err != nil {
		return 0, bufrerr.Errorf(bufrerr.SubsetMismatch, "%s: missing replication count", info.Code)
	}
	for i, v := range vars {
		if m, err := v.Enqi(); err != nil || m != n {
			return 0, bufrerr.Errorf(bufrerr.InconsistentReplicationCount,
				"%s: subset %d has count %s, subset 0 has %d", info.Code, i, v.Format(), n)
		}
	}
	return n, e.write(info, vars[:1:1])
}

func (e *compressedEncoder) Bitmap(code varcode.Code, countInfo *vartable.Varinfo, n int, bitInfo *vartable.Varinfo) (string, int, error) {
	vars, err := e.next(code)
	if err != nil {
		return "", 0, err
	}
	value := vars[0].Value()
	for i, v := range vars {
		if v.Value() != value {
			return "", 0, bufrerr.Errorf(bufrerr.SubsetMismatch, "%s: subset %d has bitmap %q, subset 0 has %q", code, i, v.Value(), value)
		}
	}
	bits, err := bitmapBits(code, value)
	if err != nil {
		return "", 0, err
	}
	if countInfo != nil {
		raw, _, err := encodeRaw(countInfo, countVar(countInfo, len(value)))
		if err != nil {
			return "", 0, err
		}
		if err := e.writeRaw(countInfo, []uint32{raw}, []bool{true}); err != nil {
			return "", 0, err
		}
	} else if len(value) != n {
		return "", 0, bufrerr.Errorf(bufrerr.SubsetMismatch, "%s: bitmap has %d entries, %d expected", code, len(value), n)
	}
	for _, bit := range bits {
		if err := e.writeRaw(bitInfo, []uint32{bit}, []bool{true}); err != nil {
			return "", 0, err
		}
	}
	return value, e.pos - 1, nil
}

func (e *compressedEncoder) Reference() *bulletin.Subset { return e.subsets[0] }

func countVar(info *vartable.Varinfo, n int) *bulletin.Var {
	v := bulletin.NewVar(info)
	v.Seti(n)
	return v
}
