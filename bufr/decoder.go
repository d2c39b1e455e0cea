package bufr

import (
	"strings"

	"github.com/sdifrance/gobufr/bitio"
	"github.com/sdifrance/gobufr/bufrerr"
	"github.com/sdifrance/gobufr/bulletin"
	"github.com/sdifrance/gobufr/varcode"
	"github.com/sdifrance/gobufr/vartable"
)

const deltaWidthBits = 6

// decodeString turns a character field into a value. Fields made only of
// 0x00 or only of 0xff octets are missing.
func decodeString(raw []byte) (string, bool) {
	zeros, ones := true, true
	for _, c := range raw {
		zeros = zeros && c == 0
		ones = ones && c == 0xff
	}
	if zeros || ones {
		return "", false
	}
	return strings.TrimRight(string(raw), " "), true
}

// readString reads a character field, dropping any bits past the last
// whole octet.
func readString(r *bitio.Reader, info *vartable.Varinfo) ([]byte, error) {
	raw, err := r.ReadBytes(info.ByteLen())
	if err != nil {
		return nil, err
	}
	if rem := info.BitLen % 8; rem != 0 {
		if _, err := r.ReadBits(rem); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

// decodeValue sets v from a packed numeric field.
func decodeValue(v *bulletin.Var, raw uint32) error {
	info := v.Info()
	if info.HasMissing() && raw == bitio.AllOnes(info.BitLen) {
		return nil
	}
	s, err := info.DecodeBinary(raw)
	if err != nil {
		return err
	}
	v.SetValue(s)
	return nil
}

// decoder reads the values of one subset of an uncompressed message.
type decoder struct {
	r      *bitio.Reader
	subset *bulletin.Subset
}

func (d *decoder) read(info *vartable.Varinfo) (*bulletin.Var, error) {
	v := bulletin.NewVar(info)
	if info.IsString {
		raw, err := readString(d.r, info)
		if err != nil {
			return nil, err
		}
		if s, ok := decodeString(raw); ok {
			v.SetValue(s)
		}
		return v, nil
	}
	raw, err := d.r.ReadBits(info.BitLen)
	if err != nil {
		return nil, err
	}
	if err := decodeValue(v, raw); err != nil {
		return nil, err
	}
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

func (d *decoder) readCount(info *vartable.Varinfo) (*bulletin.Var, int, error) {
	v, err := d.read(info)
	if err != nil {
		return nil, 0, err
	}
	n, err := v.Enqi()
	if err != nil {
		return nil, 0, bufrerr.Errorf(bufrerr.InconsistentReplicationCount, "%s: missing replication count", info.Code)
	}
	return v, n, nil
}

func (d *decoder) DelayedCount(info *vartable.Varinfo) (int, error) {
	v, n, err := d.readCount(info)
	if err != nil {
		return 0, err
	}
	d.subset.Append(v)
	return n, nil
}

func (d *decoder) Bitmap(code varcode.Code, countInfo *vartable.Varinfo, n int, bitInfo *vartable.Varinfo) (string, int, error) {
	if countInfo != nil {
		var err error
		if _, n, err = d.readCount(countInfo); err != nil {
			return "", 0, err
		}
	}
	bm := make([]byte, n)
	for i := range bm {
		bit, err := d.r.ReadBits(bitInfo.BitLen)
		if err != nil {
			return "", 0, err
		}
		bm[i] = bitmapChar(bit)
	}
	anchor := d.subset.Len()
	d.subset.Append(bulletin.NewBitmap(code, string(bm)))
	return string(bm), anchor, nil
}

func (d *decoder) Reference() *bulletin.Subset { return d.subset }

// bitmapChar maps a data present indicator to its bitmap character.
func bitmapChar(bit uint32) byte {
	if bit == 0 {
		return '+'
	}
	return '-'
}

// compressedDecoder reads the values of all subsets of a compressed message
// at once.
type compressedDecoder struct {
	r       *bitio.Reader
	subsets []*bulletin.Subset
}

// readRaw reads a compressed numeric field: the base value, the width of
// the differences, and one difference per subset. ok[i] is false when
// subset i is missing.
func (d *compressedDecoder) readRaw(info *vartable.Varinfo) (raws []uint32, ok []bool, err error) {
	base, err := d.r.ReadBits(info.BitLen)
	if err != nil {
		return nil, nil, err
	}
	width, err := d.r.ReadBits(deltaWidthBits)
	if err != nil {
		return nil, nil, err
	}
	baseMissing := info.HasMissing() && base == bitio.AllOnes(info.BitLen)
	raws = make([]uint32, len(d.subsets))
	ok = make([]bool, len(d.subsets))
	if width == 0 {
		for i := range raws {
			raws[i], ok[i] = base, !baseMissing
		}
		return raws, ok, nil
	}
	if baseMissing {
		return nil, nil, bufrerr.Errorf(bufrerr.MalformedFraming,
			"%s: base value is missing but differences are %d bits wide", info.Code, width)
	}
	if width > bitio.MaxBits {
		return nil, nil, bufrerr.Errorf(bufrerr.MalformedFraming, "%s: difference width %d", info.Code, width)
	}
	for i := range raws {
		delta, err := d.r.ReadBits(int(width))
		if err != nil {
			return nil, nil, err
		}
		// With one bit differences, 1 is a value.
		if width > 1 && info.HasMissing() && delta == bitio.AllOnes(int(width)) {
			continue
		}
		raws[i], ok[i] = base+delta, true
	}
	return raws, ok, nil
}

func (d *compressedDecoder) readStrings(info *vartable.Varinfo) ([]*bulletin.Var, error) {
	base, err := readString(d.r, info)
	if err != nil {
		return nil, err
	}
	width, err := d.r.ReadBits(deltaWidthBits)
	if err != nil {
		return nil, err
	}
	vars := make([]*bulletin.Var, len(d.subsets))
	if width == 0 {
		s, ok := decodeString(base)
		for i := range vars {
			vars[i] = bulletin.NewVar(info)
			if ok {
				vars[i].SetValue(s)
			}
		}
		return vars, nil
	}
	for _, c := range base {
		if c != 0 {
			return nil, bufrerr.Errorf(bufrerr.MalformedFraming,
				"%s: strings differ between subsets but the base value is not zero", info.Code)
		}
	}
	if int(width) > len(base) {
		return nil, bufrerr.Errorf(bufrerr.MalformedFraming,
			"%s: %d characters per subset in a %d character field", info.Code, width, len(base))
	}
	for i := range vars {
		raw, err := d.r.ReadBytes(int(width))
		if err != nil {
			return nil, err
		}
		vars[i] = bulletin.NewVar(info)
		if s, ok := decodeString(raw); ok {
			vars[i].SetValue(s)
		}
	}
	return vars, nil
}

// read returns one value per subset.
func (d *compressedDecoder) read(info *vartable.Varinfo) ([]*bulletin.Var, error) {
	if info.IsString {
		return d.readStrings(info)
	}
	raws, ok, err := d.readRaw(info)
	if err != nil {
		return nil, err
	}
	vars := make([]*bulletin.Var, len(d.subsets))
	for i := range vars {
		vars[i] = bulletin.NewVar(info)
		if !ok[i] {
			continue
		}
		if err := decodeValue(vars[i], raws[i]); err != nil {
			return nil, err
		}
	}
	return vars, nil
}

func (d *compressedDecoder) Element(info *vartable.Varinfo) error {
	vars, err := d.read(info)
	if err != nil {
		return err
	}
	for i, s := range d.subsets {
		s.Append(vars[i])
	}
	return nil
}

func (d *compressedDecoder) Attribute(info *vartable.Varinfo, pos int) error {
	vars, err := d.read(info)
	if err != nil {
		return err
	}
	for i, s := range d.subsets {
		s.At(pos).SetAttr(vars[i])
	}
	return nil
}

// readSame reads a compressed field that must hold the same value in every
// subset.
func (d *compressedDecoder) readSame(info *vartable.Varinfo) (uint32, error) {
	raws, ok, err := d.readRaw(info)
	if err != nil {
		return 0, err
	}
	for i := range raws {
		if !ok[i] {
			return 0, bufrerr.Errorf(bufrerr.InconsistentReplicationCount, "%s: missing in subset %d", info.Code, i)
		}
		if raws[i] != raws[0] {
			return 0, bufrerr.Errorf(bufrerr.InconsistentReplicationCount,
				"%s: subset %d has %d, subset 0 has %d", info.Code, i, raws[i], raws[0])
		}
	}
	return raws[0], nil
}

func (d *compressedDecoder) DelayedCount(info *vartable.Varinfo) (int, error) {
	raw, err := d.readSame(info)
	if err != nil {
		return 0, err
	}
	for _, s := range d.subsets {
		v := bulletin.NewVar(info)
		if err := decodeValue(v, raw); err != nil {
			return 0, err
		}
		s.Append(v)
	}
	return int(raw) + info.BitRef, nil
}

func (d *compressedDecoder) Bitmap(code varcode.Code, countInfo *vartable.Varinfo, n int, bitInfo *vartable.Varinfo) (string, int, error) {
	if countInfo != nil {
		raw, err := d.readSame(countInfo)
		if err != nil {
			return "", 0, err
		}
		n = int(raw) + countInfo.BitRef
	}
	bm := make([]byte, n)
	for i := range bm {
		bit, err := d.readSame(bitInfo)
		if err != nil {
			return "", 0, err
		}
		bm[i] = bitmapChar(bit)
	}
	anchor := d.subsets[0].Len()
	for _, s := range d.subsets {
		s.Append(bulletin.NewBitmap(code, string(bm)))
	}
	return string(bm), anchor, nil
}

func (d *compressedDecoder) Reference() *bulletin.Subset { return d.subsets[0] }
