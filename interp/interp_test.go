package interp

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdifrance/gobufr/bufrerr"
	"github.com/sdifrance/gobufr/bulletin"
	"github.com/sdifrance/gobufr/internal/testtables"
	"github.com/sdifrance/gobufr/varcode"
	"github.com/sdifrance/gobufr/vartable"
)

// listTarget hands out values from a list, the way a decoder reads them.
type listTarget struct {
	t     *testing.T
	vals  []string
	sub   bulletin.Subset
	infos []*vartable.Varinfo
}

func (l *listTarget) pop() string {
	require.NotEmpty(l.t, l.vals, "ran out of values")
	v := l.vals[0]
	l.vals = l.vals[1:]
	return v
}

func (l *listTarget) Element(info *vartable.Varinfo) error {
	l.infos = append(l.infos, info)
	v := bulletin.NewVar(info)
	v.SetValue(l.pop())
	l.sub.Append(v)
	return nil
}

func (l *listTarget) Attribute(info *vartable.Varinfo, pos int) error {
	a := bulletin.NewVar(info)
	a.SetValue(l.pop())
	l.sub.At(pos).SetAttr(a)
	return nil
}

func (l *listTarget) DelayedCount(info *vartable.Varinfo) (int, error) {
	s := l.pop()
	v := bulletin.NewVar(info)
	v.SetValue(s)
	l.sub.Append(v)
	return strconv.Atoi(s)
}

func (l *listTarget) Bitmap(code varcode.Code, countInfo *vartable.Varinfo, n int, bitInfo *vartable.Varinfo) (string, int, error) {
	value := l.pop()
	if countInfo == nil {
		require.Equal(l.t, n, len(value))
	}
	anchor := l.sub.Len()
	v := bulletin.NewVar(vartable.NewStringInfo(code, "DATA PRESENT BITMAP", len(value)))
	v.SetValue(value)
	l.sub.Append(v)
	return value, anchor, nil
}

func (l *listTarget) Reference() *bulletin.Subset { return &l.sub }

func run(t *testing.T, opts Options, codes []varcode.Code, vals ...string) (*listTarget, error) {
	t.Helper()
	vt, dt := testtables.Tables()
	l := &listTarget{t: t, vals: vals}
	err := New(vt, dt, l, opts).Run(varcode.NewOpcodes(codes))
	return l, err
}

func formatSubset(s *bulletin.Subset) []string {
	var out []string
	for _, v := range s.Vars() {
		out = append(out, v.String())
	}
	return out
}

func TestFixedReplication(t *testing.T) {
	l, err := run(t, Options{}, []varcode.Code{
		varcode.R(2, 3), varcode.B(1, 1), varcode.B(1, 2),
	}, "1", "10", "2", "20", "3", "30")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"B01001 1", "B01002 10",
		"B01001 2", "B01002 20",
		"B01001 3", "B01002 30",
	}, formatSubset(&l.sub))
}

func TestDelayedReplication(t *testing.T) {
	l, err := run(t, Options{}, []varcode.Code{
		varcode.R(1, 0), varcode.B(31, 1), varcode.B(12, 101), varcode.B(1, 1),
	}, "2", "280.00", "281.00", "16")
	require.NoError(t, err)
	assert.Equal(t, []string{"B31001 2", "B12101 280.00", "B12101 281.00", "B01001 16"}, formatSubset(&l.sub))

	l, err = run(t, Options{}, []varcode.Code{
		varcode.R(1, 0), varcode.B(31, 1), varcode.B(12, 101),
	}, "0")
	require.NoError(t, err)
	assert.Equal(t, []string{"B31001 0"}, formatSubset(&l.sub))
}

func TestInlineDelayedCount(t *testing.T) {
	l, err := run(t, Options{InlineDelayedCount: true}, []varcode.Code{
		varcode.R(1, 0), varcode.B(1, 1),
	}, "2", "3", "4")
	require.NoError(t, err)
	assert.Equal(t, []string{"B31002 2", "B01001 3", "B01001 4"}, formatSubset(&l.sub))
}

func TestReplicationOperator(t *testing.T) {
	l, err := run(t, Options{}, []varcode.Code{
		varcode.C(24, 0), varcode.R(2, 2), varcode.B(1, 1), varcode.B(1, 2), varcode.B(2, 1),
	}, "1", "10", "2", "20", "3")
	require.NoError(t, err)
	assert.Equal(t, []string{"B01001 1", "B01002 10", "B01001 2", "B01002 20", "B02001 3"}, formatSubset(&l.sub))

	l, err = run(t, Options{}, []varcode.Code{
		varcode.C(24, 0), varcode.R(1, 0), varcode.B(31, 1), varcode.B(1, 1),
	}, "2", "5", "6")
	require.NoError(t, err)
	assert.Equal(t, []string{"B31001 2", "B01001 5", "B01001 6"}, formatSubset(&l.sub))

	_, err = run(t, Options{}, []varcode.Code{varcode.C(24, 0), varcode.B(1, 1)}, "1")
	assert.True(t, bufrerr.Is(err, bufrerr.MalformedFraming), "%v", err)
	_, err = run(t, Options{}, []varcode.Code{varcode.C(24, 0)})
	assert.True(t, bufrerr.Is(err, bufrerr.MalformedFraming), "%v", err)
}

func TestDelayedReplicationWithoutCount(t *testing.T) {
	_, err := run(t, Options{}, []varcode.Code{varcode.R(1, 0), varcode.B(1, 1)})
	assert.True(t, bufrerr.Is(err, bufrerr.MalformedFraming), "%v", err)
}

func TestReplicationTooShort(t *testing.T) {
	_, err := run(t, Options{}, []varcode.Code{varcode.R(3, 1), varcode.B(1, 1)}, "1")
	assert.True(t, bufrerr.Is(err, bufrerr.MalformedFraming), "%v", err)
}

func TestExpansion(t *testing.T) {
	l, err := run(t, Options{}, []varcode.Code{varcode.D(1, 2), varcode.B(2, 1)},
		"16", "101", "MILANO", "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"B01001 16", "B01002 101", `B01015 "MILANO"`, "B02001 1"}, formatSubset(&l.sub))

	_, err = run(t, Options{}, []varcode.Code{varcode.D(1, 99)})
	assert.True(t, bufrerr.Is(err, bufrerr.UnknownExpansion), "%v", err)
}

func TestUnknownVariable(t *testing.T) {
	_, err := run(t, Options{}, []varcode.Code{varcode.B(48, 1)})
	assert.True(t, bufrerr.Is(err, bufrerr.UnknownVariable), "%v", err)
}

func TestWidthAndScaleChange(t *testing.T) {
	l, err := run(t, Options{}, []varcode.Code{
		varcode.C(1, 132), varcode.C(2, 129),
		varcode.B(12, 101), varcode.B(2, 1), varcode.B(1, 15),
		varcode.C(1, 0), varcode.C(2, 0),
		varcode.B(12, 101),
	}, "280.000", "1", "X", "280.00")
	require.NoError(t, err)
	require.Len(t, l.infos, 4)

	altered := l.infos[0]
	assert.Equal(t, 20, altered.BitLen)
	assert.Equal(t, 3, altered.Scale)
	assert.Equal(t, 3, altered.BufrScale)

	// Code tables and strings keep their width.
	assert.Equal(t, 2, l.infos[1].BitLen)
	assert.Equal(t, 160, l.infos[2].BitLen)

	assert.Equal(t, 16, l.infos[3].BitLen)
	assert.Equal(t, 2, l.infos[3].Scale)
}

func TestNegativeWidthChange(t *testing.T) {
	l, err := run(t, Options{}, []varcode.Code{varcode.C(1, 124), varcode.B(12, 101)}, "1")
	require.NoError(t, err)
	assert.Equal(t, 12, l.infos[0].BitLen)
}

func TestInsertedCharacters(t *testing.T) {
	l, err := run(t, Options{}, []varcode.Code{varcode.C(5, 4), varcode.B(1, 1)}, "ABCD", "3")
	require.NoError(t, err)
	require.Len(t, l.infos, 2)
	assert.True(t, l.infos[0].IsString)
	assert.Equal(t, 32, l.infos[0].BitLen)
	assert.Equal(t, varcode.C(5, 4), l.sub.At(0).Code())
}

func TestUnsupportedModifier(t *testing.T) {
	for _, code := range []varcode.Code{varcode.C(3, 10), varcode.C(23, 0), varcode.C(22, 1), varcode.C(24, 1), varcode.C(37, 1)} {
		t.Run(code.String(), func(t *testing.T) {
			_, err := run(t, Options{}, []varcode.Code{code, varcode.B(1, 1)}, "1")
			assert.True(t, bufrerr.Is(err, bufrerr.UnsupportedModifier), "%v", err)
		})
	}
}

var bitmapCodes = []varcode.Code{
	varcode.B(1, 1), varcode.B(1, 2), varcode.B(12, 101), varcode.B(13, 3),
	varcode.C(22, 0),
	varcode.R(1, 4), varcode.B(31, 31),
	varcode.R(1, 2), varcode.B(33, 7),
}

func TestBitmap(t *testing.T) {
	l, err := run(t, Options{}, bitmapCodes,
		"16", "101", "280.00", "55",
		"-++-",
		"70", "80")
	require.NoError(t, err)
	require.Equal(t, 5, l.sub.Len())
	assert.Equal(t, "B01001 16", l.sub.At(0).String())
	assert.Equal(t, "B01002 101 [B33007 70]", l.sub.At(1).String())
	assert.Equal(t, "B12101 280.00 [B33007 80]", l.sub.At(2).String())
	assert.Equal(t, "B13003 55", l.sub.At(3).String())
	assert.Equal(t, varcode.C(22, 0), l.sub.At(4).Code())
	assert.Equal(t, "-++-", l.sub.At(4).Value())
}

func TestBitmapDelayed(t *testing.T) {
	codes := []varcode.Code{
		varcode.B(1, 1), varcode.B(1, 2),
		varcode.C(22, 0),
		varcode.R(1, 0), varcode.B(31, 1), varcode.B(31, 31),
		varcode.B(33, 7),
	}
	l, err := run(t, Options{}, codes, "16", "101", "+-", "90")
	require.NoError(t, err)
	assert.Equal(t, "B01001 16 [B33007 90]", l.sub.At(0).String())
}

func TestBitmapExhausted(t *testing.T) {
	codes := append(append([]varcode.Code{}, bitmapCodes[:7]...), varcode.R(1, 3), varcode.B(33, 7))
	_, err := run(t, Options{}, codes, "16", "101", "280.00", "55", "-++-", "70", "80", "90")
	assert.True(t, bufrerr.Is(err, bufrerr.BitmapExhausted), "%v", err)
}

func TestBitmapLongerThanSubset(t *testing.T) {
	codes := []varcode.Code{
		varcode.B(1, 1),
		varcode.C(22, 0), varcode.R(1, 2), varcode.B(31, 31),
	}
	_, err := run(t, Options{}, codes, "16", "++")
	assert.True(t, bufrerr.Is(err, bufrerr.BitmapExhausted), "%v", err)
}

func TestBitmapMalformed(t *testing.T) {
	_, err := run(t, Options{}, []varcode.Code{varcode.C(22, 0), varcode.B(1, 1)}, "1")
	assert.True(t, bufrerr.Is(err, bufrerr.UnsupportedModifier), "%v", err)
	_, err = run(t, Options{}, []varcode.Code{varcode.C(22, 0), varcode.R(1, 1), varcode.B(1, 1)}, "1")
	assert.True(t, bufrerr.Is(err, bufrerr.UnsupportedModifier), "%v", err)
}

func TestBitmapReuse(t *testing.T) {
	codes := []varcode.Code{
		varcode.B(1, 1), varcode.B(1, 2),
		varcode.C(36, 0), varcode.R(1, 2), varcode.B(31, 31),
		varcode.B(33, 7),
		varcode.C(37, 0),
		varcode.B(33, 2),
		varcode.C(37, 255),
		varcode.B(33, 7),
	}
	l, err := run(t, Options{}, codes, "16", "101", "-+", "70", "1", "50")
	require.NoError(t, err)
	assert.Equal(t, "B01002 101 [B33002 1] [B33007 70]", l.sub.At(1).String())
	// After cancelling, attributes are plain values again.
	assert.Equal(t, "B33007 50", l.sub.At(l.sub.Len()-1).String())

	_, err = run(t, Options{}, []varcode.Code{varcode.C(37, 0)})
	assert.True(t, bufrerr.Is(err, bufrerr.BitmapExhausted), "%v", err)
}

func TestAttributeWithoutBitmap(t *testing.T) {
	l, err := run(t, Options{}, []varcode.Code{varcode.B(1, 1), varcode.B(33, 7)}, "16", "70")
	require.NoError(t, err)
	assert.Equal(t, []string{"B01001 16", "B33007 70"}, formatSubset(&l.sub))
}

func TestDelta(t *testing.T) {
	assert.Equal(t, 0, delta(0))
	assert.Equal(t, 2, delta(130))
	assert.Equal(t, -3, delta(125))
}
