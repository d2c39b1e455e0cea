package gobufr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdifrance/gobufr/bufrerr"
	"github.com/sdifrance/gobufr/bulletin"
	"github.com/sdifrance/gobufr/internal/testtables"
	"github.com/sdifrance/gobufr/varcode"
)

const crexMessage = "CREX++\r\r\nT000113 A000 B01001 B01002 B12101++\r\r\n016 0123 27315+\r\r\n016 0124 /////++\r\r\n7777\r\r\n"

func bufrMessage(t *testing.T) []byte {
	t.Helper()
	vt, dt := testtables.Tables()
	b := &bulletin.Bulletin{
		Type:        bulletin.BUFR,
		Edition:     4,
		Category:    2,
		Year:        2023,
		Month:       5,
		Day:         17,
		Bufr:        bulletin.BufrOptions{Centre: 98, MasterTable: 13, Observed: true, Compressed: true},
		Descriptors: []varcode.Code{varcode.D(1, 1), varcode.B(12, 101)},
		Vartable:    vt,
		Dtable:      dt,
	}
	for _, temp := range []string{"273.15", "", "280.00"} {
		s := b.NewSubset()
		for _, v := range []struct {
			code  varcode.Code
			value string
		}{{varcode.B(1, 1), "16"}, {varcode.B(1, 2), "123"}, {varcode.B(12, 101), temp}} {
			vr, err := b.NewVar(v.code)
			require.NoError(t, err)
			if v.value != "" {
				require.NoError(t, vr.Setc(v.value))
			}
			s.Append(vr)
		}
	}
	msg, err := Encode(b)
	require.NoError(t, err)
	return msg
}

func TestDetect(t *testing.T) {
	for _, tc := range []struct {
		data string
		want bulletin.Type
	}{
		{"BUFR\x00\x00", bulletin.BUFR},
		{"CREX++", bulletin.CREX},
		{"\r\nCREX++", bulletin.CREX},
	} {
		got, err := Detect([]byte(tc.data))
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
	_, err := Detect([]byte("GRIB"))
	assert.Equal(t, bufrerr.MalformedFraming, bufrerr.KindOf(err))
	_, err = Detect(nil)
	assert.Error(t, err)
}

func TestDecodeHeader(t *testing.T) {
	b, err := DecodeHeader(bufrMessage(t))
	require.NoError(t, err)
	assert.Equal(t, bulletin.BUFR, b.Type)
	assert.Equal(t, 3, b.Bufr.SubsetCount)
	assert.Equal(t, "bufr-98-0-13-0", b.TableID())

	b, err = DecodeHeader([]byte(crexMessage))
	require.NoError(t, err)
	assert.Equal(t, bulletin.CREX, b.Type)
	assert.Equal(t, testtables.CrexID, b.TableID())
}

func TestDecode(t *testing.T) {
	b, err := Decode(bufrMessage(t), testtables.Registry())
	require.NoError(t, err)
	require.Len(t, b.Subsets, 3)
	assert.False(t, b.Subsets[1].At(2).IsSet())
	assert.Equal(t, "280.00", b.Subsets[2].At(2).Value())

	b, err = Decode([]byte(crexMessage), testtables.Registry())
	require.NoError(t, err)
	require.Len(t, b.Subsets, 2)
	assert.Equal(t, "124", b.Subsets[1].At(1).Value())
	assert.False(t, b.Subsets[1].At(2).IsSet())
}

func TestRoundTrip(t *testing.T) {
	for name, msg := range map[string][]byte{
		"bufr": bufrMessage(t),
		"crex": []byte(crexMessage),
	} {
		t.Run(name, func(t *testing.T) {
			n, err := RoundTrip(msg, testtables.Registry())
			require.NoError(t, err)
			assert.Equal(t, 0, n)
		})
	}
}

// padDataSection appends n zero octets to section 4 of an edition 4 message
// without section 2.
func padDataSection(msg []byte, n int) []byte {
	get24 := func(b []byte) int { return int(b[0])<<16 | int(b[1])<<8 | int(b[2]) }
	put24 := func(b []byte, v int) { b[0], b[1], b[2] = byte(v>>16), byte(v>>8), byte(v) }
	pos := 8
	pos += get24(msg[pos:])
	pos += get24(msg[pos:])
	end := pos + get24(msg[pos:])
	out := append(append(append([]byte{}, msg[:end]...), make([]byte, n)...), msg[end:]...)
	put24(out[pos:], end-pos+n)
	put24(out[4:], len(out))
	return out
}

func TestRoundTripBytes(t *testing.T) {
	msg := bufrMessage(t)

	n, err := RoundTrip(append(append([]byte{}, msg...), "NNNN"...), testtables.Registry())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	padded := padDataSection(msg, 2)
	b, err := Decode(padded, testtables.Registry())
	require.NoError(t, err)
	require.Len(t, b.Subsets, 3)
	n, err = RoundTrip(padded, testtables.Registry())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRoundTripErrors(t *testing.T) {
	_, err := RoundTrip([]byte("CREX++ T000113 A000 B01003++ 016++ 7777"), testtables.Registry())
	assert.Equal(t, bufrerr.UnknownVariable, bufrerr.KindOf(err))
}

func TestEncodeUnknownType(t *testing.T) {
	_, err := Encode(&bulletin.Bulletin{})
	assert.Error(t, err)
}
