package bufrio

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdifrance/gobufr/bufr"
	"github.com/sdifrance/gobufr/bufrerr"
	"github.com/sdifrance/gobufr/bulletin"
	"github.com/sdifrance/gobufr/internal/testtables"
	"github.com/sdifrance/gobufr/varcode"
)

// crexMessage has a data value that looks like an end section.
const crexMessage = "CREX++\r\r\nT000113 A000 B01002++\r\r\n7777++\r\r\n7777\r\r\n"

func bufrMessage(t *testing.T) []byte {
	t.Helper()
	vt, dt := testtables.Tables()
	b := &bulletin.Bulletin{
		Type:        bulletin.BUFR,
		Edition:     4,
		Bufr:        bulletin.BufrOptions{MasterTable: 13},
		Descriptors: []varcode.Code{varcode.B(1, 1)},
		Vartable:    vt,
		Dtable:      dt,
	}
	v, err := b.NewVar(varcode.B(1, 1))
	require.NoError(t, err)
	v.Seti(16)
	b.NewSubset().Append(v)
	msg, err := bufr.Encode(b)
	require.NoError(t, err)
	return msg
}

func TestReadAll(t *testing.T) {
	header := "ISMN01 LFPW 171200\r\r\n"
	msg := bufrMessage(t)
	var stream bytes.Buffer
	stream.WriteString(header)
	stream.Write(msg)
	stream.Write([]byte{0, 0, '\n'})
	stream.WriteString(crexMessage)
	stream.WriteString("NNNN")

	msgs, err := ReadAll(&stream)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, bulletin.BUFR, msgs[0].Type)
	assert.Equal(t, int64(len(header)), msgs[0].Offset)
	assert.Equal(t, msg, msgs[0].Data)

	assert.Equal(t, bulletin.CREX, msgs[1].Type)
	assert.Equal(t, int64(len(header)+len(msg)+3), msgs[1].Offset)
	assert.Equal(t, crexMessage, string(msgs[1].Data))
}

func TestCompressed(t *testing.T) {
	msg := bufrMessage(t)
	var stream bytes.Buffer
	w, err := NewWriter(&stream, true)
	require.NoError(t, err)
	require.NoError(t, w.WriteMessage(msg))
	require.NoError(t, w.WriteMessage([]byte(crexMessage)))
	require.NoError(t, w.WriteMessage(msg))
	require.NoError(t, w.Close())
	require.True(t, bytes.HasPrefix(stream.Bytes(), zstdMagic))

	msgs, err := ReadAll(&stream)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, msg, msgs[2].Data)
	assert.Equal(t, int64(len(msg)+len(crexMessage)), msgs[2].Offset)
}

func TestNext(t *testing.T) {
	var stream bytes.Buffer
	w, err := NewWriter(&stream, false)
	require.NoError(t, err)
	require.NoError(t, w.WriteMessage([]byte(crexMessage)))
	require.NoError(t, w.Close())

	r, err := NewReader(&stream)
	require.NoError(t, err)
	defer r.Close()
	m, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, bulletin.CREX, m.Type)
	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestEmpty(t *testing.T) {
	msgs, err := ReadAll(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Empty(t, msgs)

	msgs, err = ReadAll(bytes.NewReader([]byte("no messages here")))
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestTruncated(t *testing.T) {
	msg := bufrMessage(t)
	for name, data := range map[string][]byte{
		"bufr":        msg[:len(msg)-5],
		"bufr header": []byte("BUFR\x00"),
		"crex":        []byte("CREX++ T000113 A000 B01001++ 016++"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadAll(bytes.NewReader(data))
			require.Error(t, err)
			assert.Equal(t, bufrerr.TruncatedInput, bufrerr.KindOf(err), "%v", err)
		})
	}
}
