// Package gobufr decodes and encodes meteorological bulletins in the WMO
// BUFR (FM 94) and CREX (FM 95) formats.
//
// The format of a message is detected from its signature; see the bufr and
// crex packages for the format specific details.
package gobufr

import (
	"bytes"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/sdifrance/gobufr/bufr"
	"github.com/sdifrance/gobufr/bufrerr"
	"github.com/sdifrance/gobufr/bulletin"
	"github.com/sdifrance/gobufr/crex"
	"github.com/sdifrance/gobufr/tables"
)

// Detect returns the format of a message from its first bytes.
func Detect(data []byte) (bulletin.Type, error) {
	switch head := bytes.TrimLeft(data, " \t\r\n"); {
	case bytes.HasPrefix(head, []byte("BUFR")):
		return bulletin.BUFR, nil
	case bytes.HasPrefix(head, []byte("CREX")):
		return bulletin.CREX, nil
	}
	n := len(data)
	if n > 4 {
		n = 4
	}
	return 0, bufrerr.WithOffset(bufrerr.Errorf(bufrerr.MalformedFraming, "unknown message signature %q", data[:n]), 0)
}

// DecodeHeader decodes the header of a BUFR or CREX message, up to its data
// descriptors.
func DecodeHeader(data []byte) (*bulletin.Bulletin, error) {
	t, err := Detect(data)
	if err != nil {
		return nil, err
	}
	if t == bulletin.CREX {
		return crex.DecodeHeader(data)
	}
	return bufr.DecodeHeader(data)
}

// Decode decodes a BUFR or CREX message. A nil l uses tables.Default().
func Decode(data []byte, l tables.Loader) (*bulletin.Bulletin, error) {
	t, err := Detect(data)
	if err != nil {
		return nil, err
	}
	if l == nil {
		l = tables.Default()
	}
	if t == bulletin.CREX {
		return crex.Decode(data, l)
	}
	return bufr.Decode(data, l)
}

// Encode encodes b in the format given by its Type.
func Encode(b *bulletin.Bulletin) ([]byte, error) {
	switch b.Type {
	case bulletin.BUFR:
		return bufr.Encode(b)
	case bulletin.CREX:
		return crex.Encode(b)
	}
	return nil, errors.Errorf("cannot encode a bulletin of type %s", b.Type)
}

// RoundTrip decodes data, encodes the result and decodes it again. It returns
// the number of differences between the two decoded bulletins; each one is
// logged. A BUFR message encoded to different bytes counts as one more
// difference. Bytes after the end of the BUFR message are ignored.
func RoundTrip(data []byte, l tables.Loader) (int, error) {
	b, err := Decode(data, l)
	if err != nil {
		return 0, errors.Wrap(err, "decoding")
	}
	out, err := Encode(b)
	if err != nil {
		return 0, errors.Wrap(err, "encoding")
	}
	again, err := Decode(out, l)
	if err != nil {
		return 0, errors.Wrap(err, "decoding the encoded message")
	}
	n := bulletin.Diff(b, again)
	switch {
	case b.Type == bulletin.BUFR && !bytes.HasPrefix(data, out):
		glog.Warningf("BUFR message of %d bytes was encoded to %d different bytes", len(data), len(out))
		n++
	case b.Type == bulletin.CREX && !bytes.Equal(data, out):
		glog.V(1).Infof("CREX message decodes the same but was encoded differently")
	}
	if n > 0 {
		glog.Warningf("%s message changed in a round trip: %d differences", b.Type, n)
	}
	return n, nil
}
