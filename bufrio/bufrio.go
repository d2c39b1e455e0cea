// Package bufrio contains functionality for reading files holding a sequence
// of BUFR and CREX messages, such as bulletins received from the GTS with
// their transmission headers, optionally compressed with zstd.
package bufrio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/klauspost/compress/zstd"

	"github.com/sdifrance/gobufr/bufrerr"
	"github.com/sdifrance/gobufr/bulletin"
)

var (
	zstdMagic     = []byte{0x28, 0xb5, 0x2f, 0xfd}
	bufrSignature = []byte("BUFR")
	crexSignature = []byte("CREX++")
	crexSection   = []byte("++")
	crexEnd       = []byte("7777")
)

// maxCrexLen bounds the size of a CREX message, which has no length field.
const maxCrexLen = 1 << 20

// Message is one message found in a stream.
type Message struct {
	Type bulletin.Type
	// Offset is the position of the message in the uncompressed stream.
	Offset int64
	Data   []byte
}

// Reader splits a stream into messages. Bytes between messages are skipped.
type Reader struct {
	rr     *bufio.Reader
	zr     *zstd.Decoder
	offset int64
}

// NewReader returns a reader for r. Streams starting with the zstd frame
// magic number are decompressed.
func NewReader(r io.Reader) (*Reader, error) {
	rr := bufio.NewReader(r)
	head, err := rr.Peek(len(zstdMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("error reading stream header: %w", err)
	}
	if !bytes.Equal(head, zstdMagic) {
		return &Reader{rr: rr}, nil
	}
	zr, err := zstd.NewReader(rr)
	if err != nil {
		return nil, fmt.Errorf("error opening zstd stream: %w", err)
	}
	glog.V(1).Infof("reading zstd compressed stream")
	return &Reader{rr: bufio.NewReader(zr), zr: zr}, nil
}

// Close releases the decompressor, if any.
func (r *Reader) Close() {
	if r.zr != nil {
		r.zr.Close()
	}
}

// Next returns the next message, or io.EOF when the stream has no more.
func (r *Reader) Next() (*Message, error) {
	skipped, t, err := r.skipToMessage()
	if skipped > 0 {
		glog.V(1).Infof("skipped %d bytes before offset %d", skipped, r.offset)
	}
	if err != nil {
		return nil, err
	}
	start := r.offset
	var data []byte
	switch t {
	case bulletin.BUFR:
		data, err = r.readBufr()
	case bulletin.CREX:
		data, err = r.readCrex()
	}
	if err != nil {
		return nil, fmt.Errorf("error reading %s message at offset %d: %w", t, start, err)
	}
	glog.V(1).Infof("%s message @ offset %d, %d bytes", t, start, len(data))
	return &Message{Type: t, Offset: start, Data: data}, nil
}

func (r *Reader) discard(n int) {
	n, _ = r.rr.Discard(n)
	r.offset += int64(n)
}

// skipToMessage discards bytes up to the next message signature.
func (r *Reader) skipToMessage() (int, bulletin.Type, error) {
	skipped := 0
	for {
		head, err := r.rr.Peek(len(crexSignature))
		if err != nil && !errors.Is(err, io.EOF) {
			return skipped, 0, err
		}
		if len(head) == 0 {
			return skipped, 0, io.EOF
		}
		switch {
		case bytes.HasPrefix(head, bufrSignature):
			return skipped, bulletin.BUFR, nil
		case bytes.HasPrefix(head, crexSignature):
			return skipped, bulletin.CREX, nil
		}
		r.discard(1)
		skipped++
	}
}

// readBufr reads a message whose length is given in section 0.
func (r *Reader) readBufr() ([]byte, error) {
	head, err := r.rr.Peek(8)
	if err != nil {
		return nil, bufrerr.Errorf(bufrerr.TruncatedInput, "section 0: %v", err)
	}
	n := int(head[4])<<16 | int(head[5])<<8 | int(head[6])
	if n < 8 {
		return nil, bufrerr.Errorf(bufrerr.MalformedFraming, "message length %d", n)
	}
	data := make([]byte, n)
	readCount, err := io.ReadFull(r.rr, data)
	r.offset += int64(readCount)
	if err != nil {
		return nil, bufrerr.Errorf(bufrerr.TruncatedInput, "read %d bytes of a %d byte message: %v", readCount, n, err)
	}
	return data, nil
}

// readCrex reads up to the end section: a "7777" following the "++" ending
// the data or supplementary section. The line end after it is kept.
func (r *Reader) readCrex() ([]byte, error) {
	var data []byte
	for {
		c, err := r.rr.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, bufrerr.Errorf(bufrerr.TruncatedInput, "no end section after %d bytes", len(data))
			}
			return nil, err
		}
		r.offset++
		data = append(data, c)
		if len(data) > maxCrexLen {
			return nil, bufrerr.Errorf(bufrerr.MalformedFraming, "no end section in the first %d bytes", maxCrexLen)
		}
		if c == '7' && isCrexEnd(data) {
			break
		}
	}
	for {
		next, err := r.rr.Peek(1)
		if err != nil || (next[0] != '\r' && next[0] != '\n') {
			return data, nil
		}
		r.discard(1)
		data = append(data, next[0])
	}
}

// isCrexEnd reports whether data ends with the end section. The signature,
// the descriptor section and the data section each end with "++" before it.
func isCrexEnd(data []byte) bool {
	if !bytes.HasSuffix(data, crexEnd) {
		return false
	}
	before := bytes.TrimRight(data[:len(data)-len(crexEnd)], " \t\r\n")
	return bytes.HasSuffix(before, crexSection) && bytes.Count(before, crexSection) >= 3
}

// ReadAll returns every message in r.
func ReadAll(r io.Reader) ([]*Message, error) {
	mr, err := NewReader(r)
	if err != nil {
		return nil, err
	}
	defer mr.Close()
	var msgs []*Message
	for {
		m, err := mr.Next()
		if errors.Is(err, io.EOF) {
			return msgs, nil
		}
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
}

// Writer writes messages one after the other, optionally zstd compressed.
type Writer struct {
	w  io.Writer
	zw *zstd.Encoder
}

// NewWriter returns a writer to w.
func NewWriter(w io.Writer, compress bool) (*Writer, error) {
	if !compress {
		return &Writer{w: w}, nil
	}
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return nil, fmt.Errorf("error opening zstd stream: %w", err)
	}
	return &Writer{w: zw, zw: zw}, nil
}

// WriteMessage appends one encoded message.
func (w *Writer) WriteMessage(msg []byte) error {
	_, err := w.w.Write(msg)
	return err
}

// Close flushes the compressed stream. It does not close the underlying
// writer.
func (w *Writer) Close() error {
	if w.zw != nil {
		return w.zw.Close()
	}
	return nil
}
