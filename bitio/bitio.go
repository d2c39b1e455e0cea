// Package bitio reads and writes MSB-first bit streams over byte buffers.
//
// Bit positions follow the WMO convention: within an octet, bit 1 is the most
// significant bit and is read or written first.
package bitio

import (
	"github.com/sdifrance/gobufr/bufrerr"
)

// MaxBits is the widest field read or written in one call.
const MaxBits = 32

// AllOnes returns the n bit pattern with every bit set, used for missing
// values.
func AllOnes(n int) uint32 {
	if n >= 32 {
		return 0xffffffff
	}
	return uint32(1)<<uint(n) - 1
}

// Reader consumes bits from a byte slice, one byte at a time.
type Reader struct {
	data []byte
	// pos is the offset of the next byte to load.
	pos int
	// pbyte holds the bits of the current byte not consumed yet, left aligned
	// in the low pbyteLen bits.
	pbyte    byte
	pbyteLen int
}

// NewReader returns a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// ReadBits consumes n (0 <= n <= 32) bits and returns them as an unsigned
// integer.
func (r *Reader) ReadBits(n int) (uint32, error) {
	if n < 0 || n > MaxBits {
		return 0, bufrerr.Errorf(bufrerr.ValueOutOfRange, "cannot read %d bits at once", n)
	}
	var res uint32
	for i := 0; i < n; i++ {
		if r.pbyteLen == 0 {
			if r.pos >= len(r.data) {
				return 0, bufrerr.Errorf(bufrerr.TruncatedInput, "end of data reading %d bits (%d read)", n, i)
			}
			r.pbyte = r.data[r.pos]
			r.pbyteLen = 8
			r.pos++
		}
		r.pbyteLen--
		res = res<<1 | uint32(r.pbyte>>uint(r.pbyteLen))&1
	}
	return res, nil
}

// ReadBytes reads n whole octets at the current bit position.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if r.pbyteLen == 0 {
		if r.pos+n > len(r.data) {
			return nil, bufrerr.Errorf(bufrerr.TruncatedInput, "end of data reading %d bytes at byte %d", n, r.pos)
		}
		out := make([]byte, n)
		copy(out, r.data[r.pos:r.pos+n])
		r.pos += n
		return out, nil
	}
	out := make([]byte, n)
	for i := range out {
		v, err := r.ReadBits(8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(v)
	}
	return out, nil
}

// Offset returns the offset of the byte holding the next unread bit.
func (r *Reader) Offset() int {
	if r.pbyteLen > 0 {
		return r.pos - 1
	}
	return r.pos
}

// BitsRemaining returns the number of unread bits.
func (r *Reader) BitsRemaining() int {
	return (len(r.data)-r.pos)*8 + r.pbyteLen
}

// Writer appends bits to a growing byte slice.
//
// Byte-level helpers (AppendByte, Append16, ...) require the writer to be
// byte aligned; call Flush first when in doubt.
type Writer struct {
	out []byte
	// pbyte accumulates bits not yet flushed, right aligned.
	pbyte    uint32
	pbyteLen int
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{out: make([]byte, 0, 1024)}
}

// WriteBits appends the low n (0 <= n <= 32) bits of val.
func (w *Writer) WriteBits(val uint32, n int) error {
	if n < 0 || n > MaxBits {
		return bufrerr.Errorf(bufrerr.ValueOutOfRange, "cannot write %d bits at once", n)
	}
	if n < 32 && val>>uint(n) != 0 {
		return bufrerr.Errorf(bufrerr.ValueOutOfRange, "value %d does not fit in %d bits", val, n)
	}
	for i := n - 1; i >= 0; i-- {
		w.pbyte = w.pbyte<<1 | (val>>uint(i))&1
		w.pbyteLen++
		if w.pbyteLen == 8 {
			w.out = append(w.out, byte(w.pbyte))
			w.pbyte = 0
			w.pbyteLen = 0
		}
	}
	return nil
}

// WriteBytes appends whole octets at the current bit position.
func (w *Writer) WriteBytes(data []byte) {
	if w.pbyteLen == 0 {
		w.out = append(w.out, data...)
		return
	}
	for _, b := range data {
		// Eight bits always fit.
		_ = w.WriteBits(uint32(b), 8)
	}
}

// Flush pads the current partial byte with zero bits. It returns the number
// of padding bits written.
func (w *Writer) Flush() int {
	if w.pbyteLen == 0 {
		return 0
	}
	pad := 8 - w.pbyteLen
	w.out = append(w.out, byte(w.pbyte<<uint(pad)))
	w.pbyte = 0
	w.pbyteLen = 0
	return pad
}

// BytesWritten returns the number of complete bytes written so far.
func (w *Writer) BytesWritten() int {
	return len(w.out)
}

// Bytes flushes the writer and returns the written data.
func (w *Writer) Bytes() []byte {
	w.Flush()
	return w.out
}

// AppendByte appends one octet.
func (w *Writer) AppendByte(b byte) {
	w.Flush()
	w.out = append(w.out, b)
}

// Append appends octets.
func (w *Writer) Append(data []byte) {
	w.Flush()
	w.out = append(w.out, data...)
}

// Append16 appends a 2 octet big-endian integer.
func (w *Writer) Append16(v int) {
	w.Flush()
	w.out = append(w.out, byte(v>>8), byte(v))
}

// Append24 appends a 3 octet big-endian integer.
func (w *Writer) Append24(v int) {
	w.Flush()
	w.out = append(w.out, byte(v>>16), byte(v>>8), byte(v))
}

// Set24 overwrites the 3 octet big-endian integer at offset, used to backpatch
// section lengths once they are known.
func (w *Writer) Set24(offset, v int) {
	w.out[offset] = byte(v >> 16)
	w.out[offset+1] = byte(v >> 8)
	w.out[offset+2] = byte(v)
}

// Get24 decodes a 3 octet big-endian unsigned integer.
func Get24(b []byte) int {
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2])
}

// Get16 decodes a 2 octet big-endian unsigned integer.
func Get16(b []byte) int {
	return int(b[0])<<8 | int(b[1])
}
