// Package bufr reads and writes messages in the WMO FM 94 BUFR binary format,
// editions 2, 3 and 4.
//
// A message is made of six sections:
//
//	0  "BUFR", total length, edition
//	1  identification: originating centre, table versions, reference time
//	2  optional, free content
//	3  data description: number of subsets, flags, data descriptors
//	4  data, bit packed
//	5  "7777"
//
// Section lengths are 3 octet big-endian integers. In editions 2 and 3 every
// section has an even length.
package bufr

import (
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/sdifrance/gobufr/bitio"
	"github.com/sdifrance/gobufr/bufrerr"
	"github.com/sdifrance/gobufr/bulletin"
	"github.com/sdifrance/gobufr/interp"
	"github.com/sdifrance/gobufr/tables"
	"github.com/sdifrance/gobufr/varcode"
)

// trailingBitsAllowance is how many unread bits may follow the data of the
// last subset without a warning.
const trailingBitsAllowance = 32

// DecodeHeader decodes the sections of a message up to the data
// descriptors, without reading the data section or loading tables.
func DecodeHeader(data []byte) (*bulletin.Bulletin, error) {
	b, _, err := parse(data)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Decode decodes a whole message, loading its tables from l.
func Decode(data []byte, l tables.Loader) (*bulletin.Bulletin, error) {
	b, m, err := parse(data)
	if err != nil {
		return nil, err
	}
	glog.V(1).Infof("BUFR edition %d, %d bytes, %d subsets, tables %s", m.edition, m.length, b.Bufr.SubsetCount, b.TableID())
	if err := b.LoadTables(l); err != nil {
		return nil, err
	}

	ops := varcode.NewOpcodes(b.Descriptors)
	r := bitio.NewReader(m.data)
	if b.Bufr.Compressed {
		if b.Bufr.SubsetCount == 0 {
			return nil, bufrerr.WithOffset(bufrerr.Errorf(bufrerr.SubsetCountMismatch, "compressed message with no subsets"), m.dataOffset)
		}
		d := &compressedDecoder{r: r}
		for i := 0; i < b.Bufr.SubsetCount; i++ {
			d.subsets = append(d.subsets, b.NewSubset())
		}
		if err := interp.New(b.Vartable, b.Dtable, d, interp.Options{}).Run(ops); err != nil {
			return nil, errors.Wrap(bufrerr.WithOffset(err, m.dataOffset+r.Offset()), "decoding compressed subsets")
		}
	} else {
		for i := 0; i < b.Bufr.SubsetCount; i++ {
			d := &decoder{r: r, subset: b.NewSubset()}
			if err := interp.New(b.Vartable, b.Dtable, d, interp.Options{}).Run(ops); err != nil {
				return nil, errors.Wrapf(bufrerr.WithOffset(err, m.dataOffset+r.Offset()), "decoding subset %d", i)
			}
		}
	}
	if n := r.BitsRemaining(); n > trailingBitsAllowance {
		glog.Warningf("BUFR data section has %d bits left after the last subset", n)
	}
	return b, nil
}

// Encode encodes b, which must have its tables loaded.
func Encode(b *bulletin.Bulletin) ([]byte, error) {
	if b.Type != bulletin.BUFR {
		return nil, errors.Errorf("cannot encode a %s bulletin as BUFR", b.Type)
	}
	if b.Vartable == nil || b.Dtable == nil {
		return nil, errors.New("bulletin has no tables loaded")
	}
	switch b.Edition {
	case 2, 3, 4:
	default:
		return nil, bufrerr.Errorf(bufrerr.MalformedFraming, "BUFR edition %d is not supported", b.Edition)
	}

	w := bitio.NewWriter()
	w.Append([]byte("BUFR"))
	w.Append24(0)
	w.AppendByte(byte(b.Edition))

	fw := &fieldWriter{w: w}
	start := fw.begin()
	writeIdentification(fw, b)
	fw.end(start, b.Edition)

	if b.Bufr.OptionalSection != nil {
		start = fw.begin()
		w.AppendByte(0)
		w.Append(b.Bufr.OptionalSection)
		fw.end(start, b.Edition)
	}

	start = fw.begin()
	w.AppendByte(0)
	fw.u16("subset count", len(b.Subsets))
	var flags byte
	if b.Bufr.Observed {
		flags |= observedData
	}
	if b.Bufr.Compressed {
		flags |= compressedData
	}
	w.AppendByte(flags)
	for _, code := range b.Descriptors {
		w.Append16(int(code))
	}
	fw.end(start, b.Edition)
	if fw.err != nil {
		return nil, fw.err
	}

	start = fw.begin()
	w.AppendByte(0)
	if err := encodeData(w, b); err != nil {
		return nil, errors.Wrap(bufrerr.WithOffset(err, w.BytesWritten()), "encoding data section")
	}
	fw.end(start, b.Edition)

	w.Append([]byte("7777"))
	w.Set24(4, w.BytesWritten())
	glog.V(1).Infof("encoded BUFR edition %d, %d bytes, %d subsets", b.Edition, w.BytesWritten(), len(b.Subsets))
	return w.Bytes(), nil
}

func encodeData(w *bitio.Writer, b *bulletin.Bulletin) error {
	ops := varcode.NewOpcodes(b.Descriptors)
	if b.Bufr.Compressed {
		if len(b.Subsets) == 0 {
			return bufrerr.Errorf(bufrerr.SubsetCountMismatch, "compressed message with no subsets")
		}
		e := &compressedEncoder{w: w, subsets: b.Subsets}
		if err := interp.New(b.Vartable, b.Dtable, e, interp.Options{}).Run(ops); err != nil {
			return err
		}
		return e.done()
	}
	for i, s := range b.Subsets {
		e := &encoder{w: w, subset: s}
		if err := interp.New(b.Vartable, b.Dtable, e, interp.Options{}).Run(ops); err != nil {
			return errors.Wrapf(err, "subset %d", i)
		}
		if err := e.done(); err != nil {
			return errors.Wrapf(err, "subset %d", i)
		}
	}
	return nil
}

// fieldWriter appends header fields, remembering the first one out of range.
type fieldWriter struct {
	w   *bitio.Writer
	err error
}

func (f *fieldWriter) check(name string, v, max int) {
	if f.err == nil && (v < 0 || v > max) {
		f.err = bufrerr.Errorf(bufrerr.ValueOutOfRange, "%s %d does not fit in the header (max %d)", name, v, max)
	}
}

func (f *fieldWriter) u8(name string, v int) {
	f.check(name, v, 0xff)
	f.w.AppendByte(byte(v))
}

func (f *fieldWriter) u16(name string, v int) {
	f.check(name, v, 0xffff)
	f.w.Append16(v)
}

// begin starts a section with a placeholder length.
func (f *fieldWriter) begin() int {
	start := f.w.BytesWritten()
	f.w.Append24(0)
	return start
}

// end pads the section started at start as its edition requires, and
// writes its length.
func (f *fieldWriter) end(start, edition int) {
	f.w.Flush()
	if edition < 4 && (f.w.BytesWritten()-start)%2 != 0 {
		f.w.AppendByte(0)
	}
	f.w.Set24(start, f.w.BytesWritten()-start)
}

func writeIdentification(f *fieldWriter, b *bulletin.Bulletin) {
	var flags int
	if b.Bufr.OptionalSection != nil {
		flags = optionalSectionIncluded
	}
	f.u8("master table number", b.Bufr.MasterTableNumber)
	switch b.Edition {
	case 4:
		f.u16("centre", b.Bufr.Centre)
		f.u16("subcentre", b.Bufr.Subcentre)
	case 3:
		f.u8("subcentre", b.Bufr.Subcentre)
		f.u8("centre", b.Bufr.Centre)
	case 2:
		f.u16("centre", b.Bufr.Centre)
	}
	f.u8("update sequence", b.Bufr.UpdateSequence)
	f.u8("flags", flags)
	f.u8("category", b.Category)
	if b.Edition == 4 {
		f.u8("subcategory", b.Subcategory)
	}
	f.u8("local subcategory", b.LocalSubcategory)
	f.u8("master table version", b.Bufr.MasterTable)
	f.u8("local table version", b.Bufr.LocalTable)
	if b.Edition == 4 {
		f.u16("year", b.Year)
	} else {
		f.u8("year", b.Year%100)
	}
	f.u8("month", b.Month)
	f.u8("day", b.Day)
	f.u8("hour", b.Hour)
	f.u8("minute", b.Minute)
	if b.Edition == 4 {
		f.u8("second", b.Second)
	}
	f.w.Append(b.Bufr.LocalIdentification)
}
