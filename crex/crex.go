// Package crex reads and writes messages in the WMO FM 95 CREX character
// format, edition 1.
//
// A message is text made of these sections:
//
//	0  "CREX++"
//	1  "T" master table, edition, table version (2 digits each),
//	   "A" data category (3 digits), the data descriptors, and "E" when
//	   values carry check digits; ended by "++"
//	2  the data: fields separated by spaces, subsets ended by "+" and the
//	   last one by "++"
//	3  optional, "SUPP" free text ended by "++"
//	4  "7777"
//
// A field is an optional check digit, an optional minus sign, and as many
// characters as the variable has CREX digits. Missing values are written as
// "/". Delayed replication counts are 4 digit fields with no descriptor of
// their own.
package crex

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/sdifrance/gobufr/bufrerr"
	"github.com/sdifrance/gobufr/bulletin"
	"github.com/sdifrance/gobufr/interp"
	"github.com/sdifrance/gobufr/tables"
	"github.com/sdifrance/gobufr/varcode"
)

const (
	signature  = "CREX++"
	sectionEnd = "++"
	subsetEnd  = "+"
	suppMarker = "SUPP"
	endMarker  = "7777"
	eol        = "\r\r\n"

	// Edition is the only CREX edition supported.
	Edition = 1
)

var opts = interp.Options{InlineDelayedCount: true}

// number parses a field of digits only.
func number(tok, name string) (int, error) {
	for i := 0; i < len(tok); i++ {
		if tok[i] < '0' || tok[i] > '9' {
			return 0, bufrerr.Errorf(bufrerr.MalformedFraming, "invalid %s %q", name, tok)
		}
	}
	return strconv.Atoi(tok)
}

// parseHeader reads sections 0 and 1.
func parseHeader(s *scanner) (*bulletin.Bulletin, error) {
	if err := s.expect(signature); err != nil {
		return nil, err
	}
	b := &bulletin.Bulletin{Type: bulletin.CREX}

	tok := s.token()
	if len(tok) != 7 || tok[0] != 'T' {
		return nil, bufrerr.Errorf(bufrerr.MalformedFraming, "found %q, expected table indicator Tttnnvv", tok)
	}
	var err error
	if b.Crex.MasterTable, err = number(tok[1:3], "master table"); err != nil {
		return nil, err
	}
	if b.Edition, err = number(tok[3:5], "edition"); err != nil {
		return nil, err
	}
	if b.Crex.TableVersion, err = number(tok[5:7], "table version"); err != nil {
		return nil, err
	}
	if b.Edition != Edition {
		return nil, bufrerr.Errorf(bufrerr.MalformedFraming, "CREX edition %d is not supported", b.Edition)
	}

	tok = s.token()
	if len(tok) != 4 || tok[0] != 'A' {
		return nil, bufrerr.Errorf(bufrerr.MalformedFraming, "found %q, expected data category Annn", tok)
	}
	if b.Category, err = number(tok[1:], "data category"); err != nil {
		return nil, err
	}

	for {
		tok := s.token()
		if tok == "" {
			return nil, bufrerr.Errorf(bufrerr.TruncatedInput, "descriptor section is not terminated")
		}
		last := strings.HasSuffix(tok, sectionEnd)
		tok = strings.TrimSuffix(tok, sectionEnd)
		switch tok {
		case "":
		case "E":
			b.Crex.HasCheckDigit = true
		default:
			code, err := varcode.Parse(tok)
			if err != nil {
				return nil, bufrerr.Errorf(bufrerr.MalformedFraming, "invalid descriptor %q", tok)
			}
			b.Descriptors = append(b.Descriptors, code)
		}
		if last {
			break
		}
	}
	if len(b.Descriptors) == 0 {
		return nil, bufrerr.Errorf(bufrerr.MalformedFraming, "message has no data descriptors")
	}
	return b, nil
}

// DecodeHeader decodes the sections of a message up to the data
// descriptors, without reading the data or loading tables.
func DecodeHeader(data []byte) (*bulletin.Bulletin, error) {
	s := &scanner{data: string(data)}
	b, err := parseHeader(s)
	if err != nil {
		return nil, bufrerr.WithOffset(err, s.pos)
	}
	return b, nil
}

// Decode decodes a whole message, loading its tables from l.
func Decode(data []byte, l tables.Loader) (*bulletin.Bulletin, error) {
	s := &scanner{data: string(data)}
	b, err := parseHeader(s)
	if err != nil {
		return nil, bufrerr.WithOffset(err, s.pos)
	}
	glog.V(1).Infof("CREX edition %d, %d bytes, tables %s", b.Edition, len(data), b.TableID())
	if err := b.LoadTables(l); err != nil {
		return nil, err
	}

	ops := varcode.NewOpcodes(b.Descriptors)
	for i := 0; ; i++ {
		d := &decoder{s: s, subset: b.NewSubset(), checkDigit: b.Crex.HasCheckDigit}
		if err := interp.New(b.Vartable, b.Dtable, d, opts).Run(ops); err != nil {
			return nil, errors.Wrapf(bufrerr.WithOffset(err, s.pos), "decoding subset %d", i)
		}
		s.skipSpace()
		if s.hasPrefix(sectionEnd) {
			s.pos += len(sectionEnd)
			break
		}
		if !s.hasPrefix(subsetEnd) {
			return nil, bufrerr.WithOffset(bufrerr.Errorf(bufrerr.MalformedFraming,
				"subset %d is not terminated by %q or %q", i, subsetEnd, sectionEnd), s.pos)
		}
		s.pos += len(subsetEnd)
	}

	s.skipSpace()
	if s.hasPrefix(suppMarker) {
		s.pos += len(suppMarker)
		text, err := s.until(sectionEnd)
		if err != nil {
			return nil, bufrerr.WithOffset(err, s.pos)
		}
		b.Crex.Supplementary = strings.TrimSpace(text)
	}
	if err := s.expect(endMarker); err != nil {
		return nil, bufrerr.WithOffset(err, s.pos)
	}
	if s.skipSpace(); !s.atEnd() {
		glog.Warningf("CREX message has %d characters after %s", len(s.data)-s.pos, endMarker)
	}
	return b, nil
}

// Encode encodes b, which must have its tables loaded and at least one
// subset.
func Encode(b *bulletin.Bulletin) ([]byte, error) {
	if b.Type != bulletin.CREX {
		return nil, errors.Errorf("cannot encode a %s bulletin as CREX", b.Type)
	}
	if b.Vartable == nil || b.Dtable == nil {
		return nil, errors.New("bulletin has no tables loaded")
	}
	if b.Edition != Edition {
		return nil, bufrerr.Errorf(bufrerr.MalformedFraming, "CREX edition %d is not supported", b.Edition)
	}
	if len(b.Subsets) == 0 {
		return nil, bufrerr.Errorf(bufrerr.SubsetCountMismatch, "CREX messages need at least one subset")
	}
	for _, f := range []struct {
		name   string
		v, max int
	}{
		{"master table", b.Crex.MasterTable, 99},
		{"table version", b.Crex.TableVersion, 99},
		{"data category", b.Category, 999},
	} {
		if f.v < 0 || f.v > f.max {
			return nil, bufrerr.Errorf(bufrerr.ValueOutOfRange, "%s %d does not fit in the header (max %d)", f.name, f.v, f.max)
		}
	}
	if strings.Contains(b.Crex.Supplementary, sectionEnd) {
		return nil, bufrerr.Errorf(bufrerr.ValueOutOfRange, "supplementary section contains %q", sectionEnd)
	}

	var sb strings.Builder
	sb.WriteString(signature + eol)
	fmt.Fprintf(&sb, "T%02d%02d%02d A%03d", b.Crex.MasterTable, b.Edition, b.Crex.TableVersion, b.Category)
	for _, code := range b.Descriptors {
		sb.WriteString(" " + code.String())
	}
	if b.Crex.HasCheckDigit {
		sb.WriteString(" E")
	}
	sb.WriteString(sectionEnd + eol)

	ops := varcode.NewOpcodes(b.Descriptors)
	for i, subset := range b.Subsets {
		e := &encoder{sb: &sb, subset: subset, checkDigit: b.Crex.HasCheckDigit}
		if err := interp.New(b.Vartable, b.Dtable, e, opts).Run(ops); err != nil {
			return nil, errors.Wrapf(bufrerr.WithOffset(err, sb.Len()), "encoding subset %d", i)
		}
		if err := e.done(); err != nil {
			return nil, errors.Wrapf(err, "encoding subset %d", i)
		}
		if i == len(b.Subsets)-1 {
			sb.WriteString(sectionEnd + eol)
		} else {
			sb.WriteString(subsetEnd + eol)
		}
	}
	if b.Crex.Supplementary != "" {
		sb.WriteString(suppMarker + " " + b.Crex.Supplementary + sectionEnd + eol)
	}
	sb.WriteString(endMarker + eol)
	glog.V(1).Infof("encoded CREX, %d bytes, %d subsets", sb.Len(), len(b.Subsets))
	return []byte(sb.String()), nil
}
