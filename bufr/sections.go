package bufr

import (
	"github.com/sdifrance/gobufr/bitio"
	"github.com/sdifrance/gobufr/bufrerr"
	"github.com/sdifrance/gobufr/bulletin"
	"github.com/sdifrance/gobufr/varcode"
)

// Flag bits of section 1 and section 3.
const (
	optionalSectionIncluded = 1 << 7
	observedData            = 1 << 7
	compressedData          = 1 << 6
)

// message holds the sections of a BUFR message once framing is checked.
type message struct {
	edition int
	length  int

	// Content of section 4 after its 4 octet header, and its offset in the
	// message.
	data       []byte
	dataOffset int
}

type indicatorSection struct {
	messageLength int
	edition       int
}

func (s *indicatorSection) parseBytes(data []byte) (int, error) {
	/*
		Octets	Content
		1-4	"BUFR" (CCITT IA5)
		5-7	Total length of the message, in octets
		8	BUFR edition number
	*/
	if len(data) < 8 {
		return 0, bufrerr.Errorf(bufrerr.TruncatedInput, "BUFR message must be at least 8 bytes long, got %d", len(data))
	}
	if got, want := string(data[0:4]), "BUFR"; got != want {
		return 0, bufrerr.Errorf(bufrerr.MalformedFraming, "first four bytes = %q, want %q", got, want)
	}
	s.messageLength = bitio.Get24(data[4:7])
	s.edition = int(data[7])
	switch s.edition {
	case 2, 3, 4:
	default:
		return 0, bufrerr.Errorf(bufrerr.MalformedFraming, "BUFR edition %d is not supported", s.edition)
	}
	if s.messageLength < 8 {
		return 0, bufrerr.Errorf(bufrerr.MalformedFraming, "message length %d is too short", s.messageLength)
	}
	if s.messageLength > len(data) {
		return 0, bufrerr.Errorf(bufrerr.TruncatedInput, "message length is %d, but only %d bytes supplied", s.messageLength, len(data))
	}
	return 8, nil
}

// section returns the section starting data, checking its length field.
func section(data []byte, num, minLen int) ([]byte, error) {
	if len(data) < 3 {
		return nil, bufrerr.Errorf(bufrerr.TruncatedInput, "section %d: no room for its length", num)
	}
	n := bitio.Get24(data)
	if n < minLen {
		return nil, bufrerr.Errorf(bufrerr.MalformedFraming, "section %d claims length %d, minimum is %d", num, n, minLen)
	}
	if n > len(data) {
		return nil, bufrerr.Errorf(bufrerr.MalformedFraming, "section %d claims its length %d is greater than data size %d", num, n, len(data))
	}
	return data[:n], nil
}

// yearOfCentury maps the 2 digit year of editions 2 and 3.
func yearOfCentury(yy int) int {
	if yy <= 50 {
		return 2000 + yy
	}
	return 1900 + yy
}

// parseIdentification decodes section 1 into b and reports whether
// section 2 follows.
func parseIdentification(b *bulletin.Bulletin, data []byte) (int, bool, error) {
	if b.Edition == 4 {
		/*
			Octets	Content
			1-3	Length of section
			4	BUFR master table
			5-6	Originating centre
			7-8	Originating sub-centre
			9	Update sequence number
			10	Flags (bit 1: section 2 included)
			11	Data category (table A)
			12	International data sub-category
			13	Local sub-category
			14	Version number of master table
			15	Version number of local tables
			16-17	Year (4 digits)
			18-22	Month, day, hour, minute, second
			23-	Reserved for local use
		*/
		s, err := section(data, 1, 22)
		if err != nil {
			return 0, false, err
		}
		b.Bufr.MasterTableNumber = int(s[3])
		b.Bufr.Centre = bitio.Get16(s[4:])
		b.Bufr.Subcentre = bitio.Get16(s[6:])
		b.Bufr.UpdateSequence = int(s[8])
		b.Category = int(s[10])
		b.Subcategory = int(s[11])
		b.LocalSubcategory = int(s[12])
		b.Bufr.MasterTable = int(s[13])
		b.Bufr.LocalTable = int(s[14])
		b.Year = bitio.Get16(s[15:])
		b.Month, b.Day = int(s[17]), int(s[18])
		b.Hour, b.Minute, b.Second = int(s[19]), int(s[20]), int(s[21])
		b.Bufr.LocalIdentification = append([]byte(nil), s[22:]...)
		return len(s), s[9]&optionalSectionIncluded != 0, nil
	}

	/*
		Octets	Content
		1-3	Length of section
		4	BUFR master table
		5	Originating sub-centre (edition 3); 5-6 originating centre (edition 2)
		6	Originating centre (edition 3)
		7	Update sequence number
		8	Flags (bit 1: section 2 included)
		9	Data category (table A)
		10	Data sub-category (local)
		11	Version number of master table
		12	Version number of local tables
		13-17	Year of century, month, day, hour, minute
		18-	Reserved for local use, padding to an even length
	*/
	s, err := section(data, 1, 17)
	if err != nil {
		return 0, false, err
	}
	b.Bufr.MasterTableNumber = int(s[3])
	if b.Edition == 3 {
		b.Bufr.Subcentre = int(s[4])
		b.Bufr.Centre = int(s[5])
	} else {
		b.Bufr.Centre = bitio.Get16(s[4:])
	}
	b.Bufr.UpdateSequence = int(s[6])
	b.Category = int(s[8])
	b.Subcategory = 255
	b.LocalSubcategory = int(s[9])
	b.Bufr.MasterTable = int(s[10])
	b.Bufr.LocalTable = int(s[11])
	b.Year = yearOfCentury(int(s[12]))
	b.Month, b.Day = int(s[13]), int(s[14])
	b.Hour, b.Minute = int(s[15]), int(s[16])
	// A zero last octet of an even length section is taken as padding.
	// Either way the section is written back the same.
	local := s[17:]
	if len(s)%2 == 0 && len(local) > 0 && local[len(local)-1] == 0 {
		local = local[:len(local)-1]
	}
	b.Bufr.LocalIdentification = append([]byte(nil), local...)
	return len(s), s[7]&optionalSectionIncluded != 0, nil
}

func parseDataDescription(b *bulletin.Bulletin, data []byte) (int, error) {
	/*
		Octets	Content
		1-3	Length of section
		4	Reserved
		5-6	Number of data subsets
		7	Flags (bit 1: observed data, bit 2: compressed data)
		8-	Data descriptors, 2 octets each
	*/
	s, err := section(data, 3, 7)
	if err != nil {
		return 0, err
	}
	b.Bufr.SubsetCount = bitio.Get16(s[4:])
	b.Bufr.Observed = s[6]&observedData != 0
	b.Bufr.Compressed = s[6]&compressedData != 0
	n := (len(s) - 7) / 2
	b.Descriptors = make([]varcode.Code, n)
	for i := range b.Descriptors {
		b.Descriptors[i] = varcode.Code(bitio.Get16(s[7+2*i:]))
	}
	return len(s), nil
}

// parse checks the framing of a BUFR message and decodes its header into a
// new bulletin.
func parse(data []byte) (*bulletin.Bulletin, *message, error) {
	sec0 := &indicatorSection{}
	pos, err := sec0.parseBytes(data)
	if err != nil {
		return nil, nil, bufrerr.WithOffset(err, 0)
	}
	data = data[:sec0.messageLength]
	b := &bulletin.Bulletin{Type: bulletin.BUFR, Edition: sec0.edition}
	m := &message{edition: sec0.edition, length: sec0.messageLength}

	n, hasOptional, err := parseIdentification(b, data[pos:])
	if err != nil {
		return nil, nil, bufrerr.WithOffset(err, pos)
	}
	pos += n

	if hasOptional {
		s, err := section(data[pos:], 2, 4)
		if err != nil {
			return nil, nil, bufrerr.WithOffset(err, pos)
		}
		b.Bufr.OptionalSection = append([]byte{}, s[4:]...)
		pos += len(s)
	}

	n, err = parseDataDescription(b, data[pos:])
	if err != nil {
		return nil, nil, bufrerr.WithOffset(err, pos)
	}
	pos += n

	s, err := section(data[pos:], 4, 4)
	if err != nil {
		return nil, nil, bufrerr.WithOffset(err, pos)
	}
	m.data = s[4:]
	m.dataOffset = pos + 4
	pos += len(s)

	if got, want := string(data[pos:min(pos+4, len(data))]), "7777"; got != want {
		return nil, nil, bufrerr.WithOffset(bufrerr.Errorf(bufrerr.MalformedFraming, "end section = %q, want %q", got, want), pos)
	}
	pos += 4
	if pos != len(data) {
		return nil, nil, bufrerr.WithOffset(bufrerr.Errorf(bufrerr.MalformedFraming,
			"sections end at byte %d, expected to end at %d based on message length in header", pos, len(data)), pos)
	}
	return b, m, nil
}
