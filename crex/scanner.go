package crex

import (
	"strings"

	"github.com/sdifrance/gobufr/bufrerr"
)

// scanner walks the text of a CREX message. Offsets are character offsets
// from the start of the message.
type scanner struct {
	data string
	pos  int
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.data) && isSpace(s.data[s.pos]) {
		s.pos++
	}
}

func (s *scanner) atEnd() bool {
	return s.pos >= len(s.data)
}

// hasPrefix reports whether the text at the current position starts with p.
func (s *scanner) hasPrefix(p string) bool {
	return strings.HasPrefix(s.data[s.pos:], p)
}

// expect skips whitespace and consumes tok.
func (s *scanner) expect(tok string) error {
	s.skipSpace()
	if !s.hasPrefix(tok) {
		got := s.data[s.pos:min(s.pos+len(tok), len(s.data))]
		return bufrerr.Errorf(bufrerr.MalformedFraming, "found %q, expected %q", got, tok)
	}
	s.pos += len(tok)
	return nil
}

// token skips whitespace and returns the characters up to the next
// whitespace.
func (s *scanner) token() string {
	s.skipSpace()
	start := s.pos
	for s.pos < len(s.data) && !isSpace(s.data[s.pos]) {
		s.pos++
	}
	return s.data[start:s.pos]
}

// next returns the next n characters.
func (s *scanner) next(n int) (string, error) {
	if s.pos+n > len(s.data) {
		return "", bufrerr.Errorf(bufrerr.TruncatedInput, "end of message reading %d characters", n)
	}
	out := s.data[s.pos : s.pos+n]
	s.pos += n
	return out, nil
}

// until consumes text up to sep, and sep itself, returning the text.
func (s *scanner) until(sep string) (string, error) {
	i := strings.Index(s.data[s.pos:], sep)
	if i < 0 {
		return "", bufrerr.Errorf(bufrerr.MalformedFraming, "%q not found", sep)
	}
	out := s.data[s.pos : s.pos+i]
	s.pos += i + len(sep)
	return out, nil
}
