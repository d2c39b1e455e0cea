// Package bufrerr defines the failure kinds reported by the BUFR and CREX
// codecs.
//
// Every codec failure is fatal for the decode or encode call in progress. The
// error travels up wrapped with context (see github.com/pkg/errors) and the
// orchestration layer stamps the byte or character offset where it happened.
package bufrerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a codec failure.
type Kind int

const (
	// TruncatedInput means the bit or byte source ran out mid-read.
	TruncatedInput Kind = iota + 1
	// UnknownVariable means a B descriptor is not in the variable table.
	UnknownVariable
	// UnknownExpansion means a D descriptor is not in the expansion table.
	UnknownExpansion
	// UnsupportedModifier means a C operator the interpreter does not implement.
	UnsupportedModifier
	// InconsistentReplicationCount means compressed subsets disagree on a
	// delayed replication factor.
	InconsistentReplicationCount
	// BitmapExhausted means a data present bitmap cursor ran past its bound.
	BitmapExhausted
	// ValueOutOfRange means a value does not fit its field.
	ValueOutOfRange
	// MalformedFraming covers bad signatures, terminators and length fields.
	MalformedFraming
	// SubsetCountMismatch means the subsets found disagree with the header.
	SubsetCountMismatch
	// SubsetMismatch means subset contents do not follow the descriptors.
	SubsetMismatch
	// UnknownUnit means a unit conversion is not available.
	UnknownUnit
)

var kindNames = map[Kind]string{
	TruncatedInput:               "truncated input",
	UnknownVariable:              "unknown variable",
	UnknownExpansion:             "unknown expansion",
	UnsupportedModifier:          "unsupported modifier",
	InconsistentReplicationCount: "inconsistent replication count",
	BitmapExhausted:              "bitmap exhausted",
	ValueOutOfRange:              "value out of range",
	MalformedFraming:             "malformed framing",
	SubsetCountMismatch:          "subset count mismatch",
	SubsetMismatch:               "subset mismatch",
	UnknownUnit:                  "unknown unit",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a codec failure of a given Kind.
type Error struct {
	Kind Kind
	// Offset is the byte (BUFR) or character (CREX) offset in the message
	// where the failure was detected, or -1 when unknown.
	Offset int
	Msg    string
}

func (e *Error) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s at offset %d: %s", e.Kind, e.Offset, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Errorf creates an *Error of the given kind with an unknown offset.
func Errorf(kind Kind, format string, args ...interface{}) error {
	return errors.WithStack(&Error{Kind: kind, Offset: -1, Msg: fmt.Sprintf(format, args...)})
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err is, or wraps, an *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// KindOf returns the kind of err, or 0 if err is not a codec error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return 0
}

// WithOffset records offset on the *Error wrapped by err if it does not have
// one yet. Errors that are not codec errors are returned wrapped with the
// offset in their message.
func WithOffset(err error, offset int) error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		if e.Offset < 0 {
			e.Offset = offset
		}
		return err
	}
	return errors.Wrapf(err, "at offset %d", offset)
}
