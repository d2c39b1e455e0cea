// Package bulletin holds decoded BUFR and CREX messages: the header
// metadata, the data descriptors, and one Subset of values per report.
package bulletin

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/sdifrance/gobufr/dtable"
	"github.com/sdifrance/gobufr/tables"
	"github.com/sdifrance/gobufr/varcode"
	"github.com/sdifrance/gobufr/vartable"
)

// Type tells BUFR and CREX bulletins apart.
type Type int

const (
	// BUFR is the binary format.
	BUFR Type = iota + 1
	// CREX is the character format.
	CREX
)

func (t Type) String() string {
	switch t {
	case BUFR:
		return "BUFR"
	case CREX:
		return "CREX"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// BufrOptions are the header fields specific to BUFR.
type BufrOptions struct {
	// MasterTableNumber is 0 for meteorology.
	MasterTableNumber int
	Centre            int
	Subcentre         int
	UpdateSequence    int
	MasterTable       int
	LocalTable        int
	// Observed is the "observed data" flag of section 3.
	Observed   bool
	Compressed bool
	// SubsetCount is the number of subsets declared in section 3 of a
	// decoded message. Encoding uses len(Subsets) instead.
	SubsetCount int
	// LocalIdentification holds the octets of section 1 that follow the
	// standard fields, without the padding of editions 2 and 3.
	LocalIdentification []byte
	// OptionalSection is the content of section 2 after its 4 octet
	// header, or nil when the message has no section 2.
	OptionalSection []byte
}

// CrexOptions are the header fields specific to CREX.
type CrexOptions struct {
	MasterTable   int
	TableVersion  int
	HasCheckDigit bool
	// Supplementary is the text of the optional section 3, without its
	// framing.
	Supplementary string
}

// Bulletin is a BUFR or CREX message.
type Bulletin struct {
	Type    Type
	Edition int

	Category         int
	Subcategory      int
	LocalSubcategory int

	// Representative time of the data.
	Year, Month, Day, Hour, Minute, Second int

	Bufr BufrOptions
	Crex CrexOptions

	// Descriptors is the unexpanded data descriptor section.
	Descriptors []varcode.Code
	Subsets     []*Subset

	// Tables used to interpret Descriptors, see LoadTables.
	Vartable *vartable.Table
	Dtable   *dtable.Table
}

// TableID returns the identifier of the tables the bulletin needs.
func (b *Bulletin) TableID() string {
	if b.Type == CREX {
		return tables.CrexID(b.Crex.MasterTable, b.Crex.TableVersion)
	}
	return tables.BufrID(b.Bufr.Centre, b.Bufr.Subcentre, b.Bufr.MasterTable, b.Bufr.LocalTable)
}

// LoadTables resolves the variable and expansion tables for the header
// fields currently set.
func (b *Bulletin) LoadTables(l tables.Loader) error {
	id := b.TableID()
	vt, dt, err := l.Load(id)
	if err != nil {
		return errors.Wrapf(err, "loading tables %s", id)
	}
	b.Vartable, b.Dtable = vt, dt
	return nil
}

// NewSubset appends an empty subset and returns it.
func (b *Bulletin) NewSubset() *Subset {
	s := &Subset{}
	b.Subsets = append(b.Subsets, s)
	return s
}

// NewVar returns a missing value for code, described by the bulletin tables.
func (b *Bulletin) NewVar(code varcode.Code) (*Var, error) {
	if b.Vartable == nil {
		return nil, errors.Errorf("no tables loaded")
	}
	info, err := b.Vartable.Query(code)
	if err != nil {
		return nil, err
	}
	return NewVar(info), nil
}

// Dump writes a human readable listing of the bulletin.
func (b *Bulletin) Dump(w io.Writer) {
	fmt.Fprintf(w, "%s edition %d, category %d/%d/%d, %04d-%02d-%02d %02d:%02d:%02d\n",
		b.Type, b.Edition, b.Category, b.Subcategory, b.LocalSubcategory,
		b.Year, b.Month, b.Day, b.Hour, b.Minute, b.Second)
	switch b.Type {
	case BUFR:
		fmt.Fprintf(w, " centre %d/%d, tables %d/%d, update %d, %d subsets, compressed %t\n",
			b.Bufr.Centre, b.Bufr.Subcentre, b.Bufr.MasterTable, b.Bufr.LocalTable,
			b.Bufr.UpdateSequence, b.Bufr.SubsetCount, b.Bufr.Compressed)
		fmt.Fprintf(w, " local identification %d bytes, optional section %d bytes\n",
			len(b.Bufr.LocalIdentification), len(b.Bufr.OptionalSection))
	case CREX:
		fmt.Fprintf(w, " tables %d/%d, check digit %t\n",
			b.Crex.MasterTable, b.Crex.TableVersion, b.Crex.HasCheckDigit)
	}
	fmt.Fprintf(w, " descriptors: %s\n", varcode.NewOpcodes(b.Descriptors))
	for i, s := range b.Subsets {
		fmt.Fprintf(w, "subset %d:\n", i)
		s.Dump(w)
	}
}
