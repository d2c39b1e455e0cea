package bulletin

import (
	"bytes"

	"github.com/golang/glog"
)

// Diff compares two bulletins and returns the number of differences found.
// Each difference is logged.
func Diff(a, b *Bulletin) int {
	d := &differ{}
	d.check(a.Type == b.Type, "type %s != %s", a.Type, b.Type)
	d.check(a.Edition == b.Edition, "edition %d != %d", a.Edition, b.Edition)
	d.check(a.Category == b.Category, "category %d != %d", a.Category, b.Category)
	d.check(a.Subcategory == b.Subcategory, "subcategory %d != %d", a.Subcategory, b.Subcategory)
	d.check(a.LocalSubcategory == b.LocalSubcategory, "local subcategory %d != %d", a.LocalSubcategory, b.LocalSubcategory)
	d.check(a.Year == b.Year && a.Month == b.Month && a.Day == b.Day &&
		a.Hour == b.Hour && a.Minute == b.Minute && a.Second == b.Second,
		"reference time %04d-%02d-%02d %02d:%02d:%02d != %04d-%02d-%02d %02d:%02d:%02d",
		a.Year, a.Month, a.Day, a.Hour, a.Minute, a.Second,
		b.Year, b.Month, b.Day, b.Hour, b.Minute, b.Second)

	switch a.Type {
	case BUFR:
		ao, bo := &a.Bufr, &b.Bufr
		d.check(ao.MasterTableNumber == bo.MasterTableNumber, "master table number %d != %d", ao.MasterTableNumber, bo.MasterTableNumber)
		d.check(ao.Centre == bo.Centre, "centre %d != %d", ao.Centre, bo.Centre)
		d.check(ao.Subcentre == bo.Subcentre, "subcentre %d != %d", ao.Subcentre, bo.Subcentre)
		d.check(ao.UpdateSequence == bo.UpdateSequence, "update sequence %d != %d", ao.UpdateSequence, bo.UpdateSequence)
		d.check(ao.MasterTable == bo.MasterTable, "master table %d != %d", ao.MasterTable, bo.MasterTable)
		d.check(ao.LocalTable == bo.LocalTable, "local table %d != %d", ao.LocalTable, bo.LocalTable)
		d.check(ao.Observed == bo.Observed, "observed flag %t != %t", ao.Observed, bo.Observed)
		d.check(ao.Compressed == bo.Compressed, "compression %t != %t", ao.Compressed, bo.Compressed)
		d.check(bytes.Equal(ao.LocalIdentification, bo.LocalIdentification), "local identification % x != % x", ao.LocalIdentification, bo.LocalIdentification)
		d.check(bytes.Equal(ao.OptionalSection, bo.OptionalSection), "optional sections differ")
	case CREX:
		ao, bo := &a.Crex, &b.Crex
		d.check(ao.MasterTable == bo.MasterTable, "master table %d != %d", ao.MasterTable, bo.MasterTable)
		d.check(ao.TableVersion == bo.TableVersion, "table version %d != %d", ao.TableVersion, bo.TableVersion)
		d.check(ao.HasCheckDigit == bo.HasCheckDigit, "check digit %t != %t", ao.HasCheckDigit, bo.HasCheckDigit)
		d.check(ao.Supplementary == bo.Supplementary, "supplementary section %q != %q", ao.Supplementary, bo.Supplementary)
	}

	if d.check(len(a.Descriptors) == len(b.Descriptors), "descriptor count %d != %d", len(a.Descriptors), len(b.Descriptors)) {
		for i := range a.Descriptors {
			d.check(a.Descriptors[i] == b.Descriptors[i], "descriptor %d: %s != %s", i, a.Descriptors[i], b.Descriptors[i])
		}
	}

	if d.check(len(a.Subsets) == len(b.Subsets), "subset count %d != %d", len(a.Subsets), len(b.Subsets)) {
		for i := range a.Subsets {
			d.subset(i, a.Subsets[i], b.Subsets[i])
		}
	}
	return d.count
}

type differ struct {
	count int
}

// check logs and counts a difference when ok is false. It returns ok.
func (d *differ) check(ok bool, format string, args ...interface{}) bool {
	if !ok {
		d.count++
		glog.Infof("diff: "+format, args...)
	}
	return ok
}

func (d *differ) subset(idx int, a, b *Subset) {
	if !d.check(a.Len() == b.Len(), "subset %d: %d values != %d values", idx, a.Len(), b.Len()) {
		return
	}
	for i := 0; i < a.Len(); i++ {
		va, vb := a.At(i), b.At(i)
		if va.Equals(vb) {
			continue
		}
		d.check(false, "subset %d value %d: %s != %s", idx, i, va, vb)
	}
}
