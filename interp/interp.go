// Package interp walks data descriptor sequences.
//
// The Interpreter expands sequences, iterates replications and tracks the
// state changed by operator descriptors. Reading or writing values is left to
// a Target, so the same walk drives BUFR and CREX, decoding and encoding,
// compressed or not.
package interp

import (
	"github.com/golang/glog"

	"github.com/sdifrance/gobufr/bufrerr"
	"github.com/sdifrance/gobufr/bulletin"
	"github.com/sdifrance/gobufr/dtable"
	"github.com/sdifrance/gobufr/varcode"
	"github.com/sdifrance/gobufr/vartable"
)

// Target reads or writes the values the interpreter walks through.
type Target interface {
	// Element handles one value of info and appends it to, or takes it from,
	// the current subset.
	Element(info *vartable.Varinfo) error

	// Attribute handles one value of info qualifying the element at
	// position pos of the current subset.
	Attribute(info *vartable.Varinfo, pos int) error

	// DelayedCount handles the count of a delayed replication, described by
	// info, and returns it.
	DelayedCount(info *vartable.Varinfo) (int, error)

	// Bitmap handles a data present bitmap introduced by the operator code.
	// countInfo describes its delayed length, or is nil when the length is
	// the fixed length n. bitInfo describes each of its entries. Bitmap
	// returns the bitmap as a string of '+' (present) and '-' (absent), and
	// the position of the bitmap value in the current subset.
	Bitmap(code varcode.Code, countInfo *vartable.Varinfo, n int, bitInfo *vartable.Varinfo) (string, int, error)

	// Reference returns the subset that bitmap positions refer to.
	Reference() *bulletin.Subset
}

// Options change how descriptors are read.
type Options struct {
	// InlineDelayedCount is set when the count of a delayed replication
	// is not announced by a descriptor of its own, as in CREX.
	InlineDelayedCount bool
}

type bitmap struct {
	value   string
	targets []int
	next    int
}

// Interpreter holds the state of one walk over a descriptor sequence. A new
// Interpreter is used for each subset, or once for all subsets of a
// compressed message.
type Interpreter struct {
	vt     *vartable.Table
	dt     *dtable.Table
	target Target
	opts   Options

	widthDelta int
	scaleDelta int

	bitmap *bitmap
	// saved is the bitmap defined by C36000 for reuse by C37000.
	saved *bitmap
}

// New returns an interpreter resolving descriptors with vt and dt.
func New(vt *vartable.Table, dt *dtable.Table, target Target, opts Options) *Interpreter {
	return &Interpreter{vt: vt, dt: dt, target: target, opts: opts}
}

// Run walks ops to the end.
func (in *Interpreter) Run(ops varcode.Opcodes) error {
	for !ops.Empty() {
		code := ops.Head()
		if glog.V(3) {
			glog.Infof("interp: %s (width %+d, scale %+d)", code, in.widthDelta, in.scaleDelta)
		}
		var err error
		switch code.Kind() {
		case varcode.Element:
			err = in.element(code)
			ops = ops.Next()
		case varcode.Replication:
			ops, err = in.replicate(ops)
		case varcode.Modifier:
			ops, err = in.modifier(ops)
		case varcode.Expansion:
			var exp varcode.Opcodes
			if exp, err = in.dt.Query(code); err == nil {
				err = in.Run(exp)
			}
			ops = ops.Next()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// info returns the description of an element, altered by the active width
// and scale changes. Character data, code and flag tables and class 31 are
// never altered.
func (in *Interpreter) info(code varcode.Code) (*vartable.Varinfo, error) {
	base, err := in.vt.Query(code)
	if err != nil {
		return nil, err
	}
	if base.IsString || base.IsTable() || code.X() == 31 {
		return base, nil
	}
	return in.vt.QueryAltered(code, in.widthDelta, in.scaleDelta)
}

func (in *Interpreter) element(code varcode.Code) error {
	info, err := in.info(code)
	if err != nil {
		return err
	}
	if code.X() != 33 || in.bitmap == nil {
		return in.target.Element(info)
	}
	bm := in.bitmap
	if bm.next >= len(bm.targets) {
		return bufrerr.Errorf(bufrerr.BitmapExhausted,
			"%s: bitmap %q has only %d present entries", code, bm.value, len(bm.targets))
	}
	pos := bm.targets[bm.next]
	bm.next++
	return in.target.Attribute(info, pos)
}

// delayedCountInfo returns the description of the count of a delayed
// replication, and ops past its descriptor.
func (in *Interpreter) delayedCountInfo(rep varcode.Code, ops varcode.Opcodes) (*vartable.Varinfo, varcode.Opcodes, error) {
	if in.opts.InlineDelayedCount {
		info, err := in.vt.Query(varcode.DelayedReplicationFactor)
		return info, ops, err
	}
	if ops.Empty() || ops.Head().Kind() != varcode.Element || ops.Head().X() != 31 {
		return nil, ops, bufrerr.Errorf(bufrerr.MalformedFraming,
			"%s: delayed replication is not followed by a count descriptor", rep)
	}
	info, err := in.vt.Query(ops.Head())
	return info, ops.Next(), err
}

func (in *Interpreter) replicate(ops varcode.Opcodes) (varcode.Opcodes, error) {
	rep := ops.Head()
	group, count := rep.X(), rep.Y()
	ops = ops.Next()
	if count == 0 {
		info, rest, err := in.delayedCountInfo(rep, ops)
		if err != nil {
			return rest, err
		}
		ops = rest
		if count, err = in.target.DelayedCount(info); err != nil {
			return ops, err
		}
	}
	if group == 0 || ops.Len() < group {
		return ops, bufrerr.Errorf(bufrerr.MalformedFraming,
			"%s: replicates %d descriptors, %d available", rep, group, ops.Len())
	}
	body := ops.Sub(0, group)
	glog.V(2).Infof("interp: %s repeats %d times: %s", rep, count, body)
	for i := 0; i < count; i++ {
		if err := in.Run(body); err != nil {
			return ops, err
		}
	}
	return ops.Skip(group), nil
}

// delta decodes the YYY of C01YYY and C02YYY.
func delta(y int) int {
	if y == 0 {
		return 0
	}
	return y - 128
}

func (in *Interpreter) modifier(ops varcode.Opcodes) (varcode.Opcodes, error) {
	code := ops.Head()
	switch x, y := code.X(), code.Y(); {
	case x == 1:
		in.widthDelta = delta(y)
	case x == 2:
		in.scaleDelta = delta(y)
	case x == 5:
		info := vartable.NewStringInfo(code, "CHARACTERS INSERTED", y)
		if err := in.target.Element(info); err != nil {
			return ops, err
		}
	case x == 24 && y == 0:
		ops = ops.Next()
		if ops.Empty() || ops.Head().Kind() != varcode.Replication {
			return ops, bufrerr.Errorf(bufrerr.MalformedFraming, "%s is not followed by a replication", code)
		}
		return in.replicate(ops)
	case (x == 22 || x == 36) && y == 0:
		return in.defineBitmap(ops)
	case x == 37 && y == 0:
		if in.saved == nil {
			return ops, bufrerr.Errorf(bufrerr.BitmapExhausted, "%s: no bitmap defined for reuse", code)
		}
		in.saved.next = 0
		in.bitmap = in.saved
	case x == 37 && y == 255:
		in.saved = nil
		in.bitmap = nil
	default:
		return ops, bufrerr.Errorf(bufrerr.UnsupportedModifier, "modifier %s is not supported", code)
	}
	return ops.Next(), nil
}

// defineBitmap handles the bitmap following a C22000 or C36000
// operator: a replication of the data present indicator.
func (in *Interpreter) defineBitmap(ops varcode.Opcodes) (varcode.Opcodes, error) {
	op := ops.Head()
	ops = ops.Next()
	if ops.Empty() || ops.Head().Kind() != varcode.Replication || ops.Head().X() != 1 {
		return ops, bufrerr.Errorf(bufrerr.UnsupportedModifier, "%s is not followed by a bitmap replication", op)
	}
	rep := ops.Head()
	n := rep.Y()
	ops = ops.Next()
	var countInfo *vartable.Varinfo
	if n == 0 {
		var err error
		if countInfo, ops, err = in.delayedCountInfo(rep, ops); err != nil {
			return ops, err
		}
	}
	if ops.Empty() || ops.Head() != varcode.DataPresentIndicator {
		return ops, bufrerr.Errorf(bufrerr.UnsupportedModifier, "%s: bitmap replication does not repeat %s", op, varcode.DataPresentIndicator)
	}
	bitInfo, err := in.vt.Query(varcode.DataPresentIndicator)
	if err != nil {
		return ops, err
	}
	ops = ops.Next()

	value, anchor, err := in.target.Bitmap(op, countInfo, n, bitInfo)
	if err != nil {
		return ops, err
	}
	targets, err := bitmapTargets(in.target.Reference(), anchor, value)
	if err != nil {
		return ops, err
	}
	glog.V(2).Infof("interp: %s bitmap %s at %d, targets %v", op, value, anchor, targets)
	in.bitmap = &bitmap{value: value, targets: targets}
	if op.X() == 36 {
		in.saved = in.bitmap
	}
	return ops, nil
}

// bitmapTargets maps the present entries of a bitmap to subset positions.
// The bitmap covers the last len(value) elements before position anchor;
// operator values such as earlier bitmaps are not counted.
func bitmapTargets(ref *bulletin.Subset, anchor int, value string) ([]int, error) {
	if anchor > ref.Len() {
		anchor = ref.Len()
	}
	elems := make([]int, len(value))
	n := len(value)
	for i := anchor - 1; i >= 0 && n > 0; i-- {
		if ref.At(i).Code().Kind() == varcode.Element {
			n--
			elems[n] = i
		}
	}
	if n > 0 {
		return nil, bufrerr.Errorf(bufrerr.BitmapExhausted,
			"bitmap of %d entries covers only %d elements", len(value), len(value)-n)
	}
	var targets []int
	for i := 0; i < len(value); i++ {
		if value[i] == '+' {
			targets = append(targets, elems[i])
		}
	}
	return targets, nil
}
