package vartable

import (
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/sdifrance/gobufr/bufrerr"
)

// Numeric values are kept as decimal strings with exactly scale digits after
// the point (no point when scale <= 0). Converting through scaled integers
// instead of floats keeps decode/encode round trips exact.

func places(scale int) int32 {
	if scale < 0 {
		return 0
	}
	return int32(scale)
}

// FormatDecimal formats ival * 10^-scale.
func FormatDecimal(ival int64, scale int) string {
	return decimal.New(ival, int32(-scale)).StringFixed(places(scale))
}

// FormatInt formats i rounded to scale.
func FormatInt(i int64, scale int) string {
	return decimal.NewFromInt(i).Round(int32(scale)).StringFixed(places(scale))
}

// FormatFloat formats f rounded to scale.
func FormatFloat(f float64, scale int) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", bufrerr.Errorf(bufrerr.ValueOutOfRange, "%v is not a number", f)
	}
	return decimal.NewFromFloat(f).Round(int32(scale)).StringFixed(places(scale)), nil
}

// ParseDecimal parses a decimal number and returns it as an integer in units
// of 10^-scale, rounding half away from zero when s has more precision.
func ParseDecimal(s string, scale int) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrapf(err, "invalid decimal %q", s)
	}
	return toUnits(d, scale)
}

// ScaleFloat returns f in units of 10^-scale, rounding half away from zero.
func ScaleFloat(f float64, scale int) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, bufrerr.Errorf(bufrerr.ValueOutOfRange, "%v is not a number", f)
	}
	return toUnits(decimal.NewFromFloat(f), scale)
}

// Rescale converts ival from units of 10^-from to units of 10^-to, rounding
// half away from zero when precision is lost.
func Rescale(ival int64, from, to int) (int64, error) {
	if from == to {
		return ival, nil
	}
	return toUnits(decimal.New(ival, int32(-from)), to)
}

func toUnits(d decimal.Decimal, scale int) (int64, error) {
	n := d.Round(int32(scale)).Shift(int32(scale)).BigInt()
	if !n.IsInt64() {
		return 0, bufrerr.Errorf(bufrerr.ValueOutOfRange, "%s does not fit in 64 bits at scale %d", d, scale)
	}
	return n.Int64(), nil
}
