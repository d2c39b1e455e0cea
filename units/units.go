// Package units converts physical values between the units found in BUFR and
// CREX variable tables.
package units

import (
	"math"
	"strings"

	"github.com/sdifrance/gobufr/bufrerr"
)

type conversion struct {
	factor, offset float64
}

// canonical names for unit spellings found in tables.
var aliases = map[string]string{
	"K":        "K",
	"C":        "C",
	"DEGREE C": "C",
	"DEGC":     "C",
	"PA":       "Pa",
	"HPA":      "hPa",
	"M/S":      "m/s",
	"MS/1":     "m/s",
	"M S-1":    "m/s",
	"KNOT":     "knot",
	"KNOTS":    "knot",
	"KT":       "knot",
	"M":        "m",
	"FT":       "ft",
	"KM":       "km",
	"DEGREE":   "deg",
	"DEGREES":  "deg",
	"RAD":      "rad",
	"S":        "s",
	"MINUTE":   "min",
	"HOUR":     "h",
	"KG M-2":   "kg/m2",
	"KG/M**2":  "kg/m2",
	"MM":       "mm",
	"%":        "%",
	"1":        "1",
	"PERCENT":  "%",
}

// table[from][to] holds value_to = value_from*factor + offset.
var table = map[string]map[string]conversion{
	"K":     {"C": {1, -273.15}},
	"C":     {"K": {1, 273.15}},
	"Pa":    {"hPa": {0.01, 0}},
	"hPa":   {"Pa": {100, 0}},
	"m/s":   {"knot": {3600.0 / 1852.0, 0}},
	"knot":  {"m/s": {1852.0 / 3600.0, 0}},
	"m":     {"ft": {1 / 0.3048, 0}, "km": {0.001, 0}},
	"ft":    {"m": {0.3048, 0}},
	"km":    {"m": {1000, 0}},
	"deg":   {"rad": {math.Pi / 180, 0}},
	"rad":   {"deg": {180 / math.Pi, 0}},
	"s":     {"min": {1.0 / 60, 0}, "h": {1.0 / 3600, 0}},
	"min":   {"s": {60, 0}},
	"h":     {"s": {3600, 0}},
	"kg/m2": {"mm": {1, 0}},
	"mm":    {"kg/m2": {1, 0}},
	"%":     {"1": {0.01, 0}},
	"1":     {"%": {100, 0}},
}

func canonical(unit string) string {
	u := strings.ToUpper(strings.TrimSpace(unit))
	if c, ok := aliases[u]; ok {
		return c
	}
	return u
}

// Convert converts value from unit from to unit to. Identical units, and
// units spelled differently but meaning the same, convert to themselves.
func Convert(from, to string, value float64) (float64, error) {
	if from == to {
		return value, nil
	}
	cf, ct := canonical(from), canonical(to)
	if cf == ct {
		return value, nil
	}
	if c, ok := table[cf][ct]; ok {
		return value*c.factor + c.offset, nil
	}
	return 0, bufrerr.Errorf(bufrerr.UnknownUnit, "no conversion from %q to %q", from, to)
}

// Same reports whether two unit spellings denote the same unit.
func Same(a, b string) bool {
	return a == b || canonical(a) == canonical(b)
}
