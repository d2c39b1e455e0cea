package vartable

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/sdifrance/gobufr/bufrerr"
	"github.com/sdifrance/gobufr/units"
)

// DecodeBinary converts a packed BUFR field to its decimal value in Unit and
// Scale. The caller handles the all-ones missing pattern.
//
//	value = (raw + reference) * 10^-scale
func (v *Varinfo) DecodeBinary(raw uint32) (string, error) {
	return v.fromEncoded(int64(raw)+int64(v.BitRef), v.BufrUnit, v.BufrScale)
}

// EncodeBinary converts a decimal value in Unit to its packed BUFR field.
//
//	raw = round(value * 10^scale) - reference
func (v *Varinfo) EncodeBinary(value string) (uint32, error) {
	ival, err := v.toEncoded(value, v.BufrUnit, v.BufrScale)
	if err != nil {
		return 0, err
	}
	raw := ival - int64(v.BitRef)
	if raw < 0 || uint64(raw) > maxRaw(v) {
		return 0, bufrerr.Errorf(bufrerr.ValueOutOfRange,
			"%s: value %s (packed %d) does not fit in %d bits with reference %d",
			v.Code, value, raw, v.BitLen, v.BitRef)
	}
	return uint32(raw), nil
}

// DecodeDecimal converts a CREX integer field to its decimal value in Unit and
// Scale.
func (v *Varinfo) DecodeDecimal(ival int64) (string, error) {
	return v.fromEncoded(ival, v.CrexUnit, v.CrexScale)
}

// EncodeDecimal converts a decimal value in Unit to a CREX integer field.
func (v *Varinfo) EncodeDecimal(value string) (int64, error) {
	ival, err := v.toEncoded(value, v.CrexUnit, v.CrexScale)
	if err != nil {
		return 0, err
	}
	if decimal.NewFromInt(ival).Abs().Cmp(decimal.New(1, int32(v.CrexLen))) >= 0 {
		return 0, bufrerr.Errorf(bufrerr.ValueOutOfRange,
			"%s: value %s does not fit in %d digits", v.Code, value, v.CrexLen)
	}
	return ival, nil
}

func (v *Varinfo) fromEncoded(ival int64, unit string, scale int) (string, error) {
	if units.Same(unit, v.Unit) {
		r, err := Rescale(ival, scale, v.Scale)
		if err != nil {
			return "", errors.Wrapf(err, "decoding %s", v.Code)
		}
		return FormatDecimal(r, v.Scale), nil
	}
	d, err := units.Convert(unit, v.Unit, decimal.New(ival, int32(-scale)).InexactFloat64())
	if err != nil {
		return "", errors.Wrapf(err, "decoding %s", v.Code)
	}
	s, err := FormatFloat(d, v.Scale)
	return s, errors.Wrapf(err, "decoding %s", v.Code)
}

func (v *Varinfo) toEncoded(value string, unit string, scale int) (int64, error) {
	if units.Same(unit, v.Unit) {
		ival, err := ParseDecimal(value, scale)
		if err != nil {
			return 0, bufrerr.Errorf(bufrerr.ValueOutOfRange, "%s: %v", v.Code, err)
		}
		return ival, nil
	}
	d, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, bufrerr.Errorf(bufrerr.ValueOutOfRange, "%s: invalid number %q", v.Code, value)
	}
	d, err = units.Convert(v.Unit, unit, d)
	if err != nil {
		return 0, errors.Wrapf(err, "encoding %s", v.Code)
	}
	ival, err := ScaleFloat(d, scale)
	return ival, errors.Wrapf(err, "encoding %s", v.Code)
}
