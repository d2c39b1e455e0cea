package vartable

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdifrance/gobufr/bufrerr"
)

func TestFormatDecimal(t *testing.T) {
	tests := []struct {
		ival  int64
		scale int
		want  string
	}{
		{0, 0, "0"},
		{27315, 2, "273.15"},
		{5, 2, "0.05"},
		{-5, 2, "-0.05"},
		{-12345, 1, "-1234.5"},
		{12, -2, "1200"},
		{0, -2, "0"},
		{0, 3, "0.000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDecimal(tt.ival, tt.scale))
	}
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in    string
		scale int
		want  int64
	}{
		{"273.15", 2, 27315},
		{"273.15", 1, 2732},
		{"273.14", 1, 2731},
		{"-0.05", 2, -5},
		{"12", 2, 1200},
		{".5", 1, 5},
		{"1200", -2, 12},
		{"1250", -2, 13},
		{"49", -2, 0},
		{"50", -2, 1},
		{"1.5e2", 0, 150},
		{"+7", 0, 7},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDecimal(tt.in, tt.scale)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	for _, bad := range []string{"", "abc", "1.2.3", "-", "."} {
		_, err := ParseDecimal(bad, 0)
		assert.Error(t, err, bad)
	}
}

func TestRescale(t *testing.T) {
	for _, tt := range []struct {
		ival     int64
		from, to int
		want     int64
	}{
		{123, 0, 2, 12300},
		{1234, 2, 0, 12},
		{1250, 2, 0, 13},
		{-1250, 2, 0, -13},
		{7, 1, 1, 7},
		{5, 0, -1, 1},
		{4, 0, -1, 0},
		{123, 30, 0, 0},
		{1, -3, 0, 1000},
	} {
		got, err := Rescale(tt.ival, tt.from, tt.to)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%d from %d to %d", tt.ival, tt.from, tt.to)
	}

	_, err := Rescale(1, 0, 19)
	assert.True(t, bufrerr.Is(err, bufrerr.ValueOutOfRange), "%v", err)
	_, err = Rescale(-5, -20, 0)
	assert.True(t, bufrerr.Is(err, bufrerr.ValueOutOfRange), "%v", err)
	_, err = ParseDecimal("1e30", 0)
	assert.True(t, bufrerr.Is(err, bufrerr.ValueOutOfRange), "%v", err)
}

func TestScaleFloat(t *testing.T) {
	got, err := ScaleFloat(1.005, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(101), got)
	got, err = ScaleFloat(-2.5, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), got)

	for _, f := range []float64{math.NaN(), math.Inf(1), 1e300} {
		_, err := ScaleFloat(f, 2)
		assert.True(t, bufrerr.Is(err, bufrerr.ValueOutOfRange), "%v", f)
	}
}

func TestFormatRounded(t *testing.T) {
	assert.Equal(t, "1230", FormatInt(1234, -1))
	assert.Equal(t, "-1240", FormatInt(-1235, -1))
	assert.Equal(t, "280.00", FormatInt(280, 2))

	s, err := FormatFloat(273.149, 2)
	require.NoError(t, err)
	assert.Equal(t, "273.15", s)
	_, err = FormatFloat(math.Inf(-1), 2)
	assert.Error(t, err)
}
