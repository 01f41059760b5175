package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"", 0},
		{"180", 180},
		{"180.00", 180},
		{"1,234.56", 1234.56},
		{"1.234,56", 1234.56},
		{"1,23", 1.23},
		{"1.234", 1234},
		{"1,234", 1234},
		{"12.5", 12.5},
		{"S/ 1.500,00", 1500},
		{"-45,90", -45.9},
		{"abc", 0},
	}
	for _, tc := range cases {
		require.InDelta(t, tc.want, ParseAmount(tc.in), 0.0001, "input %q", tc.in)
	}
}

func TestParseDate(t *testing.T) {
	require.Equal(t, time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC), ParseDate("07/03/2024"))
	require.Equal(t, time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC), ParseDate("7-3-24"))
	require.Equal(t, time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC), ParseDate("2024-03-07"))
	require.True(t, ParseDate("not a date").IsZero())
	require.True(t, ParseDate("31/02/2024").IsZero())

	// 45358 is 2024-03-07 in spreadsheet serial days.
	require.Equal(t, time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC), ParseDate("45358"))
}

func TestNumericSuffix(t *testing.T) {
	require.Equal(t, 37, NumericSuffix("PED-0037"))
	require.Equal(t, 0, NumericSuffix("sin-numero"))
}

func TestFold(t *testing.T) {
	require.Equal(t, "cafe", Fold("CAFÉ"))
	require.Equal(t, "marron", Fold("  Marrón "))
	require.True(t, FoldEqual("Polera Ñandú", "polera nandu"))
	require.False(t, FoldEqual("negro", "blanco"))
}
