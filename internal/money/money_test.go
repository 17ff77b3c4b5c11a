package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"4,00", 400},
		{"4.00", 400},
		{"4", 400},
		{"3.99", 399},
		{"3,99", 399},
		{"0,01", 1},
		{"R$ 10,50", 1050},
		{"1.234,56", 123456},
		{"1,234.56", 123456},
		{"11", 1100},
		{"2,5", 250},
		{"0.999", 100},
		{"0.994", 99},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "-4,00", "4,0a", "..", "R$"} {
		_, err := Parse(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "R$4,00", Format(400))
	assert.Equal(t, "R$0,01", Format(1))
	assert.Equal(t, "R$1234,56", Format(123456))
	assert.Equal(t, "-R$2,50", Format(-250))
}

func TestFormatPlainRoundTrips(t *testing.T) {
	for _, cents := range []int64{1, 99, 400, 1050, 123456} {
		parsed, err := Parse(FormatPlain(cents))
		require.NoError(t, err)
		assert.Equal(t, cents, parsed)
	}
}
