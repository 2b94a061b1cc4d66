package money

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndString(t *testing.T) {
	cases := []struct {
		in   string
		want Cents
		ok   bool
	}{
		{"12.50", 1250, true},
		{"0", 0, true},
		{"-3.00", -300, true},
		{"", 0, true},
		{"5", 500, true},
		{"1.005", 0, false},
		{"1.2.3", 0, false},
	}
	for _, c := range cases {
		got, ok := Parse(c.in)
		assert.Equal(t, c.ok, ok, c.in)
		if c.ok {
			assert.Equal(t, c.want, got, c.in)
		}
	}
	assert.Equal(t, "12.50", Cents(1250).String())
	assert.Equal(t, "-0.01", Cents(-1).String())
}

func TestMulRoundHalfUp(t *testing.T) {
	// 5 hours at $20/h = $100.00 exactly
	gross := MustParse("20.00").MulRoundHalfUp(HoursRat(5 * 3600))
	require.Equal(t, MustParse("100.00"), gross)

	// commission at 15% of $100.00 = $15.00
	commission := gross.MulRoundHalfUp(PercentRat(15))
	assert.Equal(t, MustParse("15.00"), commission)
	assert.Equal(t, MustParse("85.00"), gross.Sub(commission))

	// HALF_UP tie: 0.125 -> 0.13 (away from zero)
	tied := MustParse("0.25").MulRoundHalfUp(HoursRat(1800)) // 0.5 hours
	assert.Equal(t, MustParse("0.13"), tied)
}

func TestAddBusinessDays(t *testing.T) {
	// Friday + 3 business days = following Wednesday
	fri := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	got := AddBusinessDays(fri, 3)
	want := time.Date(2026, 8, 5, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, want.Weekday(), got.Weekday())
	assert.Equal(t, want.Format("2006-01-02"), got.Format("2006-01-02"))
}
