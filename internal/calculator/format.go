package calculator

import (
	"math"
	"strconv"
	"strings"
)

// Display thresholds: outside [1e-6, 1e10] results switch to scientific form.
const (
	sciAbove = 1e10
	sciBelow = 1e-6

	// displayDigits caps the significant digits of a plain result, so
	// float noise past the tenth decimal of a large number is hidden too.
	displayDigits = 12
)

// FormatResult renders a computed value for the result line.
//
// Values above 1e10 or below 1e-6 in magnitude render in scientific form
// with six fractional digits ("1.500000e+12"). Everything else is rounded
// to ten decimal places and at most twelve significant digits, then printed
// plainly: 0.1+0.2 → "0.3", 1234.0000000001 → "1234".
func FormatResult(x float64) string {
	switch {
	case math.IsNaN(x):
		return "NaN"
	case math.IsInf(x, 1):
		return "Infinity"
	case math.IsInf(x, -1):
		return "-Infinity"
	case x == 0:
		return "0"
	}

	if abs := math.Abs(x); abs > sciAbove || abs < sciBelow {
		return trimExponent(strconv.FormatFloat(x, 'e', 6, 64))
	}

	r := math.Round(x*1e10) / 1e10
	r, _ = strconv.ParseFloat(strconv.FormatFloat(r, 'g', displayDigits, 64), 64)
	return numberString(r)
}

// numberString is the shortest decimal that reads back as v, in plain
// notation except for very large or very small magnitudes. It is what an
// evaluated result turns into when it goes back into the expression.
func numberString(v float64) string {
	if v == 0 {
		return "0"
	}
	if abs := math.Abs(v); abs >= 1e21 || abs < 1e-6 {
		return trimExponent(strconv.FormatFloat(v, 'e', -1, 64))
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// trimExponent drops leading zeros from the exponent: "1e-07" → "1e-7".
func trimExponent(s string) string {
	i := strings.IndexByte(s, 'e')
	if i < 0 || i+2 >= len(s) {
		return s
	}
	mantissa, sign, digits := s[:i+1], s[i+1:i+2], strings.TrimLeft(s[i+2:], "0")
	if digits == "" {
		digits = "0"
	}
	return mantissa + sign + digits
}
