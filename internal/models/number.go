package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// FormatNumber renders a JSON number the way a double-precision runtime
// prints it: shortest round-trip digits, plain decimal notation for
// magnitudes in [1e-6, 1e21) and exponent notation ("1e+21", "1e-7")
// outside that range. Numbers that overflow a float64 keep their source text.
func FormatNumber(n json.Number) string {
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return n.String()
	}
	if f == 0 {
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	sign := exp[:1]
	digits := strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mantissa + "e" + sign + digits
}

// IsWholeNumber reports whether n has no fractional part. Numbers too large
// for a float64 are not considered whole.
func IsWholeNumber(n json.Number) bool {
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return false
	}
	return f == math.Trunc(f)
}
