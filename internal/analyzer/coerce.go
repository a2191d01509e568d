package analyzer

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	DefaultConfidence    = 0.7
	MaxExplanationLength = 200
)

var (
	intRe = regexp.MustCompile(`\d+`)
	// A thousands-grouped number must not run on into more digits, so
	// "12,345.67" is one value while "1,2345" reads as 1.
	floatRe = regexp.MustCompile(`(\d{1,3}(?:,\d{3})+(?:\.\d+)?)(?:\D|$)|(\d+(?:\.\d+)?)`)
)

// ParseInt returns the first run of digits in raw. ok is false when there is
// none or it does not fit an int.
func ParseInt(raw string) (int, bool) {
	m := intRe.FindString(raw)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseFloat returns the first decimal number in raw, thousands separators
// removed. ok is false when raw holds no number.
func ParseFloat(raw string) (float64, bool) {
	m := floatRe.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	num := m[1]
	if num == "" {
		num = m[2]
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Coerce converts raw to the type named by hint, falling back to 0 for
// numbers that cannot be read. Unknown hints pass raw through unchanged.
func Coerce(hint, raw string) any {
	switch strings.ToLower(strings.TrimSpace(hint)) {
	case "int":
		if n, ok := ParseInt(raw); ok {
			return n
		}
		return 0
	case "float":
		if f, ok := ParseFloat(raw); ok {
			return f
		}
		return 0.0
	default:
		return raw
	}
}

// ParseConfidence parses raw and clamps it to [0, 1].
func ParseConfidence(raw string) float64 {
	c, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(c) {
		return DefaultConfidence
	}
	return min(max(c, 0), 1)
}

// TruncateExplanation bounds s to MaxExplanationLength characters.
func TruncateExplanation(s string) string {
	if utf8.RuneCountInString(s) <= MaxExplanationLength {
		return s
	}
	return string([]rune(s)[:MaxExplanationLength])
}
