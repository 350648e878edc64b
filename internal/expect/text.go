package expect

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	priceRe   = regexp.MustCompile(`\$\s*(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)`)
	percentRe = regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*%`)
	numberRe  = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

// ParsePrice returns the first dollar amount in text: "Total: $12.00" is 12.
// Commas are thousands separators, so "$1,234.50" is 1234.5.
func ParsePrice(text string) (float64, error) {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return 0, fmt.Errorf("no price in %q", text)
	}
	return strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
}

// SplitNamePrice splits a menu heading such as "Espresso $10.00" into its
// name and price.
func SplitNamePrice(text string) (string, float64, error) {
	idx := strings.LastIndex(text, " $")
	if idx < 0 {
		return "", 0, fmt.Errorf("heading %q has no \" $\" price separator", text)
	}
	name := strings.TrimSpace(text[:idx])
	if name == "" {
		return "", 0, fmt.Errorf("heading %q has an empty name", text)
	}
	price, err := ParsePrice(text[idx:])
	if err != nil {
		return "", 0, err
	}
	return name, price, nil
}

// ParsePercent returns the number in front of the first % sign:
// "Chrome CPU: 3.2%" is 3.2.
func ParsePercent(text string) (float64, error) {
	m := percentRe.FindStringSubmatch(text)
	if m == nil {
		return 0, fmt.Errorf("no percentage in %q", text)
	}
	return strconv.ParseFloat(m[1], 64)
}

// ParseNumber returns the first decimal number in text.
func ParseNumber(text string) (float64, error) {
	m := numberRe.FindString(text)
	if m == "" {
		return 0, fmt.Errorf("no number in %q", text)
	}
	return strconv.ParseFloat(m, 64)
}

// StripNumeric drops every rune that is not a digit or '.', then parses the
// remainder: "A5982" is 5982.
func StripNumeric(text string) (float64, error) {
	kept := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, text)
	if kept == "" {
		return 0, fmt.Errorf("no digits in %q", text)
	}
	return strconv.ParseFloat(kept, 64)
}

// ExtractInt applies pattern to text and parses its first capture group,
// e.g. `\((\d+)\)` on "cart (3)" is 3.
func ExtractInt(text, pattern string) (int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0, fmt.Errorf("pattern %q does not match %q", pattern, text)
	}
	return strconv.Atoi(m[1])
}

// FormatPrice renders an amount the way price labels show it: $12.00.
func FormatPrice(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
