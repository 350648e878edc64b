// Package fixture generates the throwaway identities scenarios register
// against shared remote systems.
package fixture

import (
	"math/rand/v2"
	"strings"
)

// RandomDigits returns n random decimal digits, leading zeros kept.
func RandomDigits(n int) string {
	var b strings.Builder
	b.Grow(n)
	for range n {
		b.WriteByte(byte('0' + rand.IntN(10)))
	}
	return b.String()
}

// RandomEmail returns prefix followed by eight random digits at domain,
// e.g. valid.testuser04718265@gmail.com.
func RandomEmail(prefix, domain string) string {
	return prefix + RandomDigits(8) + "@" + domain
}

// PickIndex returns a random index into a collection of n items.
// It panics when n <= 0, like rand.IntN.
func PickIndex(n int) int {
	return rand.IntN(n)
}
