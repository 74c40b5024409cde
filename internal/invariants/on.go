//go:build invariants

package invariants

import "fmt"

// Enabled is true if we were built with the "invariants" build tag.
const Enabled = true

// CheckTailPadding panics unless buf has at least 7 bytes addressable past
// usedLen, the contract every bit-sliced buffer in this repository must
// satisfy (see internal/bitpack).
func CheckTailPadding(buf []byte, usedLen int) {
	if len(buf) < usedLen+7 {
		panic(fmt.Sprintf("buffer of length %d lacks the 7-byte tail padding past %d", len(buf), usedLen))
	}
}

// SafeSub returns a - b. If a < b, it panics in invariant builds and
// returns 0 in non-invariant builds.
func SafeSub[T Integer](a, b T) T {
	if a < b {
		panic(fmt.Sprintf("underflow: %v - %v", a, b))
	}
	return a - b
}
