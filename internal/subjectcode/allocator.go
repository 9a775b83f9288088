// Package subjectcode derives the human-readable volunteer identifier.
//
// The base code is Surname(3) + FirstName(2), uppercased: Sankla/Kajal ->
// SANKA, Gupta/Sahil -> GUPSA. When the unadorned base is taken, a numeric
// counter is appended and letters are removed from the right exactly when the
// digit count grows, so the sequence for SANKA runs SANKA, SANK1 .. SANK9,
// SAN10 .. SAN99, SA100 .. SA999, S1000 .. S9999, 10000, 10001, ...
// Counters are sequential, never skipped, and once assigned a code never
// changes.
package subjectcode

import (
	"strconv"
	"strings"
)

// BaseLen is the length of every base code.
const BaseLen = 5

const (
	surnameLen   = 3
	firstNameLen = 2
	filler       = 'X'
)

// BaseCode derives the 5-letter base code from a name pair. Pure and total:
// non-alphabetic characters are stripped, inputs are uppercased, and short or
// empty names are padded with X. The result is always exactly 5 uppercase
// ASCII letters.
func BaseCode(firstName, surname string) string {
	var b strings.Builder
	b.Grow(BaseLen)
	writePadded(&b, surname, surnameLen)
	writePadded(&b, firstName, firstNameLen)
	return b.String()
}

func writePadded(b *strings.Builder, name string, n int) {
	written := 0
	for i := 0; i < len(name) && written < n; i++ {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c)
			written++
		case c >= 'a' && c <= 'z':
			b.WriteByte(c - 'a' + 'A')
			written++
		}
	}
	for ; written < n; written++ {
		b.WriteByte(filler)
	}
}

// Format produces the candidate code for a base and counter. Counter 0 is the
// unadorned base. For counter > 0 with d decimal digits, the first 5-d base
// letters are kept and the counter is appended; from 5 digits on the code is
// fully numeric. The comparison is on digit count, not magnitude, so the
// shrink points are exactly 10, 100, 1000 and 10000.
func Format(base string, counter uint32) string {
	if len(base) != BaseLen {
		// BaseCode always yields 5 characters; guard externally built bases.
		base = (base + "XXXXX")[:BaseLen]
	}
	if counter == 0 {
		return base
	}
	digits := strconv.FormatUint(uint64(counter), 10)
	if len(digits) >= BaseLen {
		return digits
	}
	return base[:BaseLen-len(digits)] + digits
}
