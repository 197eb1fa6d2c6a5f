package app

import (
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const codeLength = 6

func newID() string {
	return uuid.NewString()
}

// newOrderCode builds a code like DA25-AB12CD. Codes are correlation tokens
// typed into a payment note; the store's unique constraint guarantees
// uniqueness.
func newOrderCode(prefix string) string {
	var b strings.Builder
	b.Grow(len(prefix) + 1 + codeLength)
	b.WriteString(prefix)
	b.WriteByte('-')
	for i := 0; i < codeLength; i++ {
		b.WriteByte(codeAlphabet[rand.IntN(len(codeAlphabet))])
	}
	return b.String()
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
