package session

import (
	"math/rand"
)

// Share codes skip ambiguous characters (0/O, 1/I/L) so they survive being
// read aloud.
const shareCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const shareCodeLength = 6

// newShareCode uses the locked top-level rand functions: sessions are
// created from concurrent requests.
func newShareCode() string {
	code := make([]byte, shareCodeLength)
	for i := range code {
		code[i] = shareCodeAlphabet[rand.Intn(len(shareCodeAlphabet))]
	}
	return string(code)
}
