package auth

import (
	"crypto/subtle"
	"strconv"
	"unicode/utf16"
)

const legacyPrefix = "hash_"

// LegacyDigest computes the checksum digest the demo account was created with.
//
// SECURITY: this is NOT a password hash. It is an unsalted 32-bit rolling
// checksum (h = h*31 + c over UTF-16 code units, wrapping at 32 bits) printed
// in base 36, trivially collidable and fast to brute force. It exists so
// stored digests stay reproducible; new passwords should use bcrypt.
//
//	LegacyDigest("Demo@123") == "hash_f843g5"
func LegacyDigest(plaintext string) string {
	var h int32
	for _, unit := range utf16.Encode([]rune(plaintext)) {
		h = h*31 + int32(unit)
	}

	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}

	return legacyPrefix + strconv.FormatInt(abs, 36)
}

// LegacyDigester adapts LegacyDigest to the Digester interface.
type LegacyDigester struct{}

func (LegacyDigester) Digest(plaintext string) (string, error) {
	return LegacyDigest(plaintext), nil
}

func (LegacyDigester) Verify(digest, plaintext string) error {
	if subtle.ConstantTimeCompare([]byte(digest), []byte(LegacyDigest(plaintext))) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}
