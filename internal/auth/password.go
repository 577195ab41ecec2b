// PASSWORD DIGESTS:
//
// Two digest formats live side by side in the users collection:
//
//	$2a$12$<22-char salt><31-char hash>   bcrypt, salted, the default for new digests
//	hash_<base36>                         legacy 32-bit checksum, see LegacyDigest
//
// MultiDigester writes the configured format and verifies either one, so the
// seeded demo account and any legacy data keep working after the default
// changes.

package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the bcrypt work factor used when none is configured.
// Cost 12 takes roughly 250ms on a modern server.
const DefaultBcryptCost = 12

// ErrPasswordMismatch is returned by Verify when the password does not match.
var ErrPasswordMismatch = errors.New("auth: invalid password")

// Digester turns a plaintext password into a stored digest and checks a
// password against one.
type Digester interface {
	Digest(plaintext string) (string, error)
	// Verify returns nil on a match and ErrPasswordMismatch on a mismatch.
	Verify(digest, plaintext string) error
}

// BcryptDigester produces salted bcrypt digests.
//
// It's a struct (not free functions) so that the cost can be injected
// in tests. Cost 4, the bcrypt minimum, keeps tests fast.
type BcryptDigester struct {
	cost int
}

// NewBcryptDigester creates a BcryptDigester with the given cost.
func NewBcryptDigester(cost int) (*BcryptDigester, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("auth: bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptDigester{cost: cost}, nil
}

// NewBcryptDigesterForTest creates a BcryptDigester with the minimum cost.
// Never use it in production: cost 4 is far too weak.
func NewBcryptDigesterForTest() *BcryptDigester {
	return &BcryptDigester{cost: bcrypt.MinCost}
}

// Digest hashes the given plaintext password with bcrypt.
//
// Returns an error if the plaintext is too long (>72 bytes, a bcrypt limit).
func (b *BcryptDigester) Digest(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		// bcrypt silently truncates passwords longer than 72 bytes.
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks a plaintext password against a bcrypt digest.
// The comparison is constant-time.
func (b *BcryptDigester) Verify(digest, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}

// Scheme names a digest format for new passwords.
type Scheme string

const (
	SchemeBcrypt Scheme = "bcrypt"
	SchemeLegacy Scheme = "legacy"
)

// ParseScheme validates a configured scheme name.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(s))) {
	case SchemeBcrypt, "":
		return SchemeBcrypt, nil
	case SchemeLegacy:
		return SchemeLegacy, nil
	default:
		return "", fmt.Errorf("auth: unknown password scheme %q (want bcrypt or legacy)", s)
	}
}

// MultiDigester creates digests in one scheme and verifies both.
type MultiDigester struct {
	scheme Scheme
	bcrypt *BcryptDigester
	legacy LegacyDigester
}

// compile-time checks
var (
	_ Digester = (*BcryptDigester)(nil)
	_ Digester = LegacyDigester{}
	_ Digester = (*MultiDigester)(nil)
)

// NewMultiDigester returns a digester writing scheme and verifying bcrypt
// digests with b.
func NewMultiDigester(scheme Scheme, b *BcryptDigester) *MultiDigester {
	return &MultiDigester{scheme: scheme, bcrypt: b}
}

// Digest uses the configured scheme.
func (m *MultiDigester) Digest(plaintext string) (string, error) {
	if m.scheme == SchemeLegacy {
		return m.legacy.Digest(plaintext)
	}
	return m.bcrypt.Digest(plaintext)
}

// Verify picks the format from the digest prefix.
func (m *MultiDigester) Verify(digest, plaintext string) error {
	switch {
	case strings.HasPrefix(digest, legacyPrefix):
		return m.legacy.Verify(digest, plaintext)
	case strings.HasPrefix(digest, "$2"):
		return m.bcrypt.Verify(digest, plaintext)
	default:
		return fmt.Errorf("auth: unrecognised password digest format")
	}
}
