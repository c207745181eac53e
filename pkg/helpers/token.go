package helpers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// OpaqueTokenBytes is the entropy of refresh, reset and anti-forgery tokens.
const OpaqueTokenBytes = 32

// NewRefreshToken returns 256 random bits, standard base64.
func NewRefreshToken() (string, error) {
	return randomToken(base64.StdEncoding)
}

// NewURLSafeToken returns 256 random bits, unpadded base64url. Used where the
// token travels in a link or header.
func NewURLSafeToken() (string, error) {
	return randomToken(base64.RawURLEncoding)
}

func randomToken(enc *base64.Encoding) (string, error) {
	b := make([]byte, OpaqueTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return enc.EncodeToString(b), nil
}

// HashTokenHex is the storage form of an opaque token.
func HashTokenHex(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
