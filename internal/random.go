package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"math/big"
	"strings"
)

// NewOTP returns a uniformly random numeric code of the given length.
func NewOTP(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// HashCode digests a one-time code so it is never held in the clear.
func HashCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}

// CodeMatches compares code against a stored digest in constant time.
func CodeMatches(stored [32]byte, code string) bool {
	got := HashCode(code)
	return subtle.ConstantTimeCompare(stored[:], got[:]) == 1
}

// SecretMatches compares two secrets in constant time.
func SecretMatches(a, b string) bool {
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}
