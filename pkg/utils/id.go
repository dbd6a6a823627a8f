package utils

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

// GenerateSocketID generates a socket identity for connections that did not
// supply one.
func GenerateSocketID() string {
	return "sock_" + uuid.NewString()
}

// GenerateToken generates an opaque bearer token (VIP grants, connection
// resume credentials).
func GenerateToken() string {
	return uuid.NewString()
}

// RandomCode draws a fixed-length code from the given alphabet using
// crypto/rand.
func RandomCode(alphabet string, length int) string {
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand never fails on supported platforms
			n = big.NewInt(0)
		}
		b[i] = alphabet[n.Int64()]
	}
	return string(b)
}
