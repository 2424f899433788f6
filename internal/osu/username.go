package osu

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// SafeUsername converts a username to its canonical safe form: lowercase,
// trimmed, spaces replaced with underscores. The chat server and the
// platform API both key users this way.
func SafeUsername(username string) string {
	return strings.ReplaceAll(strings.TrimSpace(strings.ToLower(username)), " ", "_")
}

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"

// RandomSecureString generates a random string of the given length from a
// URL-safe alphabet, suitable for match passwords.
func RandomSecureString(length int) string {
	b := make([]byte, length)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the platform source is broken.
			panic(err)
		}
		b[i] = passwordAlphabet[n.Int64()]
	}
	return string(b)
}
