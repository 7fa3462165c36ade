package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

func GenerateSha256Hash(str string) string {
	hasher := sha256.New()
	hasher.Write([]byte(str))
	return hex.EncodeToString(hasher.Sum(nil))
}

// ShortHash hashes the NUL-joined parts and keeps the first n hex characters.
func ShortHash(n int, parts ...string) string {
	sum := GenerateSha256Hash(strings.Join(parts, "\x00"))
	if n <= 0 || n > len(sum) {
		return sum
	}
	return sum[:n]
}
