package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// temporaryPasswordBytes is the entropy of generated passwords.
const temporaryPasswordBytes = 9

// GenerateTemporaryPassword returns a random password handed out on administrator resets.
func GenerateTemporaryPassword() (string, error) {
	return GenerateRandomString(temporaryPasswordBytes * 2)
}

// GenerateRandomString returns a hex-encoded random string of the given length.
func GenerateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("generate random string: invalid length %d", length)
	}
	buf := make([]byte, (length+1)/2)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("generate random string: %w", err)
	}
	return hex.EncodeToString(buf)[:length], nil
}
