package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateSessionCode returns a human-shareable code of length n drawn from
// the uppercase alphanumeric alphabet. Callers are expected to collision-check
// the result against live sessions before use.
func GenerateSessionCode(n int) (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, n)
	if _, err := rand.Read(code); err != nil {
		return "", err
	}

	for i := 0; i < n; i++ {
		code[i] = charset[int(code[i])%len(charset)]
	}

	return string(code), nil
}

// GenerateToken returns an opaque hex token of 2*nBytes characters, used for
// participant, venue and history record ids.
func GenerateToken(nBytes int) (string, error) {
	byt := make([]byte, nBytes)
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}
	return hex.EncodeToString(byt), nil
}
