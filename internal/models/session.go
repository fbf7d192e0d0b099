package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	// MinBytesPerToken is the minimum number of bytes for a session token
	MinBytesPerToken = 32
)

// NewSessionToken returns a random URL-safe token for the session cookie.
func NewSessionToken() (string, error) {
	b := make([]byte, MinBytesPerToken)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// SessionKey hashes a raw cookie token. Stores only ever see the hash.
func SessionKey(token string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil || len(raw) < MinBytesPerToken {
		return "", ErrInvalidSessionToken
	}
	hash := sha256.Sum256([]byte(token))
	return base64.URLEncoding.EncodeToString(hash[:]), nil
}
