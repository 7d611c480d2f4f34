package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewSessionID returns a fresh random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// NewMessageID returns an identifier for a chat transcript entry.
func NewMessageID() string {
	return "m_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsSessionID reports whether s is a well-formed session identifier.
func IsSessionID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}
