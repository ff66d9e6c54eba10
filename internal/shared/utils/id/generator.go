package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewSessionID generates a new session identifier with a stable prefix for display.
func NewSessionID() string {
	return newIdentifier("session")
}

// NewCallID generates a tool-call correlation id.
func NewCallID() string {
	return newIdentifier("call")
}

// NewRequestID generates an HTTP request identifier.
func NewRequestID() string {
	return newIdentifier("req")
}

func newIdentifier(prefix string) string {
	body := ""
	if v7, err := uuid.NewV7(); err == nil {
		body = v7.String()
	} else {
		body = uuid.NewString()
	}
	return fmt.Sprintf("%s-%s", prefix, body)
}

// HasPrefix reports whether id was minted with prefix.
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix+"-")
}
