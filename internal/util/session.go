package util

import "github.com/google/uuid"

// NewSessionID generates a fresh conversation session id with the "s_"
// prefix. Conversations are keyed by these ids, so they must be unique
// per caller.
func NewSessionID() string {
	return "s_" + uuid.NewString()
}
