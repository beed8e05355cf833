package utils

import "github.com/google/uuid"

// NewRunID returns a random (v4) UUID string identifying an association run.
func NewRunID() string {
	return uuid.NewString()
}
