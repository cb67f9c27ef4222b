package utils

import "github.com/google/uuid"

// GenerateUUID returns a random (v4) UUID string used as a primary key.
func GenerateUUID() string {
	return uuid.NewString()
}
