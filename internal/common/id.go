package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique validation job identifier.
// The id stays stable across message retries and republications.
func NewJobID() string {
	return uuid.New().String()
}
