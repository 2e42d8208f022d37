package identity

import (
	"fmt"

	"github.com/google/uuid"
)

const shortUUIDLength = 8

// ShortUUIDGenerator yields the first eight hex characters of a random UUID.
// Collisions are possible but unlikely for the handful of participants a
// room sees.
type ShortUUIDGenerator struct{}

// NewShortUUIDGenerator creates a ShortUUIDGenerator.
func NewShortUUIDGenerator() *ShortUUIDGenerator {
	return &ShortUUIDGenerator{}
}

func (g *ShortUUIDGenerator) Generate() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %w", err)
	}
	return id.String()[:shortUUIDLength], nil
}

func (g *ShortUUIDGenerator) Validate(id string) (bool, string) {
	if len(id) != shortUUIDLength {
		return false, fmt.Sprintf("expected length %d, got %d", shortUUIDLength, len(id))
	}
	for _, c := range id {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false, fmt.Sprintf("character '%c' is not lowercase hex", c)
		}
	}
	return true, ""
}

// UUIDGenerator yields full random (v4) UUIDs.
type UUIDGenerator struct{}

// NewUUIDGenerator creates a UUIDGenerator.
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) Generate() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %w", err)
	}
	return id.String(), nil
}

func (g *UUIDGenerator) Validate(id string) (bool, string) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return false, fmt.Sprintf("invalid UUID format: %v", err)
	}
	if parsed.Version() != 4 {
		return false, fmt.Sprintf("expected UUID v4, got v%d", parsed.Version())
	}
	return true, ""
}
