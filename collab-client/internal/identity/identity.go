// Package identity creates the per-process participant id and resolves the
// room a session joins.
package identity

import (
	"fmt"
	"strings"
)

// DefaultRoomID is joined when the user supplies no room.
const DefaultRoomID = "default-room"

// Generator produces participant ids.
type Generator interface {
	Generate() (string, error)
	Validate(id string) (bool, string) // (valid, reason)
}

// Kinds accepted by NewGenerator.
const (
	KindShortUUID = "short-uuid"
	KindUUID      = "uuid"
	KindULID      = "ulid"
	KindKSUID     = "ksuid"
	KindNanoID    = "nanoid"
	KindCUID2     = "cuid2"
)

// NewGenerator returns the generator for kind. Empty means short-uuid.
func NewGenerator(kind string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindShortUUID:
		return NewShortUUIDGenerator(), nil
	case KindUUID:
		return NewUUIDGenerator(), nil
	case KindULID:
		return NewULIDGenerator(), nil
	case KindKSUID:
		return NewKSUIDGenerator(), nil
	case KindNanoID:
		return NewNanoIDGenerator(DefaultNanoIDSize, DefaultNanoIDAlphabet)
	case KindCUID2:
		return NewCUID2Generator(DefaultCUID2Length)
	default:
		return nil, fmt.Errorf("unknown id generator %q", kind)
	}
}

// Identity is the locally generated identity of this participant. It lives
// for the lifetime of the process and is never persisted.
type Identity struct {
	ParticipantID string
}

// New generates a fresh identity, or adopts id when it is not blank. Either
// way the id must pass gen's validation.
func New(gen Generator, id string) (Identity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		var err error
		if id, err = gen.Generate(); err != nil {
			return Identity{}, fmt.Errorf("generate participant id: %w", err)
		}
	}
	if ok, reason := gen.Validate(id); !ok {
		return Identity{}, fmt.Errorf("invalid participant id %q: %s", id, reason)
	}
	return Identity{ParticipantID: id}, nil
}

// ResolveRoom returns roomID, or DefaultRoomID when it is blank.
func ResolveRoom(roomID string) string {
	if r := strings.TrimSpace(roomID); r != "" {
		return r
	}
	return DefaultRoomID
}
