package participant

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Participant is a named room occupant with a liveness timestamp.
type Participant struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	// LastActivity is epoch milliseconds of the most recent registration or
	// heartbeat.
	LastActivity int64 `json:"lastActivity"`
}

var (
	ErrNameTaken   = errors.New("participant name already taken")
	ErrNotFound    = errors.New("participant not found")
	ErrInvalidName = errors.New("participant name is empty")
)

// Store is the participant persistence contract. Implementations must keep
// each participant's record in a single document so concurrent readers see a
// consistent snapshot; no atomicity across calls is assumed.
type Store interface {
	Register(ctx context.Context, name string, now time.Time) (Participant, error)
	Heartbeat(ctx context.Context, name string, now time.Time) (Participant, error)
	List(ctx context.Context) ([]Participant, error)
	FindStale(ctx context.Context, now time.Time, threshold time.Duration) ([]Participant, error)
	// Remove is idempotent and reports whether it actually tore down the
	// registration identified by id; false when the id is gone or the name
	// now belongs to a newer registration.
	Remove(ctx context.Context, id uuid.UUID) (bool, error)
}

type RegisterRequest struct {
	Name string `json:"name" validate:"required"`
}
