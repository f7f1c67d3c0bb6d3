package message

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	KindBroadcast = "broadcast-chat"
	KindPrivate   = "private-chat"
	// KindStatus marks system-generated join/leave notices.
	KindStatus = "status"
)

// TimeLayout is the wire format of message timestamps. The date component is
// dropped, matching a single-day session log; ordering never relies on it.
const TimeLayout = "15:04:05"

// Message is one append-only entry of the room log.
type Message struct {
	ID   uuid.UUID `json:"id"`
	From string    `json:"from"`
	To   string    `json:"to"`
	Text string    `json:"text"`
	Kind string    `json:"kind"`
	Time string    `json:"time"`
}

var (
	ErrNotFound      = errors.New("message not found")
	ErrForbidden     = errors.New("message belongs to another participant")
	ErrInvalid       = errors.New("invalid message")
	ErrUnknownSender = errors.New("sender is not a current participant")
)

// Store is the message persistence contract. Entries are append-only and the
// store preserves insertion order.
type Store interface {
	Append(ctx context.Context, m Message, at time.Time) (Message, error)
	// QueryFor returns the messages visible to name (sent by them, addressed
	// to them, or broadcast), oldest first, restricted to the most recent
	// limit entries when limit > 0.
	QueryFor(ctx context.Context, name string, limit int) ([]Message, error)
	DeleteOwn(ctx context.Context, id uuid.UUID, requester string) error
}

type PostRequest struct {
	To   string `json:"to" validate:"required"`
	Text string `json:"text" validate:"required"`
	Kind string `json:"kind" validate:"required,oneof=broadcast-chat private-chat"`
}
