package message

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

// SenderRegistry is what we need from the participant side: a runtime check
// that the claimed sender is currently in the room.
type SenderRegistry interface {
	Exists(ctx context.Context, name string) (bool, error)
}

type Service struct {
	store     Store
	senders   SenderRegistry
	broadcast string
	policy    *bluemonday.Policy
	now       func() time.Time
}

func NewService(store Store, senders SenderRegistry, broadcast string) *Service {
	return &Service{
		store:     store,
		senders:   senders,
		broadcast: broadcast,
		policy:    bluemonday.StrictPolicy(),
		now:       time.Now,
	}
}

// Post appends a user-authored chat message. The sender must be a current
// participant; this is a runtime check, not a foreign key.
func (s *Service) Post(ctx context.Context, from, to, text, kind string) (Message, error) {
	from = s.clean(from)
	to = s.clean(to)
	text = s.clean(text)

	if to == "" || text == "" {
		return Message{}, ErrInvalid
	}
	if kind != KindBroadcast && kind != KindPrivate {
		return Message{}, ErrInvalid
	}

	ok, err := s.senders.Exists(ctx, from)
	if err != nil {
		return Message{}, err
	}
	if !ok {
		return Message{}, ErrUnknownSender
	}

	return s.store.Append(ctx, Message{From: from, To: to, Text: text, Kind: kind}, s.now())
}

// PostStatus appends a system-generated join/leave notice addressed to the
// broadcast recipient. No sender check: the participant may already be gone.
func (s *Service) PostStatus(ctx context.Context, from, text string) error {
	_, err := s.store.Append(ctx, Message{
		From: from,
		To:   s.broadcast,
		Text: text,
		Kind: KindStatus,
	}, s.now())
	return err
}

// VisibleTo returns the chronological log visible to name, restricted to the
// most recent limit entries when limit > 0.
func (s *Service) VisibleTo(ctx context.Context, name string, limit int) ([]Message, error) {
	return s.store.QueryFor(ctx, name, limit)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID, requester string) error {
	return s.store.DeleteOwn(ctx, id, requester)
}

func (s *Service) clean(v string) string {
	return strings.TrimSpace(s.policy.Sanitize(v))
}
