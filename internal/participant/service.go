package participant

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

const joinText = "joins the room"

// NoticePoster is what we need from the message side to record join notices.
// The interface lives here so the packages stay decoupled.
type NoticePoster interface {
	PostStatus(ctx context.Context, from, text string) error
}

type Service struct {
	store   Store
	notices NoticePoster
	policy  *bluemonday.Policy
	log     *slog.Logger
	now     func() time.Time
}

func NewService(store Store, notices NoticePoster, log *slog.Logger) *Service {
	return &Service{
		store:   store,
		notices: notices,
		policy:  bluemonday.StrictPolicy(),
		log:     log,
		now:     time.Now,
	}
}

// Register inserts a new participant and appends the join notice. The two
// store calls are not atomic: a failure after the insert leaves a participant
// without a join notice, which is tolerated; the reverse can never happen.
func (s *Service) Register(ctx context.Context, name string) (Participant, error) {
	name = s.clean(name)
	if name == "" {
		return Participant{}, ErrInvalidName
	}

	p, err := s.store.Register(ctx, name, s.now())
	if err != nil {
		return Participant{}, err
	}

	if err := s.notices.PostStatus(ctx, p.Name, joinText); err != nil {
		s.log.Warn("join notice not recorded", "name", p.Name, "err", err)
	}
	return p, nil
}

func (s *Service) Heartbeat(ctx context.Context, name string) (Participant, error) {
	return s.store.Heartbeat(ctx, s.clean(name), s.now())
}

func (s *Service) List(ctx context.Context) ([]Participant, error) {
	return s.store.List(ctx)
}

func (s *Service) clean(name string) string {
	return strings.TrimSpace(s.policy.Sanitize(name))
}
