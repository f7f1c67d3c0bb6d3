// Package presence evicts participants that have gone silent. The sweeper is
// the only time-driven piece of the system: it runs on its own ticker,
// concurrently with request handling, against the same two stores.
package presence

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"chatroom/internal/participant"
)

const departureText = "left the room"

// ParticipantStore is the slice of the participant contract the sweeper
// needs.
type ParticipantStore interface {
	FindStale(ctx context.Context, now time.Time, threshold time.Duration) ([]participant.Participant, error)
	Remove(ctx context.Context, id uuid.UUID) (bool, error)
}

// NoticePoster records the synthetic departure message other clients observe.
type NoticePoster interface {
	PostStatus(ctx context.Context, from, text string) error
}

type Sweeper struct {
	participants ParticipantStore
	notices      NoticePoster
	threshold    time.Duration
	period       time.Duration
	log          *slog.Logger

	// now is swappable so tests never sleep on the wall clock.
	now func() time.Time
}

func NewSweeper(participants ParticipantStore, notices NoticePoster, threshold, period time.Duration, log *slog.Logger) *Sweeper {
	return &Sweeper{
		participants: participants,
		notices:      notices,
		threshold:    threshold,
		period:       period,
		log:          log,
		now:          time.Now,
	}
}

// Run sweeps once per period until ctx is canceled. A failing tick never
// stops the ticker.
func (s *Sweeper) Run(ctx context.Context) error {
	s.log.Info("presence sweeper started", "threshold", s.threshold, "period", s.period)
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one eviction cycle. Each stale participant is handled as an
// isolated unit of work: removal first, then the departure notice, so a
// failure in between leaves a removed participant without a notice rather
// than a notice for someone who still appears live. Errors are logged and the
// remaining participants are still processed.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.now()
	stale, err := s.participants.FindStale(ctx, now, s.threshold)
	if err != nil {
		s.log.Error("staleness scan failed", "err", err)
		return
	}

	for _, p := range stale {
		removed, err := s.participants.Remove(ctx, p.ID)
		if err != nil {
			s.log.Error("failed to evict participant", "name", p.Name, "err", err)
			continue
		}
		if !removed {
			// Already gone, or re-registered in the meantime; a departure
			// notice here would contradict a visibly live participant.
			s.log.Info("eviction superseded", "name", p.Name)
			continue
		}
		if err := s.notices.PostStatus(ctx, p.Name, departureText); err != nil {
			s.log.Error("departure notice not recorded", "name", p.Name, "err", err)
			continue
		}
		s.log.Info("evicted stale participant", "name", p.Name,
			"idle", now.Sub(time.UnixMilli(p.LastActivity)))
	}
}
