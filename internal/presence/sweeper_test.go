package presence

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chatroom/internal/participant"
)

type fakeParticipantStore struct {
	participants []participant.Participant
	removeErr    map[string]error
	// superseded marks names whose removal reports false, as the store does
	// when the id was already gone or the name was re-registered.
	superseded map[string]bool
	removed    []uuid.UUID
}

func (f *fakeParticipantStore) FindStale(_ context.Context, now time.Time, threshold time.Duration) ([]participant.Participant, error) {
	var stale []participant.Participant
	for _, p := range f.participants {
		if now.UnixMilli()-p.LastActivity > threshold.Milliseconds() {
			stale = append(stale, p)
		}
	}
	return stale, nil
}

func (f *fakeParticipantStore) Remove(_ context.Context, id uuid.UUID) (bool, error) {
	for i, p := range f.participants {
		if p.ID != id {
			continue
		}
		if err := f.removeErr[p.Name]; err != nil {
			return false, err
		}
		if f.superseded[p.Name] {
			return false, nil
		}
		f.removed = append(f.removed, id)
		f.participants = append(f.participants[:i], f.participants[i+1:]...)
		return true, nil
	}
	return false, nil
}

type notice struct {
	from, text string
}

type fakePoster struct {
	notices []notice
	failFor map[string]error
}

func (f *fakePoster) PostStatus(_ context.Context, from, text string) error {
	if err := f.failFor[from]; err != nil {
		return err
	}
	f.notices = append(f.notices, notice{from: from, text: text})
	return nil
}

func newParticipant(name string, lastActivity time.Time) participant.Participant {
	return participant.Participant{
		ID:           uuid.New(),
		Name:         name,
		LastActivity: lastActivity.UnixMilli(),
	}
}

func TestSweep_EvictsOnlyStaleParticipants(t *testing.T) {
	req := require.New(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	ana := newParticipant("Ana", base)
	bob := newParticipant("Bob", base.Add(5*time.Second))
	store := &fakeParticipantStore{participants: []participant.Participant{ana, bob}}
	poster := &fakePoster{}

	s := NewSweeper(store, poster, 10*time.Second, 15*time.Second, slog.Default())
	s.now = func() time.Time { return base.Add(11 * time.Second) }

	s.Sweep(context.Background())

	// Ana is 11s idle (over the 10s threshold), Bob only 6s.
	req.Equal([]uuid.UUID{ana.ID}, store.removed)
	req.Len(store.participants, 1)
	req.Equal("Bob", store.participants[0].Name)
	req.Equal([]notice{{from: "Ana", text: "left the room"}}, poster.notices)
}

func TestSweep_SecondRunIsNoOp(t *testing.T) {
	req := require.New(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	store := &fakeParticipantStore{participants: []participant.Participant{newParticipant("Ana", base)}}
	poster := &fakePoster{}

	s := NewSweeper(store, poster, 10*time.Second, 15*time.Second, slog.Default())
	s.now = func() time.Time { return base.Add(11 * time.Second) }

	s.Sweep(context.Background())
	s.Sweep(context.Background())

	req.Len(store.removed, 1)
	req.Len(poster.notices, 1)
}

func TestSweep_BoundaryIsExclusive(t *testing.T) {
	req := require.New(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// Exactly at the threshold: now - lastActivity == threshold, not greater.
	store := &fakeParticipantStore{participants: []participant.Participant{newParticipant("Ana", base)}}
	poster := &fakePoster{}

	s := NewSweeper(store, poster, 10*time.Second, 15*time.Second, slog.Default())
	s.now = func() time.Time { return base.Add(10 * time.Second) }

	s.Sweep(context.Background())

	req.Empty(store.removed)
	req.Empty(poster.notices)
}

func TestSweep_OneFailureDoesNotAbortTheTick(t *testing.T) {
	req := require.New(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	ana := newParticipant("Ana", base)
	bob := newParticipant("Bob", base)
	carol := newParticipant("Carol", base)
	store := &fakeParticipantStore{
		participants: []participant.Participant{ana, bob, carol},
		removeErr:    map[string]error{"Bob": fmt.Errorf("redis gone")},
	}
	poster := &fakePoster{failFor: map[string]error{"Ana": fmt.Errorf("postgres gone")}}

	s := NewSweeper(store, poster, 10*time.Second, 15*time.Second, slog.Default())
	s.now = func() time.Time { return base.Add(time.Minute) }

	s.Sweep(context.Background())

	// Ana: removed, notice lost (tolerated). Bob: removal failed, stays for a
	// later tick, no notice. Carol: full removal + notice.
	req.ElementsMatch([]uuid.UUID{ana.ID, carol.ID}, store.removed)
	req.Equal([]notice{{from: "Carol", text: "left the room"}}, poster.notices)
	req.Len(store.participants, 1)
	req.Equal("Bob", store.participants[0].Name)
}

func TestSweep_NoNoticeWhenRemovalSuperseded(t *testing.T) {
	req := require.New(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	ana := newParticipant("Ana", base)
	bob := newParticipant("Bob", base)
	store := &fakeParticipantStore{
		participants: []participant.Participant{ana, bob},
		superseded:   map[string]bool{"Ana": true},
	}
	poster := &fakePoster{}

	s := NewSweeper(store, poster, 10*time.Second, 15*time.Second, slog.Default())
	s.now = func() time.Time { return base.Add(time.Minute) }

	s.Sweep(context.Background())

	// Ana re-registered before her removal landed: no departure notice for a
	// participant who is visibly live. Bob is evicted normally.
	req.Equal([]uuid.UUID{bob.ID}, store.removed)
	req.Equal([]notice{{from: "Bob", text: "left the room"}}, poster.notices)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	req := require.New(t)
	store := &fakeParticipantStore{}
	s := NewSweeper(store, &fakePoster{}, 10*time.Second, time.Hour, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		req.ErrorIs(err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}
}
