package participant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one JSON document per participant plus a sorted set scoring
// names by last activity, which makes the staleness scan a single range read.
//
//	<prefix>:participant:<name>   -> Participant JSON
//	<prefix>:participant:id:<id>  -> name (so removal by id works)
//	<prefix>:presence             -> ZSET name scored by lastActivity millis
type RedisStore struct {
	client *redis.Client
	prefix string
}

// registerScript writes the participant document, the id index and the
// presence score as one atomic step, so a failure can never leave a name
// half-committed (taken but invisible to List/FindStale). Returns 0 when the
// name is already held.
var registerScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1])
redis.call("SET", KEYS[2], ARGV[2])
redis.call("ZADD", KEYS[3], ARGV[3], ARGV[2])
return 1
`)

// heartbeatScript refreshes the document and the presence score only while
// the document still exists and still belongs to the same registration
// (ARGV[1] is the "id":"..." fragment of the incarnation the caller read).
// A heartbeat that lost the race to an eviction or a re-registration must not
// land its write half and resurrect the old entry. Returns 0 when the
// participant is gone or superseded.
var heartbeatScript = redis.NewScript(`
local doc = redis.call("GET", KEYS[1])
if not doc or not string.find(doc, ARGV[1], 1, true) then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2])
redis.call("ZADD", KEYS[2], ARGV[3], ARGV[4])
return 1
`)

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) nameKey(name string) string {
	return s.prefix + ":participant:" + name
}

func (s *RedisStore) idKey(id uuid.UUID) string {
	return s.prefix + ":participant:id:" + id.String()
}

func (s *RedisStore) presenceKey() string {
	return s.prefix + ":presence"
}

func (s *RedisStore) Register(ctx context.Context, name string, now time.Time) (Participant, error) {
	p := Participant{
		ID:           uuid.New(),
		Name:         name,
		LastActivity: now.UnixMilli(),
	}
	data, err := json.Marshal(p)
	if err != nil {
		return Participant{}, err
	}

	keys := []string{s.nameKey(name), s.idKey(p.ID), s.presenceKey()}
	inserted, err := registerScript.Run(ctx, s.client, keys, data, name, p.LastActivity).Int()
	if err != nil {
		return Participant{}, fmt.Errorf("register %q: %w", name, err)
	}
	if inserted == 0 {
		return Participant{}, ErrNameTaken
	}
	return p, nil
}

func (s *RedisStore) Heartbeat(ctx context.Context, name string, now time.Time) (Participant, error) {
	p, err := s.get(ctx, name)
	if err != nil {
		return Participant{}, err
	}

	marker := `"id":"` + p.ID.String() + `"`
	p.LastActivity = now.UnixMilli()
	data, err := json.Marshal(p)
	if err != nil {
		return Participant{}, err
	}

	keys := []string{s.nameKey(name), s.presenceKey()}
	updated, err := heartbeatScript.Run(ctx, s.client, keys, marker, data, p.LastActivity, name).Int()
	if err != nil {
		return Participant{}, fmt.Errorf("heartbeat %q: %w", name, err)
	}
	if updated == 0 {
		// Evicted (or re-registered) between our read and the write.
		return Participant{}, ErrNotFound
	}
	return p, nil
}

func (s *RedisStore) List(ctx context.Context) ([]Participant, error) {
	names, err := s.client.ZRange(ctx, s.presenceKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return s.fetch(ctx, names)
}

func (s *RedisStore) FindStale(ctx context.Context, now time.Time, threshold time.Duration) ([]Participant, error) {
	// now-lastActivity > threshold, i.e. strictly older than the cutoff.
	cutoff := now.Add(-threshold).UnixMilli()
	names, err := s.client.ZRangeByScore(ctx, s.presenceKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("find stale participants: %w", err)
	}
	return s.fetch(ctx, names)
}

// Remove deletes by id and is idempotent. It reports whether this call
// actually tore down a registration: false means the id was already gone or
// the name document belongs to a newer registration, which is preserved.
func (s *RedisStore) Remove(ctx context.Context, id uuid.UUID) (bool, error) {
	name, err := s.client.Get(ctx, s.idKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("remove participant %s: %w", id, err)
	}

	deleteDoc := false
	current, err := s.get(ctx, name)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return false, err
	case current.ID == id:
		deleteDoc = true
	}

	pipe := s.client.TxPipeline()
	if deleteDoc {
		pipe.Del(ctx, s.nameKey(name))
		pipe.ZRem(ctx, s.presenceKey(), name)
	}
	pipe.Del(ctx, s.idKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("remove participant %s: %w", id, err)
	}
	return deleteDoc, nil
}

// Exists reports whether a participant document is present for name. Used as
// the runtime sender check when posting messages.
func (s *RedisStore) Exists(ctx context.Context, name string) (bool, error) {
	n, err := s.client.Exists(ctx, s.nameKey(name)).Result()
	if err != nil {
		return false, fmt.Errorf("check participant %q: %w", name, err)
	}
	return n > 0, nil
}

func (s *RedisStore) get(ctx context.Context, name string) (Participant, error) {
	raw, err := s.client.Get(ctx, s.nameKey(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Participant{}, ErrNotFound
	}
	if err != nil {
		return Participant{}, fmt.Errorf("get participant %q: %w", name, err)
	}

	var p Participant
	if err := json.Unmarshal(raw, &p); err != nil {
		return Participant{}, fmt.Errorf("decode participant %q: %w", name, err)
	}
	return p, nil
}

func (s *RedisStore) fetch(ctx context.Context, names []string) ([]Participant, error) {
	participants := make([]Participant, 0, len(names))
	for _, name := range names {
		p, err := s.get(ctx, name)
		if errors.Is(err, ErrNotFound) {
			// Removed between the index read and the document read.
			continue
		}
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, nil
}
