package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pixil98/go-quest/internal/engine"
	"github.com/pixil98/go-quest/internal/quest"
)

// DefinitionSource resolves compiled definitions by quest id and version.
type DefinitionSource interface {
	Definition(ctx context.Context, questId, questVersion string) (*quest.Definition, error)
}

// Publisher delivers change notifications to connected clients.
type Publisher interface {
	PublishDeltas(sessionId, playerId string, deltas []engine.Delta) error
	PublishSnapshot(sessionId, playerId string, snap *engine.Snapshot) error
}

// Service owns the load-apply-save cycle around the engine. Each session
// id gets its own lock, so events against one session are fully
// serialized (gate evaluation reads all players' states together) while
// independent sessions proceed concurrently.
type Service struct {
	defs  DefinitionSource
	store Store
	pub   Publisher
	ttl   time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService wires a session service. A zero ttl disables session expiry.
func NewService(defs DefinitionSource, store Store, pub Publisher, ttl time.Duration) *Service {
	return &Service{
		defs:  defs,
		store: store,
		pub:   pub,
		ttl:   ttl,
		locks: map[string]*sync.Mutex{},
	}
}

// NewAttemptGroupId mints a correlation id for one synchronized attempt
// round shared by multiple players' submissions.
func NewAttemptGroupId() string {
	return uuid.New().String()
}

// Submit applies one event to its session and returns the submitting
// player's refreshed snapshot. Deltas and refreshed snapshots for every
// affected player are published as a side effect.
func (s *Service) Submit(ctx context.Context, evt *engine.Event) (*engine.Snapshot, error) {
	if evt.Id == "" {
		evt.Id = engine.NewEventId()
	}

	lock := s.sessionLock(evt.SessionId)
	lock.Lock()
	defer lock.Unlock()

	prior, err := s.store.Get(ctx, evt.SessionId)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	questId, questVersion := evt.QuestId, evt.QuestVersion
	if prior != nil {
		questId, questVersion = prior.QuestId, prior.QuestVersion
	}
	def, err := s.defs.Definition(ctx, questId, questVersion)
	if err != nil {
		return nil, fmt.Errorf("resolving definition %s@%s: %w", questId, questVersion, err)
	}

	now := time.Now().UTC()
	state, deltas, err := engine.Apply(def, prior, evt, now)
	if err != nil {
		return nil, err
	}

	if state != prior {
		if s.ttl > 0 {
			state.ExpiresAt = now.Add(s.ttl)
		}
		if err := s.store.Put(ctx, state); err != nil {
			return nil, fmt.Errorf("saving session: %w", err)
		}
	}

	s.publish(ctx, def, state, deltas, now)

	return engine.BuildSnapshot(def, state, evt.PlayerId, now)
}

// Snapshot rebuilds the requesting player's view without applying events.
func (s *Service) Snapshot(ctx context.Context, sessionId, playerId string) (*engine.Snapshot, error) {
	state, err := s.store.Get(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	def, err := s.defs.Definition(ctx, state.QuestId, state.QuestVersion)
	if err != nil {
		return nil, fmt.Errorf("resolving definition: %w", err)
	}
	return engine.BuildSnapshot(def, state, playerId, time.Now().UTC())
}

// publish pushes deltas and refreshed snapshots to affected players.
// Publication is best-effort: a slow or gone subscriber never fails the
// event application that already persisted.
func (s *Service) publish(ctx context.Context, def *quest.Definition, state *engine.State, deltas []engine.Delta, now time.Time) {
	if s.pub == nil || len(deltas) == 0 {
		return
	}

	affected := engine.PlayerIds(deltas)
	sessionWide := false
	for _, d := range deltas {
		if d.PlayerId == "" {
			sessionWide = true
			break
		}
	}
	if sessionWide {
		affected = affected[:0]
		for pid, p := range state.Players {
			if p.Status == engine.PlayerActive {
				affected = append(affected, pid)
			}
		}
	}

	for _, pid := range affected {
		if err := s.pub.PublishDeltas(state.Id, pid, deltas); err != nil {
			slog.WarnContext(ctx, "publishing deltas", "session", state.Id, "player", pid, "error", err)
			continue
		}
		snap, err := engine.BuildSnapshot(def, state, pid, now)
		if err != nil {
			slog.WarnContext(ctx, "building snapshot", "session", state.Id, "player", pid, "error", err)
			continue
		}
		if err := s.pub.PublishSnapshot(state.Id, pid, snap); err != nil {
			slog.WarnContext(ctx, "publishing snapshot", "session", state.Id, "player", pid, "error", err)
		}
	}
}

// Sweep removes sessions whose expiry has passed.
func (s *Service) Sweep(ctx context.Context, now time.Time) error {
	ids, err := s.store.ExpiredIds(ctx, now)
	if err != nil {
		return fmt.Errorf("listing expired sessions: %w", err)
	}

	for _, id := range ids {
		lock := s.sessionLock(id)
		lock.Lock()
		err := s.store.Delete(ctx, id)
		lock.Unlock()
		if err != nil {
			return fmt.Errorf("deleting expired session %s: %w", id, err)
		}
		slog.InfoContext(ctx, "expired session removed", "session", id)
	}
	return nil
}

func (s *Service) sessionLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}
