package session

import (
	"context"
	"errors"
	"time"

	"github.com/pixil98/go-quest/internal/engine"
)

// ErrNotFound is returned when no aggregate exists for a session id.
var ErrNotFound = errors.New("session not found")

// Store holds one mutable session aggregate per session id. The engine
// never talks to a store directly; callers load, apply one event, and
// save. The single-writer-per-session discipline lives above the store
// (see Service), so implementations only need per-call safety.
type Store interface {
	Get(ctx context.Context, id string) (*engine.State, error)
	Put(ctx context.Context, state *engine.State) error
	Delete(ctx context.Context, id string) error
	// ExpiredIds returns ids of sessions whose expiry passed before now.
	ExpiredIds(ctx context.Context, now time.Time) ([]string, error)
}
