package content

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/pixil98/go-quest/internal/quest"
)

// DefaultMaxAge bounds how long a cached definition is served before a
// refetch.
const DefaultMaxAge = 5 * time.Minute

// Loader fetches compiled quest definitions from a content store by
// {questId}@{questVersion} and caches them in memory with a bounded age.
// Definitions are immutable per version, but the age bound lets a
// re-published version roll out without a restart.
type Loader struct {
	baseURL string
	client  *http.Client
	maxAge  time.Duration
	now     func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	def       *quest.Definition
	fetchedAt time.Time
}

// LoaderOpt configures a Loader.
type LoaderOpt func(*Loader)

// WithMaxAge overrides the cache age bound.
func WithMaxAge(d time.Duration) LoaderOpt {
	return func(l *Loader) { l.maxAge = d }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) LoaderOpt {
	return func(l *Loader) { l.client = c }
}

// NewLoader creates a loader fetching from the given content base URL.
func NewLoader(baseURL string, opts ...LoaderOpt) *Loader {
	l := &Loader{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		maxAge:  DefaultMaxAge,
		now:     time.Now,
		cache:   map[string]cacheEntry{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Definition returns the compiled definition for questId@questVersion,
// from cache when fresh. A structurally invalid payload is an error, not
// a silently accepted definition.
func (l *Loader) Definition(ctx context.Context, questId, questVersion string) (*quest.Definition, error) {
	if questId == "" || questVersion == "" {
		return nil, fmt.Errorf("quest id and version are required")
	}
	key := questId + "@" + questVersion

	l.mu.RLock()
	entry, ok := l.cache[key]
	l.mu.RUnlock()
	if ok && l.now().Sub(entry.fetchedAt) < l.maxAge {
		return entry.def, nil
	}

	def, err := l.fetch(ctx, key)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[key] = cacheEntry{def: def, fetchedAt: l.now()}
	l.mu.Unlock()

	return def, nil
}

func (l *Loader) fetch(ctx context.Context, key string) (*quest.Definition, error) {
	u := fmt.Sprintf("%s/definitions/%s.json", l.baseURL, url.PathEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching definition %s: %w", key, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching definition %s: unexpected status %d", key, resp.StatusCode)
	}

	var def quest.Definition
	if err := json.NewDecoder(resp.Body).Decode(&def); err != nil {
		return nil, fmt.Errorf("decoding definition %s: %w", key, err)
	}

	if violations := quest.Validate(&def); len(violations) > 0 {
		return nil, fmt.Errorf("definition %s: %w", key, &quest.ValidationError{Violations: violations})
	}
	if got := def.Key(); got != key {
		return nil, fmt.Errorf("definition %s: payload identifies as %s", key, got)
	}

	return &def, nil
}
