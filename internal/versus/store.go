package versus

import (
	"context"
	"errors"
	"sync"
	"time"

	"example.com/wordle-versus/internal/apperr"
	"example.com/wordle-versus/internal/clock"
)

var (
	ErrMatchNotFound = apperr.NotFound("match not found")
	ErrCodeTaken     = errors.New("join code already in use")
	ErrConcurrent    = apperr.Conflict("match was modified concurrently, retry")

	// ErrNoChange, returned from an update func, skips the write. The func must not have
	// modified the match.
	ErrNoChange = errors.New("no change")
)

// MatchStore is the durable home of matches. Matches are unreachable once they are older
// than the store's TTL.
type MatchStore interface {
	// Create fails with ErrCodeTaken if m.Code is already used by a live match.
	Create(ctx context.Context, m *Match) error
	Get(ctx context.Context, id string) (*Match, error)
	IDByCode(ctx context.Context, code string) (string, error)
	// Update runs fn against the current record and writes the result atomically.
	Update(ctx context.Context, id string, fn func(m *Match) error) (*Match, error)
}

// InMemoryMatchStore keeps matches in process; expiry is checked on read.
type InMemoryMatchStore struct {
	mu    sync.Mutex
	m     map[string]*Match
	codes map[string]string
	ttl   time.Duration
	clock clock.Clock
}

func NewInMemoryMatchStore(ttl time.Duration, c clock.Clock) *InMemoryMatchStore {
	if c == nil {
		c = clock.New()
	}
	return &InMemoryMatchStore{
		m:     make(map[string]*Match),
		codes: make(map[string]string),
		ttl:   ttl,
		clock: c,
	}
}

var _ MatchStore = (*InMemoryMatchStore)(nil)

func (s *InMemoryMatchStore) Create(_ context.Context, m *Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.codes[m.Code]; ok {
		if _, live := s.liveLocked(id); live {
			return ErrCodeTaken
		}
	}
	s.m[m.ID] = clone(m)
	s.codes[m.Code] = m.ID
	return nil
}

func (s *InMemoryMatchStore) Get(_ context.Context, id string) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.liveLocked(id)
	if !ok {
		return nil, ErrMatchNotFound
	}
	return clone(m), nil
}

func (s *InMemoryMatchStore) IDByCode(_ context.Context, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.codes[code]
	if !ok {
		return "", ErrMatchNotFound
	}
	if _, live := s.liveLocked(id); !live {
		return "", ErrMatchNotFound
	}
	return id, nil
}

func (s *InMemoryMatchStore) Update(_ context.Context, id string, fn func(m *Match) error) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.liveLocked(id)
	if !ok {
		return nil, ErrMatchNotFound
	}
	next := clone(cur)
	if err := fn(next); err != nil {
		if errors.Is(err, ErrNoChange) {
			return clone(cur), nil
		}
		return nil, err
	}
	s.m[id] = next
	return clone(next), nil
}

func (s *InMemoryMatchStore) liveLocked(id string) (*Match, bool) {
	m, ok := s.m[id]
	if !ok {
		return nil, false
	}
	if s.ttl > 0 && !s.clock.Now().Before(m.CreatedAt.Add(s.ttl)) {
		delete(s.m, id)
		delete(s.codes, m.Code)
		return nil, false
	}
	return m, true
}

func clone(m *Match) *Match {
	c := *m
	c.CreatorGuesses = append([]string{}, m.CreatorGuesses...)
	c.OpponentGuesses = append([]string{}, m.OpponentGuesses...)
	if m.FinishedAt != nil {
		t := *m.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}
