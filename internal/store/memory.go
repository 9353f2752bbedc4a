package store

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// Memory keeps users and stats in process. Used by tests and by `serve --in-memory`.
type Memory struct {
	mu    sync.Mutex
	users map[string]User
	stats map[string]UserStats
}

func NewMemory() *Memory {
	return &Memory{
		users: make(map[string]User),
		stats: make(map[string]UserStats),
	}
}

func (m *Memory) Create(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u.AuthProvider == "" {
		u.AuthProvider = ProviderLocal
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
		if u.AuthProvider == ProviderLocal && strings.EqualFold(existing.Username, u.Username) {
			return ErrUsernameTaken
		}
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	m.users[u.ID] = u
	if _, ok := m.stats[u.ID]; !ok {
		m.stats[u.ID] = UserStats{UserID: u.ID}
	}
	return nil
}

func (m *Memory) GetByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (m *Memory) GetByID(_ context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *Memory) InitForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stats[userID]; !ok {
		m.stats[userID] = UserStats{UserID: userID}
	}
	return nil
}

func (m *Memory) Get(_ context.Context, userID string) (UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.stats[userID]
	if !ok {
		return UserStats{}, ErrStatsNotFound
	}
	return st, nil
}

// Put replaces a stats row. Test helper.
func (m *Memory) Put(st UserStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[st.UserID] = st
}

func (m *Memory) UpdateSolo(_ context.Context, userID string, u SoloUpdate, now time.Time, minInterval time.Duration) (UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.stats[userID]
	if !ok {
		return UserStats{}, ErrStatsNotFound
	}
	if st.LastStatsUpdate != nil && st.LastStatsUpdate.After(now.Add(-minInterval)) {
		return UserStats{}, ErrRateLimited
	}
	st.ApplySolo(u, now)
	m.stats[userID] = st
	return st, nil
}

func (m *Memory) RecordVersusResult(_ context.Context, winnerID, loserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, won := range map[string]bool{winnerID: true, loserID: false} {
		if id == "" {
			continue
		}
		st, ok := m.stats[id]
		if !ok {
			continue
		}
		st.ApplyVersus(won)
		m.stats[id] = st
	}
	return nil
}

func (m *Memory) Leaderboard(_ context.Context, mode Mode, limit int) ([]LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := []LeaderboardEntry{}
	for id, st := range m.stats {
		e := LeaderboardEntry{UserID: id, Username: m.users[id].Username}
		switch mode {
		case ModeVersus:
			e.Played, e.Won, e.WinRate = st.VersusPlayed, st.VersusWon, st.VersusWinRate
		default:
			e.Played, e.Won, e.WinRate = st.GamesPlayed, st.GamesWon, st.WinRate
		}
		if e.Played > 0 {
			entries = append(entries, e)
		}
	}

	slices.SortFunc(entries, func(a, b LeaderboardEntry) int {
		return cmp.Or(
			cmp.Compare(b.Won, a.Won),
			cmp.Compare(b.WinRate, a.WinRate),
			cmp.Compare(a.Username, b.Username),
		)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
