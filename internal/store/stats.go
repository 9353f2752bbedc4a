package store

import (
	"errors"
	"time"
)

var (
	ErrStatsNotFound = errors.New("stats not found")
	ErrRateLimited   = errors.New("stats updated too recently")
)

// UserStats is one user's solo and versus statistics.
type UserStats struct {
	UserID string `json:"-"`

	GamesPlayed int `json:"gamesPlayed"`
	GamesWon    int `json:"gamesWon"`
	Streak      int `json:"streak"`
	BestStreak  int `json:"bestStreak"`
	WinRate     int `json:"winRate"`

	VersusPlayed     int `json:"versusPlayed"`
	VersusWon        int `json:"versusWon"`
	VersusStreak     int `json:"versusStreak"`
	VersusBestStreak int `json:"versusBestStreak"`
	VersusWinRate    int `json:"versusWinRate"`

	LastStatsUpdate *time.Time `json:"lastStatsUpdate,omitempty"`
}

// SoloUpdate is a client-reported solo result.
type SoloUpdate struct {
	GamesPlayed int
	GamesWon    int
	Streak      int
}

// WinRate is round(won/played*100) with halves rounded up, 0 when nothing was played.
// Integer arithmetic keeps it identical to ROUND over numeric in Postgres.
func WinRate(won, played int) int {
	if played <= 0 {
		return 0
	}
	return (200*won + played) / (2 * played)
}

// ApplySolo overwrites the solo counters, keeping versus counters untouched.
func (s *UserStats) ApplySolo(u SoloUpdate, now time.Time) {
	s.GamesPlayed = u.GamesPlayed
	s.GamesWon = u.GamesWon
	s.Streak = u.Streak
	s.BestStreak = max(s.BestStreak, u.Streak)
	s.WinRate = WinRate(u.GamesWon, u.GamesPlayed)
	t := now
	s.LastStatsUpdate = &t
}

// ApplyVersus records one finished versus match for this user.
func (s *UserStats) ApplyVersus(won bool) {
	s.VersusPlayed++
	if won {
		s.VersusWon++
		s.VersusStreak++
		s.VersusBestStreak = max(s.VersusBestStreak, s.VersusStreak)
	} else {
		s.VersusStreak = 0
	}
	s.VersusWinRate = WinRate(s.VersusWon, s.VersusPlayed)
}

// Mode selects which counters a leaderboard ranks by.
type Mode string

const (
	ModeNormal Mode = "normal"
	ModeVersus Mode = "versus"
)

type LeaderboardEntry struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Played   int    `json:"gamesPlayed"`
	Won      int    `json:"gamesWon"`
	WinRate  int    `json:"winRate"`
}
