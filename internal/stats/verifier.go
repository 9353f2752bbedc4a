package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"example.com/wordle-versus/internal/apperr"
	"example.com/wordle-versus/internal/clock"
	"example.com/wordle-versus/internal/store"
)

// Store is the stats persistence the verifier writes through.
type Store interface {
	// UpdateSolo applies u unless the last update is newer than now-minInterval.
	UpdateSolo(ctx context.Context, userID string, u store.SoloUpdate, now time.Time, minInterval time.Duration) (store.UserStats, error)
}

type Limits struct {
	TokenMaxAge       time.Duration
	SummaryMaxAge     time.Duration
	MinUpdateInterval time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		TokenMaxAge:       5 * time.Minute,
		SummaryMaxAge:     24 * time.Hour,
		MinUpdateInterval: 10 * time.Second,
	}
}

// Claimed is the solo result a client asks to persist. WinRate is accepted for
// compatibility but always recomputed.
type Claimed struct {
	GamesPlayed int `json:"gamesPlayed"`
	GamesWon    int `json:"gamesWon"`
	Streak      int `json:"streak"`
	WinRate     int `json:"winRate"`
}

type Verifier struct {
	store  Store
	limits Limits
	clock  clock.Clock
	log    *slog.Logger
}

func NewVerifier(s Store, limits Limits, c clock.Clock, log *slog.Logger) *Verifier {
	if c == nil {
		c = clock.New()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Verifier{store: s, limits: limits, clock: c, log: log}
}

// Issue returns a token binding userID to the exact bytes of summary.
func (v *Verifier) Issue(userID string, summary json.RawMessage) (string, error) {
	if userID == "" {
		return "", apperr.InvalidArgument("userId is required")
	}
	if len(bytes.TrimSpace(summary)) == 0 {
		return "", apperr.InvalidArgument("gameSummary is required")
	}
	var gs GameSummary
	if err := json.Unmarshal(summary, &gs); err != nil {
		return "", apperr.InvalidArgument("gameSummary must be a JSON object")
	}
	if gs.GameID == "" {
		return "", apperr.InvalidArgument("gameSummary.gameId is required")
	}
	data, err := compact(summary)
	if err != nil {
		return "", apperr.InvalidArgument("gameSummary must be a JSON object")
	}

	return EncodeToken(Token{
		UserID:    userID,
		Timestamp: v.clock.Now().UnixMilli(),
		GameID:    gs.GameID,
		GameData:  data,
	})
}

// VerifyAndApply checks token and summary against each other and the clock, then persists
// the claimed solo stats. Checks run in a fixed order and the first failure wins.
func (v *Verifier) VerifyAndApply(ctx context.Context, userID string, claimed Claimed, token string, summary json.RawMessage) (store.UserStats, error) {
	if token == "" || len(bytes.TrimSpace(summary)) == 0 || bytes.Equal(bytes.TrimSpace(summary), []byte("null")) {
		return store.UserStats{}, apperr.InvalidArgument("verificationToken and gameSummary are required")
	}

	tok, err := DecodeToken(token)
	if err != nil {
		return store.UserStats{}, v.reject(userID, "decode", apperr.Wrap(apperr.KindUnauthorized, "invalid verification token", err))
	}

	if tok.UserID != userID {
		return store.UserStats{}, v.reject(userID, "user", apperr.Forbidden("verification token belongs to another user"))
	}

	now := v.clock.Now()
	if now.Sub(tok.IssuedAt()) > v.limits.TokenMaxAge {
		return store.UserStats{}, v.reject(userID, "token_age", apperr.Unauthorized("verification token expired"))
	}

	var gs GameSummary
	if err := json.Unmarshal(summary, &gs); err != nil {
		return store.UserStats{}, v.reject(userID, "summary", apperr.InvalidArgument("gameSummary must be a JSON object"))
	}
	if tok.GameID != gs.GameID {
		return store.UserStats{}, v.reject(userID, "game_id", apperr.InvalidArgument("game id mismatch"))
	}

	if gs.Won && len(gs.Boards) == 0 {
		return store.UserStats{}, v.reject(userID, "boards", apperr.InvalidArgument("a won game must include its boards"))
	}

	if now.Sub(gs.PlayedAt()) > v.limits.SummaryMaxAge {
		return store.UserStats{}, v.reject(userID, "summary_age", apperr.InvalidArgument("game result is too old"))
	}

	got, err := compact(summary)
	if err != nil {
		return store.UserStats{}, v.reject(userID, "summary", apperr.InvalidArgument("gameSummary must be a JSON object"))
	}
	want, err := compact(tok.GameData)
	if err != nil || !bytes.Equal(got, want) {
		return store.UserStats{}, v.reject(userID, "game_data", apperr.InvalidArgument("game data does not match verification token"))
	}

	if err := validateClaimed(claimed); err != nil {
		return store.UserStats{}, v.reject(userID, "claimed", err)
	}

	st, err := v.store.UpdateSolo(ctx, userID, store.SoloUpdate{
		GamesPlayed: claimed.GamesPlayed,
		GamesWon:    claimed.GamesWon,
		Streak:      claimed.Streak,
	}, now, v.limits.MinUpdateInterval)
	switch {
	case errors.Is(err, store.ErrRateLimited):
		return store.UserStats{}, v.reject(userID, "rate", apperr.TooManyRequests("stats updated too recently, try again later"))
	case errors.Is(err, store.ErrStatsNotFound):
		return store.UserStats{}, apperr.NotFound("user not found")
	case err != nil:
		return store.UserStats{}, err
	}

	v.log.Info("solo stats updated", "user_id", userID, "game_id", tok.GameID,
		"games_played", st.GamesPlayed, "games_won", st.GamesWon)
	return st, nil
}

func validateClaimed(c Claimed) error {
	switch {
	case c.GamesPlayed < 0 || c.GamesWon < 0 || c.Streak < 0:
		return apperr.InvalidArgument("stats must not be negative")
	case c.GamesWon > c.GamesPlayed:
		return apperr.InvalidArgument("gamesWon cannot exceed gamesPlayed")
	case c.Streak > c.GamesWon:
		return apperr.InvalidArgument("streak cannot exceed gamesWon")
	}
	return nil
}

func (v *Verifier) reject(userID, check string, err error) error {
	v.log.Warn("stats update rejected", "user_id", userID, "check", check, "err", err)
	return err
}
