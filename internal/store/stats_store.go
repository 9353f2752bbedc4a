package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StatsStore struct {
	db *pgxpool.Pool
}

func NewStatsStore(db *pgxpool.Pool) *StatsStore {
	return &StatsStore{db: db}
}

const statsColumns = `user_id, games_played, games_won, streak, best_streak, win_rate,
	versus_played, versus_won, versus_streak, versus_best_streak, versus_win_rate, last_stats_update`

func scanStats(row pgx.Row) (UserStats, error) {
	var st UserStats
	err := row.Scan(&st.UserID, &st.GamesPlayed, &st.GamesWon, &st.Streak, &st.BestStreak, &st.WinRate,
		&st.VersusPlayed, &st.VersusWon, &st.VersusStreak, &st.VersusBestStreak, &st.VersusWinRate,
		&st.LastStatsUpdate)
	return st, err
}

func (s *StatsStore) InitForUser(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_stats (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	return err
}

func (s *StatsStore) Get(ctx context.Context, userID string) (UserStats, error) {
	st, err := scanStats(s.db.QueryRow(ctx, `SELECT `+statsColumns+` FROM user_stats WHERE user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return UserStats{}, ErrStatsNotFound
	}
	if err != nil {
		return UserStats{}, err
	}
	return st, nil
}

// UpdateSolo writes a solo result unless the previous write is less than minInterval old.
// The interval check and the write are a single statement, so concurrent submissions cannot
// both pass it.
func (s *StatsStore) UpdateSolo(ctx context.Context, userID string, u SoloUpdate, now time.Time, minInterval time.Duration) (UserStats, error) {
	st, err := scanStats(s.db.QueryRow(ctx, `
		UPDATE user_stats SET
			games_played = $2,
			games_won = $3,
			streak = $4,
			best_streak = GREATEST(best_streak, $4),
			win_rate = $5,
			last_stats_update = $6,
			updated_at = now()
		WHERE user_id = $1
		  AND (last_stats_update IS NULL OR last_stats_update <= $7)
		RETURNING `+statsColumns,
		userID, u.GamesPlayed, u.GamesWon, u.Streak, WinRate(u.GamesWon, u.GamesPlayed), now, now.Add(-minInterval),
	))
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return UserStats{}, fmt.Errorf("update solo stats: %w", err)
	}

	if _, err := s.Get(ctx, userID); err != nil {
		return UserStats{}, err
	}
	return UserStats{}, ErrRateLimited
}

// RecordVersusResult applies one finished match to both players in one transaction using
// in-place increments. Empty ids and users without a stats row are skipped.
func (s *StatsStore) RecordVersusResult(ctx context.Context, winnerID, loserID string) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if winnerID != "" {
			if _, err := tx.Exec(ctx, `
				UPDATE user_stats SET
					versus_played = versus_played + 1,
					versus_won = versus_won + 1,
					versus_streak = versus_streak + 1,
					versus_best_streak = GREATEST(versus_best_streak, versus_streak + 1),
					versus_win_rate = ROUND((versus_won + 1) * 100.0 / (versus_played + 1)),
					updated_at = now()
				WHERE user_id = $1
			`, winnerID); err != nil {
				return fmt.Errorf("record win: %w", err)
			}
		}
		if loserID != "" {
			if _, err := tx.Exec(ctx, `
				UPDATE user_stats SET
					versus_played = versus_played + 1,
					versus_streak = 0,
					versus_win_rate = ROUND(versus_won * 100.0 / (versus_played + 1)),
					updated_at = now()
				WHERE user_id = $1
			`, loserID); err != nil {
				return fmt.Errorf("record loss: %w", err)
			}
		}
		return nil
	})
}

// Leaderboard returns the top players of a mode by wins, then win rate.
func (s *StatsStore) Leaderboard(ctx context.Context, mode Mode, limit int) ([]LeaderboardEntry, error) {
	var q string
	switch mode {
	case ModeNormal:
		q = `SELECT u.id, u.username, s.games_played, s.games_won, s.win_rate
			FROM user_stats s JOIN users u ON u.id = s.user_id
			WHERE s.games_played > 0
			ORDER BY s.games_won DESC, s.win_rate DESC, u.username
			LIMIT $1`
	case ModeVersus:
		q = `SELECT u.id, u.username, s.versus_played, s.versus_won, s.versus_win_rate
			FROM user_stats s JOIN users u ON u.id = s.user_id
			WHERE s.versus_played > 0
			ORDER BY s.versus_won DESC, s.versus_win_rate DESC, u.username
			LIMIT $1`
	default:
		return nil, fmt.Errorf("unknown leaderboard mode %q", mode)
	}

	rows, err := s.db.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (LeaderboardEntry, error) {
		var e LeaderboardEntry
		err := row.Scan(&e.UserID, &e.Username, &e.Played, &e.Won, &e.WinRate)
		return e, err
	})
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []LeaderboardEntry{}
	}
	return entries, nil
}
