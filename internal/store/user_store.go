package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already exists")
	ErrUsernameTaken = errors.New("username already exists")
)

const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string // empty for OAuth-only accounts
	AuthProvider string
	CreatedAt    time.Time
}

type UserStore struct {
	db *pgxpool.Pool
}

func NewUserStore(db *pgxpool.Pool) *UserStore {
	return &UserStore{db: db}
}

// Create inserts the user together with a zeroed stats row.
func (s *UserStore) Create(ctx context.Context, u User) error {
	if u.AuthProvider == "" {
		u.AuthProvider = ProviderLocal
	}

	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var taken bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE lower(username) = lower($1))`,
			u.Username,
		).Scan(&taken)
		if err != nil {
			return err
		}
		if taken && u.AuthProvider == ProviderLocal {
			return ErrUsernameTaken
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO users (id, username, email, password_hash, auth_provider)
			 VALUES ($1, $2, $3, NULLIF($4, ''), $5)`,
			u.ID, u.Username, u.Email, u.PasswordHash, u.AuthProvider,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrEmailTaken
			}
			return fmt.Errorf("insert user: %w", err)
		}

		_, err = tx.Exec(ctx, `INSERT INTO user_stats (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, u.ID)
		return err
	})
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.getOne(ctx, `WHERE email = $1`, email)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (User, error) {
	return s.getOne(ctx, `WHERE id = $1`, id)
}

func (s *UserStore) getOne(ctx context.Context, where string, arg any) (User, error) {
	var u User
	err := s.db.QueryRow(ctx,
		`SELECT id, username, email, COALESCE(password_hash, ''), auth_provider, created_at
		 FROM users `+where,
		arg,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.AuthProvider, &u.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}
