package versus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "wv"

// matchKey returns the Redis key for a match record
func matchKey(id string) string {
	return fmt.Sprintf("%s:match:%s", keyPrefix, id)
}

// codeKey returns the Redis key for the join code -> match id index
func codeKey(code string) string {
	return fmt.Sprintf("%s:code:%s", keyPrefix, code)
}

// updateRetries bounds optimistic retries when another writer touches the match between
// WATCH and EXEC.
const updateRetries = 8

// RedisMatchStore keeps each match as a JSON value. Both the match and its code index
// expire ttl after creation; updates keep the original expiry.
type RedisMatchStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisMatchStore(rdb *redis.Client, ttl time.Duration) *RedisMatchStore {
	return &RedisMatchStore{rdb: rdb, ttl: ttl}
}

var _ MatchStore = (*RedisMatchStore)(nil)

func (s *RedisMatchStore) Create(ctx context.Context, m *Match) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}

	ok, err := s.rdb.SetNX(ctx, codeKey(m.Code), m.ID, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrCodeTaken
	}

	if err := s.rdb.Set(ctx, matchKey(m.ID), b, s.ttl).Err(); err != nil {
		_ = s.rdb.Del(ctx, codeKey(m.Code)).Err()
		return err
	}
	return nil
}

func (s *RedisMatchStore) Get(ctx context.Context, id string) (*Match, error) {
	b, err := s.rdb.Get(ctx, matchKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return decodeMatch(b)
}

func (s *RedisMatchStore) IDByCode(ctx context.Context, code string) (string, error) {
	id, err := s.rdb.Get(ctx, codeKey(code)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMatchNotFound
		}
		return "", err
	}
	return id, nil
}

func (s *RedisMatchStore) Update(ctx context.Context, id string, fn func(m *Match) error) (*Match, error) {
	key := matchKey(id)

	for range updateRetries {
		var out *Match
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			b, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return ErrMatchNotFound
				}
				return err
			}
			m, err := decodeMatch(b)
			if err != nil {
				return err
			}

			if err := fn(m); err != nil {
				if errors.Is(err, ErrNoChange) {
					out = m
					return nil
				}
				return err
			}

			nb, err := json.Marshal(m)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, nb, redis.KeepTTL)
				return nil
			})
			if err != nil {
				return err
			}
			out = m
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, ErrConcurrent
}

func decodeMatch(b []byte) (*Match, error) {
	var m Match
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode match: %w", err)
	}
	if m.CreatorGuesses == nil {
		m.CreatorGuesses = []string{}
	}
	if m.OpponentGuesses == nil {
		m.OpponentGuesses = []string{}
	}
	return &m, nil
}
