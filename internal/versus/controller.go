package versus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"example.com/wordle-versus/internal/apperr"
	"example.com/wordle-versus/internal/clock"
)

// createAttempts bounds join code regeneration on collision.
const createAttempts = 5

// Dictionary is the slice of the word provider the controller needs.
type Dictionary interface {
	AvailableLengths() []int
	Supports(length int) bool
	RandomCommon(length int) (string, error)
	IsAccepted(length int, word string) bool
}

// StatsRecorder applies a finished match to both participants' versus stats.
// Empty ids are skipped.
type StatsRecorder interface {
	RecordVersusResult(ctx context.Context, winnerID, loserID string) error
}

type Controller struct {
	store  MatchStore
	dict   Dictionary
	stats  StatsRecorder
	broker Broker
	clock  clock.Clock
	log    *slog.Logger

	newID   func() string
	newCode func() string
}

type Option func(*Controller)

// WithCodeGenerator overrides join code generation.
func WithCodeGenerator(fn func() string) Option {
	return func(c *Controller) { c.newCode = fn }
}

func WithClock(cl clock.Clock) Option {
	return func(c *Controller) { c.clock = cl }
}

func WithBroker(b Broker) Option {
	return func(c *Controller) { c.broker = b }
}

func NewController(store MatchStore, dict Dictionary, stats StatsRecorder, log *slog.Logger, opts ...Option) *Controller {
	if log == nil {
		log = slog.Default()
	}
	c := &Controller{
		store:   store,
		dict:    dict,
		stats:   stats,
		clock:   clock.New(),
		log:     log,
		newID:   uuid.NewString,
		newCode: NewJoinCode,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewJoinCode returns 8 upper-case alphanumerics taken from a random UUID.
func NewJoinCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

type CreateResult struct {
	GameCode string `json:"gameCode"`
	GameID   string `json:"gameId"`
}

// Create starts a match for creatorID, which may be empty for anonymous players.
func (c *Controller) Create(ctx context.Context, creatorID string, wordLength int) (CreateResult, error) {
	if !c.dict.Supports(wordLength) {
		lengths := lo.Map(c.dict.AvailableLengths(), func(n int, _ int) string { return fmt.Sprint(n) })
		return CreateResult{}, apperr.Newf(apperr.KindInvalidArgument,
			"wordLength must be one of: %s", strings.Join(lengths, ", "))
	}
	word, err := c.dict.RandomCommon(wordLength)
	if err != nil {
		return CreateResult{}, err
	}

	id := c.newID()
	for attempt := 1; attempt <= createAttempts; attempt++ {
		m := newMatch(id, c.newCode(), word, creatorID, c.clock.Now())
		err := c.store.Create(ctx, m)
		if errors.Is(err, ErrCodeTaken) {
			c.log.Debug("join code collision", "code", m.Code, "attempt", attempt)
			continue
		}
		if err != nil {
			return CreateResult{}, fmt.Errorf("create match: %w", err)
		}

		c.log.Info("versus match created", "match_id", m.ID, "code", m.Code, "word_length", wordLength)
		c.publish(ctx, m)
		return CreateResult{GameCode: m.Code, GameID: m.ID}, nil
	}
	return CreateResult{}, apperr.Conflict("could not allocate a join code, retry")
}

// Join seats userID as the opponent. Re-joining as the seated opponent is a no-op.
func (c *Controller) Join(ctx context.Context, code, userID string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", apperr.InvalidArgument("gameCode is required")
	}
	if userID == "" {
		return "", apperr.InvalidArgument("userId is required")
	}

	id, err := c.store.IDByCode(ctx, code)
	if err != nil {
		return "", err
	}

	m, err := c.store.Update(ctx, id, func(m *Match) error {
		if m.Status != StatusWaitingOpponent {
			if m.Status == StatusReadyToStart && m.RoleOf(userID) == RoleOpponent {
				return ErrNoChange
			}
			return apperr.InvalidState("game is not waiting for an opponent")
		}
		if m.RoleOf(userID) == RoleCreator {
			return apperr.InvalidArgument("cannot join your own game")
		}
		m.OpponentID = userID
		return m.advance(StatusReadyToStart)
	})
	if err != nil {
		return "", err
	}

	c.log.Info("versus opponent joined", "match_id", m.ID, "user_id", userID)
	c.publish(ctx, m)
	return m.ID, nil
}

// MarkReady flags the caller ready; the match starts once both participants are.
func (c *Controller) MarkReady(ctx context.Context, matchID, userID string) (*Match, error) {
	m, err := c.store.Update(ctx, matchID, func(m *Match) error {
		role := m.RoleOf(userID)
		if role == RoleNone {
			return apperr.Forbidden("not a participant in this game")
		}
		if m.Status == StatusPlaying || m.Status == StatusFinished {
			return ErrNoChange
		}

		if role == RoleCreator {
			m.CreatorReady = true
		} else {
			m.OpponentReady = true
		}
		if m.CreatorReady && m.OpponentReady && m.Status == StatusReadyToStart {
			return m.advance(StatusPlaying)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.publish(ctx, m)
	return m, nil
}

// Guess appends a guess for the caller. A guess equal to the word finishes the match
// and reconciles both players' stats.
func (c *Controller) Guess(ctx context.Context, matchID, userID, guess string) (*Match, error) {
	guess = strings.ToUpper(strings.TrimSpace(guess))

	var won bool
	m, err := c.store.Update(ctx, matchID, func(m *Match) error {
		won = false
		if len([]rune(guess)) != m.WordLength || !c.dict.IsAccepted(m.WordLength, guess) {
			return apperr.InvalidArgument("not in word list")
		}
		role := m.RoleOf(userID)
		if role == RoleNone {
			return apperr.Forbidden("not a participant in this game")
		}
		if m.Status != StatusPlaying {
			return apperr.InvalidState("game is not in progress")
		}

		list := m.guessesOf(role)
		*list = append(*list, guess)
		if guess != m.Word {
			return nil
		}

		m.WinnerID = userID
		if err := m.advance(StatusFinished); err != nil {
			return err
		}
		now := c.clock.Now()
		m.FinishedAt = &now
		m.Reconciled = true
		won = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if won {
		c.log.Info("versus match finished", "match_id", m.ID, "winner", m.WinnerID, "guesses",
			len(m.CreatorGuesses)+len(m.OpponentGuesses))
		c.reconcile(ctx, m)
	}
	c.publish(ctx, m)
	return m, nil
}

// FinishAccounting closes a match out of band. A playing match is finished with winnerID;
// an already finished match only gets its stats reconciled if that has not happened yet.
// Repeated calls never count a result twice.
func (c *Controller) FinishAccounting(ctx context.Context, matchID, callerID, winnerID string) (*Match, error) {
	var claimed bool
	m, err := c.store.Update(ctx, matchID, func(m *Match) error {
		claimed = false
		if m.RoleOf(callerID) == RoleNone {
			return apperr.Forbidden("not a participant in this game")
		}

		switch m.Status {
		case StatusFinished:
			if winnerID != "" && winnerID != m.WinnerID {
				return apperr.InvalidArgument("winnerId does not match the recorded winner")
			}
			if m.Reconciled {
				return ErrNoChange
			}
		case StatusPlaying:
			if m.RoleOf(winnerID) == RoleNone {
				return apperr.InvalidArgument("winnerId must be a participant")
			}
			m.WinnerID = winnerID
			if err := m.advance(StatusFinished); err != nil {
				return err
			}
			now := c.clock.Now()
			m.FinishedAt = &now
		default:
			return apperr.InvalidState("game has not started")
		}

		m.Reconciled = true
		claimed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if claimed {
		c.log.Info("versus match accounted", "match_id", m.ID, "winner", m.WinnerID)
		c.reconcile(ctx, m)
		c.publish(ctx, m)
	}
	return m, nil
}

func (c *Controller) Get(ctx context.Context, matchID string) (*Match, error) {
	return c.store.Get(ctx, matchID)
}

// CheckAccess fails with Forbidden unless userID is a participant.
func (c *Controller) CheckAccess(ctx context.Context, matchID, userID string) (*Match, error) {
	m, err := c.store.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.RoleOf(userID) == RoleNone {
		return nil, apperr.Forbidden("not a participant in this game")
	}
	return m, nil
}

// reconcile failures are logged and do not fail the guess that finished the match.
func (c *Controller) reconcile(ctx context.Context, m *Match) {
	if c.stats == nil {
		return
	}
	if err := c.stats.RecordVersusResult(ctx, m.WinnerID, m.LoserID()); err != nil {
		c.log.Error("versus stats reconcile failed", "match_id", m.ID, "winner", m.WinnerID, "err", err)
	}
}

func (c *Controller) publish(ctx context.Context, m *Match) {
	if c.broker == nil {
		return
	}
	if err := c.broker.Publish(ctx, m.View()); err != nil {
		c.log.Debug("live update publish failed", "match_id", m.ID, "err", err)
	}
}

// Subscribe streams views of one match. It is nil-safe when no broker is configured.
func (c *Controller) Subscribe(ctx context.Context, matchID string) (<-chan View, func(), error) {
	if c.broker == nil {
		return nil, nil, apperr.InvalidState("live updates are not enabled")
	}
	return c.broker.Subscribe(ctx, matchID)
}
