package versus

import (
	"slices"
	"time"

	"example.com/wordle-versus/internal/apperr"
)

type Status string

const (
	StatusWaitingOpponent Status = "waiting_opponent"
	StatusReadyToStart    Status = "ready_to_start"
	StatusPlaying         Status = "playing"
	StatusFinished        Status = "finished"
)

var statusOrder = []Status{StatusWaitingOpponent, StatusReadyToStart, StatusPlaying, StatusFinished}

func (s Status) rank() int {
	return slices.Index(statusOrder, s)
}

// Role is the caller's seat in a match.
type Role int

const (
	RoleNone Role = iota
	RoleCreator
	RoleOpponent
)

func (r Role) String() string {
	switch r {
	case RoleCreator:
		return "creator"
	case RoleOpponent:
		return "opponent"
	default:
		return "none"
	}
}

// Match is the stored record of one versus game.
type Match struct {
	ID              string     `json:"id"`
	Code            string     `json:"gameCode"`
	Word            string     `json:"word"`
	WordLength      int        `json:"wordLength"`
	CreatorID       string     `json:"creator,omitempty"` // empty for anonymous creators
	OpponentID      string     `json:"opponent,omitempty"`
	CreatorGuesses  []string   `json:"creatorGuesses"`
	OpponentGuesses []string   `json:"opponentGuesses"`
	Status          Status     `json:"status"`
	CreatorReady    bool       `json:"creatorReady"`
	OpponentReady   bool       `json:"opponentReady"`
	WinnerID        string     `json:"winner,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`

	// Reconciled is set once the result has been claimed for stats accounting.
	Reconciled bool `json:"reconciled"`
}

func newMatch(id, code, word string, creatorID string, now time.Time) *Match {
	return &Match{
		ID:              id,
		Code:            code,
		Word:            word,
		WordLength:      len([]rune(word)),
		CreatorID:       creatorID,
		CreatorGuesses:  []string{},
		OpponentGuesses: []string{},
		Status:          StatusWaitingOpponent,
		CreatedAt:       now,
	}
}

// RoleOf never matches an empty id, so an anonymous creator and an unset opponent
// cannot be confused with each other.
func (m *Match) RoleOf(userID string) Role {
	switch {
	case userID == "":
		return RoleNone
	case m.CreatorID != "" && userID == m.CreatorID:
		return RoleCreator
	case m.OpponentID != "" && userID == m.OpponentID:
		return RoleOpponent
	default:
		return RoleNone
	}
}

// advance moves to the next status. Skipping or going back is an InvalidState error.
func (m *Match) advance(to Status) error {
	if to.rank() != m.Status.rank()+1 {
		return apperr.Newf(apperr.KindInvalidState, "cannot move match from %s to %s", m.Status, to)
	}
	m.Status = to
	return nil
}

func (m *Match) guessesOf(r Role) *[]string {
	if r == RoleCreator {
		return &m.CreatorGuesses
	}
	return &m.OpponentGuesses
}

// LoserID is the participant that is not the winner; empty if unknown or anonymous.
func (m *Match) LoserID() string {
	switch m.RoleOf(m.WinnerID) {
	case RoleCreator:
		return m.OpponentID
	case RoleOpponent:
		return m.CreatorID
	default:
		return ""
	}
}

// View is what clients see. The secret word is only revealed once the match is finished;
// until then per-letter feedback lets clients color tiles.
type View struct {
	ID               string          `json:"id"`
	Code             string          `json:"gameCode"`
	Word             string          `json:"word,omitempty"`
	WordLength       int             `json:"wordLength"`
	CreatorID        string          `json:"creator,omitempty"`
	OpponentID       string          `json:"opponent,omitempty"`
	CreatorGuesses   []string        `json:"creatorGuesses"`
	OpponentGuesses  []string        `json:"opponentGuesses"`
	CreatorFeedback  [][]LetterState `json:"creatorFeedback"`
	OpponentFeedback [][]LetterState `json:"opponentFeedback"`
	Status           Status          `json:"status"`
	CreatorReady     bool            `json:"creatorReady"`
	OpponentReady    bool            `json:"opponentReady"`
	WinnerID         string          `json:"winner,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

func (m *Match) View() View {
	v := View{
		ID:               m.ID,
		Code:             m.Code,
		WordLength:       m.WordLength,
		CreatorID:        m.CreatorID,
		OpponentID:       m.OpponentID,
		CreatorGuesses:   slices.Clone(m.CreatorGuesses),
		OpponentGuesses:  slices.Clone(m.OpponentGuesses),
		CreatorFeedback:  scoreAll(m.Word, m.CreatorGuesses),
		OpponentFeedback: scoreAll(m.Word, m.OpponentGuesses),
		Status:           m.Status,
		CreatorReady:     m.CreatorReady,
		OpponentReady:    m.OpponentReady,
		WinnerID:         m.WinnerID,
		CreatedAt:        m.CreatedAt,
	}
	if m.Status == StatusFinished {
		v.Word = m.Word
	}
	if v.CreatorGuesses == nil {
		v.CreatorGuesses = []string{}
	}
	if v.OpponentGuesses == nil {
		v.OpponentGuesses = []string{}
	}
	return v
}
