package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"example.com/wordle-versus/internal/apperr"
	"example.com/wordle-versus/internal/stats"
	"example.com/wordle-versus/internal/store"
)

const leaderboardSize = 10

// SoloVerifier issues and checks solo-result verification tokens.
type SoloVerifier interface {
	Issue(userID string, summary json.RawMessage) (string, error)
	VerifyAndApply(ctx context.Context, userID string, claimed stats.Claimed, token string, summary json.RawMessage) (store.UserStats, error)
}

type StatsHandler struct {
	Verifier SoloVerifier
	Stats    StatsReader
	Log      *slog.Logger
}

type UpdateStatsRequest struct {
	stats.Claimed
	VerificationToken string          `json:"verificationToken"`
	GameSummary       json.RawMessage `json:"gameSummary"`
}

type TokenRequest struct {
	GameSummary json.RawMessage `json:"gameSummary"`
}

// ownPath fails unless the authenticated user is the one named in the path.
func ownPath(r *http.Request) (string, error) {
	userID := mux.Vars(r)["userId"]
	caller, ok := UserIDFromContext(r.Context())
	if !ok {
		return "", apperr.Unauthorized("missing auth context")
	}
	if caller != userID {
		return "", apperr.Forbidden("cannot modify another user's stats")
	}
	return userID, nil
}

func (h *StatsHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := ownPath(r)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}

	var req UpdateStatsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}

	st, err := h.Verifier.VerifyAndApply(r.Context(), userID, req.Claimed, req.VerificationToken, req.GameSummary)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *StatsHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	userID, err := ownPath(r)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}

	var req TokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}

	token, err := h.Verifier.Issue(userID, req.GameSummary)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"verificationToken": token})
}

func (h *StatsHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	var normal, versus []store.LeaderboardEntry

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		normal, err = h.Stats.Leaderboard(ctx, store.ModeNormal, leaderboardSize)
		return err
	})
	g.Go(func() error {
		var err error
		versus, err = h.Stats.Leaderboard(ctx, store.ModeVersus, leaderboardSize)
		return err
	})
	if err := g.Wait(); err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}

	if normal == nil {
		normal = []store.LeaderboardEntry{}
	}
	if versus == nil {
		versus = []store.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"normal": normal, "versus": versus})
}
