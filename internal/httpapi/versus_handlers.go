package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"example.com/wordle-versus/internal/apperr"
	"example.com/wordle-versus/internal/auth"
	"example.com/wordle-versus/internal/versus"
)

const defaultWordLength = 5

type VersusHandler struct {
	Ctrl *versus.Controller
	Auth auth.Verifier
	Log  *slog.Logger
}

type CreateMatchRequest struct {
	UserID     string `json:"userId"`
	WordLength *int   `json:"wordLength"`
}

type JoinRequest struct {
	GameCode string `json:"gameCode"`
	UserID   string `json:"userId"`
}

type MatchRequest struct {
	GameID string `json:"gameId"`
	UserID string `json:"userId"`
}

type GuessRequest struct {
	MatchRequest
	Guess string `json:"guess"`
}

type GameOverRequest struct {
	MatchRequest
	WinnerID string `json:"winnerId"`
}

// callerID prefers the authenticated user. Unauthenticated callers are identified by the
// userId they send.
func callerID(r *http.Request, bodyID string) (string, error) {
	uid, ok := UserIDFromContext(r.Context())
	if !ok {
		return bodyID, nil
	}
	if bodyID != "" && bodyID != uid {
		return "", apperr.Forbidden("userId does not match the authenticated user")
	}
	return uid, nil
}

func (h *VersusHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateMatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	userID, err := callerID(r, req.UserID)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	length := defaultWordLength
	if req.WordLength != nil {
		length = *req.WordLength
	}

	res, err := h.Ctrl.Create(r.Context(), userID, length)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *VersusHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	userID, err := callerID(r, req.UserID)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}

	id, err := h.Ctrl.Join(r.Context(), req.GameCode, userID)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"gameId": id})
}

func (h *VersusHandler) Ready(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	userID, err := callerID(r, req.UserID)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}

	m, err := h.Ctrl.MarkReady(r.Context(), req.GameID, userID)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, m.View())
}

func (h *VersusHandler) Guess(w http.ResponseWriter, r *http.Request) {
	var req GuessRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	userID, err := callerID(r, req.UserID)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}

	m, err := h.Ctrl.Guess(r.Context(), req.GameID, userID, req.Guess)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"game": m.View()})
}

func (h *VersusHandler) Game(w http.ResponseWriter, r *http.Request) {
	m, err := h.Ctrl.Get(r.Context(), mux.Vars(r)["gameId"])
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, m.View())
}

func (h *VersusHandler) Access(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if _, err := h.Ctrl.CheckAccess(r.Context(), vars["gameId"], vars["userId"]); err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"hasAccess": true})
}

func (h *VersusHandler) GameOver(w http.ResponseWriter, r *http.Request) {
	var req GameOverRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	userID, err := callerID(r, req.UserID)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}

	if _, err := h.Ctrl.FinishAccounting(r.Context(), req.GameID, userID, req.WinnerID); err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Live streams match state over a websocket. Browsers cannot set headers on the upgrade
// request, so the token may also come as ?token=.
func (h *VersusHandler) Live(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing token")
		return
	}
	claims, err := h.Auth.Verify(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return
	}

	m, err := h.Ctrl.CheckAccess(r.Context(), mux.Vars(r)["gameId"], claims.UserID)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	h.Ctrl.ServeLive(w, r, m)
}
