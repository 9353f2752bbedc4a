package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"example.com/wordle-versus/internal/apperr"
	"example.com/wordle-versus/internal/auth"
	"example.com/wordle-versus/internal/store"
)

// Users is the account storage the handlers need.
type Users interface {
	Create(ctx context.Context, u store.User) error
	GetByEmail(ctx context.Context, email string) (store.User, error)
	GetByID(ctx context.Context, id string) (store.User, error)
}

// StatsReader serves stats reads and leaderboards.
type StatsReader interface {
	Get(ctx context.Context, userID string) (store.UserStats, error)
	Leaderboard(ctx context.Context, mode store.Mode, limit int) ([]store.LeaderboardEntry, error)
}

type TokenSigner interface {
	Sign(userID string, ttl time.Duration) (string, error)
}

const stateCookie = "oauth_state"

type AuthHandler struct {
	Users    Users
	Stats    StatsReader
	Tokens   TokenSigner
	TokenTTL time.Duration

	// Google is nil when Google login is not configured.
	Google      auth.IdentityProvider
	FrontendURL string

	Log *slog.Logger
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SessionResponse struct {
	Token    string          `json:"token"`
	UserID   string          `json:"userId"`
	Email    string          `json:"email"`
	Username string          `json:"username"`
	Stats    store.UserStats `json:"stats"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Username = strings.TrimSpace(req.Username)

	if req.Email == "" || req.Password == "" || req.Username == "" {
		writeError(w, http.StatusBadRequest, "invalid_argument", "username, email and password are required")
		return
	}

	hash, err := auth.HashPassword(req.Password, 0)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}

	u := store.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		AuthProvider: store.ProviderLocal,
	}
	if err := h.Users.Create(r.Context(), u); err != nil {
		switch {
		case errors.Is(err, store.ErrEmailTaken):
			writeError(w, http.StatusConflict, "email_taken", "email already exists")
		case errors.Is(err, store.ErrUsernameTaken):
			writeError(w, http.StatusConflict, "username_taken", "username already exists")
		default:
			writeAppError(w, r, h.Log, err)
		}
		return
	}

	h.Log.Info("user registered", "user_id", u.ID)
	h.writeSession(w, r, http.StatusCreated, u)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_argument", "email and password are required")
		return
	}

	u, err := h.Users.GetByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, store.ErrUserNotFound) {
		writeAppError(w, r, h.Log, err)
		return
	}
	if err != nil || auth.CheckPassword(u.PasswordHash, req.Password) != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}

	h.writeSession(w, r, http.StatusOK, u)
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, r *http.Request, status int, u store.User) {
	resp, err := h.session(r.Context(), u)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	writeJSON(w, status, resp)
}

func (h *AuthHandler) session(ctx context.Context, u store.User) (SessionResponse, error) {
	token, err := h.Tokens.Sign(u.ID, h.TokenTTL)
	if err != nil {
		return SessionResponse{}, err
	}
	st, err := h.Stats.Get(ctx, u.ID)
	if err != nil && !errors.Is(err, store.ErrStatsNotFound) {
		return SessionResponse{}, err
	}
	return SessionResponse{Token: token, UserID: u.ID, Email: u.Email, Username: u.Username, Stats: st}, nil
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing auth context")
		return
	}

	u, err := h.Users.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "user not found")
		return
	}

	st, err := h.Stats.Get(r.Context(), userID)
	if err != nil && !errors.Is(err, store.ErrStatsNotFound) {
		writeAppError(w, r, h.Log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":           u.ID,
		"username":     u.Username,
		"email":        u.Email,
		"authProvider": u.AuthProvider,
		"createdAt":    u.CreatedAt,
		"stats":        st,
	})
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	u, err := h.Users.GetByID(r.Context(), userID)
	if err != nil {
		writeAppError(w, r, h.Log, notFoundAs(err, store.ErrUserNotFound, "user not found"))
		return
	}
	st, err := h.Stats.Get(r.Context(), userID)
	if err != nil && !errors.Is(err, store.ErrStatsNotFound) {
		writeAppError(w, r, h.Log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"username": u.Username,
		"email":    u.Email,
		"stats":    st,
	})
}

func (h *AuthHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Stats.Get(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeAppError(w, r, h.Log, notFoundAs(err, store.ErrStatsNotFound, "user not found"))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.Google == nil {
		writeError(w, http.StatusNotFound, "not_found", "google login is not configured")
		return
	}

	state, err := auth.NewState()
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/api/users/auth/google",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.Google.AuthCodeURL(state), http.StatusFound)
}

// GoogleCallback signs the user in, creating the account on first login, and hands the
// session to the frontend through query parameters.
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.Google == nil {
		writeError(w, http.StatusNotFound, "not_found", "google login is not configured")
		return
	}

	c, err := r.Cookie(stateCookie)
	q := r.URL.Query()
	if err != nil || c.Value == "" || c.Value != q.Get("state") {
		writeError(w, http.StatusBadRequest, "invalid_argument", "invalid oauth state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/api/users/auth/google", MaxAge: -1})

	id, err := h.Google.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		h.Log.Warn("google exchange failed", "err", err)
		writeError(w, http.StatusUnauthorized, "unauthorized", "google sign-in failed")
		return
	}

	u, err := h.provision(r.Context(), id)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}

	sess, err := h.session(r.Context(), u)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	stats, _ := json.Marshal(sess.Stats)

	params := url.Values{}
	params.Set("token", sess.Token)
	params.Set("userId", sess.UserID)
	params.Set("email", sess.Email)
	params.Set("username", sess.Username)
	params.Set("stats", string(stats))

	target := strings.TrimRight(h.FrontendURL, "/") + "/auth/callback?" + params.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *AuthHandler) provision(ctx context.Context, id auth.Identity) (store.User, error) {
	u, err := h.Users.GetByEmail(ctx, id.Email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		return store.User{}, err
	}

	name := id.DisplayName
	if name == "" {
		name, _, _ = strings.Cut(id.Email, "@")
	}
	u = store.User{
		ID:           uuid.NewString(),
		Username:     name,
		Email:        id.Email,
		AuthProvider: store.ProviderGoogle,
	}
	if err := h.Users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			// created concurrently by another callback
			return h.Users.GetByEmail(ctx, id.Email)
		}
		return store.User{}, err
	}
	h.Log.Info("user provisioned from google", "user_id", u.ID)
	return u, nil
}

// notFoundAs turns a store sentinel into a NotFound error.
func notFoundAs(err, sentinel error, msg string) error {
	if errors.Is(err, sentinel) {
		return apperr.NotFound(msg)
	}
	return err
}
