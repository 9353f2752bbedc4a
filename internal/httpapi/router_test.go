package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/wordle-versus/internal/auth"
	"example.com/wordle-versus/internal/clock"
	"example.com/wordle-versus/internal/dictionary"
	"example.com/wordle-versus/internal/random"
	"example.com/wordle-versus/internal/stats"
	"example.com/wordle-versus/internal/store"
	"example.com/wordle-versus/internal/testutil"
	"example.com/wordle-versus/internal/versus"
)

type fakeGoogle struct {
	identity auth.Identity
	err      error
}

func (f *fakeGoogle) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (f *fakeGoogle) Exchange(context.Context, string) (auth.Identity, error) {
	return f.identity, f.err
}

type testEnv struct {
	h      http.Handler
	mem    *store.Memory
	tokens *auth.Service
	clock  *clock.Mock
	google *fakeGoogle
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	log := testutil.NopLogger()

	dict, err := dictionary.New(&random.Fixed{},
		dictionary.Entry{Length: 5, Common: []string{"crane"}, Accepted: []string{"slate"}, Config: dictionary.GameConfig{ExtraAttempts: 5}},
		dictionary.Entry{Length: 4, Common: []string{"word"}, Config: dictionary.GameConfig{ExtraAttempts: 6}},
	)
	require.NoError(t, err)

	mem := store.NewMemory()
	clk := clock.NewMock(time.Now().UTC().Truncate(time.Millisecond))
	tokens := auth.NewService([]byte("test-secret"))
	ctrl := versus.NewController(versus.NewInMemoryMatchStore(time.Hour, clk), dict, mem, log,
		versus.WithClock(clk), versus.WithBroker(versus.NewMemoryBroker()))
	verifier := stats.NewVerifier(mem, stats.DefaultLimits(), clk, log)
	google := &fakeGoogle{}

	h := NewRouter(RouterConfig{
		Logger: log,
		Auth:   tokens,
		Accounts: &AuthHandler{
			Users: mem, Stats: mem, Tokens: tokens, TokenTTL: time.Hour,
			Google: google, FrontendURL: "http://front.example.com/", Log: log,
		},
		Stats:      &StatsHandler{Verifier: verifier, Stats: mem, Log: log},
		Versus:     &VersusHandler{Ctrl: ctrl, Auth: tokens, Log: log},
		Dictionary: &DictionaryHandler{Dict: dict, Log: log},
	})
	return &testEnv{h: h, mem: mem, tokens: tokens, clock: clk, google: google}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) register(t *testing.T, name string) SessionResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/users/register", "", RegisterRequest{
		Username: name, Email: name + "@example.com", Password: "hunter22",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[SessionResponse](t, rec)
}

func TestRegisterLoginMe(t *testing.T) {
	e := newEnv(t)
	alice := e.register(t, "alice")
	assert.NotEmpty(t, alice.Token)
	assert.Equal(t, "alice", alice.Username)
	assert.Equal(t, 0, alice.Stats.GamesPlayed)

	rec := e.do(t, http.MethodPost, "/api/users/register", "", RegisterRequest{Username: "other", Email: "ALICE@example.com", Password: "x"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "email_taken", decode[ErrorResponse](t, rec).Code)

	rec = e.do(t, http.MethodPost, "/api/users/register", "", RegisterRequest{Username: "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/users/login", "", LoginRequest{Email: "alice@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = e.do(t, http.MethodPost, "/api/users/login", "", LoginRequest{Email: "nobody@example.com", Password: "hunter22"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/users/login", "", LoginRequest{Email: " Alice@Example.com ", Password: "hunter22"})
	require.Equal(t, http.StatusOK, rec.Code)
	sess := decode[SessionResponse](t, rec)
	assert.Equal(t, alice.UserID, sess.UserID)

	rec = e.do(t, http.MethodGet, "/api/me", sess.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[map[string]any](t, rec)
	assert.Equal(t, "alice", me["username"])

	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/me", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/me", "garbage", nil).Code)

	rec = e.do(t, http.MethodGet, "/api/users/profile/"+alice.UserID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/users/profile/missing", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/users/stats/missing", "", nil).Code)
}

func TestVersusFlow(t *testing.T) {
	e := newEnv(t)
	alice := e.register(t, "alice")
	bob := e.register(t, "bob")
	carol := e.register(t, "carol")

	rec := e.do(t, http.MethodPost, "/api/versus/create", alice.Token, map[string]any{"wordLength": 7})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/versus/create", alice.Token, map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)
	created := decode[versus.CreateResult](t, rec)
	assert.Len(t, created.GameCode, 8)

	rec = e.do(t, http.MethodPost, "/api/versus/join", alice.Token, JoinRequest{GameCode: created.GameCode})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/versus/join", bob.Token, JoinRequest{GameCode: "zzzzzzzz"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// body userId must agree with the token
	rec = e.do(t, http.MethodPost, "/api/versus/join", bob.Token, JoinRequest{GameCode: created.GameCode, UserID: alice.UserID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/versus/join", bob.Token, JoinRequest{GameCode: strings.ToLower(created.GameCode)})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.GameID, decode[map[string]string](t, rec)["gameId"])

	rec = e.do(t, http.MethodPost, "/api/versus/ready", carol.Token, MatchRequest{GameID: created.GameID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/versus/ready", alice.Token, MatchRequest{GameID: created.GameID})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodPost, "/api/versus/ready", bob.Token, MatchRequest{GameID: created.GameID})
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[versus.View](t, rec)
	assert.Equal(t, versus.StatusPlaying, view.Status)
	assert.Empty(t, view.Word)

	rec = e.do(t, http.MethodGet, "/api/versus/game/"+created.GameID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "CRANE")

	rec = e.do(t, http.MethodPost, "/api/versus/guess", bob.Token, GuessRequest{MatchRequest: MatchRequest{GameID: created.GameID}, Guess: "zzzzz"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/versus/guess", bob.Token, GuessRequest{MatchRequest: MatchRequest{GameID: created.GameID}, Guess: "crane"})
	require.Equal(t, http.StatusOK, rec.Code)
	guessed := decode[struct {
		Game versus.View `json:"game"`
	}](t, rec)
	assert.Equal(t, versus.StatusFinished, guessed.Game.Status)
	assert.Equal(t, bob.UserID, guessed.Game.WinnerID)
	assert.Equal(t, "CRANE", guessed.Game.Word)

	rec = e.do(t, http.MethodPost, "/api/versus/guess", alice.Token, GuessRequest{MatchRequest: MatchRequest{GameID: created.GameID}, Guess: "slate"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", decode[ErrorResponse](t, rec).Code)

	rec = e.do(t, http.MethodPost, "/api/versus/game-over", alice.Token, GameOverRequest{MatchRequest: MatchRequest{GameID: created.GameID}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]bool](t, rec)["success"])

	st, err := e.mem.Get(context.Background(), bob.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.VersusWon)
	assert.Equal(t, 1, st.VersusPlayed)

	rec = e.do(t, http.MethodGet, fmt.Sprintf("/api/versus/access/%s/%s", created.GameID, alice.UserID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]bool](t, rec)["hasAccess"])
	rec = e.do(t, http.MethodGet, fmt.Sprintf("/api/versus/access/%s/%s", created.GameID, carol.UserID), "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/versus/game/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/users/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decode[map[string][]store.LeaderboardEntry](t, rec)
	require.Len(t, board["versus"], 2)
	assert.Equal(t, "bob", board["versus"][0].Username)
	assert.NotNil(t, board["normal"])
}

func TestVersusAnonymousCreate(t *testing.T) {
	e := newEnv(t)
	bob := e.register(t, "bob")

	rec := e.do(t, http.MethodPost, "/api/versus/create", "", map[string]any{"wordLength": 4})
	require.Equal(t, http.StatusOK, rec.Code)
	created := decode[versus.CreateResult](t, rec)

	rec = e.do(t, http.MethodPost, "/api/versus/join", bob.Token, JoinRequest{GameCode: created.GameCode})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/versus/create", "not-a-jwt", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func summaryJSON(gameID string, at time.Time) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"gameId":%q,"won":true,"boards":[["CRANE"]],"timestamp":%d}`, gameID, at.UnixMilli()))
}

func TestSoloStats(t *testing.T) {
	e := newEnv(t)
	alice := e.register(t, "alice")
	bob := e.register(t, "bob")
	sum := summaryJSON("g1", e.clock.Now())
	tokenPath := "/api/users/stats/" + alice.UserID + "/verification-token"

	rec := e.do(t, http.MethodPost, tokenPath, "", TokenRequest{GameSummary: sum})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = e.do(t, http.MethodPost, tokenPath, bob.Token, TokenRequest{GameSummary: sum})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPost, tokenPath, alice.Token, TokenRequest{GameSummary: sum})
	require.Equal(t, http.StatusOK, rec.Code)
	vt := decode[map[string]string](t, rec)["verificationToken"]
	require.NotEmpty(t, vt)

	update := UpdateStatsRequest{
		Claimed:           stats.Claimed{GamesPlayed: 4, GamesWon: 3, Streak: 2, WinRate: 100},
		VerificationToken: vt,
		GameSummary:       sum,
	}
	rec = e.do(t, http.MethodPut, "/api/users/stats/"+alice.UserID, alice.Token, update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decode[store.UserStats](t, rec)
	assert.Equal(t, 75, st.WinRate)
	assert.Equal(t, 2, st.BestStreak)

	rec = e.do(t, http.MethodPut, "/api/users/stats/"+alice.UserID, alice.Token, update)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	e.clock.Advance(6 * time.Minute)
	rec = e.do(t, http.MethodPut, "/api/users/stats/"+alice.UserID, alice.Token, update)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	update.VerificationToken = ""
	rec = e.do(t, http.MethodPut, "/api/users/stats/"+alice.UserID, alice.Token, update)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/users/stats/"+alice.UserID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, decode[store.UserStats](t, rec).GamesPlayed)
}

func TestDictionaryRoutes(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/dictionary/available-lengths", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"lengths":[4,5]}`, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/dictionary/config/4", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"extraAttempts":6}`, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/dictionary/words/5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"words":["CRANE"]}`, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/dictionary/words/5?rare=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"words":["CRANE","SLATE"]}`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/dictionary/config/9", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/dictionary/words/abc", "", nil).Code)
}

func TestGoogleLogin(t *testing.T) {
	e := newEnv(t)
	e.google.identity = auth.Identity{Subject: "g-1", Email: "dana@example.com", DisplayName: "Dana"}

	rec := e.do(t, http.MethodGet, "/api/users/auth/google", "", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == stateCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, state, cookie.Value)

	callback := func(state string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/users/auth/google/callback?code=abc&state="+state, nil)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		e.h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusBadRequest, callback("forged").Code)

	for range 2 {
		rec = callback(state)
		require.Equal(t, http.StatusFound, rec.Code)
		loc, err = url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "front.example.com", loc.Host)
		assert.Equal(t, "/auth/callback", loc.Path)
		assert.Equal(t, "Dana", loc.Query().Get("username"))

		claims, err := e.tokens.Verify(loc.Query().Get("token"))
		require.NoError(t, err)
		assert.Equal(t, loc.Query().Get("userId"), claims.UserID)
	}

	u, err := e.mem.GetByEmail(context.Background(), "dana@example.com")
	require.NoError(t, err)
	assert.Equal(t, store.ProviderGoogle, u.AuthProvider)
}

func TestCORSPreflightAndNotFound(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/versus/create", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.MethodPost, rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	req = httptest.NewRequest(http.MethodOptions, "/api/versus/create", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	rec = httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec = httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = e.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLiveRequiresParticipant(t *testing.T) {
	e := newEnv(t)
	alice := e.register(t, "alice")
	carol := e.register(t, "carol")

	rec := e.do(t, http.MethodPost, "/api/versus/create", alice.Token, map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)
	created := decode[versus.CreateResult](t, rec)

	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/ws/versus/"+created.GameID, "", nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodGet, "/ws/versus/"+created.GameID+"?token="+carol.Token, "", nil).Code)
}
