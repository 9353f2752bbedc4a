package stats

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/wordle-versus/internal/apperr"
	"example.com/wordle-versus/internal/clock"
	"example.com/wordle-versus/internal/store"
	"example.com/wordle-versus/internal/testutil"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newVerifier(t *testing.T) (*Verifier, *store.Memory, *clock.Mock) {
	t.Helper()
	mem := store.NewMemory()
	require.NoError(t, mem.Create(context.Background(), store.User{ID: "u1", Username: "alice", Email: "a@example.com"}))
	require.NoError(t, mem.Create(context.Background(), store.User{ID: "u2", Username: "bob", Email: "b@example.com"}))
	clk := clock.NewMock(t0)
	return NewVerifier(mem, DefaultLimits(), clk, testutil.NopLogger()), mem, clk
}

func summary(gameID string, won bool, at time.Time) json.RawMessage {
	boards := "[]"
	if won {
		boards = `[["CRANE","SLATE"]]`
	}
	return json.RawMessage(fmt.Sprintf(`{"gameId":%q,"won":%t,"boards":%s,"timestamp":%d}`, gameID, won, boards, at.UnixMilli()))
}

var claim = Claimed{GamesPlayed: 3, GamesWon: 2, Streak: 2, WinRate: 99}

func TestVerifyAndApply_Success(t *testing.T) {
	v, mem, clk := newVerifier(t)
	ctx := context.Background()
	mem.Put(store.UserStats{UserID: "u1", BestStreak: 5, VersusPlayed: 4, VersusWon: 1, VersusWinRate: 25})

	sum := summary("g1", true, t0)
	tok, err := v.Issue("u1", sum)
	require.NoError(t, err)

	clk.Advance(time.Minute)
	// whitespace differences are not tampering
	pretty := json.RawMessage(" " + string(sum) + "\n")
	st, err := v.VerifyAndApply(ctx, "u1", claim, tok, pretty)
	require.NoError(t, err)

	assert.Equal(t, 3, st.GamesPlayed)
	assert.Equal(t, 2, st.GamesWon)
	assert.Equal(t, 2, st.Streak)
	assert.Equal(t, 5, st.BestStreak)
	assert.Equal(t, 67, st.WinRate) // recomputed, not the claimed 99
	assert.Equal(t, 4, st.VersusPlayed)
	assert.Equal(t, 25, st.VersusWinRate)
	require.NotNil(t, st.LastStatsUpdate)
	assert.Equal(t, t0.Add(time.Minute), *st.LastStatsUpdate)
}

func TestVerifyAndApply_Checks(t *testing.T) {
	good := summary("g1", true, t0)

	tamperedUser, err := EncodeToken(Token{UserID: "u2", Timestamp: t0.UnixMilli(), GameID: "g1", GameData: good})
	require.NoError(t, err)

	cases := []struct {
		name    string
		token   func(v *Verifier) string
		summary json.RawMessage
		claimed Claimed
		advance time.Duration
		kind    apperr.Kind
	}{
		{
			name:    "missing token",
			token:   func(*Verifier) string { return "" },
			summary: good,
			kind:    apperr.KindInvalidArgument,
		},
		{
			name:    "missing summary",
			token:   func(v *Verifier) string { tok, _ := v.Issue("u1", good); return tok },
			summary: nil,
			kind:    apperr.KindInvalidArgument,
		},
		{
			name:    "undecodable token",
			token:   func(*Verifier) string { return "%%%not-base64" },
			summary: good,
			kind:    apperr.KindUnauthorized,
		},
		{
			name:    "token is not json",
			token:   func(*Verifier) string { return base64.RawURLEncoding.EncodeToString([]byte("hello")) },
			summary: good,
			kind:    apperr.KindUnauthorized,
		},
		{
			name:    "other user's token",
			token:   func(*Verifier) string { return tamperedUser },
			summary: good,
			kind:    apperr.KindForbidden,
		},
		{
			name:    "stale token",
			token:   func(v *Verifier) string { tok, _ := v.Issue("u1", good); return tok },
			summary: good,
			advance: 5*time.Minute + time.Millisecond,
			kind:    apperr.KindUnauthorized,
		},
		{
			name:    "game id mismatch",
			token:   func(v *Verifier) string { tok, _ := v.Issue("u1", good); return tok },
			summary: summary("g2", true, t0),
			kind:    apperr.KindInvalidArgument,
		},
		{
			name: "win without boards",
			token: func(v *Verifier) string {
				tok, _ := v.Issue("u1", json.RawMessage(`{"gameId":"g1","won":true,"boards":[]}`))
				return tok
			},
			summary: json.RawMessage(`{"gameId":"g1","won":true,"boards":[]}`),
			kind:    apperr.KindInvalidArgument,
		},
		{
			name: "old result",
			token: func(v *Verifier) string {
				tok, _ := v.Issue("u1", summary("g1", false, t0.Add(-25*time.Hour)))
				return tok
			},
			summary: summary("g1", false, t0.Add(-25*time.Hour)),
			kind:    apperr.KindInvalidArgument,
		},
		{
			name:    "mutated summary",
			token:   func(v *Verifier) string { tok, _ := v.Issue("u1", summary("g1", false, t0)); return tok },
			summary: good, // flipped to a win after issuance
			kind:    apperr.KindInvalidArgument,
		},
		{
			name:    "won exceeds played",
			token:   func(v *Verifier) string { tok, _ := v.Issue("u1", good); return tok },
			summary: good,
			claimed: Claimed{GamesPlayed: 1, GamesWon: 2, Streak: 1},
			kind:    apperr.KindInvalidArgument,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, mem, clk := newVerifier(t)
			tok := tc.token(v)
			clk.Advance(tc.advance)

			claimed := tc.claimed
			if claimed == (Claimed{}) {
				claimed = claim
			}
			_, err := v.VerifyAndApply(context.Background(), "u1", claimed, tok, tc.summary)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err), err.Error())

			st, err := mem.Get(context.Background(), "u1")
			require.NoError(t, err)
			assert.Equal(t, 0, st.GamesPlayed, "rejected update must not be persisted")
		})
	}
}

func TestVerifyAndApply_Replay(t *testing.T) {
	v, _, clk := newVerifier(t)
	ctx := context.Background()

	sum := summary("g1", true, t0)
	tok, err := v.Issue("u1", sum)
	require.NoError(t, err)

	_, err = v.VerifyAndApply(ctx, "u1", claim, tok, sum)
	require.NoError(t, err)

	// within the token window but before the minimum interval
	clk.Advance(5 * time.Second)
	_, err = v.VerifyAndApply(ctx, "u1", claim, tok, sum)
	assert.Equal(t, apperr.KindTooManyRequests, apperr.KindOf(err))

	// past the interval, still fresh
	clk.Advance(5 * time.Second)
	_, err = v.VerifyAndApply(ctx, "u1", claim, tok, sum)
	require.NoError(t, err)

	// past the token window
	clk.Advance(5 * time.Minute)
	_, err = v.VerifyAndApply(ctx, "u1", claim, tok, sum)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestVerifyAndApply_UnknownUser(t *testing.T) {
	v, _, _ := newVerifier(t)
	sum := summary("g1", false, t0)
	tok, err := v.Issue("ghost", sum)
	require.NoError(t, err)

	_, err = v.VerifyAndApply(context.Background(), "ghost", Claimed{GamesPlayed: 1}, tok, sum)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestIssue(t *testing.T) {
	v, _, _ := newVerifier(t)

	_, err := v.Issue("u1", nil)
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
	_, err = v.Issue("u1", json.RawMessage(`{"won":true}`))
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
	_, err = v.Issue("u1", json.RawMessage(`[1,2]`))
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))

	tok, err := v.Issue("u1", json.RawMessage(`{ "gameId": "g9", "won": false }`))
	require.NoError(t, err)

	decoded, err := DecodeToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", decoded.UserID)
	assert.Equal(t, "g9", decoded.GameID)
	assert.Equal(t, t0, decoded.IssuedAt().UTC())
	assert.JSONEq(t, `{"gameId":"g9","won":false}`, string(decoded.GameData))
}
