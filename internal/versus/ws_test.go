package versus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeLive_StreamsUntilFinished(t *testing.T) {
	f := newFixture(t, WithBroker(NewMemoryBroker()))
	ctx := context.Background()
	id := f.playing(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m, err := f.ctrl.Get(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		f.ctrl.ServeLive(w, r, m)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var v View
	require.NoError(t, conn.ReadJSON(&v))
	assert.Equal(t, StatusPlaying, v.Status)
	assert.Empty(t, v.Word)

	_, err = f.ctrl.Guess(ctx, id, "alice", "slate")
	require.NoError(t, err)
	require.NoError(t, conn.ReadJSON(&v))
	assert.Equal(t, []string{"SLATE"}, v.CreatorGuesses)

	_, err = f.ctrl.Guess(ctx, id, "bob", "crane")
	require.NoError(t, err)
	require.NoError(t, conn.ReadJSON(&v))
	assert.Equal(t, StatusFinished, v.Status)
	assert.Equal(t, "CRANE", v.Word)

	// server closes the stream after the final view
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestServeLive_NoBroker(t *testing.T) {
	f := newFixture(t)
	id := f.playing(t)
	m, err := f.ctrl.Get(context.Background(), id)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	f.ctrl.ServeLive(rec, httptest.NewRequest(http.MethodGet, "/", nil), m)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
