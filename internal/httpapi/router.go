package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"example.com/wordle-versus/internal/auth"
)

type RouterConfig struct {
	Logger     *slog.Logger
	Auth       auth.Verifier
	Accounts   *AuthHandler
	Stats      *StatsHandler
	Versus     *VersusHandler
	Dictionary *DictionaryHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.Use(Recovery(cfg.Logger))
	r.Use(Logging(cfg.Logger))

	requireAuth := AuthMiddleware(cfg.Auth)
	optionalAuth := OptionalAuthMiddleware(cfg.Auth)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// accounts
	users := api.PathPrefix("/users").Subrouter()
	users.HandleFunc("/register", cfg.Accounts.Register).Methods(http.MethodPost)
	users.HandleFunc("/login", cfg.Accounts.Login).Methods(http.MethodPost)
	users.HandleFunc("/auth/google", cfg.Accounts.GoogleLogin).Methods(http.MethodGet)
	users.HandleFunc("/auth/google/callback", cfg.Accounts.GoogleCallback).Methods(http.MethodGet)
	users.HandleFunc("/profile/{userId}", cfg.Accounts.Profile).Methods(http.MethodGet)
	users.HandleFunc("/stats/{userId}", cfg.Accounts.GetStats).Methods(http.MethodGet)
	users.HandleFunc("/leaderboard", cfg.Stats.Leaderboard).Methods(http.MethodGet)
	users.Handle("/stats/{userId}", requireAuth(http.HandlerFunc(cfg.Stats.Update))).Methods(http.MethodPut)
	users.Handle("/stats/{userId}/verification-token", requireAuth(http.HandlerFunc(cfg.Stats.IssueToken))).Methods(http.MethodPost)

	api.Handle("/me", requireAuth(http.HandlerFunc(cfg.Accounts.Me))).Methods(http.MethodGet)

	// versus
	vs := api.PathPrefix("/versus").Subrouter()
	vs.Use(optionalAuth)
	vs.HandleFunc("/create", cfg.Versus.Create).Methods(http.MethodPost)
	vs.HandleFunc("/join", cfg.Versus.Join).Methods(http.MethodPost)
	vs.HandleFunc("/ready", cfg.Versus.Ready).Methods(http.MethodPost)
	vs.HandleFunc("/guess", cfg.Versus.Guess).Methods(http.MethodPost)
	vs.HandleFunc("/game-over", cfg.Versus.GameOver).Methods(http.MethodPost)
	vs.HandleFunc("/game/{gameId}", cfg.Versus.Game).Methods(http.MethodGet)
	vs.HandleFunc("/access/{gameId}/{userId}", cfg.Versus.Access).Methods(http.MethodGet)

	r.HandleFunc("/ws/versus/{gameId}", cfg.Versus.Live).Methods(http.MethodGet)

	// dictionary
	dict := api.PathPrefix("/dictionary").Subrouter()
	dict.HandleFunc("/available-lengths", cfg.Dictionary.Lengths).Methods(http.MethodGet)
	dict.HandleFunc("/config/{length}", cfg.Dictionary.Config).Methods(http.MethodGet)
	dict.HandleFunc("/words/{length}", cfg.Dictionary.Words).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})

	// CORS wraps the router so preflight requests never reach method matching.
	return CORS(r)
}
