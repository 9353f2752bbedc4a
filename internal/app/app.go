package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"example.com/wordle-versus/internal/auth"
	"example.com/wordle-versus/internal/config"
	"example.com/wordle-versus/internal/dictionary"
	"example.com/wordle-versus/internal/httpapi"
	"example.com/wordle-versus/internal/migrate"
	"example.com/wordle-versus/internal/random"
	"example.com/wordle-versus/internal/stats"
	"example.com/wordle-versus/internal/store"
	"example.com/wordle-versus/internal/versus"
)

const pingTimeout = 5 * time.Second

type App struct {
	cfg config.Config
	log *slog.Logger

	db  *pgxpool.Pool
	rdb *redis.Client

	srv *http.Server
}

type Options struct {
	// InMemory runs without Postgres and Redis. State is lost on restart.
	InMemory bool
}

type statsBackend interface {
	httpapi.StatsReader
	stats.Store
	versus.StatsRecorder
}

// backends is what the handlers are wired against, either Postgres+Redis or in-memory.
type backends struct {
	users   httpapi.Users
	stats   statsBackend
	matches versus.MatchStore
	broker  versus.Broker
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger, opts Options) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{cfg: cfg, log: log}

	dict, err := dictionary.LoadDefault(cfg.Dictionary.Dir, random.New())
	if err != nil {
		return nil, fmt.Errorf("dictionary: %w", err)
	}
	log.Info("dictionary loaded", "lengths", dict.AvailableLengths())

	var b backends
	if opts.InMemory {
		log.Warn("running with in-memory storage, nothing is persisted")
		mem := store.NewMemory()
		b = backends{
			users:   mem,
			stats:   mem,
			matches: versus.NewInMemoryMatchStore(cfg.Redis.MatchTTL, nil),
			broker:  versus.NewMemoryBroker(),
		}
	} else {
		b, err = a.connect(ctx)
		if err != nil {
			return nil, err
		}
	}

	tokens := auth.NewService([]byte(cfg.Auth.Secret))
	ctrl := versus.NewController(b.matches, dict, b.stats, log.With("component", "versus"),
		versus.WithBroker(b.broker))
	verifier := stats.NewVerifier(b.stats, stats.Limits{
		TokenMaxAge:       cfg.Stats.TokenMaxAge,
		SummaryMaxAge:     cfg.Stats.SummaryMaxAge,
		MinUpdateInterval: cfg.Stats.MinUpdateInterval,
	}, nil, log.With("component", "stats"))

	var google auth.IdentityProvider
	if cfg.GoogleEnabled() {
		google = auth.NewGoogleProvider(auth.GoogleConfig{
			ClientID:     cfg.OAuth.GoogleClientID,
			ClientSecret: cfg.OAuth.GoogleClientSecret,
			RedirectURL:  cfg.OAuth.GoogleCallbackURL,
		})
	} else {
		log.Info("google login disabled (GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set)")
	}

	handler := httpapi.NewRouter(httpapi.RouterConfig{
		Logger: log,
		Auth:   tokens,
		Accounts: &httpapi.AuthHandler{
			Users:       b.users,
			Stats:       b.stats,
			Tokens:      tokens,
			TokenTTL:    cfg.Auth.TokenTTL,
			Google:      google,
			FrontendURL: cfg.OAuth.FrontendURL,
			Log:         log,
		},
		Stats:      &httpapi.StatsHandler{Verifier: verifier, Stats: b.stats, Log: log},
		Versus:     &httpapi.VersusHandler{Ctrl: ctrl, Auth: tokens, Log: log},
		Dictionary: &httpapi.DictionaryHandler{Dict: dict, Log: log},
	})

	a.srv = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	return a, nil
}

// connect opens Postgres and Redis. Unreachable stores are logged, not fatal: the pools
// reconnect on demand and requests fail until the stores come back.
func (a *App) connect(ctx context.Context) (backends, error) {
	cfg := a.cfg

	if cfg.Postgres.RunMigrations {
		if err := migrate.Up(cfg.Postgres.URL, a.log); err != nil {
			a.log.Error("migrations failed", "err", err)
		}
	}

	dbpool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		return backends{}, fmt.Errorf("pgxpool: %w", err)
	}
	a.db = dbpool

	a.rdb = redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(pingCtx)
	g.Go(func() error {
		if err := dbpool.Ping(gctx); err != nil {
			a.log.Error("postgres unreachable, continuing degraded", "err", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := a.rdb.Ping(gctx).Err(); err != nil {
			a.log.Error("redis unreachable, continuing degraded", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB, "err", err)
		}
		return nil
	})
	_ = g.Wait()

	users := store.NewUserStore(dbpool)
	return backends{
		users:   users,
		stats:   store.NewStatsStore(dbpool),
		matches: versus.NewRedisMatchStore(a.rdb, cfg.Redis.MatchTTL),
		broker:  versus.NewRedisBroker(a.rdb, a.log),
	}, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.srv.Handler
}

func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr)

	g.Go(func() error {
		err := a.srv.ListenAndServe()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.log.Info("http server shutting down")
		_ = a.srv.Shutdown(shutdownCtx)
		return nil
	})

	err := g.Wait()
	_ = a.Close()
	return err
}

func (a *App) Close() error {
	if a.db != nil {
		a.db.Close()
	}
	if a.rdb != nil {
		return a.rdb.Close()
	}
	return nil
}
