package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ft-transcendence/pong-core/internal/auth"
	"github.com/ft-transcendence/pong-core/internal/config"
	"github.com/ft-transcendence/pong-core/internal/httpapi"
	"github.com/ft-transcendence/pong-core/internal/hub"
	"github.com/ft-transcendence/pong-core/internal/match"
	"github.com/ft-transcendence/pong-core/internal/session"
	"github.com/ft-transcendence/pong-core/internal/store"
	"github.com/ft-transcendence/pong-core/internal/tournament"
	"github.com/ft-transcendence/pong-core/internal/ws"
)

// matchStarter lets the tournament engine schedule bracket matches without
// depending on the hub package. Sessions spin up lazily when the first
// player connects.
type matchStarter struct {
	matches *match.Registry
}

func (s *matchStarter) StartMatch(leftPlayer, rightPlayer, tournamentID string) (string, error) {
	m := s.matches.Create(leftPlayer, rightPlayer, tournamentID)
	return m.ID, nil
}

func main() {
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	matches := match.NewRegistry()

	var resultStore *store.Store
	if cfg.DatabaseURL != "" {
		resultStore, err = store.Open(cfg.DatabaseURL, log)
		if err != nil {
			log.Fatal("failed to open result store", zap.Error(err))
		}
		log.Info("result store enabled")
	}

	// The engine is wired after the hub because the hub's finish callback
	// feeds tournament progression; the pointer is captured by reference.
	var engine *tournament.Engine

	onFinished := func(res session.Result) {
		if resultStore != nil {
			if m, ok := matches.Get(res.MatchID); ok {
				if err := resultStore.SaveMatchResult(m.Snapshot()); err != nil {
					log.Warn("match result not persisted", zap.String("match_id", res.MatchID))
				}
			}
		}
		if res.TournamentID == "" {
			return
		}
		engine.HandleMatchFinished(res.MatchID, res.WinnerID)
		if resultStore != nil {
			if v, err := engine.Snapshot(res.TournamentID); err == nil && v.Status == tournament.StatusCompleted {
				if err := resultStore.SaveTournament(v); err != nil {
					log.Warn("tournament not persisted", zap.String("tournament_id", res.TournamentID))
				}
			}
		}
	}

	sessCfg := session.Config{
		TickHz:           cfg.TickHz,
		CountdownSeconds: cfg.CountdownSeconds,
		GraceSeconds:     cfg.GraceSeconds,
		AllowSpectators:  cfg.AllowSpectators,
	}
	h := hub.NewHub(ctx, sessCfg, log, onFinished)
	engine = tournament.NewEngine(&matchStarter{matches: matches}, log)

	verifier := auth.NewVerifier(cfg.JWTSecret)
	gateway := ws.NewGateway(h, matches, verifier, cfg.AllowSpectators, log)

	var api *httpapi.API
	if resultStore != nil {
		api = httpapi.NewAPI(matches, engine, verifier, resultStore, log)
	} else {
		api = httpapi.NewAPI(matches, engine, verifier, nil, log)
	}

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: httpapi.SetupRoutes(api, gateway.Handler()),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		h.Inbox() <- hub.ShutdownHub{}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
	log.Info("shutdown complete")
}
