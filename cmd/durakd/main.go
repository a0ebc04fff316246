// Command durakd serves durak rooms over HTTP and WebSocket without a Nakama host.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"durak/internal/app"
	"durak/internal/auth"
	"durak/internal/bot"
	"durak/internal/config"
	"durak/internal/logging"
	"durak/internal/ports"
	"durak/internal/ports/ws"
	"durak/internal/storage/sqlite"
	"durak/internal/telemetry"
)

const readHeaderTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "durakd: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	srvCfg, err := config.LoadServerConfig(nil)
	if err != nil {
		return err
	}
	log, err := logging.NewFromConfig(srvCfg.LogLevel, srvCfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}
	games, err := config.LoadGameConfig(srvCfg.GameConfigPath)
	if err != nil {
		return err
	}

	shutdownTracing, err := telemetry.Setup(ctx, "durakd", srvCfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), srvCfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			log.Warn("run: tracing shutdown: %v", err)
		}
	}()

	store, err := sqlite.Open(srvCfg.SQLitePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("run: close results store: %v", err)
		}
	}()

	pool, err := bot.LoadIdentities(srvCfg.BotIdentitiesPath)
	if err != nil {
		log.Warn("run: could not load bot identities, using generated bots: %v", err)
		pool = bot.NewPool(nil)
	}

	reg := app.NewRegistry(app.RoomDeps{
		Logger:  log,
		Economy: ports.NewMemoryEconomy(games.OpeningBalance),
		Results: store,
		Bots:    pool,
	})
	api := ws.NewServer(ws.Options{
		Registry:     reg,
		Issuer:       auth.NewIssuer(srvCfg.JWTSecret, srvCfg.JWTIssuer, srvCfg.TokenTTL),
		Rooms:        games,
		Results:      store,
		Logger:       log,
		AllowOrigins: srvCfg.AllowOrigins,
	})
	httpServer := &http.Server{
		Addr:              srvCfg.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("run: listening on %s (deck %d, %d-%d players, bots=%v)", srvCfg.ListenAddr, games.DeckSize, games.MinPlayers, games.MaxPlayers, games.Bots.Enabled)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), srvCfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		if err := reg.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown rooms: %w", err)
		}
		log.Info("run: stopped, %d rooms left open", reg.Len())
		return nil
	})
	return g.Wait()
}
