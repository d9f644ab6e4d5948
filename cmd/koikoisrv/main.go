// Command koikoisrv is the process entry point: it wires configuration,
// logging, persistence, the concurrency adapters, the use cases, the
// turn-flow service, and the HTTP/SSE transport together and serves.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vctt94/koikoisrv/internal/config"
	"github.com/vctt94/koikoisrv/internal/connstore"
	"github.com/vctt94/koikoisrv/internal/eventpub"
	"github.com/vctt94/koikoisrv/internal/gamelock"
	"github.com/vctt94/koikoisrv/internal/gamestore"
	"github.com/vctt94/koikoisrv/internal/httpapi"
	"github.com/vctt94/koikoisrv/internal/logging"
	"github.com/vctt94/koikoisrv/internal/ports"
	"github.com/vctt94/koikoisrv/internal/repository/sqlite"
	"github.com/vctt94/koikoisrv/internal/timeoutmgr"
	"github.com/vctt94/koikoisrv/internal/turnflow"
	"github.com/vctt94/koikoisrv/internal/usecase"
)

const (
	gameLogQueueSize = 4096
	gameLogWorkers   = 2
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnvAndFlags(flag.NewFlagSet("koikoisrv", flag.ExitOnError), os.Args[1:])
	if err != nil {
		return fmt.Errorf("koikoisrv: parse config: %w", err)
	}

	logBackend := logging.New(os.Stdout, logging.ParseLevel(cfg.LogLevel))
	log := logBackend.Logger("MAIN")

	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("koikoisrv: open database: %w", err)
	}
	defer db.Close()

	repo := sqlite.NewRepository(db)
	gameLogWriter := sqlite.NewGameLog(db)

	gameLog := eventpub.NewGameLog(logBackend.Logger("GAMELOG"), gameLogWriter.Write, gameLogQueueSize)
	gameLog.Start(gameLogWorkers)
	defer gameLog.Stop()

	store := gamestore.New()
	lock := gamelock.New()
	timeouts := timeoutmgr.New(logBackend.Logger("TIMEOUT"))
	conn := connstore.New(logBackend.Logger("CONN"))
	bus := eventpub.NewOpponentBus(logBackend.Logger("OPPBUS"))
	publisher := eventpub.New(logBackend.Logger("EVENTPUB"), conn, bus, gameLog)

	seed := time.Now().UnixNano()
	uc := usecase.New(
		logBackend.Logger("USECASE"),
		store, lock, timeouts, publisher, conn, bus, repo, gameLog, ports.SystemClock{},
		cfg.Ruleset, cfg.Timeouts.Matchmaking, seed,
	)

	flow := turnflow.New(logBackend.Logger("TURNFLOW"), uc, timeouts, turnflow.Config{
		Action:               cfg.Timeouts.Action,
		AcceleratedAction:    cfg.Timeouts.AcceleratedAction,
		ContinueConfirmation: cfg.Timeouts.ContinueConfirmation,
		Display:              cfg.Timeouts.Display,
	})
	uc.SetScheduler(flow)

	server := httpapi.New(
		logBackend.Logger("HTTP"),
		uc, flow, conn,
		cfg.Timeouts.SSEHeartbeat, cfg.Timeouts.Disconnect,
	)

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("koikoisrv: http server: %w", err)
	case sig := <-sigCh:
		log.Infof("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(ctx)
}
