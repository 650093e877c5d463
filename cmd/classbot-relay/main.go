// Command classbot-relay runs the ClassBot relay server: a thin HTTP
// front that holds the vendor credentials and brokers chat completions,
// speech tokens and speaker profile enrollment for browser clients.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/classbot-dev/classbot/internal/dotenv"
	"github.com/classbot-dev/classbot/pkg/persona"
	"github.com/classbot-dev/classbot/pkg/relay/config"
	relayserver "github.com/classbot-dev/classbot/pkg/relay/server"
)

type relayDeps struct {
	loadConfig   func() (config.Config, error)
	loadPersona  func(path string) (persona.Persona, error)
	newServer    func(config.Config, persona.Persona, *slog.Logger) *relayserver.Server
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultRelayDeps() relayDeps {
	return relayDeps{
		loadConfig:  config.LoadFromEnv,
		loadPersona: persona.Load,
		newServer:   relayserver.New,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
	}
}

func runRelay(ctx context.Context, logger *slog.Logger, deps relayDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.loadPersona == nil {
		return errors.New("missing loadPersona dependency")
	}
	if deps.newServer == nil {
		return errors.New("missing newServer dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	p, err := deps.loadPersona(cfg.PersonaFile)
	if err != nil {
		return fmt.Errorf("load persona: %w", err)
	}

	srv := deps.newServer(cfg, p, logger)
	httpSrv := buildHTTPServer(cfg, srv.Handler())

	logger.Info("starting relay",
		"addr", cfg.Addr,
		"model", cfg.Model,
		"persona", p.Name,
		"speech_configured", cfg.SpeechConfigured())

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("relay stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps relayDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	loaded, err := dotenv.Load(".env")
	if err != nil {
		fmt.Fprintf(stderr, "classbot-relay: %v\n", err)
		return 1
	}
	if len(loaded) > 0 {
		logger.Info("loaded environment from .env", "keys", loaded)
	}

	if err := runRelay(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "classbot-relay: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultRelayDeps()))
}
