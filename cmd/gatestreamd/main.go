package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/GateStream/orchestrator/pkg/gate"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("GATE_CONFIG"), "path to config file")
	flag.Parse()

	cfg, err := gate.LoadConfig(*configPath)
	if err != nil {
		fatal("load config: " + err.Error())
	}

	app, err := gate.NewApp(cfg)
	if err != nil {
		fatal("wire app: " + err.Error())
	}
	log := app.Logger()

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      app.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
		IdleTimeout:  cfg.Server.IdleTimeout.Duration,
	}

	go func() {
		log.Info().Str("address", srv.Addr).Msg("server.listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server.failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("server.shutting_down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server.shutdown_failed")
	}
	if err := app.Close(); err != nil {
		log.Error().Err(err).Msg("server.close_failed")
	}
	log.Info().Msg("server.stopped")
}

func fatal(msg string) {
	os.Stderr.WriteString(msg + "\n")
	os.Exit(1)
}
