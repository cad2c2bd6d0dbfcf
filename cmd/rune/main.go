package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/rune-mem/rune/pkg/config"
	"github.com/rune-mem/rune/pkg/mcpserver"
	runeapp "github.com/rune-mem/rune/pkg/rune"
)

func main() {
	log := newLogger()

	config.LoadDotEnv()

	path, err := config.DefaultPath()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve config path")
	}
	store := config.NewStore(path)

	app := runeapp.NewApp(store, log)
	if err := app.Reload(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("initial pipeline build failed")
	}
	defer app.Close()

	srv := mcpserver.New(app, log)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Msg("rune mcp server listening on stdio")
		serveErr <- srv.ServeStdio()
	}()

	select {
	case <-done:
		log.Info().Msg("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("mcp transport closed with error")
		} else {
			log.Info().Msg("mcp transport closed")
		}
	}
}

func newLogger() zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: os.Stderr}
	lvl := zerolog.InfoLevel
	if os.Getenv("RUNE_ENV") == "development" {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return zerolog.New(out).With().Timestamp().Logger()
}
