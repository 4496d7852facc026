package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"horse.fit/beacon/internal/cli"
	"horse.fit/beacon/internal/event"
	"horse.fit/beacon/internal/httpapi"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "0.0.0.0", "Listen host")
	port := fs.Int("port", 8090, "Listen port")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 2*time.Minute, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
	serpFixture := fs.String("serpapi-file", "", "JSON file with raw serpapi documents")
	phqFixture := fs.String("predicthq-file", "", "JSON file with raw predicthq documents")
	tmFixture := fs.String("ticketmaster-file", "", "JSON file with raw ticketmaster documents")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, logger, err := bootstrap(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	registry := buildRegistry(map[event.Source]string{
		event.SourceSerpAPI:      *serpFixture,
		event.SourcePredictHQ:    *phqFixture,
		event.SourceTicketmaster: *tmFixture,
	}, logger)

	store, err := openCache(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open cache")
		fmt.Fprintf(os.Stderr, "Failed to open cache: %v\n", err)
		return 1
	}
	defer store.Close()

	eng, err := buildEngine(cfg, registry, store, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build engine")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := httpapi.NewServer(eng, logger, httpapi.Options{
		Host:            *host,
		Port:            *port,
		ReadTimeout:     *readTimeout,
		WriteTimeout:    *writeTimeout,
		ShutdownTimeout: *shutdownTimeout,
	})

	if err := server.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}
	return 0
}
