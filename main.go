package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"shelfdb/config"
	"shelfdb/executor"
	"shelfdb/logging"
	"shelfdb/server"
	"shelfdb/storage"
	"shelfdb/version"
)

func main() {
	cfg := config.Parse()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "shelfdb: %v\n", err)
		os.Exit(2)
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shelfdb: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	log.Info("starting", zap.String("version", version.String()))

	store := storage.New(log)
	if err := populate(store, cfg, log); err != nil {
		log.Fatal("load catalog", zap.Error(err))
	}

	srv := server.New(cfg, executor.New(store), log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Serve returns as soon as the listener closes; shutdownDone keeps the
	// process alive until open connections have been drained.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sig := <-sigCh
		log.Info("signal received", zap.Stringer("signal", sig))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn("shutdown", zap.Error(err))
		}
	}()

	if err := srv.ListenAndServe(); err != nil {
		log.Fatal("serve", zap.Error(err))
	}
	<-shutdownDone
}

// populate fills the store from the configured data file, or with the
// sample catalog when none is set and seeding is enabled.
func populate(store *storage.Store, cfg *config.Config, log *zap.Logger) error {
	switch {
	case cfg.DataFile != "":
		stats, err := storage.LoadFile(store, cfg.DataFile)
		if err != nil {
			return err
		}
		log.Info("catalog loaded",
			zap.String("file", cfg.DataFile),
			zap.Int("books", stats.Books),
			zap.Int("users", stats.Users),
			zap.Int("skipped_books", stats.SkippedBooks),
			zap.Int("skipped_users", stats.SkippedUsers))
	case cfg.Seed:
		if err := storage.Seed(store); err != nil {
			return err
		}
		log.Info("sample catalog installed",
			zap.Int("books", store.BookCount()),
			zap.Int("users", store.UserCount()))
	}
	return nil
}
