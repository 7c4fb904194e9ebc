package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	modver "github.com/btt-go/btt-modver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the resolver, the module metadata cache and the HTTP endpoint",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := modver.New(cfg.Resolver, modver.WithLogger(logger))
	if err != nil {
		return err
	}
	res.Init(ctx)
	defer res.Shutdown()

	rdb := newRedis(cfg.Resolver.Redis)
	defer rdb.Close()

	cache := modver.NewMetadataCache(modver.NewRedisFeed(rdb, logger), logger)
	cache.Subscribe(func(id string, rec modver.ModuleRecord) {
		logger.Debug("module record updated", "id", id, "channels", len(rec.Channels))
	})
	if err := cache.Start(ctx); err != nil {
		return fmt.Errorf("start metadata cache: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newMux(res, cache),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("http listener starting", "addr", cfg.Listen)
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("modver shutting down")
	case <-cache.Done():
		// 镜像表已不可信
		err = cache.Err()
		if !errors.Is(err, modver.ErrFeedFailed) {
			err = nil
			break
		}
		logger.Error("module feed stopped", "error", err)
	case err = <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("http shutdown failed", "error", serr)
	}
	return err
}
