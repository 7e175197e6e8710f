package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/mossy-p/audio-relay/config"
	"github.com/mossy-p/audio-relay/internal/handlers"
	"github.com/mossy-p/audio-relay/internal/logging"
	"github.com/mossy-p/audio-relay/internal/redis"
	"github.com/mossy-p/audio-relay/internal/relay"
)

const shutdownTimeout = 10 * time.Second

func run(parent context.Context, cfg *config.Config) error {
	logger := logging.New(cfg.Environment)

	// Cancel on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	hubOpts := relay.HubOptions{
		Registry:          relay.NewRegistry(cfg.Relay.MaxPeersPerRoom),
		Logger:            logger,
		MaxMessageBytes:   cfg.Relay.MaxMessageBytes,
		MaxAudioSamples:   cfg.Relay.MaxAudioSamples,
		JoinTimeout:       cfg.Relay.JoinTimeout,
		SendTimeout:       cfg.Relay.SendTimeout,
		FanoutConcurrency: cfg.Relay.FanoutConcurrency,
	}

	// Optional Redis presence mirror
	if cfg.Redis.Enabled {
		rdb, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()

		presence := redis.NewPresence(rdb, cfg.Redis.Prefix)
		if err := presence.Reset(ctx); err != nil {
			logger.Warn("presence.reset", "err", err)
		}
		hubOpts.Presence = presence
		logger.Info("redis.connected", "addr", cfg.Redis.Addr(), "prefix", cfg.Redis.Prefix)
	}

	hub := relay.NewHub(hubOpts)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handlers.NewRouter(ctx, cfg, hub, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server.listening",
			"addr", cfg.Addr(),
			"max_peers_per_room", cfg.Relay.MaxPeersPerRoom,
			"max_message_bytes", cfg.Relay.MaxMessageBytes,
			"max_audio_samples", cfg.Relay.MaxAudioSamples,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			logger.Error("server.crash", "err", err)
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("server.shutdown.start")

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server.shutdown", "err", err)
	}

	// Hijacked relay connections are not tracked by the HTTP server; they
	// end on ctx cancellation and drain here.
	waitForDrain(shutdownCtx, hub, logger)
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Warn("presence.flush", "err", err)
	}
	logger.Info("server.shutdown.complete")
	return nil
}

func waitForDrain(ctx context.Context, hub *relay.Hub, logger *slog.Logger) {
	done := make(chan struct{})
	go func() {
		hub.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("server.shutdown.drain_timeout")
	}
}
