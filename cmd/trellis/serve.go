package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ldi/trellis/internal/server"
)

const shutdownTimeout = 5 * time.Second

func serveCmd(a *app) *cobra.Command {
	var (
		addr      string
		redisAddr string
		cacheTTL  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST server the boards talk to",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Addr = addr
			}
			if cmd.Flags().Changed("redis-addr") {
				a.cfg.RedisAddr = redisAddr
			}
			ttl := a.cfg.CacheTTL.Std()
			if cmd.Flags().Changed("cache-ttl") {
				ttl = cacheTTL
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runServe(ctx, ttl)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Address to listen on (default from config, :8000)")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis address for the list cache; empty disables it")
	cmd.Flags().DurationVar(&cacheTTL, "cache-ttl", 0, "How long cached lists live")
	return cmd
}

func (a *app) runServe(ctx context.Context, ttl time.Duration) error {
	database, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()
	a.autoSnapshot(database)

	opts := []server.Option{server.WithLogger(a.logger)}
	if a.cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			a.logger.WithError(err).WithField("addr", a.cfg.RedisAddr).Warn("redis unavailable, serving without cache")
		} else {
			opts = append(opts, server.WithCache(server.NewCache(database, rdb, ttl)))
			a.logger.WithField("addr", a.cfg.RedisAddr).WithField("ttl", ttl).Info("list cache enabled")
		}
	}

	srv := server.NewServer(database, opts...)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.WithError(err).Error("failed to shut down server")
		}
	}()

	a.logger.WithField("addr", a.cfg.Addr).Info("serving boards")
	if err := srv.Start(a.cfg.Addr); err != nil && !server.IsClosed(err) {
		return err
	}
	return nil
}
