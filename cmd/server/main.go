package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"rsschool/api/internal/cache"
	"rsschool/api/internal/config"
	"rsschool/api/internal/courses"
	"rsschool/api/internal/db"
	"rsschool/api/internal/events"
	eventsgrpc "rsschool/api/internal/grpc"
	internalhttp "rsschool/api/internal/http"
	"rsschool/api/internal/jobs"
	"rsschool/api/internal/logging"
	"rsschool/api/internal/memstore"
	"rsschool/api/internal/metrics"
	"rsschool/api/internal/store"
)

func main() {
	cfg, err := config.LoadWithFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store
	if cfg.DatabaseURL == config.MemoryDatabaseURL {
		log.Warn("using in-memory store, data is lost on exit")
		st = memstore.New()
	} else {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("db connection failed")
		}
		defer pool.Close()
		if cfg.AutoMigrate {
			if err := db.Migrate(ctx, pool); err != nil {
				log.WithError(err).Fatal("db migration failed")
			}
		}
		st = db.NewStore(pool)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	options := events.Options{Metrics: m, Logger: log, NativeIDs: cfg.EventIDsNative}

	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.WithError(err).Fatal("redis ping failed")
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.WithError(err).Warn("redis close error")
			}
		}()
		options.Cache = cache.NewEventCache(redisClient, cfg.EventCacheTTL)
	}

	server := internalhttp.NewServer(cfg, events.NewService(st, options), courses.NewService(st, courses.Options{Cache: options.Cache, Logger: log}), log)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer, healthServer, err := eventsgrpc.NewServer(cfg.ServiceAuthToken)
	if err != nil {
		log.WithError(err).Fatal("grpc server init failed")
	}
	jobs.StartReadinessJob(ctx, cfg.ReadinessInterval, st, func(ready bool) {
		eventsgrpc.SetServing(healthServer, ready)
	}, log)

	go func() {
		log.Infof("http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server error")
		}
	}()

	go func() {
		listener, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.WithError(err).Fatal("grpc listen error")
		}
		log.Infof("grpc listening on %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(listener); err != nil {
			log.WithError(err).Fatal("grpc server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	healthServer.Shutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown error")
	}
	grpcServer.GracefulStop()
	log.Info("stopped")
}
