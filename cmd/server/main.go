// Command server runs the restaurant HTTP API: tables, menu items,
// categories, the websocket change stream, health, metrics and docs.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-restaurant-backend/internal/config"
	httpapi "github.com/tbourn/go-restaurant-backend/internal/http"
	"github.com/tbourn/go-restaurant-backend/internal/observability"
	"github.com/tbourn/go-restaurant-backend/internal/realtime"
	"github.com/tbourn/go-restaurant-backend/internal/repo"
	"github.com/tbourn/go-restaurant-backend/internal/sysutil"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	instanceID := sysutil.InstanceID()
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, cfg.Version,
		observability.ServerAttributes(cfg.DB.Driver, instanceID)...)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	target := cfg.DB.Path
	if cfg.DB.Driver != "sqlite" {
		target = cfg.DB.DSN
	}
	db, err := repo.Open(cfg.DB.Driver, target)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	if n, err := repo.SeedCategories(ctx, db, cfg.SeedCategories); err != nil {
		log.Fatal().Err(err).Msg("category seed failed")
	} else if n > 0 {
		log.Info().Int("count", n).Msg("categories seeded")
	}

	broker := realtime.NewBroker(cfg.Realtime.Buffer)
	rt := httpapi.Realtime{Broker: broker}
	if rdb := connectRedis(cfg.Realtime); rdb != nil {
		defer rdb.Close()
		relay := realtime.NewRedisRelay(rdb, cfg.Realtime.RedisChannel, broker)
		rt.Publisher = relay
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("realtime relay stopped")
			}
		}()
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, rt, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("db", cfg.DB.Driver).
			Str("instance", instanceID).
			Str("version", cfg.Version).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Websocket handlers hold hijacked connections that Shutdown does not
	// wait for; closing the broker ends their streams.
	broker.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// connectRedis returns nil when no address is configured or the server does
// not answer; the service then runs with the in-process broker only.
func connectRedis(rc config.RealtimeConfig) *redis.Client {
	if rc.RedisAddr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.RedisAddr,
		Password: rc.RedisPassword,
		DB:       rc.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", rc.RedisAddr).Msg("redis unavailable, realtime relay disabled")
		_ = rdb.Close()
		return nil
	}
	log.Info().Str("addr", rc.RedisAddr).Str("channel", rc.RedisChannel).Msg("realtime relay enabled")
	return rdb
}
