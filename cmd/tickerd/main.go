// Command tickerd runs the ticker-collection daemon: it loads
// configuration, wires the exchange adapter, ticker store, process
// registry, configuration store, and credential resolver, starts the
// daemon and its health HTTP surface, and blocks until an interrupt
// signal triggers graceful shutdown.
package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ingmarAvocado/fullon-ticker-service/internal/adapters/configstore"
	"github.com/ingmarAvocado/fullon-ticker-service/internal/adapters/credentials"
	"github.com/ingmarAvocado/fullon-ticker-service/internal/adapters/exchangews"
	"github.com/ingmarAvocado/fullon-ticker-service/internal/adapters/registry"
	"github.com/ingmarAvocado/fullon-ticker-service/internal/adapters/tickerstore"
	"github.com/ingmarAvocado/fullon-ticker-service/internal/config"
	"github.com/ingmarAvocado/fullon-ticker-service/internal/daemon"
	"github.com/ingmarAvocado/fullon-ticker-service/internal/healthsrv"
)

var (
	version   = "0.1.0"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}

	setupLogging(cfg.Logging)

	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		logrus.Fatalf("failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	if err := db.Ping(); err != nil {
		logrus.Fatalf("failed to ping database: %v", err)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxRetries:   cfg.Redis.MaxRetries,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logrus.Fatalf("failed to ping redis: %v", err)
	}
	pingCancel()

	d := daemon.New(daemon.Config{
		Factory:     exchangews.New(logrus.StandardLogger()),
		Credentials: credentials.New(cfg.Daemon.AdminIdentity),
		TickerStore: tickerstore.New(redisClient, 0),
		Registry:    registry.New(db),
		ConfigStore: configstore.New(db),
		GateWindow:  cfg.RateGate.WindowSeconds,
		Logger:      logrus.StandardLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		logrus.Fatalf("failed to start daemon: %v", err)
	}

	healthServer := healthsrv.New(cfg.Server.GetServerAddr(), d, logrus.StandardLogger())
	healthServer.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down tickerd...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Daemon.ShutdownTimeout)
	defer shutdownCancel()

	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("health server forced to shutdown: %v", err)
	}

	if err := d.Stop(shutdownCtx); err != nil {
		logrus.Errorf("daemon stop error: %v", err)
	}

	logrus.WithFields(logrus.Fields{
		"version":    version,
		"build_time": buildTime,
		"git_commit": gitCommit,
	}).Info("tickerd exited")
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	if cfg.Output == "stdout" {
		logrus.SetOutput(os.Stdout)
	}
}
