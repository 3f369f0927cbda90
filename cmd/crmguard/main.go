package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/crmguard/pkg/cli"
	"github.com/platinummonkey/crmguard/pkg/config"
	"github.com/platinummonkey/crmguard/pkg/observability"
	"github.com/platinummonkey/crmguard/pkg/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Observability.LogLevel.String())

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.DefaultRegisterer)
	}

	env := &cli.Env{
		Open: func() (*sql.DB, func() error, error) {
			cm, err := storage.NewConnectionManager(cfg.Database)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
			}
			return cm.DB(), cm.Close, nil
		},
		Out:        os.Stdout,
		Log:        logger,
		Logger:     observability.NewLogger(cfg.Observability.LogLevel, os.Stderr),
		Metrics:    metrics,
		BcryptCost: cfg.Security.BcryptCost,
		SeedFile:   cfg.SeedFile,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = observability.WithRequestID(ctx, uuid.NewString())

	if err := cli.NewRootCommand(env).Execute(ctx, os.Stdout, os.Args[1:]); err != nil {
		logger.WithField("request_id", observability.GetRequestID(ctx)).Debug("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(strings.ToLower(logLevel))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}
