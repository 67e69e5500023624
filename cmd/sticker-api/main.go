// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package main provides the entry point for the sticker engine service.
//
// sticker-api accepts purchase transactions from point-of-sale integrations,
// awards loyalty stickers exactly once per transaction id and serves shopper
// balances. All configuration comes from STICKERS_* environment variables
// (see internal/stickers/config).
//
// Commands:
//
//	sticker-api serve     run the HTTP API (default)
//	sticker-api migrate   apply (or with --down, roll back) the MySQL schema
//	sticker-api rules     print the configured rule chain
//
// Quick start without any infrastructure (in-memory store, embedded Redis):
//
//	go run ./cmd/sticker-api serve
//	curl -s localhost:8080/api/transactions -d @transaction.json
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"stickerengine/internal/stickers/api"
	"stickerengine/internal/stickers/config"
	"stickerengine/internal/stickers/coord"
	"stickerengine/internal/stickers/core"
	"stickerengine/internal/stickers/events"
	"stickerengine/internal/stickers/persistence"
	"stickerengine/internal/stickers/rules"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.WithError(err).Fatal("sticker-api failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "sticker-api",
		Usage: "idempotent loyalty sticker engine",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serveAction,
			},
			{
				Name:  "migrate",
				Usage: "apply the MySQL schema migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "down", Usage: "roll back every migration instead"},
				},
				Action: migrateAction,
			},
			{
				Name:   "rules",
				Usage:  "print the configured rule chain in execution order",
				Action: rulesAction,
			},
		},
		DefaultCommand: "serve",
	}
}

func loadConfig() (*config.Config, *log.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, cfg.SetupLogger(), nil
}

// buildCalculator assembles the shipped chain with the configured parameters.
func buildCalculator(cfg *config.Config) (*rules.Calculator, error) {
	spend, err := cfg.SpendPerStickerAmount()
	if err != nil {
		return nil, err
	}
	return rules.NewCalculator(
		rules.BaseRate(spend),
		rules.PromoBonus(),
		rules.MaxCap(cfg.MaxStickersPerTransaction),
	), nil
}

func serveAction(c *cli.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Coordination medium: idempotency markers and shopper locks.
	redisClient, err := coord.NewRedisClient(ctx, coord.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return err
	}
	defer closeWith(logger, "redis", redisClient.Close)

	// 2. Durable store.
	store, closeStore, err := persistence.BuildStore(ctx, cfg.StoreAdapter, persistence.Options{
		MySQLDSN:    cfg.MySQLDSN,
		AutoMigrate: cfg.AutoMigrate,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer closeWith(logger, "store", closeStore)

	// 3. Award events (optional).
	notifier, closeEvents, err := events.BuildPublisher(cfg.EventsAdapter, events.Options{
		AMQPURL:  cfg.AMQPURL,
		Exchange: cfg.AMQPExchange,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer closeWith(logger, "events", closeEvents)

	// 4. Processor.
	calc, err := buildCalculator(cfg)
	if err != nil {
		return err
	}
	svc := core.NewTransactionService(
		store,
		calc,
		coord.NewIdempotency(redisClient, cfg.IdempotencyTTL),
		coord.NewLock(redisClient, cfg.LockTTL).WithLogger(logger),
		core.Options{
			Logger:   logger,
			Metrics:  core.NewMetrics(prometheus.DefaultRegisterer),
			Notifier: notifier,
		},
	)

	// 5. HTTP servers. Both stop when ctx is cancelled by a signal.
	apiServer := api.NewServer(svc, api.Options{
		Logger: logger,
		Health: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	})
	servers := []*http.Server{apiServer.NewHTTPServer(cfg.HTTPAddr)}
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		servers = append(servers, &http.Server{Addr: cfg.MetricsAddr, Handler: mux})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			logger.WithField("addr", srv.Addr).Info("listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrapf(err, "listen on %s", srv.Addr)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).WithField("addr", srv.Addr).Warn("shutdown")
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server gracefully stopped")
	return nil
}

func migrateAction(c *cli.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.MySQLDSN == "" {
		return errors.New("STICKERS_MYSQL_DSN is required for migrate")
	}
	if c.Bool("down") {
		return persistence.MigrateDown(cfg.MySQLDSN, logger)
	}
	return persistence.Migrate(cfg.MySQLDSN, logger)
}

func rulesAction(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	calc, err := buildCalculator(cfg)
	if err != nil {
		return err
	}
	return printRules(c.App.Writer, calc)
}

func printRules(w io.Writer, calc *rules.Calculator) error {
	for i, r := range calc.Rules() {
		if _, err := fmt.Fprintf(w, "%d. %-12s priority=%d\n", i+1, r.Name(), r.Priority()); err != nil {
			return err
		}
	}
	return nil
}

func closeWith(logger log.FieldLogger, what string, fn func() error) {
	if fn == nil {
		return
	}
	if err := fn(); err != nil {
		logger.WithError(err).WithField("component", what).Warn("close failed")
	}
}
