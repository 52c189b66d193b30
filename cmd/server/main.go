package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fairdraw/internal/audit"
	"fairdraw/internal/campaign"
	"fairdraw/internal/draw"
	"fairdraw/internal/entry"
	"fairdraw/internal/fingerprint"
	"fairdraw/internal/gateway"
	"fairdraw/internal/identity"
	"fairdraw/internal/platform/config"
	"fairdraw/internal/platform/httpserver"
	"fairdraw/internal/platform/logger"
	"fairdraw/internal/platform/metrics"
	"fairdraw/internal/platform/middleware"
	platformredis "fairdraw/internal/platform/redis"
	"fairdraw/internal/storage/postgres"
	transporthttp "fairdraw/internal/transport/http"
	"fairdraw/internal/verification"
	"fairdraw/pkg/platform/tx"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Stores: PostgreSQL when configured, in-memory otherwise.
	var (
		identityStore identity.Store
		banStore      identity.BanStore
		historyStore  identity.HistoryStore
		campaignStore campaign.Store
		entryStore    entry.Store
		referralStore entry.ReferralStore
		fpStore       fingerprint.Store
		drawStore     draw.Store
		auditStore    audit.Store
		txr           tx.Runner
	)

	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("connect postgres", "error", err)
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Error("migrate", "error", err)
			return err
		}

		identityStore = identity.NewPostgres(db)
		banStore = identity.NewPostgresBanStore(db)
		historyStore = identity.NewPostgresHistoryStore(db)
		campaignStore = campaign.NewPostgres(db)
		entryStore = entry.NewPostgres(db)
		referralStore = entry.NewPostgresReferralStore(db)
		fpStore = fingerprint.NewPostgres(db)
		drawStore = draw.NewPostgres(db)
		auditStore = audit.NewPostgresStore(db)
		txr = &tx.SQLRunner{DB: db}
		log.Info("storage: postgresql")
	} else {
		identityStore = identity.NewMemoryStore()
		banStore = identity.NewMemoryBanStore()
		historyStore = identity.NewMemoryHistoryStore()
		campaignStore = campaign.NewMemoryStore()
		entryStore = entry.NewMemoryStore()
		referralStore = entry.NewMemoryReferralStore()
		fpStore = fingerprint.NewMemoryStore()
		drawStore = draw.NewMemoryStore()
		auditStore = audit.NewMemoryStore()
		txr = &tx.ShardedRunner{}
		log.Info("storage: in-memory")
	}

	// Challenges live in Redis when available so they survive restarts.
	var challengeStore verification.ChallengeStore = verification.NewMemoryStore()
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("connect redis", "error", err)
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		challengeStore = verification.NewRedisStore(redisClient.Client, cfg.ChallengeTTL)
		log.Info("challenge store: redis")
	}

	// Audit events stream to Kafka when brokers are configured; the local
	// store keeps the moderator-facing per-identity trail either way.
	if len(cfg.KafkaBrokers) > 0 {
		kafkaStore, err := audit.NewKafkaStore(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("connect kafka", "error", err)
			return err
		}
		defer kafkaStore.Close()
		auditStore = audit.NewFanout(auditStore, kafkaStore)
		log.Info("audit: kafka", "topic", cfg.AuditTopic)
	}

	inbox := make(chan audit.Event, 1024)
	auditor := audit.NewChannelEmitter(inbox, log)
	worker := audit.NewWorker(auditStore, inbox, log)
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	// Services.
	identitySvc := identity.NewService(identityStore, banStore, historyStore, txr, auditor, log, cfg.DefaultBanTTL)
	fingerprintSvc := fingerprint.NewService(fpStore)
	verificationSvc := verification.NewService(challengeStore, identitySvc, fingerprintSvc, txr, auditor, log, cfg.ChallengeTTL, cfg.ChallengeAttempts)
	campaignSvc := campaign.NewService(campaignStore, txr, auditor)
	entrySvc := entry.NewService(entryStore, referralStore, campaignSvc, identitySvc, txr, auditor, log)
	identitySvc.BindEntryInvalidator(entrySvc)
	drawSvc := draw.NewService(drawStore, entrySvc, campaignSvc, txr, auditor, log)
	gw := gateway.New(identitySvc, verificationSvc, campaignSvc, entrySvc, drawSvc, fingerprintSvc, m, log)

	validator := middleware.NewModeratorValidator(cfg.ModeratorJWTKey)
	handler := transporthttp.NewHandler(gw, identitySvc, campaignSvc, entrySvc, fingerprintSvc, log)
	router := transporthttp.Router(handler, validator, m, log)

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server", "error", err)
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err)
		return err
	}
	log.Info("stopped")
	return nil
}
