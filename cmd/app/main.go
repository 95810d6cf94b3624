package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/local/easypdf/internal/auth"
	"github.com/local/easypdf/internal/cleanup"
	"github.com/local/easypdf/internal/compress"
	"github.com/local/easypdf/internal/config"
	"github.com/local/easypdf/internal/convert"
	"github.com/local/easypdf/internal/job"
	"github.com/local/easypdf/internal/limiter"
	"github.com/local/easypdf/internal/logger"
	"github.com/local/easypdf/internal/metrics"
	"github.com/local/easypdf/internal/server"
	"github.com/local/easypdf/internal/storage"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	if err := logger.Init(logger.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send,
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	}); err != nil {
		log.Fatal().Err(err).Msg("logger init failed")
	}
	defer logger.Close()

	metrics.Init()

	for _, dir := range []string{cfg.Files.UploadDir, cfg.Files.DownloadDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("cannot create working directory")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// job history
	var store *job.Store
	if err := os.MkdirAll(filepath.Dir(cfg.Files.DBPath), 0o755); err != nil {
		log.Fatal().Err(err).Msg("cannot create data directory")
	}
	db, err := gorm.Open(sqlite.Open(cfg.Files.DBPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Files.DBPath).Msg("cannot open job database")
	}
	store, err = job.NewStore(db)
	if err != nil {
		log.Fatal().Err(err).Msg("job store init failed")
	}
	tracker := job.NewTracker(store)

	// optional redis-backed tool breaker
	rdb, err := limiter.ConnectRedis(ctx, cfg.Breaker.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, tool breaker disabled")
	}
	if rdb != nil {
		defer rdb.Close()
	}
	breaker := limiter.NewBreaker(rdb, cfg.Breaker.Threshold, cfg.Breaker.BaseBackoff, cfg.Breaker.MaxBackoff)

	admission := limiter.NewAdmission(cfg.Limits.MaxConcurrentOps, cfg.Limits.AdmissionWait)

	gs := compress.FindGhostscript(cfg.Tools.GhostscriptPath)
	compressor := compress.New(gs, cfg.Tools.CompressTimeout)
	office := convert.New(cfg.Tools.LibreOfficeWorkers, cfg.Tools.ConvertTimeout)

	mirror, err := storage.NewMirror(ctx, cfg.Artifacts.Bucket, cfg.Artifacts.Prefix,
		cfg.Artifacts.Region, cfg.Artifacts.Passphrase)
	if err != nil {
		log.Fatal().Err(err).Msg("artifact mirror init failed")
	}

	sweeper := cleanup.NewSweeper(
		[]string{cfg.Files.UploadDir, cfg.Files.DownloadDir},
		cfg.Files.RetentionTTL, cfg.Files.SweepInterval)
	go sweeper.Run(ctx)

	srv := server.New(server.Deps{
		Config:     cfg,
		Verifier:   auth.NewVerifier(cfg.Auth.JWTSecret),
		Store:      store,
		Tracker:    tracker,
		Admission:  admission,
		Breaker:    breaker,
		Compressor: compressor,
		Gs:         gs,
		Office:     office,
		Mirror:     mirror,
	})
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: mux,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}
