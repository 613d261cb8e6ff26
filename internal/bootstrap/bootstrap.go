// Package bootstrap provides dependency initialization for the beatloop server.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/beatloop/internal/config"
	"github.com/maauso/beatloop/internal/frames"
	"github.com/maauso/beatloop/internal/job"
	"github.com/maauso/beatloop/internal/media"
	"github.com/maauso/beatloop/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	RenderService *job.Service
	Storage       storage.Storage
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	runner := media.NewFFmpegRunner(cfg.FFmpegPath, logger)
	extractor := frames.NewGIFExtractor(frames.WithMaxFrames(cfg.MaxFrames))

	svc := job.NewService(
		store,
		extractor,
		media.NewPipeline(runner),
		logger,
		job.WithMaxConcurrentRenders(cfg.MaxConcurrentRenders),
	)

	return &Dependencies{
		RenderService: svc,
		Storage:       store,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", localStore.TempDir()),
	)
	return localStore, nil
}
