package cmd

import (
	"fmt"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"gorm.io/gorm"

	"github.com/Julianb233/acre-notebook-lm/internal/airtable"
	"github.com/Julianb233/acre-notebook-lm/internal/config"
	"github.com/Julianb233/acre-notebook-lm/internal/database"
	"github.com/Julianb233/acre-notebook-lm/internal/embedding"
	"github.com/Julianb233/acre-notebook-lm/internal/retrieval"
	"github.com/Julianb233/acre-notebook-lm/internal/service"
	"github.com/Julianb233/acre-notebook-lm/internal/sync"
	"github.com/Julianb233/acre-notebook-lm/internal/webhook"
)

// app is the composition root: every component is constructed once here and
// injected explicitly, no package-level singletons besides the database.
type app struct {
	cfg        *config.Config
	db         *gorm.DB
	embedder   *embedding.Service // nil when the provider is disabled
	retrieval  *retrieval.Engine  // nil when embedder is nil
	syncEngine *sync.Engine
	dispatcher *webhook.Dispatcher // nil when no endpoint configured
	logsSvc    *service.WebhookLogService
	statusSvc  *service.SyncStatusService
}

// buildApp loads configuration and wires all components.
func buildApp() (*app, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	database.SetDBPath(cfg.Database.Path)
	db := database.GetDB()

	a := &app{
		cfg:       cfg,
		db:        db,
		logsSvc:   service.NewWebhookLogService(db),
		statusSvc: service.NewSyncStatusService(db),
	}

	a.embedder = buildEmbedder(cfg)
	if a.embedder != nil {
		a.retrieval = retrieval.NewEngine(db, a.embedder)
	}

	if err := cfg.Webhook.Validate(); err == nil {
		a.dispatcher = webhook.NewDispatcher(&webhook.Config{
			BaseURL:    cfg.Webhook.BaseURL,
			APIKey:     cfg.Webhook.APIKey,
			MaxRetries: cfg.Webhook.MaxRetries,
			Timeout:    time.Duration(cfg.Webhook.Timeout) * time.Second,
		}, a.logsSvc)
	} else {
		logx.Warn("Webhook dispatch disabled: %v", err)
	}

	source := airtable.NewClient(cfg.Airtable.APIKey, cfg.Airtable.BaseURL)
	var syncEmbedder sync.Embedder
	if a.embedder != nil {
		syncEmbedder = a.embedder
	}
	a.syncEngine = sync.NewEngine(db, source, syncEmbedder, a.statusSvc, a.dispatcher)

	return a, nil
}

// buildEmbedder constructs the embedding service, or nil when disabled.
func buildEmbedder(cfg *config.Config) *embedding.Service {
	if !cfg.Embedding.Enabled {
		logx.Warn("Embedding disabled by config, retrieval and sync embeddings are off")
		return nil
	}
	if err := cfg.Embedding.Validate(); err != nil {
		logx.Warn("Embedding disabled: %v", err)
		return nil
	}

	var cache *embedding.RedisCache
	if cfg.Cache.Enabled {
		var err error
		cache, err = embedding.NewRedisCache(
			cfg.Cache.Addr,
			cfg.Cache.Password,
			cfg.Cache.DB,
			time.Duration(cfg.Cache.TTL)*time.Second,
		)
		if err != nil {
			logx.Warn("Embedding cache unavailable, continuing without it: %v", err)
		}
	}

	svc, err := embedding.NewService(&embedding.Config{
		APIKey:  cfg.Embedding.APIKey,
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
	}, cache)
	if err != nil {
		logx.Error("Failed to create embedding service: %v", err)
		return nil
	}

	logx.Info("✅ Embedding service ready with model %s", svc.GetModel())
	return svc
}
