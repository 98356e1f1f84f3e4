package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/xrick/laptop-funnel-dialogue/internal/api"
	"github.com/xrick/laptop-funnel-dialogue/internal/catalog"
	"github.com/xrick/laptop-funnel-dialogue/internal/config"
	"github.com/xrick/laptop-funnel-dialogue/internal/db"
	"github.com/xrick/laptop-funnel-dialogue/internal/dialogue"
	"github.com/xrick/laptop-funnel-dialogue/internal/funnel"
	"github.com/xrick/laptop-funnel-dialogue/internal/intent"
	"github.com/xrick/laptop-funnel-dialogue/internal/llmclient"
	"github.com/xrick/laptop-funnel-dialogue/internal/promptio"
	"github.com/xrick/laptop-funnel-dialogue/internal/retrieval"
	"github.com/xrick/laptop-funnel-dialogue/internal/router"
	"github.com/xrick/laptop-funnel-dialogue/internal/vectorstore"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	entry := logrus.NewEntry(log)

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config: failed to load process settings")
	}

	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.WithError(err).Fatal("catalog unavailable at startup: cannot connect to database")
	}
	defer pool.Close()

	if err := db.Migrate(cfg.Database.URL, "internal/db/migrations"); err != nil {
		log.WithError(err).Fatal("catalog unavailable at startup: migration failed")
	}

	cat, err := catalog.Load(ctx, pool, entry)
	if err != nil {
		log.WithError(err).Fatal("catalog unavailable at startup")
	}

	domain, err := config.LoadDomain(cfg.Dialogue.ConfigDir)
	if err != nil {
		log.WithError(err).Fatal("config invalid: domain artifacts failed to load")
	}

	embedder := vectorstore.NewHashEmbedder(8)
	vectors := vectorstore.New(pool, embedder)

	llm := llmclient.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.MaxTokens)

	store := newSessionStore(cfg, log)
	ex := intent.New(domain, cat)
	fc := funnel.New(store, domain.Funnel, cfg.Dialogue.SessionTTL, defaultSeriesFrom(cat))
	r := router.New(ex, fc, cat, lifestyleTopics())
	planner := retrieval.New(cat, vectors, cfg.Dialogue.VectorTopK, defaultSeriesFrom(cat))
	builder := promptio.NewBuilder(domain.PromptTemplate, cfg.Dialogue.TruncateWidth)

	core := &dialogue.Dialogue{
		Router:           r,
		Funnel:           fc,
		Retrieval:        planner,
		Builder:          builder,
		LLM:              llm,
		Log:              entry,
		RetrievalTimeout: cfg.Dialogue.RetrievalTimeout,
		TruncateWidth:    cfg.Dialogue.TruncateWidth,
	}

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	go runSweeper(sweepCtx, fc, cfg.Dialogue.SweepInterval, entry)

	srv := api.NewServer(cfg, core)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.WithError(err).Error("server stopped unexpectedly")
	case <-sigCh:
		log.Info("shutdown signal received")
	}

	cancelSweep()
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

func newSessionStore(cfg *config.Config, log *logrus.Logger) funnel.SessionStore {
	if cfg.SessionStore.Backend != "redis" {
		return funnel.NewMemStore()
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.SessionStore.RedisURL})
	log.Info("funnel: using redis-backed session store")
	return funnel.NewRedisStore(client, cfg.Dialogue.SessionTTL)
}

func runSweeper(ctx context.Context, fc *funnel.Controller, interval time.Duration, log *logrus.Entry) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := fc.Sweep(ctx)
			if err != nil {
				log.WithError(err).Warn("funnel lifecycle: sweep failed")
				continue
			}
			if n > 0 {
				log.WithField("count", n).Info("funnel lifecycle: swept expired sessions")
			}
		}
	}
}

func lifestyleTopics() []string {
	return []string{"portability", "gaming", "business"}
}

func defaultSeriesFrom(cat *catalog.Catalog) []string {
	series := catalog.SortedSeries(cat)
	if len(series) == 0 {
		return nil
	}
	return []string{series[0]}
}
