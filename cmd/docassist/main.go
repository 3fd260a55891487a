package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docassist/internal/ai"
	"github.com/xxxsen/docassist/internal/config"
	"github.com/xxxsen/docassist/internal/embedcache"
	"github.com/xxxsen/docassist/internal/handler"
	"github.com/xxxsen/docassist/internal/job"
	"github.com/xxxsen/docassist/internal/schedule"
	"github.com/xxxsen/docassist/internal/service"
	"github.com/xxxsen/docassist/internal/vectorstore"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "docassist",
		Short: "documentation portal ai assistant backend",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run docassist server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger.Init(
				cfg.Log.File,
				cfg.Log.Level,
				cfg.Log.FileCount,
				cfg.Log.FileSize,
				cfg.Log.KeepDays,
				cfg.Log.Console,
			)
			return runServer(cfg)
		},
	}

	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func newStore(cfg *config.Config) (vectorstore.Store, func(), error) {
	switch cfg.Vector.Backend {
	case "pgvector":
		store, err := vectorstore.NewPGVectorStore(vectorstore.PGVectorConfig{
			DSN:   cfg.Vector.PGVector.DSN,
			Table: cfg.Vector.PGVector.Table,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		store := vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
			URL:        cfg.Vector.Qdrant.URL,
			APIKey:     cfg.Vector.Qdrant.APIKey,
			Collection: cfg.Vector.Qdrant.Collection,
			Timeout:    cfg.AI.Timeout,
		})
		return store, func() {}, nil
	}
}

func runServer(cfg *config.Config) error {
	logutil.GetLogger(context.Background()).Info("starting server",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("vector_backend", cfg.Vector.Backend),
	)

	chatProvider, err := ai.NewChatProvider(cfg.AI.Provider, cfg.AI.ProviderArgs())
	if err != nil {
		return fmt.Errorf("init chat provider: %w", err)
	}
	embedProvider, err := ai.NewEmbedProvider(cfg.AI.Provider, cfg.AI.ProviderArgs())
	if err != nil {
		return fmt.Errorf("init embedding provider: %w", err)
	}
	chat := ai.NewChatClient(chatProvider, cfg.AI.ChatModel)
	embedder := embedcache.WrapLRU(ai.NewEmbedder(embedProvider, cfg.AI.EmbedModel), 4096, 2*time.Hour)

	store, closeStore, err := newStore(cfg)
	if err != nil {
		return fmt.Errorf("init vector store: %w", err)
	}
	defer closeStore()

	assistantService := service.NewAssistantService(embedder, chat, store, service.Options{
		TopK:         cfg.RAG.TopK,
		SnippetChars: cfg.RAG.SnippetChars,
		Timeout:      cfg.AI.Timeout,
	})
	feedbackService := service.NewFeedbackService(0)

	scheduler := schedule.NewCronScheduler()
	keep := time.Duration(cfg.Feedback.KeepHours) * time.Hour
	if err := scheduler.AddJob(job.NewFeedbackPruneJob(feedbackService, keep), "0 * * * *"); err != nil {
		return fmt.Errorf("schedule feedback prune: %w", err)
	}

	engine := handler.NewRouter(handler.RouterDeps{
		Assistant:       handler.NewAssistantHandler(assistantService, feedbackService),
		StaticDir:       cfg.StaticDir,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitWindow: cfg.RateLimitWindow,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	defer scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logutil.GetLogger(context.Background()).Info("server stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
