package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"byd-rag/config"
	"byd-rag/llm"
	"byd-rag/logging"
	"byd-rag/rag"
	"byd-rag/source"
	"byd-rag/store"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	embed := flag.Bool("embed", false, "embed the default document once and exit")
	document := flag.String("document", "", "document id for -embed (defaults to ingest.default_document)")
	query := flag.String("query", "", "answer one question and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *embed, *document, *query); err != nil {
		logger.Error("exiting", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, embed bool, document, query string) error {
	client, err := llm.New(ctx, &cfg.Provider)
	if err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	defer client.Close()

	backend, err := store.Open(ctx, &cfg.Store, client.Dimensions())
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer backend.Close()

	ingester := rag.NewIngester(
		source.NewRouter(cfg.Ingest.DocumentDir),
		rag.NewSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap),
		client,
		backend,
		rag.IngestOptions{Workers: cfg.Ingest.Workers, FailFast: cfg.Ingest.FailFast},
		logger.Named("ingest"),
	)
	querier := rag.NewQuerier(client, backend, client, rag.QueryOptions{
		Search:           rag.SearchParams{Threshold: cfg.Query.Threshold, Limit: cfg.Query.Limit},
		SystemPrompt:     cfg.Query.SystemPrompt,
		SkipEmptyContext: !cfg.Query.AllowEmptyContext,
		NoContextAnswer:  cfg.Query.NoContextAnswer,
	}, logger.Named("query"))

	logger.Info("pipeline ready",
		zap.String("provider", cfg.Provider.Name),
		zap.String("store", cfg.Store.Backend),
		zap.Int("dimensions", client.Dimensions()))

	switch {
	case embed:
		if document == "" {
			document = cfg.Ingest.DefaultDocument
		}
		return embedOnce(ctx, ingester, document)
	case query != "":
		answer, err := querier.Answer(ctx, query)
		if err != nil {
			return err
		}
		fmt.Println(answer.Text)
		return nil
	}

	srv := NewServer(ingester, querier, logger.Named("http"), cfg.Ingest.DefaultDocument, cfg.Server.RequestTimeout)
	return serve(ctx, cfg.Server, srv.Routes(), logger)
}

func embedOnce(ctx context.Context, ingester *rag.Ingester, document string) error {
	var bar *progressbar.ProgressBar
	report, err := ingester.
		WithPlanned(func(chunks int) {
			bar = progressbar.Default(int64(chunks), "embedding "+document)
		}).
		WithProgress(func(rag.ChunkOutcome) {
			_ = bar.Add(1)
		}).
		Ingest(ctx, document)
	if bar != nil {
		_ = bar.Finish()
	}
	if report != nil {
		fmt.Printf("chunks: %d, inserted: %d, failed: %d\n", report.Chunks, report.Inserted, report.Failed)
		for _, o := range report.Failures() {
			fmt.Printf("  %s: %v\n", o.ChunkID, o.Err)
		}
	}
	return err
}

func serve(ctx context.Context, cfg config.ServerConfig, handler http.Handler, logger *zap.Logger) error {
	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server running", zap.String("addr", cfg.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
