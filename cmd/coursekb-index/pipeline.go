package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coursekb/coursekb/internal/chunker"
	"github.com/coursekb/coursekb/internal/manifest"
	"github.com/coursekb/coursekb/internal/metrics"
	openaiTransport "github.com/coursekb/coursekb/internal/transport/openai"
	"github.com/coursekb/coursekb/internal/transport/qdrant"
	indexuc "github.com/coursekb/coursekb/internal/usecase/index"
)

var chunkCmd = &cobra.Command{
	Use:   "chunk",
	Short: "Split course documentation into token-bounded chunks",
	RunE:  runChunk,
}

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Embed documentation chunks and forum posts",
	RunE:  runEmbed,
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload embedded vectors to the vector store",
	RunE:  runUpload,
}

func init() {
	chunkCmd.Flags().StringVar(&docsDir, "docs", "docs", "documentation directory to walk")
	chunkCmd.Flags().StringVar(&siteBaseURL, "site", "", "published site base URL for deep links (overrides config)")

	rootCmd.AddCommand(chunkCmd)
	rootCmd.AddCommand(embedCmd)
	rootCmd.AddCommand(uploadCmd)
}

func runChunk(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	site := siteBaseURL
	if site == "" {
		site = cfg.Index.SiteBaseURL
	}

	counter, err := chunker.NewTiktokenCounter(cfg.Index.TokenizerModel)
	if err != nil {
		return fmt.Errorf("load tokenizer: %w", err)
	}
	splitter := chunker.New(counter, cfg.Index.TokenLimit)

	svc := indexuc.New(splitter, nil, nil, logger)

	chunks, err := svc.ChunkDocs(docsDir, site)
	if err != nil {
		return err
	}

	if err := manifest.Save(chunksPath, chunks); err != nil {
		return err
	}

	cmd.Printf("Wrote %d chunks to %s\n", len(chunks), chunksPath)
	return nil
}

func runEmbed(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	metrics.RegisterRemoteMetrics()

	chunks, err := manifest.LoadChunks(chunksPath)
	if err != nil {
		logger.Warn("No chunk manifest, embedding threads only", zap.String("path", chunksPath), zap.Error(err))
	}
	threads, err := manifest.LoadThreads(threadsPath)
	if err != nil {
		logger.Warn("No thread manifest, embedding chunks only", zap.String("path", threadsPath), zap.Error(err))
	}
	if len(chunks) == 0 && len(threads) == 0 {
		return fmt.Errorf("nothing to embed: no entries in %s or %s", chunksPath, threadsPath)
	}

	embedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:  cfg.Embedding.APIKey,
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
		Timeout: time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	splitter := chunker.New(noopCounter{}, cfg.Index.TokenLimit)
	svc := indexuc.New(splitter, embedder, nil, logger).
		WithWorkers(cfg.Index.Workers).
		WithRateLimit(cfg.Index.RequestsPerSec)

	vectors, err := svc.EmbedAll(cmd.Context(), chunks, threads)
	if err != nil {
		return err
	}

	if err := manifest.Save(vectorsPath, vectors); err != nil {
		return err
	}

	cmd.Printf("Wrote %d vectors to %s\n", len(vectors), vectorsPath)
	return nil
}

func runUpload(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	metrics.RegisterRemoteMetrics()

	vectors, err := manifest.LoadVectors(vectorsPath)
	if err != nil {
		return err
	}
	if len(vectors) == 0 {
		return fmt.Errorf("no vectors in %s", vectorsPath)
	}

	store := qdrant.NewStore(qdrant.Config{
		URL:        cfg.Qdrant.URL,
		APIKey:     cfg.Qdrant.APIKey,
		Collection: cfg.Qdrant.Collection,
		Dimensions: cfg.Embedding.Dimensions,
		BatchSize:  cfg.Qdrant.BatchSize,
		Timeout:    time.Duration(cfg.Qdrant.TimeoutSec) * time.Second,
		Logger:     logger,
	})

	if err := store.EnsureCollection(cmd.Context()); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	splitter := chunker.New(noopCounter{}, cfg.Index.TokenLimit)
	svc := indexuc.New(splitter, nil, store, logger)

	report, err := svc.Upload(cmd.Context(), vectors)
	if err != nil {
		return err
	}

	cmd.Printf("Uploaded %d vectors to %q", report.Uploaded, cfg.Qdrant.Collection)
	if len(report.Dropped) > 0 {
		cmd.Printf(" (%d dropped as invalid)", len(report.Dropped))
		for _, d := range report.Dropped {
			logger.Warn("Dropped point", zap.String("id", d.ID), zap.Error(d.Err))
		}
	}
	cmd.Println()
	return nil
}

// noopCounter satisfies the splitter dependency for stages that never chunk.
type noopCounter struct{}

func (noopCounter) Count(s string) int { return len(s) }
