package index

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/coursekb/coursekb/internal/chunker"
	"github.com/coursekb/coursekb/internal/domain"
	"github.com/coursekb/coursekb/internal/manifest"
)

// DefaultWorkers bounds concurrent embedding calls during a batch run.
const DefaultWorkers = 4

// Service drives the offline pipeline: chunk documentation, embed chunks
// and forum posts, upload the resulting points to the vector store.
type Service struct {
	split   Splitter
	embed   Embedder
	store   Uploader
	workers int
	limiter *rate.Limiter
	logger  *zap.Logger
}

func New(split Splitter, embed Embedder, store Uploader, logger *zap.Logger) *Service {
	return &Service{
		split:   split,
		embed:   embed,
		store:   store,
		workers: DefaultWorkers,
		logger:  logger,
	}
}

// WithWorkers overrides the embedding concurrency. Values below one are
// ignored.
func (s *Service) WithWorkers(n int) *Service {
	if n > 0 {
		s.workers = n
	}
	return s
}

// WithRateLimit caps embedding requests per second across all workers.
// Non-positive values disable the limiter.
func (s *Service) WithRateLimit(rps float64) *Service {
	if rps > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	} else {
		s.limiter = nil
	}
	return s
}

// ChunkDocs walks root for markdown files and splits each into chunks.
// Entries keep the file's slash-separated relative path in their ids, so a
// manifest produced on one machine stays valid on another. Unreadable files
// are logged and skipped rather than failing the whole run.
func (s *Service) ChunkDocs(root, siteBaseURL string) ([]manifest.ChunkEntry, error) {
	var entries []manifest.ChunkEntry

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".md") {
			return nil
		}

		data, err := os.ReadFile(p)
		if err != nil {
			s.logger.Warn("Skipping unreadable file", zap.String("path", p), zap.Error(err))
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			rel = p
		}
		rel = filepath.ToSlash(rel)

		for i, text := range s.split.Split(string(data)) {
			entries = append(entries, manifest.ChunkEntry{
				ID:      chunker.ChunkID(rel, i),
				Content: text,
				URL:     chunker.DeepLink(siteBaseURL, rel),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	s.logger.Info("Chunked documentation", zap.Int("chunks", len(entries)))
	return entries, nil
}

type embedJob struct {
	text string
	meta manifest.Metadata
}

// EmbedAll embeds every chunk and every forum post through a bounded worker
// pool. Items whose embedding call fails are logged and dropped; the output
// preserves input order regardless of completion order.
func (s *Service) EmbedAll(ctx context.Context, chunks []manifest.ChunkEntry, threads []manifest.Thread) ([]manifest.VectorEntry, error) {
	jobs := buildJobs(chunks, threads)
	if len(jobs) == 0 {
		return nil, nil
	}

	results := make([]*manifest.VectorEntry, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if s.limiter != nil {
				if err := s.limiter.Wait(ctx); err != nil {
					return err
				}
			}

			res, err := s.embed.Embed(ctx, job.text)
			if err != nil {
				s.logger.Warn("Skipping item after embedding failure",
					zap.String("source", job.meta.Source),
					zap.String("original_id", job.meta.OriginalID),
					zap.Error(err),
				)
				return nil
			}

			results[i] = &manifest.VectorEntry{
				ID:        uuid.NewString(),
				Embedding: res.Embedding,
				Metadata:  job.meta,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("embed items: %w", err)
	}

	out := make([]manifest.VectorEntry, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}

	s.logger.Info("Embedded items",
		zap.Int("total", len(jobs)),
		zap.Int("embedded", len(out)),
		zap.Int("skipped", len(jobs)-len(out)),
	)
	return out, nil
}

// Upload converts manifest entries into vector points and sends them to the
// store. The store validates and batches internally; the returned report
// says how many points landed and which were dropped.
func (s *Service) Upload(ctx context.Context, vectors []manifest.VectorEntry) (domain.UpsertReport, error) {
	points := make([]domain.VectorPoint, len(vectors))
	for i, v := range vectors {
		points[i] = domain.VectorPoint{
			ID:      v.ID,
			Vector:  v.Embedding,
			Payload: v.Metadata.ToPayload(),
		}
	}

	report, err := s.store.Upsert(ctx, points)
	if err != nil {
		return report, fmt.Errorf("upload vectors: %w", err)
	}

	s.logger.Info("Uploaded vectors",
		zap.Int("uploaded", report.Uploaded),
		zap.Int("dropped", len(report.Dropped)),
	)
	return report, nil
}

func buildJobs(chunks []manifest.ChunkEntry, threads []manifest.Thread) []embedJob {
	var jobs []embedJob

	for _, c := range chunks {
		text := strings.TrimSpace(c.Content)
		if text == "" {
			continue
		}
		jobs = append(jobs, embedJob{
			text: text,
			meta: manifest.Metadata{
				Text:       text,
				Source:     string(domain.SourceChunk),
				OriginalID: c.ID,
				URL:        c.URL,
			},
		})
	}

	for _, t := range threads {
		for _, p := range t.Posts {
			text := strings.TrimSpace(p.Text)
			if text == "" {
				continue
			}
			jobs = append(jobs, embedJob{
				text: text,
				meta: manifest.Metadata{
					Text:        text,
					Source:      string(domain.SourceThread),
					ThreadTitle: t.Title,
					PostURL:     p.URL,
					CreatedBy:   p.CreatedBy,
					PostType:    p.Type,
				},
			})
		}
	}

	return jobs
}
