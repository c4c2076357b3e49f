// Package qdrant is a REST client for the vector store. The store is opaque
// to the rest of the system: upsert points, nearest-neighbor search, and a
// readiness probe, nothing else.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/coursekb/coursekb/internal/domain"
	"github.com/coursekb/coursekb/internal/metrics"
)

// Store talks to one Qdrant collection.
type Store struct {
	url        string
	apiKey     string
	collection string
	dim        int
	batchSize  int
	client     *http.Client
	logger     *zap.Logger
}

// Config holds the vector store settings.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration
	Logger     *zap.Logger
}

// NewStore creates a Qdrant REST client.
func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	dim := cfg.Dimensions
	if dim <= 0 {
		dim = domain.DefaultVectorDim
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dim:        dim,
		batchSize:  batchSize,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Upsert validates every point, drops the invalid ones, and uploads the rest
// in fixed-size batches. Each batch waits for the store's durability
// acknowledgment before the next is sent. A failed batch fails the whole
// upsert; there is no partial-batch retry, since continuing past a failed
// batch would silently lose data.
func (s *Store) Upsert(ctx context.Context, points []domain.VectorPoint) (domain.UpsertReport, error) {
	var report domain.UpsertReport

	valid := make([]domain.VectorPoint, 0, len(points))
	for _, p := range points {
		if err := p.Validate(s.dim); err != nil {
			report.Dropped = append(report.Dropped, domain.DroppedPoint{ID: p.ID, Err: err})
			metrics.StorePointsDroppedTotal.Inc()
			s.logger.Warn("Dropping invalid point", zap.String("id", p.ID), zap.Error(err))
			continue
		}
		valid = append(valid, p)
	}

	for start := 0; start < len(valid); start += s.batchSize {
		end := min(start+s.batchSize, len(valid))
		if err := s.uploadBatch(ctx, valid[start:end]); err != nil {
			metrics.StoreRequestsTotal.WithLabelValues("upsert", "error").Inc()
			return report, fmt.Errorf("batch %d: %w: %w", start/s.batchSize+1, domain.ErrBatchUpload, err)
		}
		metrics.StoreRequestsTotal.WithLabelValues("upsert", "success").Inc()
		report.Uploaded += end - start
		s.logger.Info("Uploaded batch",
			zap.Int("batch", start/s.batchSize+1),
			zap.Int("points", end-start),
		)
	}

	return report, nil
}

// Search returns up to topK nearest points ranked by descending similarity.
// An empty collection or no hits yields an empty slice, not an error.
func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]domain.ScoredPoint, error) {
	if topK <= 0 {
		topK = 5
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}

	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float32        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection)
	if err := s.doJSON(ctx, http.MethodPost, url, req, &resp); err != nil {
		metrics.StoreRequestsTotal.WithLabelValues("search", "error").Inc()
		return nil, fmt.Errorf("search: %w", err)
	}
	metrics.StoreRequestsTotal.WithLabelValues("search", "success").Inc()

	results := make([]domain.ScoredPoint, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.ScoredPoint{
			ID:      fmt.Sprint(r.ID),
			Score:   r.Score,
			Payload: payloadFromMap(r.Payload),
		})
	}
	return results, nil
}

// EnsureCollection creates the collection with cosine distance if it does
// not exist yet. Qdrant answers 409 Conflict when the collection already
// exists, so existence is probed first; a conflict on create still counts
// as success in case a concurrent run created it between the two calls.
func (s *Store) EnsureCollection(ctx context.Context) error {
	exists, err := s.collectionExists(ctx)
	if err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	if exists {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dim,
			"distance": "Cosine",
		},
	}
	url := fmt.Sprintf("%s/collections/%s", s.url, s.collection)
	if err := s.doJSON(ctx, http.MethodPut, url, body, nil); err != nil {
		if exists, probeErr := s.collectionExists(ctx); probeErr == nil && exists {
			return nil
		}
		return fmt.Errorf("ensure collection: %w", err)
	}
	return nil
}

// collectionExists resolves the collection's presence via GET: 200 means it
// exists, 404 means it does not, anything else is a store error.
func (s *Store) collectionExists(ctx context.Context) (bool, error) {
	url := fmt.Sprintf("%s/collections/%s", s.url, s.collection)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("GET %s: %w: %w", url, err, domain.ErrVectorStoreError)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 300:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("GET %s: %s: %s: %w", url, resp.Status, detail, domain.ErrVectorStoreError)
	default:
		return true, nil
	}
}

// Ping checks that the collection is reachable.
func (s *Store) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/collections/%s", s.url, s.collection)
	if err := s.doJSON(ctx, http.MethodGet, url, nil, nil); err != nil {
		return fmt.Errorf("ping collection: %w", err)
	}
	return nil
}

func (s *Store) uploadBatch(ctx context.Context, batch []domain.VectorPoint) error {
	points := make([]map[string]any, len(batch))
	for i, p := range batch {
		points[i] = map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": payloadToMap(p.Payload),
		}
	}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection)
	return s.doJSON(ctx, http.MethodPut, url, map[string]any{"points": points}, nil)
}

func (s *Store) doJSON(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		// Managed deployments expect api-key, proxies expect a bearer token.
		req.Header.Set("api-key", s.apiKey)
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, url, err, domain.ErrVectorStoreError)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: %s: %s: %w", method, url, resp.Status, detail, domain.ErrVectorStoreError)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w: %w", err, domain.ErrVectorStoreError)
		}
	}
	return nil
}

// payloadToMap flattens a payload into the stored JSON document. Only the
// fields relevant to the payload's source are written.
func payloadToMap(p domain.Payload) map[string]any {
	m := map[string]any{
		"text":   p.Text,
		"source": string(p.Source),
	}
	if p.OriginalID != "" {
		m["original_id"] = p.OriginalID
	}
	if p.URL != "" {
		m["url"] = p.URL
	}
	if p.ThreadTitle != "" {
		m["thread_title"] = p.ThreadTitle
	}
	if p.PostURL != "" {
		m["post_url"] = p.PostURL
	}
	if p.CreatedBy != "" {
		m["created_by"] = p.CreatedBy
	}
	if p.PostType != "" {
		m["type"] = p.PostType
	}
	return m
}

func payloadFromMap(m map[string]any) domain.Payload {
	str := func(key string) string {
		if v, ok := m[key].(string); ok {
			return v
		}
		return ""
	}
	return domain.Payload{
		Text:        str("text"),
		Source:      domain.Source(str("source")),
		OriginalID:  str("original_id"),
		URL:         str("url"),
		ThreadTitle: str("thread_title"),
		PostURL:     str("post_url"),
		CreatedBy:   str("created_by"),
		PostType:    str("type"),
	}
}
