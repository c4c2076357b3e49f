package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/coursekb/coursekb/internal/domain"
	"github.com/coursekb/coursekb/internal/manifest"
)

type paragraphSplitter struct{}

func (paragraphSplitter) Split(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type mockEmbedder struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()
	if err, ok := m.fail[text]; ok {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text))}}, nil
}

type mockUploader struct {
	points []domain.VectorPoint
	report domain.UpsertReport
	err    error
}

func (m *mockUploader) Upsert(_ context.Context, points []domain.VectorPoint) (domain.UpsertReport, error) {
	m.points = points
	return m.report, m.err
}

func newTestService(embed *mockEmbedder, store *mockUploader) *Service {
	return New(paragraphSplitter{}, embed, store, zap.NewNop())
}

func TestChunkDocsWalksMarkdownOnly(t *testing.T) {
	root := t.TempDir()

	writeFile(t, root, "intro.md", "First paragraph.\n\nSecond paragraph.")
	writeFile(t, root, filepath.Join("guides", "setup.md"), "Only one.")
	writeFile(t, root, "notes.txt", "Ignored entirely.")

	svc := newTestService(&mockEmbedder{}, &mockUploader{})

	entries, err := svc.ChunkDocs(root, "https://course.example.com/site")
	if err != nil {
		t.Fatalf("ChunkDocs: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(entries))
	}

	byID := make(map[string]manifest.ChunkEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}

	first, ok := byID["guides/setup.md#0"]
	if !ok {
		t.Fatalf("missing chunk for guides/setup.md, have %v", keysOf(byID))
	}
	if first.Content != "Only one." {
		t.Errorf("unexpected content %q", first.Content)
	}
	if first.URL != "https://course.example.com/site/#/setup" {
		t.Errorf("unexpected deep link %q", first.URL)
	}

	if _, ok := byID["intro.md#1"]; !ok {
		t.Errorf("missing second chunk of intro.md, have %v", keysOf(byID))
	}
}

func TestChunkDocsMissingRoot(t *testing.T) {
	svc := newTestService(&mockEmbedder{}, &mockUploader{})

	if _, err := svc.ChunkDocs(filepath.Join(t.TempDir(), "nope"), "https://s"); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestEmbedAllPreservesOrderAndMetadata(t *testing.T) {
	embed := &mockEmbedder{}
	svc := newTestService(embed, &mockUploader{}).WithWorkers(3)

	chunks := []manifest.ChunkEntry{
		{ID: "a.md#0", Content: "  alpha  ", URL: "https://s/#/a"},
		{ID: "a.md#1", Content: "beta"},
		{ID: "a.md#2", Content: "   "}, // blank, skipped before embedding
	}
	threads := []manifest.Thread{{
		Title: "How do I submit?",
		URL:   "https://forum/t/1",
		Posts: []manifest.Post{
			{Type: "question", Text: "How do I submit?", URL: "https://forum/p/1", CreatedBy: "student"},
			{Type: "answer", Text: "Use the portal.", URL: "https://forum/p/2", CreatedBy: "staff"},
			{Type: "follow-up", Text: "gamma", URL: "https://forum/p/3"},
		},
	}}

	out, err := svc.EmbedAll(context.Background(), chunks, threads)
	if err != nil {
		t.Fatalf("EmbedAll: %v", err)
	}
	if len(out) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(out))
	}

	wantTexts := []string{"alpha", "beta", "How do I submit?", "Use the portal.", "gamma"}
	for i, want := range wantTexts {
		if out[i].Metadata.Text != want {
			t.Errorf("entry %d: text = %q, want %q", i, out[i].Metadata.Text, want)
		}
	}

	if out[0].Metadata.Source != "chunk" || out[0].Metadata.OriginalID != "a.md#0" {
		t.Errorf("unexpected chunk metadata %+v", out[0].Metadata)
	}
	if out[2].Metadata.Source != "thread" || out[2].Metadata.ThreadTitle != "How do I submit?" {
		t.Errorf("unexpected thread metadata %+v", out[2].Metadata)
	}

	seen := make(map[string]bool, len(out))
	for _, e := range out {
		if e.ID == "" || seen[e.ID] {
			t.Fatalf("ids must be unique and non-empty, got %q", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestEmbedAllSkipsFailedItems(t *testing.T) {
	embed := &mockEmbedder{fail: map[string]error{"bad": errors.New("rate limited")}}
	svc := newTestService(embed, &mockUploader{}).WithWorkers(2)

	chunks := []manifest.ChunkEntry{
		{ID: "a.md#0", Content: "good"},
		{ID: "a.md#1", Content: "bad"},
		{ID: "a.md#2", Content: "also good"},
	}

	out, err := svc.EmbedAll(context.Background(), chunks, nil)
	if err != nil {
		t.Fatalf("EmbedAll: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out))
	}
	if out[0].Metadata.Text != "good" || out[1].Metadata.Text != "also good" {
		t.Errorf("failed item should be dropped without disturbing order: %+v", out)
	}
}

func TestEmbedAllEmptyInput(t *testing.T) {
	embed := &mockEmbedder{}
	svc := newTestService(embed, &mockUploader{})

	out, err := svc.EmbedAll(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("EmbedAll: %v", err)
	}
	if out != nil {
		t.Errorf("expected nil output, got %v", out)
	}
	if len(embed.calls) != 0 {
		t.Errorf("embedder must not be called, got %d calls", len(embed.calls))
	}
}

func TestUploadConvertsAndReports(t *testing.T) {
	store := &mockUploader{report: domain.UpsertReport{Uploaded: 2}}
	svc := newTestService(&mockEmbedder{}, store)

	vectors := []manifest.VectorEntry{
		{ID: "id-1", Embedding: []float32{1}, Metadata: manifest.Metadata{Text: "t1", Source: "chunk", OriginalID: "a.md#0"}},
		{ID: "id-2", Embedding: []float32{2}, Metadata: manifest.Metadata{Text: "t2", Source: "thread", PostURL: "https://forum/p/2"}},
	}

	report, err := svc.Upload(context.Background(), vectors)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if report.Uploaded != 2 {
		t.Errorf("uploaded = %d, want 2", report.Uploaded)
	}

	if len(store.points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(store.points))
	}
	if store.points[0].Payload.Source != domain.SourceChunk || store.points[0].Payload.OriginalID != "a.md#0" {
		t.Errorf("unexpected payload %+v", store.points[0].Payload)
	}
	if store.points[1].Payload.PostURL != "https://forum/p/2" {
		t.Errorf("unexpected payload %+v", store.points[1].Payload)
	}
}

func TestUploadStoreError(t *testing.T) {
	store := &mockUploader{err: domain.ErrVectorStoreError}
	svc := newTestService(&mockEmbedder{}, store)

	_, err := svc.Upload(context.Background(), []manifest.VectorEntry{{ID: "x", Embedding: []float32{1}}})
	if !errors.Is(err, domain.ErrVectorStoreError) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func keysOf(m map[string]manifest.ChunkEntry) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
