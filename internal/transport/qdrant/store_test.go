package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/coursekb/coursekb/internal/domain"
)

const testDim = 4

func point(id string, fill float32) domain.VectorPoint {
	vec := make([]float32, testDim)
	for i := range vec {
		vec[i] = fill
	}
	return domain.VectorPoint{
		ID:      id,
		Vector:  vec,
		Payload: domain.Payload{Text: "text " + id, Source: domain.SourceChunk, OriginalID: id},
	}
}

func newTestStore(url string, batchSize int) *Store {
	return NewStore(Config{
		URL:        url,
		APIKey:     "test-key",
		Collection: "course_kb",
		Dimensions: testDim,
		BatchSize:  batchSize,
		Logger:     zap.NewNop(),
	})
}

func TestUpsertBatchesSequentially(t *testing.T) {
	var batches [][]map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		if r.URL.Path != "/collections/course_kb/points" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("wait") != "true" {
			t.Error("upsert must wait for durability acknowledgment")
		}
		if r.Header.Get("api-key") != "test-key" {
			t.Errorf("api-key header = %q", r.Header.Get("api-key"))
		}

		var body struct {
			Points []map[string]any `json:"points"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		batches = append(batches, body.Points)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	points := []domain.VectorPoint{
		point("a", 0.1), point("b", 0.2), point("c", 0.3),
		point("d", 0.4), point("e", 0.5),
	}

	report, err := newTestStore(server.URL, 2).Upsert(context.Background(), points)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if report.Uploaded != 5 {
		t.Errorf("uploaded = %d, want 5", report.Uploaded)
	}
	if len(report.Dropped) != 0 {
		t.Errorf("dropped = %d, want 0", len(report.Dropped))
	}
	if len(batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(batches))
	}
	if len(batches[0]) != 2 || len(batches[1]) != 2 || len(batches[2]) != 1 {
		t.Errorf("batch sizes = %d/%d/%d", len(batches[0]), len(batches[1]), len(batches[2]))
	}
}

func TestUpsertDropsInvalidPoints(t *testing.T) {
	var uploaded int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Points []map[string]any `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		uploaded += len(body.Points)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	short := point("short", 0.1)
	short.Vector = short.Vector[:testDim-1]

	report, err := newTestStore(server.URL, 10).Upsert(context.Background(), []domain.VectorPoint{
		point("ok-1", 0.1), short, point("ok-2", 0.2),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if report.Uploaded != 2 || uploaded != 2 {
		t.Errorf("uploaded = %d (server saw %d), want 2", report.Uploaded, uploaded)
	}
	if len(report.Dropped) != 1 {
		t.Fatalf("dropped = %d, want 1", len(report.Dropped))
	}
	if report.Dropped[0].ID != "short" {
		t.Errorf("dropped id = %q", report.Dropped[0].ID)
	}
	if !errors.Is(report.Dropped[0].Err, domain.ErrInvalidPoint) {
		t.Errorf("dropped err = %v", report.Dropped[0].Err)
	}
}

func TestUpsertFailedBatchAbortsRun(t *testing.T) {
	var calls int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"status":{"error":"disk full"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	points := []domain.VectorPoint{
		point("a", 0.1), point("b", 0.2), point("c", 0.3), point("d", 0.4),
	}

	report, err := newTestStore(server.URL, 2).Upsert(context.Background(), points)
	if !errors.Is(err, domain.ErrBatchUpload) {
		t.Fatalf("expected ErrBatchUpload, got %v", err)
	}
	if report.Uploaded != 2 {
		t.Errorf("uploaded before failure = %d, want 2", report.Uploaded)
	}
	if calls != 2 {
		t.Errorf("server calls = %d, want 2 (no batches after the failed one)", calls)
	}
}

func TestSearchParsesRankedResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/course_kb/points/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["limit"] != float64(5) {
			t.Errorf("limit = %v, want 5", req["limit"])
		}
		if req["with_payload"] != true {
			t.Error("with_payload must be set")
		}

		_, _ = w.Write([]byte(`{"result":[
			{"id":"p1","score":0.93,"payload":{"text":"from docs","source":"chunk","original_id":"git.md#0","url":"https://site/#/git"}},
			{"id":"p2","score":0.81,"payload":{"text":"from forum","source":"thread","thread_title":"GA1","post_url":"https://forum/t/ga1/10/2","created_by":"ta","type":"answer"}}
		]}`))
	}))
	defer server.Close()

	results, err := newTestStore(server.URL, 10).Search(context.Background(), []float32{1, 2, 3, 4}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Score < results[1].Score {
		t.Error("results must stay in descending score order")
	}
	if results[0].Payload.Source != domain.SourceChunk || results[0].Payload.Text != "from docs" {
		t.Errorf("first payload = %+v", results[0].Payload)
	}
	if results[1].Payload.PostURL != "https://forum/t/ga1/10/2" {
		t.Errorf("second payload post_url = %q", results[1].Payload.PostURL)
	}
}

func TestSearchEmptyResultIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":[]}`))
	}))
	defer server.Close()

	results, err := newTestStore(server.URL, 10).Search(context.Background(), []float32{1, 2, 3, 4}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %d, want 0", len(results))
	}
}

func TestSearchStoreError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestStore(server.URL, 10).Search(context.Background(), []float32{1, 2, 3, 4}, 5)
	if !errors.Is(err, domain.ErrVectorStoreError) {
		t.Fatalf("expected ErrVectorStoreError, got %v", err)
	}
}

func TestEnsureCollectionCreatesWhenMissing(t *testing.T) {
	var calls []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/course_kb" {
			t.Errorf("path = %s", r.URL.Path)
		}
		calls = append(calls, r.Method)

		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			var body struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode create body: %v", err)
			}
			if body.Vectors.Size != testDim || body.Vectors.Distance != "Cosine" {
				t.Errorf("create body = %+v", body.Vectors)
			}
			_, _ = w.Write([]byte(`{"result":true,"status":"ok"}`))
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer server.Close()

	if err := newTestStore(server.URL, 10).EnsureCollection(context.Background()); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if len(calls) != 2 || calls[0] != http.MethodGet || calls[1] != http.MethodPut {
		t.Errorf("calls = %v, want [GET PUT]", calls)
	}
}

func TestEnsureCollectionExistingIsIdempotent(t *testing.T) {
	var calls []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method)
		if r.Method != http.MethodGet {
			t.Errorf("no create call expected for an existing collection, got %s", r.Method)
		}
		_, _ = w.Write([]byte(`{"result":{"status":"green"},"status":"ok"}`))
	}))
	defer server.Close()

	store := newTestStore(server.URL, 10)
	for i := 0; i < 2; i++ {
		if err := store.EnsureCollection(context.Background()); err != nil {
			t.Fatalf("EnsureCollection: %v", err)
		}
	}
	if len(calls) != 2 {
		t.Errorf("calls = %v, want one GET per run", calls)
	}
}

func TestEnsureCollectionToleratesCreateConflict(t *testing.T) {
	gets := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			gets++
			// Missing on the first probe, present after the racing creator wins.
			if gets == 1 {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(`{"result":{"status":"green"},"status":"ok"}`))
		case http.MethodPut:
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"status":{"error":"Collection course_kb already exists!"}}`))
		}
	}))
	defer server.Close()

	if err := newTestStore(server.URL, 10).EnsureCollection(context.Background()); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
}

func TestEnsureCollectionCreateFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer server.Close()

	err := newTestStore(server.URL, 10).EnsureCollection(context.Background())
	if !errors.Is(err, domain.ErrVectorStoreError) {
		t.Fatalf("expected ErrVectorStoreError, got %v", err)
	}
}
