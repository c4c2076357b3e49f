package coursekb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAsk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["question"] != "how do I enroll?" {
			t.Errorf("question = %q", req["question"])
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(AskResult{
			Answer: "Use the enrollment form.",
			Links:  []Link{{URL: "https://forum/p/7", Text: "Enrollment is open."}},
		})
	}))
	defer srv.Close()

	client := New(srv.URL, WithTimeout(5*time.Second))

	res, err := client.Ask(context.Background(), "how do I enroll?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Answer != "Use the enrollment form." {
		t.Errorf("answer = %q", res.Answer)
	}
	if len(res.Links) != 1 || res.Links[0].URL != "https://forum/p/7" {
		t.Errorf("links = %+v", res.Links)
	}
}

func TestAskUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(srv.URL)

	if _, err := client.Ask(context.Background(), "q"); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestAskTrimsTrailingSlash(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(AskResult{Answer: "a", Links: []Link{}})
	}))
	defer srv.Close()

	client := New(srv.URL + "/")

	if _, err := client.Ask(context.Background(), "q"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if gotPath != "/api" {
		t.Errorf("path = %q, want /api", gotPath)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(HealthStatus{
			Status: "degraded",
			Checks: map[string]string{"vector_store": "error"},
		})
	}))
	defer srv.Close()

	client := New(srv.URL)

	status, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if status.Status != "degraded" {
		t.Errorf("status = %q", status.Status)
	}
	if status.Checks["vector_store"] != "error" {
		t.Errorf("checks = %+v", status.Checks)
	}
}
