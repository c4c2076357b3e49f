package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/coursekb/coursekb/internal/domain"
	"github.com/coursekb/coursekb/internal/logger"
	answeruc "github.com/coursekb/coursekb/internal/usecase/answer"
	healthuc "github.com/coursekb/coursekb/internal/usecase/health"
)

// Fixed answer strings for inputs the pipeline rejects before doing any
// work. Clients key off these exact texts.
const (
	answerEmptyQuestion = "Invalid input: Question cannot be empty."
	answerNoResults     = "No relevant results found."
)

// AskRequest is the body of POST /api. The image field is accepted for
// compatibility with older clients but not used.
type AskRequest struct {
	Question string `json:"question"`
	Image    string `json:"image,omitempty"`
}

// AskResponse is the body of every POST /api reply.
type AskResponse struct {
	Answer string        `json:"answer"`
	Links  []domain.Link `json:"links"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Server routes HTTP traffic to the answer and health services. The /api
// endpoint always replies 200 with an answer/links body: pipeline failures
// become degraded answer texts rather than error status codes, so thin
// clients never need an error branch.
type Server struct {
	answer  *answeruc.Service
	health  *healthuc.Service
	timeout time.Duration
	logger  *zap.Logger
}

// NewServer creates an HTTP API server. requestTimeout bounds the whole
// answer pipeline per request; zero disables the bound.
func NewServer(answer *answeruc.Service, health *healthuc.Service, requestTimeout time.Duration, log *zap.Logger) *Server {
	return &Server{
		answer:  answer,
		health:  health,
		timeout: requestTimeout,
		logger:  log,
	}
}

// Register mounts the API routes on r. CORS is wide open: the endpoint is
// called from a static course site served on arbitrary origins.
func (s *Server) Register(r chi.Router) {
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Post("/api", s.handleAsk)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Malformed bodies get the same fixed answer as a blank question.
		writeJSON(w, http.StatusOK, AskResponse{Answer: answerEmptyQuestion, Links: []domain.Link{}})
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	ans, err := s.answer.Answer(ctx, req.Question)
	if err != nil {
		writeJSON(w, http.StatusOK, degradedResponse(err, log))
		return
	}

	writeJSON(w, http.StatusOK, AskResponse{Answer: ans.Text, Links: nonNilLinks(ans.Links)})
}

// degradedResponse flattens a pipeline error into the fixed-format answer
// body the endpoint contract promises.
func degradedResponse(err error, log *zap.Logger) AskResponse {
	switch {
	case errors.Is(err, domain.ErrEmptyQuestion):
		return AskResponse{Answer: answerEmptyQuestion, Links: []domain.Link{}}
	case errors.Is(err, domain.ErrNoResults):
		return AskResponse{Answer: answerNoResults, Links: []domain.Link{}}
	}

	var se *answeruc.StageError
	if errors.As(err, &se) {
		log.Warn("Answer pipeline degraded",
			zap.String("stage", string(se.Stage)),
			zap.Error(se.Err),
		)
		switch se.Stage {
		case answeruc.StageEmbed:
			return AskResponse{Answer: fmt.Sprintf("Embedding failed: %v", se.Err), Links: []domain.Link{}}
		case answeruc.StageSearch:
			return AskResponse{Answer: fmt.Sprintf("Vector search failed: %v", se.Err), Links: []domain.Link{}}
		case answeruc.StageGenerate:
			// Retrieval succeeded, so the links still go out.
			return AskResponse{Answer: fmt.Sprintf("Answer generation failed: %v", se.Err), Links: nonNilLinks(se.Links)}
		}
	}

	log.Error("Answer pipeline failed", zap.Error(err))
	return AskResponse{Answer: fmt.Sprintf("Answer generation failed: %v", err), Links: []domain.Link{}}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for name, res := range report.Checks {
		checks[name] = string(res)
	}

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, HealthResponse{Status: string(report.Status), Checks: checks})
}

// nonNilLinks keeps the links field a JSON array even when empty.
func nonNilLinks(links []domain.Link) []domain.Link {
	if links == nil {
		return []domain.Link{}
	}
	return links
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
