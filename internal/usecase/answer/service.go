// Package answer orchestrates the retrieval-augmented query pipeline:
// embed the question, search the store, assemble a grounding context,
// generate, and extract citation links.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/coursekb/coursekb/internal/domain"
	"github.com/coursekb/coursekb/internal/logger"
)

// DefaultTopK is the number of nearest chunks retrieved per question.
const DefaultTopK = 5

// Stage names the pipeline step a StageError came from.
type Stage string

const (
	// StageEmbed is the question-embedding step.
	StageEmbed Stage = "embed"
	// StageSearch is the vector store search step.
	StageSearch Stage = "search"
	// StageGenerate is the chat-completion step.
	StageGenerate Stage = "generate"
)

// StageError is the typed failure of one pipeline stage. Generation
// failures still carry the citation links computed before the failing call:
// only the prose answer is lost, the citations survive.
type StageError struct {
	Stage Stage
	Links []domain.Link
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Service answers questions grounded in retrieved chunks.
type Service struct {
	embed Embedder
	store Searcher
	gen   Generator
	topK  int
}

// New creates an answer service.
func New(embed Embedder, store Searcher, gen Generator) *Service {
	return &Service{embed: embed, store: store, gen: gen, topK: DefaultTopK}
}

// WithTopK configures how many results ground each answer.
func (s *Service) WithTopK(topK int) *Service {
	if topK > 0 {
		s.topK = topK
	}
	return s
}

// Answer runs the pipeline for one question. The error is either
// domain.ErrEmptyQuestion, domain.ErrNoResults, or a *StageError; the HTTP
// edge flattens all of them into the always-respondable wire shape.
func (s *Service) Answer(ctx context.Context, question string) (domain.Answer, error) {
	log := logger.FromContext(ctx)

	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return domain.Answer{}, domain.ErrEmptyQuestion
	}

	embRes, err := s.embed.Embed(ctx, trimmed)
	if err != nil {
		return domain.Answer{}, &StageError{Stage: StageEmbed, Err: err}
	}

	results, err := s.store.Search(ctx, embRes.Embedding, s.topK)
	if err != nil {
		return domain.Answer{}, &StageError{Stage: StageSearch, Err: err}
	}
	if len(results) == 0 {
		return domain.Answer{}, domain.ErrNoResults
	}

	groundingContext := assembleContext(results)
	links := extractLinks(results)

	log.Debug("Retrieved grounding context",
		zap.Int("results", len(results)),
		zap.Int("links", len(links)),
	)

	text, err := s.gen.Generate(ctx, systemPrompt, groundingContext, question)
	if err != nil {
		return domain.Answer{}, &StageError{Stage: StageGenerate, Links: links, Err: err}
	}

	return domain.Answer{Text: strings.TrimSpace(text), Links: links}, nil
}

// assembleContext concatenates payload texts in ranking order, blank-line
// separated.
func assembleContext(results []domain.ScoredPoint) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = r.Payload.Text
	}
	return strings.Join(blocks, "\n\n")
}

// extractLinks emits one citation per thread-sourced result carrying a post
// URL. Results without both still contribute to the context, just not to
// the link list.
func extractLinks(results []domain.ScoredPoint) []domain.Link {
	var links []domain.Link
	for _, r := range results {
		if link, ok := domain.LinkFromPayload(r.Payload); ok {
			links = append(links, link)
		}
	}
	return links
}
