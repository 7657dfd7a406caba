// Package search runs one query end to end: embed the prompt, enumerate the
// corpus, rank the images.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/snapfind/internal/corpus"
	"github.com/fyrsmithlabs/snapfind/internal/embeddings"
	"github.com/fyrsmithlabs/snapfind/internal/logging"
	"github.com/fyrsmithlabs/snapfind/internal/ranking"
)

const tracerName = "github.com/fyrsmithlabs/snapfind/internal/search"

var (
	// ErrEmptyQuery indicates a blank prompt.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrQueryEmbedding indicates the prompt itself could not be embedded.
	ErrQueryEmbedding = errors.New("query embedding failed")
)

// Embedder embeds both the query and the candidate images.
type Embedder interface {
	embeddings.TextEmbedder
	embeddings.ImageEmbedder
}

// Config holds search parameters.
type Config struct {
	RootDir string
	TopN    int
}

// Result is the outcome of one search.
type Result struct {
	ID       string
	Query    string
	Matches  []ranking.Match
	Stats    ranking.Stats
	Duration time.Duration
}

// Service wires the enumerator, embedder and ranker together.
type Service struct {
	config     Config
	embedder   Embedder
	enumerator *corpus.Enumerator
	ranker     *ranking.Ranker
	logger     *logging.Logger
}

// NewService creates a search service. The caller keeps ownership of embedder.
func NewService(cfg Config, embedder Embedder, logger *logging.Logger) (*Service, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if cfg.RootDir == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	if cfg.TopN < 1 {
		return nil, fmt.Errorf("top_n must be at least 1, got %d", cfg.TopN)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Service{
		config:     cfg,
		embedder:   embedder,
		enumerator: corpus.NewEnumerator(logger.Named("corpus")),
		ranker:     ranking.NewRanker(embedder, logger.Named("ranking")),
		logger:     logger,
	}, nil
}

// Search ranks the images under the configured root against query.
//
// A query that cannot be embedded is fatal. Images that cannot be embedded
// are skipped. An empty corpus is a normal, empty result.
func (s *Service) Search(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	id := uuid.NewString()
	ctx = logging.WithSearchID(ctx, id)
	start := time.Now()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "search",
		trace.WithAttributes(
			attribute.String("search.id", id),
			attribute.Int("search.top_n", s.config.TopN),
		),
	)
	defer span.End()

	s.logger.Info(ctx, "search started",
		zap.String("query", query),
		zap.String("root", s.config.RootDir),
		zap.Int("top_n", s.config.TopN),
	)

	queryVec, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, spanError(span, fmt.Errorf("%w: %w", ErrQueryEmbedding, err))
	}

	paths, err := s.enumerator.ListImages(ctx, s.config.RootDir)
	if err != nil {
		return nil, spanError(span, fmt.Errorf("listing images: %w", err))
	}

	matches, stats, err := s.ranker.RankWithStats(ctx, queryVec, paths, s.config.TopN)
	if err != nil {
		return nil, spanError(span, fmt.Errorf("ranking images: %w", err))
	}

	result := &Result{
		ID:       id,
		Query:    query,
		Matches:  matches,
		Stats:    stats,
		Duration: time.Since(start),
	}

	span.SetAttributes(
		attribute.Int("search.candidates", stats.Candidates),
		attribute.Int("search.skipped", stats.Skipped),
		attribute.Int("search.returned", len(matches)),
	)
	s.logger.Info(ctx, "search complete",
		zap.Int("candidates", stats.Candidates),
		zap.Int("scored", stats.Scored),
		zap.Int("skipped", stats.Skipped),
		zap.Int("returned", len(matches)),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
