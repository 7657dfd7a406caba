package ranking

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/snapfind/internal/embeddings"
	"github.com/fyrsmithlabs/snapfind/internal/logging"
)

// ErrEmptyQueryVector is returned when the query embedding is empty.
var ErrEmptyQueryVector = errors.New("query vector cannot be empty")

// Stats summarizes one ranking pass.
type Stats struct {
	Candidates int // Paths offered for ranking
	Scored     int // Paths embedded and scored
	Skipped    int // Paths dropped after an embedding failure
}

// Ranker embeds candidate images one at a time and ranks them against a
// query vector.
type Ranker struct {
	embedder embeddings.ImageEmbedder
	logger   *logging.Logger
}

// NewRanker creates a ranker. A nil logger discards diagnostics.
func NewRanker(embedder embeddings.ImageEmbedder, logger *logging.Logger) *Ranker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Ranker{embedder: embedder, logger: logger}
}

// Rank returns the topN best matches for query among paths.
func (r *Ranker) Rank(ctx context.Context, query []float32, paths []string, topN int) ([]Match, error) {
	matches, _, err := r.RankWithStats(ctx, query, paths, topN)
	return matches, err
}

// RankWithStats is Rank plus a summary of what happened to each candidate.
//
// Images that fail to embed are logged and skipped. If ctx is cancelled
// mid-way, the matches scored so far are ranked and returned together with
// ctx's error.
func (r *Ranker) RankWithStats(ctx context.Context, query []float32, paths []string, topN int) ([]Match, Stats, error) {
	stats := Stats{Candidates: len(paths)}
	if len(query) == 0 {
		return nil, stats, ErrEmptyQueryVector
	}

	scored := make([]Match, 0, len(paths))
	var ctxErr error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			ctxErr = err
			break
		}

		vec, err := r.embedder.EmbedImage(ctx, path)
		if err == nil && len(vec) != len(query) {
			err = fmt.Errorf("%w: got %d dimensions, want %d", embeddings.ErrEmbeddingFailed, len(vec), len(query))
		}
		if err != nil {
			if ctx.Err() != nil {
				ctxErr = ctx.Err()
				break
			}
			stats.Skipped++
			r.logger.Warn(ctx, "skipping image",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}

		score := CosineSimilarity(query, vec)
		r.logger.Trace(ctx, "scored image", zap.String("path", path), zap.Float64("score", score))
		scored = append(scored, Match{Path: path, Score: score})
	}
	stats.Scored = len(scored)

	results := TopN(scored, topN)
	if ctxErr != nil {
		return results, stats, ctxErr
	}
	return results, stats, nil
}
