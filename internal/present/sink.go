// Package present renders ranked matches, either as plain console lines or
// in an interactive terminal viewer.
package present

import (
	"context"
	"fmt"
	"io"

	"github.com/fyrsmithlabs/snapfind/internal/ranking"
)

// NoResultsMessage is printed instead of rendering when nothing matched.
const NoResultsMessage = "No matching images found."

// Sink displays a ranked result list.
type Sink interface {
	Render(ctx context.Context, results []ranking.Match) error
}

// ConsoleSink writes one line per match to an io.Writer.
type ConsoleSink struct {
	w io.Writer
}

// NewConsoleSink creates a sink writing to w.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

// Render writes "<rank>. <path> - Score: <pct>%" for each match, rank 1-based.
func (s *ConsoleSink) Render(_ context.Context, results []ranking.Match) error {
	for i, m := range results {
		if _, err := fmt.Fprintln(s.w, FormatLine(i+1, m)); err != nil {
			return fmt.Errorf("writing result %d: %w", i+1, err)
		}
	}
	return nil
}

// FormatLine formats one console result line (without newline).
func FormatLine(rank int, m ranking.Match) string {
	return fmt.Sprintf("%d. %s - Score: %s", rank, m.Path, FormatScore(m))
}

// FormatScore formats a match score as a percentage with two decimals.
func FormatScore(m ranking.Match) string {
	return fmt.Sprintf("%.2f%%", m.Percent())
}
