package present

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/snapfind/internal/ranking"
)

func TestConsoleSink_Render(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)

	err := sink.Render(context.Background(), []ranking.Match{
		{Path: "images/cat.png", Score: 0.31523},
		{Path: "images/sub/car.jpg", Score: 0.2},
	})
	require.NoError(t, err)
	assert.Equal(t,
		"1. images/cat.png - Score: 31.52%\n"+
			"2. images/sub/car.jpg - Score: 20.00%\n",
		buf.String())
}

func TestConsoleSink_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewConsoleSink(&buf).Render(context.Background(), nil))
	assert.Empty(t, buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestConsoleSink_WriteError(t *testing.T) {
	err := NewConsoleSink(failingWriter{}).Render(context.Background(), []ranking.Match{{Path: "a.png", Score: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestFormatScore(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{1, "100.00%"},
		{0.123456, "12.35%"},
		{0, "0.00%"},
		{-0.05, "-5.00%"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatScore(ranking.Match{Score: tt.score}))
	}
}
