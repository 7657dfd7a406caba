package embeddings

import (
	"fmt"
	"strings"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"

	"github.com/fyrsmithlabs/snapfind/internal/tokenizerenv"
)

func init() {
	tokenizerenv.Restore()
}

// DefaultMaxTokens is the CLIP text context length.
const DefaultMaxTokens = 77

// Tokenizer wraps a HuggingFace tokenizer.json for CLIP text towers.
type Tokenizer struct {
	tk     *tokenizer.Tokenizer
	maxLen int
}

// LoadTokenizer reads a tokenizer.json file.
func LoadTokenizer(path string, maxLen int) (*Tokenizer, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: loading tokenizer %s: %v", ErrInvalidConfig, path, err)
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxTokens
	}
	return &Tokenizer{tk: tk, maxLen: maxLen}, nil
}

// Encode returns input ids and the matching attention mask, both with the
// start and end tokens included and truncated to the context length.
func (t *Tokenizer) Encode(text string) (ids, mask []int64, err error) {
	enc, err := t.tk.EncodeSingle(normalizePrompt(text), true)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: tokenizing: %v", ErrEmbeddingFailed, err)
	}
	if len(enc.Ids) == 0 {
		return nil, nil, fmt.Errorf("%w: tokenizer produced no tokens", ErrEmbeddingFailed)
	}

	raw := truncateTokens(enc.Ids, t.maxLen)
	ids = make([]int64, len(raw))
	mask = make([]int64, len(raw))
	for i, id := range raw {
		ids[i] = int64(id)
		mask[i] = 1
	}
	return ids, mask, nil
}

// normalizePrompt applies CLIP's text cleaning: collapse whitespace, lowercase.
func normalizePrompt(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// truncateTokens keeps at most maxLen ids, preserving the final (end of
// text) token that CLIP pools on.
func truncateTokens(ids []int, maxLen int) []int {
	if len(ids) <= maxLen || maxLen < 2 {
		return ids
	}
	out := make([]int, maxLen)
	copy(out, ids[:maxLen-1])
	out[maxLen-1] = ids[len(ids)-1]
	return out
}
