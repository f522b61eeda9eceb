package inference

import (
	"fmt"
	"path/filepath"

	"github.com/daulet/tokenizers"
)

// hfTokenizer wraps the HuggingFace tokenizer loaded from the model
// directory's tokenizer.json.
type hfTokenizer struct {
	tk *tokenizers.Tokenizer
}

func newHFTokenizer(modelDir string) (*hfTokenizer, error) {
	path := filepath.Join(modelDir, "tokenizer.json")
	tk, err := tokenizers.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", path, err)
	}
	return &hfTokenizer{tk: tk}, nil
}

func (t *hfTokenizer) Encode(text string) []uint32 {
	ids, _ := t.tk.Encode(text, false)
	return ids
}

func (t *hfTokenizer) Decode(ids []uint32) string {
	return t.tk.Decode(ids, true)
}

func (t *hfTokenizer) Close() error {
	return t.tk.Close()
}
