package conversation

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates how many prompt tokens a message costs.
type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter counts with a BPE encoding. Mistral and Gemini tokenizers
// differ, so the count is an estimate used only to size the prompt window.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	// Role and separator overhead per message.
	return len(c.enc.Encode(text, nil, nil)) + 4
}

// WordCounter is a tokenizer-free fallback: whitespace-separated words.
type WordCounter struct{}

func (WordCounter) Count(text string) int {
	return len(strings.Fields(text))
}
