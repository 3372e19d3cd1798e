package services

import (
	"log/slog"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/jwebster45206/village-mystery/pkg/prompts"
)

const fallbackEncoding = "cl100k_base"

type encoder interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
}

// TokenCounter counts tokens with the model's tiktoken encoding, or
// estimates from word count when no encoding can be loaded.
type TokenCounter struct {
	enc encoder
}

var _ prompts.TokenCounter = (*TokenCounter)(nil)

func NewTokenCounter(model string, logger *slog.Logger) *TokenCounter {
	tke, err := tiktoken.EncodingForModel(model)
	if err != nil {
		tke, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	if err != nil {
		logger.Warn("No tokenizer available, estimating tokens from words", "model", model, "error", err)
		return &TokenCounter{}
	}
	return &TokenCounter{enc: tke}
}

func (c *TokenCounter) Count(text string) int {
	if c.enc == nil {
		return len(strings.Fields(text)) * 4 / 3
	}
	return len(c.enc.Encode(text, nil, nil))
}
