package utils

import (
	"sync"

	"github.com/wbrown/gpt_bpe"
)

var (
	encoderOnce sync.Once
	encodeGPT2  func(s string) *gpt_bpe.Tokens
	decodeGPT2  func(tokens *gpt_bpe.Tokens) string
)

func initEncoder() {
	encoderOnce.Do(func() {
		tokenizer := gpt_bpe.NewGPT2Encoder()
		encodeGPT2 = func(s string) *gpt_bpe.Tokens {
			return tokenizer.Encode(&s)
		}
		decodeGPT2 = func(tokens *gpt_bpe.Tokens) string {
			return tokenizer.Decode(tokens)
		}
	})
}

// CountTokens returns the GPT-2 token count of s. Hosted models use other
// vocabularies, so treat the value as an estimate for logs and metrics.
func CountTokens(s string) int {
	if s == "" {
		return 0
	}

	initEncoder()
	tokens := encodeGPT2(s)
	if tokens == nil {
		return 0
	}
	return len(*tokens)
}

// SplitTokens cuts s into consecutive pieces of at most size GPT-2 tokens.
func SplitTokens(s string, size int) []string {
	if s == "" {
		return nil
	}

	initEncoder()
	tokens := encodeGPT2(s)
	if tokens == nil || size <= 0 || len(*tokens) <= size {
		return []string{s}
	}

	snippets := make([]string, 0, len(*tokens)/size+1)
	for i := 0; i < len(*tokens); i += size {
		end := i + size
		if end > len(*tokens) {
			end = len(*tokens)
		}
		chunk := (*tokens)[i:end]
		snippets = append(snippets, decodeGPT2(&chunk))
	}

	return snippets
}
