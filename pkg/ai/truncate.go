package ai

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const DefaultEncoding = "o200k_base"

// TruncateTokens cuts text to at most maxTokens tokens of the given encoding.
// maxTokens <= 0 returns the trimmed text unchanged.
func TruncateTokens(text string, encoding string, maxTokens int) (string, error) {
	text = strings.TrimSpace(text)
	if maxTokens <= 0 || text == "" {
		return text, nil
	}
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return "", err
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text, nil
	}
	return enc.Decode(tokens[:maxTokens]), nil
}
