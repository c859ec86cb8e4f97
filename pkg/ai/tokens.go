package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const tokenEncoding = "o200k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func encoding() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding(tokenEncoding)
	})
	return enc, encErr
}

// CountTokens returns the number of o200k tokens in text.
func CountTokens(text string) (int, error) {
	e, err := encoding()
	if err != nil {
		return 0, err
	}
	return len(e.Encode(text, nil, nil)), nil
}

// TruncateToTokens cuts text to at most maxTokens tokens. The second return
// value reports whether anything was cut.
func TruncateToTokens(text string, maxTokens int) (string, bool, error) {
	if maxTokens <= 0 {
		return "", text != "", nil
	}
	e, err := encoding()
	if err != nil {
		return "", false, err
	}
	tokens := e.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text, false, nil
	}
	return e.Decode(tokens[:maxTokens]), true, nil
}

// ContextWindow returns the context size a local model needs for prompt,
// with headroom for the answer. It never returns less than minimum.
func ContextWindow(prompt string, headroom, minimum int) int {
	n, err := CountTokens(prompt)
	if err != nil {
		return minimum
	}
	return max(n+headroom, minimum)
}
