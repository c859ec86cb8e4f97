package ollama

import (
	"testing"

	"github.com/rd-agent/backend/pkg/ai"
)

func TestBuildMessages(t *testing.T) {
	t.Parallel()

	msgs := buildMessages("score this", ai.GenerateOptions{SystemPrompts: []string{"be strict"}})
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != "be strict" {
		t.Fatalf("got first message %+v", msgs[0])
	}
	if msgs[1].Role != "user" || msgs[1].Content != "score this" {
		t.Fatalf("got last message %+v", msgs[1])
	}
}

func TestNewOllamaClient_Defaults(t *testing.T) {
	t.Parallel()

	c, err := NewOllamaClient(NewOllamaClientParams{ChatModel: "llama3"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if c.timeout <= 0 {
		t.Fatalf("timeout not defaulted")
	}
	if c.chatModel != "llama3" {
		t.Fatalf("got chat model %q", c.chatModel)
	}
}

func TestNewOllamaClient_BadURL(t *testing.T) {
	t.Parallel()

	if _, err := NewOllamaClient(NewOllamaClientParams{BaseURL: "://bad"}); err == nil {
		t.Fatalf("expected error for malformed url")
	}
}
