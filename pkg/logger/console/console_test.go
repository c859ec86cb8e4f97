package console

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestConsoleLogger_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewConsoleLogger(ConsoleLoggerParams{Format: "json", Prefix: "worker", Output: &buf})
	l.Info("Stored PDF", "pmid", "123")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not json: %q (%v)", buf.String(), err)
	}
	if line["msg"] != "Stored PDF" || line["pmid"] != "123" {
		t.Fatalf("got %v", line)
	}
	if prefix, _ := line["prefix"].(string); !strings.Contains(prefix, "worker") {
		t.Fatalf("got prefix %v, want worker", line["prefix"])
	}
}

func TestConsoleLogger_DebugLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		debug bool
		want  bool
	}{
		{name: "info level hides debug", debug: false, want: false},
		{name: "debug level shows debug", debug: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			l := NewConsoleLogger(ConsoleLoggerParams{Debug: tt.debug, Format: "logfmt", Output: &buf})
			l.Debug("details")
			if got := strings.Contains(buf.String(), "details"); got != tt.want {
				t.Fatalf("got %v, want %v (output %q)", got, tt.want, buf.String())
			}
		})
	}
}
