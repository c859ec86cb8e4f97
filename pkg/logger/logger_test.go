package logger

import (
	"testing"
)

type recordedLine struct {
	level   string
	message string
	keyvals []any
}

type recorder struct {
	lines []recordedLine
}

func (r *recorder) add(level, message string, keyvals []any) {
	r.lines = append(r.lines, recordedLine{level: level, message: message, keyvals: keyvals})
}

func (r *recorder) Log(m string, kv ...any)   { r.add("log", m, kv) }
func (r *recorder) Debug(m string, kv ...any) { r.add("debug", m, kv) }
func (r *recorder) Info(m string, kv ...any)  { r.add("info", m, kv) }
func (r *recorder) Warn(m string, kv ...any)  { r.add("warn", m, kv) }
func (r *recorder) Error(m string, kv ...any) { r.add("error", m, kv) }
func (r *recorder) Fatal(m string, kv ...any) { r.add("fatal", m, kv) }

// Not parallel: the logger is a package level singleton.
func TestDispatchToAllInstances(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Init(a, b)
	defer Init()

	Log("plain", "k", 1)
	Info("info", "pmid", "123")
	Warn("warn")
	Error("error", "err", "boom")
	Debug("debug")

	for _, r := range []*recorder{a, b} {
		if len(r.lines) != 5 {
			t.Fatalf("got %d lines, want 5", len(r.lines))
		}
		if r.lines[0].level != "log" || len(r.lines[0].keyvals) != 2 {
			t.Fatalf("Log dropped keyvals: %+v", r.lines[0])
		}
		if r.lines[1].keyvals[1] != "123" {
			t.Fatalf("got keyvals %v", r.lines[1].keyvals)
		}
	}
}

func TestCallsBeforeInitAreNoops(t *testing.T) {
	singleton = nil
	Info("nobody listens")
	Error("still nobody")
}

func TestPrefixed(t *testing.T) {
	msg := Prefixed("Triage")
	if got := msg("Scored article"); got != "[Triage] Scored article" {
		t.Fatalf("got %q", got)
	}
}

// Not parallel: the logger is a package level singleton.
func TestScope(t *testing.T) {
	r := &recorder{}
	Init(r)
	defer Init()

	base := Named("Queue")
	job := base.With("queue", "triage_queue")
	job.Warn("Article skipped", "pmid", "42")
	base.Info("Listening")

	if len(r.lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(r.lines))
	}

	first := r.lines[0]
	if first.level != "warn" || first.message != "[Queue] Article skipped" {
		t.Fatalf("got %+v", first)
	}
	want := []any{"queue", "triage_queue", "pmid", "42"}
	if len(first.keyvals) != len(want) {
		t.Fatalf("got keyvals %v, want %v", first.keyvals, want)
	}
	for i := range want {
		if first.keyvals[i] != want[i] {
			t.Fatalf("got keyvals %v, want %v", first.keyvals, want)
		}
	}

	if second := r.lines[1]; second.message != "[Queue] Listening" || len(second.keyvals) != 0 {
		t.Fatalf("With leaked into the parent scope: %+v", second)
	}
}
