package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/rd-agent/backend/pkg/common"
)

func TestRender_StatusChanged(t *testing.T) {
	t.Parallel()

	subject, text, html, err := Render(common.NotifyStatusChanged, Data{
		RecipientName:  "Ada",
		ProjectName:    "Longevity",
		ProjectURL:     "https://app.example/projects/1",
		HypothesisText: "Metformin slows ageing",
		OldStatus:      "testing",
		NewStatus:      "supported",
		Confidence:     70,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if subject != "Hypothesis is now supported in Longevity" {
		t.Fatalf("got subject %q", subject)
	}
	if !strings.Contains(text, "Metformin slows ageing") {
		t.Fatalf("hypothesis missing from text %q", text)
	}
	for _, want := range []string{"<table>", "<strong>Longevity</strong>", `href="https://app.example/projects/1"`, "70%"} {
		if !strings.Contains(html, want) {
			t.Fatalf("html missing %q: %s", want, html)
		}
	}
}

func TestRender_DropsRawHTML(t *testing.T) {
	t.Parallel()

	_, _, html, err := Render(common.NotifyMemberAdded, Data{ProjectName: "<script>alert(1)</script>"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Fatalf("raw html passed through: %s", html)
	}
}

func TestRender_UnknownKind(t *testing.T) {
	t.Parallel()

	if _, _, _, err := Render("nope", Data{}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestSendGrid_Send(t *testing.T) {
	t.Parallel()

	var got mail.SGMailV3
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/mail/send" {
			t.Errorf("got path %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("got auth %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c, err := NewSendGridClient(Config{APIKey: "key", BaseURL: srv.URL + "/", FromEmail: "bot@example.org"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	err = c.Send(context.Background(), Message{
		To:      []Address{{Email: "a@example.org"}, {Email: "b@example.org"}},
		Subject: "hi",
		Text:    "text",
		HTML:    "<p>text</p>",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(got.Personalizations) != 2 || len(got.Content) != 2 {
		t.Fatalf("got %+v", got)
	}
	for i, p := range got.Personalizations {
		if len(p.To) != 1 {
			t.Fatalf("personalization %d has %d recipients, want 1", i, len(p.To))
		}
	}
	if got.From == nil || got.From.Address != "bot@example.org" {
		t.Fatalf("got from %+v", got.From)
	}
	if got.Subject != "hi" {
		t.Fatalf("got subject %q, want hi", got.Subject)
	}
}

func TestSendGrid_StatusHandling(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   int
		rejected bool
	}{
		{status: http.StatusBadRequest, rejected: true},
		{status: http.StatusUnauthorized, rejected: true},
		{status: http.StatusTooManyRequests},
		{status: http.StatusBadGateway},
	}

	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			c, _ := NewSendGridClient(Config{APIKey: "key", BaseURL: srv.URL, FromEmail: "bot@example.org"})
			err := c.Send(context.Background(), Message{To: []Address{{Email: "a@example.org"}}})
			if err == nil {
				t.Fatalf("expected error")
			}
			if errors.Is(err, ErrRejected) != tc.rejected {
				t.Fatalf("got %v, want rejected=%v", err, tc.rejected)
			}
		})
	}
}

func TestNewSendGridClient_RequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewSendGridClient(Config{FromEmail: "bot@example.org"}); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestSendGrid_ConcurrentSendsKeepTheirBodies(t *testing.T) {
	t.Parallel()

	subjects := make(chan string, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m mail.SGMailV3
		json.NewDecoder(r.Body).Decode(&m)
		subjects <- m.Subject
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c, err := NewSendGridClient(Config{APIKey: "key", BaseURL: srv.URL, FromEmail: "bot@example.org"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Go(func() {
			err := c.Send(context.Background(), Message{
				To:      []Address{{Email: "a@example.org"}},
				Subject: fmt.Sprintf("s%d", i),
				Text:    "x",
			})
			if err != nil {
				t.Errorf("send %d: %v", i, err)
			}
		})
	}
	wg.Wait()
	close(subjects)

	seen := make(map[string]bool)
	for s := range subjects {
		seen[s] = true
	}
	if len(seen) != 8 {
		t.Fatalf("got %d distinct subjects, want 8", len(seen))
	}
}
