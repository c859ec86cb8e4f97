// Package email renders notification mails and delivers them through the
// SendGrid v3 mail send API.
package email

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/rd-agent/backend/internal/util"
)

// ErrRejected marks a request SendGrid refused for good (bad address,
// bad key). Retrying it will not help.
var ErrRejected = errors.New("sendgrid rejected the message")

type Address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type Message struct {
	To      []Address
	Subject string
	Text    string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	APIKey    string
	BaseURL   string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:    util.GetEnv("SENDGRID_API_KEY"),
		BaseURL:   util.GetEnvString("SENDGRID_BASE_URL", "https://api.sendgrid.com"),
		FromEmail: util.GetEnv("SENDGRID_FROM_EMAIL"),
		FromName:  util.GetEnvString("SENDGRID_FROM_NAME", "R&D Agent"),
		Timeout:   util.GetEnvSeconds("SENDGRID_TIMEOUT_SEC", 30*time.Second),
	}
}

type SendGridClient struct {
	cfg  Config
	base rest.Request
}

func NewSendGridClient(cfg Config) (*SendGridClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing SENDGRID_API_KEY")
	}
	if cfg.FromEmail == "" {
		return nil, fmt.Errorf("missing SENDGRID_FROM_EMAIL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.sendgrid.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	sg := sendgrid.NewSendClient(cfg.APIKey)
	sg.BaseURL = cfg.BaseURL + "/v3/mail/send"

	return &SendGridClient{cfg: cfg, base: sg.Request}, nil
}

func (c *SendGridClient) build(msg Message) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(c.cfg.FromName, c.cfg.FromEmail))
	m.Subject = msg.Subject

	for _, to := range msg.To {
		p := mail.NewPersonalization()
		p.AddTos(mail.NewEmail(to.Name, to.Email))
		m.AddPersonalizations(p)
	}
	if msg.Text != "" {
		m.AddContent(mail.NewContent("text/plain", msg.Text))
	}
	if msg.HTML != "" {
		m.AddContent(mail.NewContent("text/html", msg.HTML))
	}
	return m
}

// Send posts one message. Every recipient gets its own personalization so
// addresses are not disclosed to each other.
func (c *SendGridClient) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	// SendWithContext writes the body into the client, so each send gets its own.
	client := &sendgrid.Client{Request: c.base}
	resp, err := client.SendWithContext(ctx, c.build(msg))
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail := strings.TrimSpace(resp.Body)
	if len(detail) > 4096 {
		detail = detail[:4096]
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fmt.Errorf("sendgrid status %d: %s", resp.StatusCode, detail)
	}
	return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, detail)
}
