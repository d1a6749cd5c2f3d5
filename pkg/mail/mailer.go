package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// ErrMailDisabled signals that outbound email delivery is disabled via configuration.
var ErrMailDisabled = errors.New("mail: delivery disabled")

// Message represents an outbound email.
type Message struct {
	To        string
	ToName    string
	Subject   string
	PlainBody string
	HTMLBody  string
}

// Mailer defines behaviour for sending email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SendGridSettings capture the runtime configuration required by the SendGrid mailer.
type SendGridSettings struct {
	Enabled  bool
	APIKey   string
	From     string
	FromName string
	Timeout  time.Duration
}

type sendGridClient interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (statusCode int, err error)
}

type sendGridMailer struct {
	cfg    SendGridSettings
	client sendGridClient
}

type liveSendGridClient struct {
	inner *sendgrid.Client
}

func (c *liveSendGridClient) SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (int, error) {
	resp, err := c.inner.SendWithContext(ctx, email)
	if err != nil {
		return 0, err
	}
	return resp.StatusCode, nil
}

// NewSendGridMailer builds a Mailer backed by the SendGrid v3 API.
func NewSendGridMailer(cfg SendGridSettings) (Mailer, error) {
	if err := validateSendGridConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &sendGridMailer{
		cfg:    cfg,
		client: &liveSendGridClient{inner: sendgrid.NewSendClient(cfg.APIKey)},
	}, nil
}

func (m *sendGridMailer) Send(ctx context.Context, msg Message) error {
	if !m.cfg.Enabled {
		return ErrMailDisabled
	}

	to := strings.TrimSpace(msg.To)
	if to == "" {
		return errors.New("mail: recipient is required")
	}

	subject := strings.TrimSpace(msg.Subject)
	if subject == "" {
		return errors.New("mail: subject is required")
	}

	plain := msg.PlainBody
	if plain == "" {
		plain = " "
	}
	html := msg.HTMLBody
	if html == "" {
		html = plain
	}

	email := sgmail.NewSingleEmail(
		sgmail.NewEmail(m.cfg.FromName, m.cfg.From),
		subject,
		sgmail.NewEmail(msg.ToName, to),
		plain,
		html,
	)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	status, err := m.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("mail: send to %s: %w", to, err)
	}
	if status >= 400 {
		return fmt.Errorf("mail: send to %s: unexpected status %d", to, status)
	}

	return nil
}

func validateSendGridConfig(cfg SendGridSettings) error {
	if !cfg.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return errors.New("mail: api key is required when enabled")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return errors.New("mail: sender address is required when enabled")
	}
	return nil
}
