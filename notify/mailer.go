package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/creastat/voicedesk/metrics"
)

// Mailer sends one plain-text email.
type Mailer interface {
	Send(ctx context.Context, subject, body string) error
}

// MailerFunc adapts a function to Mailer.
type MailerFunc func(ctx context.Context, subject, body string) error

func (f MailerFunc) Send(ctx context.Context, subject, body string) error {
	return f(ctx, subject, body)
}

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// SMTPMailer sends mail with net/smtp using PLAIN auth.
type SMTPMailer struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
}

// NewSMTPMailer validates cfg. From defaults to Username and To to From.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.To == "" {
		cfg.To = cfg.From
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp sender is required")
	}

	m := &SMTPMailer{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from: cfg.From,
	}
	for _, to := range strings.Split(cfg.To, ",") {
		if to = strings.TrimSpace(to); to != "" {
			m.to = append(m.to, to)
		}
	}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return m, nil
}

// Compose renders the RFC 5322 message.
func (m *SMTPMailer) Compose(subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", strings.ReplaceAll(subject, "\n", " "))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// Send implements Mailer. net/smtp has no context support; ctx is only
// checked before dialing.
func (m *SMTPMailer) Send(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Wrap(smtp.SendMail(m.addr, m.auth, m.from, m.to, m.Compose(subject, body)), "send mail")
}

// MailHandler returns a watermill handler that mails every notification.
// Undecodable payloads are dropped; send failures are returned so the router
// can retry or nack.
func MailHandler(mailer Mailer, logger zerolog.Logger) message.NoPublishHandlerFunc {
	logger = logger.With().Str("component", "mailer").Logger()
	return func(msg *message.Message) error {
		var n Notification
		if err := json.Unmarshal(msg.Payload, &n); err != nil {
			logger.Error().Err(err).Str("uuid", msg.UUID).Msg("dropping undecodable notification")
			return nil
		}
		if err := mailer.Send(msg.Context(), n.Subject, n.Body); err != nil {
			metrics.Notifications.WithLabelValues(string(n.Kind), "mail_failed").Inc()
			return errors.Wrapf(err, "mail notification for call %s", n.CallID)
		}
		metrics.Notifications.WithLabelValues(string(n.Kind), "mailed").Inc()
		logger.Info().Str("call_id", n.CallID).Str("kind", string(n.Kind)).Msg("notification mailed")
		return nil
	}
}

// NewRouter wires a mail worker consuming topic from sub.
func NewRouter(sub message.Subscriber, topic string, mailer Mailer, logger zerolog.Logger, wlogger watermill.LoggerAdapter) (*message.Router, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	router, err := message.NewRouter(message.RouterConfig{}, wlogger)
	if err != nil {
		return nil, errors.Wrap(err, "create router")
	}
	router.AddNoPublisherHandler("mailer", topic, sub, MailHandler(mailer, logger))
	return router, nil
}
