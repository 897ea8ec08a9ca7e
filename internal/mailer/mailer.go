// Package mailer sends transactional email to customers when their
// submission is registered or changes status. Delivery is best effort: a
// failed send is logged and never blocks the request that triggered it.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	mail "github.com/wneessen/go-mail"
	"github.com/wolfiling/gradeproof/internal/submission"
	"pkt.systems/pslog"
)

// Sender delivers customer notifications.
type Sender interface {
	SubmissionCreated(ctx context.Context, sub *submission.Submission, verifyURL string) error
	StatusChanged(ctx context.Context, sub *submission.Submission) error
}

var createdTemplate = template.Must(template.New("created").Parse(
	`Hi,

Your card "{{.Sub.CardName}}" ({{.Sub.CardSeries}}, {{.Sub.CardYear}}) has been
registered for grading with submission id {{.Sub.PublicID}}.

Once grading is filmed you can watch the proof video here:

  {{.VerifyURL}}

You will need the first four characters of this email address to unlock it.
`))

var statusTemplate = template.Must(template.New("status").Parse(
	`Hi,

The status of your submission {{.Sub.PublicID}} ("{{.Sub.CardName}}") changed
to: {{.Sub.Status}}.
{{if .Sub.Comments}}
Notes from the grading team:

  {{.Sub.Comments}}
{{end}}`))

type templateData struct {
	Sub       *submission.Submission
	VerifyURL string
}

func renderBody(tmpl *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render mail body: %w", err)
	}
	return buf.String(), nil
}

// Config holds SMTP settings for the mail sender.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Logger   pslog.Logger
}

// New returns an SMTP sender when a host is configured, otherwise a log-only
// sender so the rest of the service behaves identically without SMTP.
func New(cfg Config) (Sender, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.LoggerFromEnv()
	}
	if cfg.Host == "" {
		return &LogSender{Logger: logger}, nil
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("mail from address is required")
	}
	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mail client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.From, logger: logger}, nil
}

// SMTPSender delivers notifications over SMTP.
type SMTPSender struct {
	client *mail.Client
	from   string
	logger pslog.Logger
}

func (s *SMTPSender) send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("mail to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		s.logger.Warn("mail delivery failed", "to", to, "subject", subject, "err", err)
		return err
	}
	s.logger.Debug("mail sent", "to", to, "subject", subject)
	return nil
}

// SubmissionCreated mails the registration confirmation.
func (s *SMTPSender) SubmissionCreated(ctx context.Context, sub *submission.Submission, verifyURL string) error {
	body, err := renderBody(createdTemplate, templateData{Sub: sub, VerifyURL: verifyURL})
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Grading submission %s registered", sub.PublicID)
	return s.send(ctx, sub.CustomerEmail, subject, body)
}

// StatusChanged mails a status update.
func (s *SMTPSender) StatusChanged(ctx context.Context, sub *submission.Submission) error {
	body, err := renderBody(statusTemplate, templateData{Sub: sub})
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Submission %s is now %s", sub.PublicID, sub.Status)
	return s.send(ctx, sub.CustomerEmail, subject, body)
}

// LogSender logs notifications instead of delivering them.
type LogSender struct {
	Logger pslog.Logger
}

// SubmissionCreated logs the registration confirmation.
func (l *LogSender) SubmissionCreated(ctx context.Context, sub *submission.Submission, verifyURL string) error {
	l.Logger.Info("mail skipped, smtp not configured",
		"kind", "submission_created", "to", sub.CustomerEmail,
		"submission_id", sub.PublicID, "verify_url", verifyURL)
	return nil
}

// StatusChanged logs a status update.
func (l *LogSender) StatusChanged(ctx context.Context, sub *submission.Submission) error {
	l.Logger.Info("mail skipped, smtp not configured",
		"kind", "status_changed", "to", sub.CustomerEmail,
		"submission_id", sub.PublicID, "status", sub.Status)
	return nil
}
