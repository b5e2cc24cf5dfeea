package services

import (
	"context"
	"fmt"
	"html"
	"mime"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/rs/zerolog"
)

// EmailConfig holds SMTP configuration
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	FromName string
	FromAddr string
	// BaseURL is used for links back to the billing page
	BaseURL string
}

// EmailService sends usage notifications via SMTP
type EmailService struct {
	config EmailConfig
	now    func() time.Time
	logger zerolog.Logger
}

// NewEmailService creates a new email service
func NewEmailService(config EmailConfig, logger zerolog.Logger) *EmailService {
	return &EmailService{
		config: config,
		now:    time.Now,
		logger: logger.With().Str("service", "EmailService").Logger(),
	}
}

// SendEmail sends a single HTML email
func (s *EmailService) SendEmail(ctx context.Context, to, subject, body string) error {
	cfg := s.config
	if cfg.Host == "" || cfg.Port == 0 {
		return fmt.Errorf("SMTP not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	rcpt, err := mail.ParseAddress(to)
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	to = rcpt.Address

	msg := s.buildMessage(to, subject, body)
	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)

	var auth sasl.Client
	if cfg.Username != "" && cfg.Password != "" {
		auth = sasl.NewPlainClient("", cfg.Username, cfg.Password)
	}

	if cfg.Port == 465 {
		// Direct TLS
		err = smtp.SendMailTLS(addr, auth, cfg.FromAddr, []string{to}, strings.NewReader(msg))
	} else {
		// Plain connection, upgraded with STARTTLS when the server offers it
		err = smtp.SendMail(addr, auth, cfg.FromAddr, []string{to}, strings.NewReader(msg))
	}
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	s.logger.Debug().Str("to", to).Str("subject", subject).Msg("Email sent")
	return nil
}

// headerValue folds CR and LF into spaces so a value stays on its header line
func headerValue(v string) string {
	return strings.Join(strings.FieldsFunc(v, func(r rune) bool { return r == '\r' || r == '\n' }), " ")
}

// buildMessage renders the raw message. Header values are kept on one line
// and non-ASCII text is Q-encoded.
func (s *EmailService) buildMessage(to, subject, body string) string {
	from := (&mail.Address{Name: headerValue(s.config.FromName), Address: headerValue(s.config.FromAddr)}).String()
	to = headerValue(to)
	subject = mime.QEncoding.Encode("utf-8", headerValue(subject))
	return fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"Date: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=UTF-8\r\n"+
		"\r\n"+
		"%s", from, to, subject, s.now().Format(time.RFC1123Z), body)
}

// SendUsageWarningEmail implements Notifier
func (s *EmailService) SendUsageWarningEmail(ctx context.Context, email UsageWarningEmail) error {
	subject, body := s.renderUsageWarning(email)
	return s.SendEmail(ctx, email.AdminEmail, subject, body)
}

func (s *EmailService) renderUsageWarning(email UsageWarningEmail) (string, string) {
	metric := string(email.Metric)
	var subject, headline, color string
	if email.AlertType == AlertLimitReached {
		subject = fmt.Sprintf("%s has reached its %s limit", email.WorkspaceName, metric)
		headline = "Usage limit reached"
		color = "#dc2626"
	} else {
		subject = fmt.Sprintf("%s is at %.0f%% of its %s limit", email.WorkspaceName, email.Percentage, metric)
		headline = "Approaching your usage limit"
		color = "#f59e0b"
	}

	upgrade := "Contact support to raise your limit."
	if email.SuggestedPlan != "" {
		upgrade = fmt.Sprintf(`<a href="%s/billing">Upgrade to %s</a> to keep going.`,
			html.EscapeString(strings.TrimRight(s.config.BaseURL, "/")),
			html.EscapeString(email.SuggestedPlan.DisplayName()))
	}

	body := fmt.Sprintf(`<html>
<body style="font-family: Arial, sans-serif;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
<h2 style="color: %s;">%s</h2>
<p>Workspace <strong>%s</strong> on the %s plan has used <strong>%d</strong> of <strong>%d</strong> %s (%.1f%%).</p>
<p>%s</p>
</div>
</body>
</html>`,
		color, headline,
		html.EscapeString(email.WorkspaceName), html.EscapeString(email.PlanName),
		email.CurrentUsage, email.Limit, metric, email.Percentage,
		upgrade)
	return subject, body
}
