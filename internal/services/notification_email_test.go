package services

import (
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/linkhub/backend/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedMail struct {
	from string
	to   []string
	data string
}

type captureBackend struct {
	mu    sync.Mutex
	mails []capturedMail
}

func (b *captureBackend) NewSession(*smtp.Conn) (smtp.Session, error) {
	return &captureSession{backend: b}, nil
}

type captureSession struct {
	backend *captureBackend
	mail    capturedMail
}

func (s *captureSession) Mail(from string, _ *smtp.MailOptions) error {
	s.mail.from = from
	return nil
}

func (s *captureSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.mail.to = append(s.mail.to, to)
	return nil
}

func (s *captureSession) Data(r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mail.data = string(b)
	s.backend.mu.Lock()
	s.backend.mails = append(s.backend.mails, s.mail)
	s.backend.mu.Unlock()
	return nil
}

func (b *captureBackend) received() []capturedMail {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]capturedMail(nil), b.mails...)
}

func (s *captureSession) Reset()        { s.mail = capturedMail{} }
func (s *captureSession) Logout() error { return nil }

func startSMTPServer(t *testing.T) (*captureBackend, string, int) {
	t.Helper()
	be := &captureBackend{}
	srv := smtp.NewServer(be)
	srv.Domain = "localhost"
	srv.ReadTimeout = 5 * time.Second
	srv.WriteTimeout = 5 * time.Second

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(l) }()
	t.Cleanup(func() { _ = srv.Close() })

	addr := l.Addr().(*net.TCPAddr)
	return be, "127.0.0.1", addr.Port
}

func TestEmailServiceSendUsageWarningEmail(t *testing.T) {
	t.Parallel()
	be, host, port := startSMTPServer(t)

	svc := NewEmailService(EmailConfig{
		Host:     host,
		Port:     port,
		FromName: "LinkHub",
		FromAddr: "noreply@linkhub.test",
		BaseURL:  "https://app.linkhub.test/",
	}, zerolog.Nop())

	err := svc.SendUsageWarningEmail(context.Background(), UsageWarningEmail{
		WorkspaceName: "Acme <Corp>",
		AdminEmail:    "owner@acme.test",
		Metric:        models.MetricLinks,
		Percentage:    84,
		CurrentUsage:  42,
		Limit:         50,
		PlanName:      "Free",
		AlertType:     AlertWarning,
		SuggestedPlan: models.PlanStarter,
	})
	require.NoError(t, err)

	mails := be.received()
	require.Len(t, mails, 1)
	mail := mails[0]
	assert.Equal(t, "noreply@linkhub.test", mail.from)
	assert.Equal(t, []string{"owner@acme.test"}, mail.to)
	assert.Contains(t, mail.data, "Subject: Acme <Corp> is at 84% of its links limit")
	assert.Regexp(t, `From: "?LinkHub"? <noreply@linkhub.test>`, mail.data)
	assert.Contains(t, mail.data, "Acme &lt;Corp&gt;")
	assert.Contains(t, mail.data, `<a href="https://app.linkhub.test/billing">Upgrade to Starter</a>`)
	assert.Contains(t, mail.data, "<strong>42</strong> of <strong>50</strong> links")
}

func TestEmailServiceRenderLimitReached(t *testing.T) {
	t.Parallel()
	svc := NewEmailService(EmailConfig{}, zerolog.Nop())

	subject, body := svc.renderUsageWarning(UsageWarningEmail{
		WorkspaceName: "Acme",
		Metric:        models.MetricUsers,
		Percentage:    100,
		CurrentUsage:  50,
		Limit:         50,
		PlanName:      "Business",
		AlertType:     AlertLimitReached,
	})
	assert.Equal(t, "Acme has reached its users limit", subject)
	assert.Contains(t, body, "Usage limit reached")
	assert.Contains(t, body, "Contact support")
	assert.False(t, strings.Contains(body, "billing"))
}

func TestEmailServiceNotConfigured(t *testing.T) {
	t.Parallel()
	svc := NewEmailService(EmailConfig{}, zerolog.Nop())
	err := svc.SendEmail(context.Background(), "a@b.test", "hi", "body")
	require.Error(t, err)
}

func headerLines(t *testing.T, data string) []string {
	t.Helper()
	data = strings.ReplaceAll(data, "\r\n", "\n")
	head, _, found := strings.Cut(data, "\n\n")
	require.True(t, found)
	return strings.Split(head, "\n")
}

func TestEmailServiceHeadersStayOnOneLine(t *testing.T) {
	t.Parallel()
	be, host, port := startSMTPServer(t)
	svc := NewEmailService(EmailConfig{Host: host, Port: port, FromAddr: "noreply@linkhub.test"}, zerolog.Nop())

	err := svc.SendUsageWarningEmail(context.Background(), UsageWarningEmail{
		WorkspaceName: "Acme\r\nBcc: victim@evil.test\r\n\r\nforged body",
		AdminEmail:    "owner@acme.test",
		Metric:        models.MetricLinks,
		Percentage:    100,
		CurrentUsage:  50,
		Limit:         50,
		AlertType:     AlertLimitReached,
	})
	require.NoError(t, err)

	mails := be.received()
	require.Len(t, mails, 1)
	lines := headerLines(t, mails[0].data)
	var names []string
	for _, line := range lines {
		name, _, _ := strings.Cut(line, ":")
		names = append(names, name)
	}
	assert.Equal(t, []string{"From", "To", "Subject", "Date", "MIME-Version", "Content-Type"}, names)
	assert.Contains(t, lines, "Subject: Acme Bcc: victim@evil.test forged body has reached its links limit")
	assert.Equal(t, []string{"owner@acme.test"}, mails[0].to)
}

func TestEmailServiceEncodesNonASCIISubject(t *testing.T) {
	t.Parallel()
	svc := NewEmailService(EmailConfig{FromName: "LinkHub", FromAddr: "noreply@linkhub.test"}, zerolog.Nop())

	msg := svc.buildMessage("owner@acme.test", "Café Zürich has reached its links limit", "<p>hi</p>")
	lines := headerLines(t, msg)
	assert.Contains(t, lines, "Subject: =?utf-8?q?Caf=C3=A9_Z=C3=BCrich_has_reached_its_links_limit?=")
}

func TestEmailServiceRejectsBadRecipient(t *testing.T) {
	t.Parallel()
	svc := NewEmailService(EmailConfig{Host: "127.0.0.1", Port: 2525, FromAddr: "noreply@linkhub.test"}, zerolog.Nop())

	err := svc.SendEmail(context.Background(), "owner@acme.test\r\nBcc: victim@evil.test", "hi", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid recipient")
}
