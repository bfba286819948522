package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"sort"
	"time"

	"github.com/weddingphotos/server/internal/config"
)

// Mailer sends sign-in emails
type Mailer interface {
	SendSignInEmail(ctx context.Context, toEmail string, data SignInEmailData) error
}

// ErrSMTPNotConfigured is returned when no SMTP host is set
var ErrSMTPNotConfigured = errors.New("SMTP not configured")

// SMTPService handles sending emails
type SMTPService struct {
	cfg config.SMTP
}

// NewSMTPService creates a new SMTP service
func NewSMTPService(cfg config.SMTP) *SMTPService {
	return &SMTPService{cfg: cfg}
}

// SendSignInEmail sends the magic link and its one-time code
func (s *SMTPService) SendSignInEmail(ctx context.Context, toEmail string, data SignInEmailData) error {
	var body bytes.Buffer
	if err := signInEmailTemplate.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to execute sign-in email template: %w", err)
	}

	return s.sendEmail(ctx, toEmail, "Your Wedding Photos sign-in link", body.String())
}

func (s *SMTPService) buildMessage(to, subject, htmlBody string) []byte {
	from := s.cfg.FromAddress
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.cfg.FromName), s.cfg.FromAddress)
	}
	headers := map[string]string{
		"From":         from,
		"To":           to,
		"Subject":      mime.QEncoding.Encode("utf-8", subject),
		"Date":         time.Now().Format(time.RFC1123Z),
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=UTF-8",
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var msg bytes.Buffer
	for _, k := range keys {
		fmt.Fprintf(&msg, "%s: %s\r\n", k, headers[k])
	}
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)
	return msg.Bytes()
}

// sendEmail performs the SMTP exchange
func (s *SMTPService) sendEmail(ctx context.Context, to, subject, htmlBody string) error {
	if s.cfg.Host == "" {
		return ErrSMTPNotConfigured
	}

	msg := s.buildMessage(to, subject, htmlBody)
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	dialer := &net.Dialer{Timeout: 15 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("SMTP dial failed: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if s.cfg.UseTLS {
		tlsConfig := &tls.Config{
			ServerName:         s.cfg.Host,
			InsecureSkipVerify: s.cfg.SkipVerify,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
	}

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(s.cfg.FromAddress); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to send DATA command: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close message writer: %w", err)
	}

	return client.Quit()
}
