// Package mail delivers identity notification email over SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
)

// Config carries the SMTP endpoint and message envelope settings.
type Config struct {
	// Addr is the SMTP server in host:port form.
	Addr string
	// Username and Password authenticate via PLAIN when both are set.
	Username string
	Password string
	// From is the envelope and header sender.
	From string
	// VerifyURL is the base link embedded in verification mail; the token
	// and email are appended as query parameters.
	VerifyURL string
}

// SMTP sends mail through a single SMTP endpoint.
type SMTP struct {
	cfg  Config
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTP builds a mailer. Addr, From, and VerifyURL are required.
func NewSMTP(cfg Config) (*SMTP, error) {
	if cfg.Addr == "" || cfg.From == "" || cfg.VerifyURL == "" {
		return nil, errors.New("mail: addr, from, and verify url are required")
	}
	return &SMTP{cfg: cfg, send: smtp.SendMail}, nil
}

// SendVerification mails a single-use verification link to email.
func (m *SMTP) SendVerification(ctx context.Context, email, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	link := fmt.Sprintf("%s?token=%s&email=%s", m.cfg.VerifyURL, token, email)

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", email)
	b.WriteString("Subject: Verify your email address\r\n")
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString("Hello,\r\n\r\n")
	b.WriteString("Confirm your email address by opening the link below. ")
	b.WriteString("The link expires in 24 hours and works once.\r\n\r\n")
	b.WriteString(link + "\r\n\r\n")
	b.WriteString("If you did not create this account, ignore this message.\r\n")

	var auth smtp.Auth
	if m.cfg.Username != "" {
		host := m.cfg.Addr
		if i := strings.LastIndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, host)
	}

	if err := m.send(m.cfg.Addr, auth, m.cfg.From, []string{email}, []byte(b.String())); err != nil {
		return fmt.Errorf("mail: send to %s: %w", email, err)
	}
	return nil
}
