// Package email sends transactional mail over SMTP and keeps an audit trail
// of what was sent.
package email

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/smtp"
	"time"

	"github.com/yuin/goldmark"
	"gorm.io/gorm"

	"github.com/iabdinur/blog/config"
	"github.com/iabdinur/blog/models"
)

// Mailer is the sending surface the rest of the application depends on.
type Mailer interface {
	SendVerificationCode(to, code string, expiresInMinutes int) error
	SendPostNotification(to, title, slug, excerpt string) error
}

// SMTPMailer delivers mail through a plain SMTP relay. When the relay is not
// configured it logs the message instead of failing, so local development
// works without a mail server.
type SMTPMailer struct {
	cfg      config.Config
	db       *gorm.DB
	markdown goldmark.Markdown
}

func NewSMTPMailer(cfg config.Config, db *gorm.DB) *SMTPMailer {
	return &SMTPMailer{
		cfg:      cfg,
		db:       db,
		markdown: goldmark.New(),
	}
}

func (m *SMTPMailer) SendVerificationCode(to, code string, expiresInMinutes int) error {
	subject := "Your verification code"
	body := fmt.Sprintf(
		"<p>Your verification code is:</p><h2>%s</h2><p>It expires in %d minutes. If you did not request it, ignore this message.</p>",
		code, expiresInMinutes,
	)
	return m.send(to, subject, body, "verification_code")
}

func (m *SMTPMailer) SendPostNotification(to, title, slug, excerpt string) error {
	var rendered bytes.Buffer
	if err := m.markdown.Convert([]byte(excerpt), &rendered); err != nil {
		rendered.Reset()
		rendered.WriteString(excerpt)
	}

	subject := "New post: " + title
	body := fmt.Sprintf(
		"<h1>%s</h1>%s<p><a href=\"%s/posts/%s\">Read the full post</a></p>",
		title, rendered.String(), m.cfg.SiteURL, slug,
	)
	return m.send(to, subject, body, "post_notification")
}

func (m *SMTPMailer) send(to, subject, htmlBody, kind string) error {
	if m.cfg.SMTPHost == "" || !m.cfg.EmailEnabled {
		slog.Info("email delivery disabled, logging instead", "to", to, "subject", subject)
		m.audit(to, subject, kind, "skipped")
		return nil
	}

	msg := []byte("From: " + m.cfg.SMTPFrom + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\"\r\n" +
		"\r\n" +
		htmlBody + "\r\n")

	addr := m.cfg.SMTPHost + ":" + m.cfg.SMTPPort
	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, m.cfg.SMTPFrom, []string{to}, msg); err != nil {
		slog.Error("email send failed", "to", to, "subject", subject, "err", err)
		m.audit(to, subject, kind, "failed")
		return err
	}

	m.audit(to, subject, kind, "sent")
	return nil
}

func (m *SMTPMailer) audit(to, subject, kind, status string) {
	if m.db == nil {
		return
	}
	record := models.SentEmail{
		Recipient: to,
		Subject:   subject,
		Kind:      kind,
		Status:    status,
		SentAt:    time.Now(),
	}
	if err := m.db.Create(&record).Error; err != nil {
		slog.Error("failed to record sent email", "err", err)
	}
}
