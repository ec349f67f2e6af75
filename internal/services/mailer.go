package services

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/smtp"

	"task-tracker/backend/internal/config"
)

// Mailer はパスワードリセットメールの送信先を抽象化します。
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, resetURL string) error
}

// NewMailer はSMTPが設定されていればSMTPMailerを、そうでなければLogMailerを返します。
func NewMailer(cfg config.MailConfig) Mailer {
	if cfg.SMTPHost == "" {
		return LogMailer{}
	}
	return &SMTPMailer{cfg: cfg}
}

// SMTPMailer はSMTPでメールを送信します。
type SMTPMailer struct {
	cfg config.MailConfig
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(m.cfg.SMTPHost, m.cfg.SMTPPort)

	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	}

	// 件名と本文
	message := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Password reset\r\n\r\nUse the link below to set a new password.\r\n%s\r\n",
		m.cfg.From, to, resetURL,
	))

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, message); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}
	return nil
}

// LogMailer はSMTP未設定の開発環境向けに、リセットURLをログに出力します。
type LogMailer struct{}

func (LogMailer) SendPasswordReset(_ context.Context, to, resetURL string) error {
	log.Printf("password reset link for %s: %s", to, resetURL)
	return nil
}
