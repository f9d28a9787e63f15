// Package mailer はメール送信を提供する。
//
// SMTPサーバーが設定されていればjordan-wright/emailで送信し、
// 未設定の開発環境では本文をログに出力するだけのLogMailerを使用する。
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"

	"github.com/jordan-wright/email"
)

// Mailer はHTMLメール送信のインターフェース。
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// SMTPConfig はSMTP接続設定。
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// sendFunc はemail.Email.Sendと同じシグネチャの送信関数。テストで差し替える。
type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

func defaultSend(e *email.Email, addr string, auth smtp.Auth) error {
	return e.Send(addr, auth)
}

// SMTPMailer はSMTPサーバー経由でメールを送信する。
type SMTPMailer struct {
	cfg  SMTPConfig
	send sendFunc
}

// NewSMTPMailer はSMTPMailerを生成する。
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		return nil, errors.New("mail from address is required")
	}
	return &SMTPMailer{cfg: cfg, send: defaultSend}, nil
}

// Send はHTMLメールを1通送信する。
// email.Email.Sendはコンテキストを受け取らないため、送信前にキャンセル済みかのみ確認する。
func (m *SMTPMailer) Send(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = m.cfg.From
	e.To = []string{to}
	e.Subject = subject
	e.HTML = []byte(html)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(e, addr, auth); err != nil {
		return fmt.Errorf("failed to send mail via %s: %w", addr, err)
	}
	return nil
}

// LogMailer はメールを送信せずログに出力する。開発環境用。
type LogMailer struct{}

// NewLogMailer はLogMailerを生成する。
func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

// Send はメール内容をINFOレベルでログに出力する。
func (m *LogMailer) Send(ctx context.Context, to, subject, html string) error {
	slog.InfoContext(ctx, "mail not sent (smtp disabled)",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("html", html),
	)
	return nil
}

// New はSMTPホストが設定されていればSMTPMailerを、なければLogMailerを返す。
func New(cfg SMTPConfig) (Mailer, error) {
	if cfg.Host == "" {
		return NewLogMailer(), nil
	}
	return NewSMTPMailer(cfg)
}

// compile-time interface check
var (
	_ Mailer = (*SMTPMailer)(nil)
	_ Mailer = (*LogMailer)(nil)
)
