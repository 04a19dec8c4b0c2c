package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	netmail "net/mail"
	"net/smtp"
	"strings"
	"time"
)

// SMTPConfig - параметры подключения к SMTP-серверу.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// SMTPSender отправляет письма через SMTP с STARTTLS, если сервер его поддерживает.
type SMTPSender struct {
	cfg  SMTPConfig
	now  func() time.Time
	tls  *tls.Config
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	var d net.Dialer

	return &SMTPSender{
		cfg:  cfg,
		now:  time.Now,
		tls:  &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12},
		dial: d.DialContext,
	}
}

// Send доставляет письмо. Дедлайн ctx распространяется на всё SMTP-соединение.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	const op = "mail.smtp.Send"

	to, err := netmail.ParseAddress(msg.To)
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidRecipient)
	}
	from, err := netmail.ParseAddress(s.cfg.From)
	if err != nil {
		return fmt.Errorf("%s: sender: %w", op, err)
	}

	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	conn, err := s.dial(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%s: dial: %w", op, err)
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("%s: handshake: %w", op, err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(s.tls); err != nil {
			return fmt.Errorf("%s: starttls: %w", op, err)
		}
	}

	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("%s: auth: %w", op, err)
		}
	}

	if err := c.Mail(from.Address); err != nil {
		return fmt.Errorf("%s: mail from: %w", op, err)
	}
	if err := c.Rcpt(to.Address); err != nil {
		return fmt.Errorf("%s: rcpt to: %w", op, err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("%s: data: %w", op, err)
	}
	if _, err := w.Write(s.compose(from, to, msg)); err != nil {
		_ = w.Close()
		return fmt.Errorf("%s: write: %w", op, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%s: data close: %w", op, err)
	}

	if err := c.Quit(); err != nil {
		return fmt.Errorf("%s: quit: %w", op, err)
	}

	return nil
}

func (s *SMTPSender) compose(from, to *netmail.Address, msg Message) []byte {
	var b strings.Builder

	b.WriteString("From: " + from.String() + "\r\n")
	b.WriteString("To: " + to.String() + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("Date: " + s.now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)

	return []byte(b.String())
}
