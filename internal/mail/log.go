package mail

import (
	"context"
	"log/slog"

	"github.com/pribylovaa/contacts-auth/internal/pkg/redact"
)

// LogSender не отправляет писем, а пишет ссылку в лог.
// Используется в окружении local, где SMTP-сервера нет.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.log.Info("mail_logged",
		slog.String("to", redact.Email(msg.To)),
		slog.String("subject", msg.Subject),
		slog.String("link", msg.Link),
	)

	return nil
}
