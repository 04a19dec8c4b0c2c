package mail

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfirmationLink(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://x.io/auth/confirm/abc.def", ConfirmationLink("https://x.io/auth/", "abc.def"))
	require.Equal(t, "http://h/confirm/a%2Fb", ConfirmationLink("http://h", "a/b"))
}

func TestConfirmationMessage(t *testing.T) {
	t.Parallel()

	msg := ConfirmationMessage("http://localhost:8080", "bob@example.com", "tok")

	require.Equal(t, "bob@example.com", msg.To)
	require.Equal(t, "http://localhost:8080/confirm/tok", msg.Link)
	require.Contains(t, msg.Body, msg.Link)
	require.NotEmpty(t, msg.Subject)
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(slog.New(slog.NewTextHandler(&buf, nil)))

	err := s.Send(context.Background(), Message{To: "alice@example.com", Subject: "s", Link: "http://h/confirm/t"})
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "mail_logged")
	require.Contains(t, out, "al***@example.com")
	require.Contains(t, out, "http://h/confirm/t")
	require.False(t, strings.Contains(out, "alice@"), "email must be redacted")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Send(ctx, Message{}), context.Canceled)
}
