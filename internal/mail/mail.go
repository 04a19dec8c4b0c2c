// mail отправляет письма подтверждения email. Сервис зависит только от
// интерфейса Sender; конкретная реализация выбирается конфигурацией.
package mail

//go:generate mockgen -source=mail.go -destination=../../mocks/mock_sender.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidRecipient - адрес получателя не является корректным RFC 5322 адресом.
var ErrInvalidRecipient = errors.New("invalid recipient")

// Message - письмо для отправки.
type Message struct {
	To      string
	Subject string
	Body    string
	// Link - ссылка подтверждения; уже включена в Body и дублируется
	// для отправителей, которым не нужен текст письма.
	Link string
}

// Sender доставляет письма.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ConfirmationLink строит ссылку вида <baseURL>/confirm/<token>.
func ConfirmationLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/confirm/" + url.PathEscape(token)
}

// ConfirmationMessage собирает письмо подтверждения регистрации.
func ConfirmationMessage(baseURL, to, token string) Message {
	link := ConfirmationLink(baseURL, token)

	return Message{
		To:      to,
		Subject: "Confirm your email",
		Body: fmt.Sprintf(
			"Hello!\r\n\r\nTo finish registration open the link below:\r\n\r\n%s\r\n\r\n"+
				"If you did not sign up, ignore this message.\r\n", link),
		Link: link,
	}
}
