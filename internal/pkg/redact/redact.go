// redact маскирует персональные данные и секреты перед записью в лог.
package redact

import "strings"

// Email оставляет первые две руны локальной части и домен.
func Email(s string) string {
	parts := strings.Split(s, "@")
	if len(parts) != 2 {
		return "***"
	}

	local, domain := []rune(parts[0]), parts[1]
	if len(local) > 2 {
		return string(local[:2]) + "***@" + domain
	}

	return "***@" + domain
}

// Token скрывает токен целиком; пустая строка остаётся пустой.
func Token(s string) string {
	if s == "" {
		return ""
	}

	return "[REDACTED_TOKEN]"
}

func Password() string { return "[REDACTED_PASSWORD]" }
