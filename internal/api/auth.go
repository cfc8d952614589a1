package api

import (
	"crypto/subtle"
	"net/http"
)

const (
	headerWebhookSecret  = "X-Webhook-Secret"
	headerTelegramSecret = "X-Telegram-Bot-Api-Secret-Token"
)

// secretCheck compares the shared secret for a request kind. An empty
// configured secret disables the check for that kind.
type secretCheck struct {
	webhookSecret  string
	telegramSecret string
}

func (s secretCheck) allow(r *http.Request, kind string) bool {
	if kind == kindUpdate {
		return matchSecret(s.telegramSecret, r.Header.Get(headerTelegramSecret))
	}
	return matchSecret(s.webhookSecret, r.Header.Get(headerWebhookSecret))
}

func matchSecret(want, got string) bool {
	if want == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
