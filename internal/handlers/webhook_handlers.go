package handlers

import (
	"context"
	"crypto/hmac"
	"net/http"

	"vipbot/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// SecretTokenHeader carries the secret Telegram was given when the webhook was set.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookReceiver decodes one webhook request into events for handler.
type WebhookReceiver interface {
	ReceiveWebhook(ctx context.Context, r *http.Request, handler models.EventHandler) error
}

// WebhookHandlers handles inbound gateway webhook calls
type WebhookHandlers struct {
	receiver WebhookReceiver
	events   models.EventHandler
	secret   string
}

func NewWebhookHandlers(receiver WebhookReceiver, events models.EventHandler, secret string) *WebhookHandlers {
	return &WebhookHandlers{
		receiver: receiver,
		events:   events,
		secret:   secret,
	}
}

// verifySecret compares the header in constant time. No secret configured means
// every call is accepted.
func (h *WebhookHandlers) verifySecret(header string) bool {
	if h.secret == "" {
		return true
	}
	return hmac.Equal([]byte(header), []byte(h.secret))
}

// Receive handles POST on the webhook path
func (h *WebhookHandlers) Receive(c echo.Context) error {
	if !h.verifySecret(c.Request().Header.Get(SecretTokenHeader)) {
		log.Warn().Str("ip", c.RealIP()).Msg("Rejected webhook call with invalid secret")
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid secret token")
	}

	// Handling continues even if Telegram hangs up.
	ctx := context.WithoutCancel(c.Request().Context())
	if err := h.receiver.ReceiveWebhook(ctx, c.Request(), h.events); err != nil {
		log.Warn().Err(err).Msg("Failed to decode webhook update")
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid update")
	}
	return c.NoContent(http.StatusOK)
}
