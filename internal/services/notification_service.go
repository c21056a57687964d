package services

import (
	"context"
	"errors"
	"time"

	"vipbot/internal/common"
	"vipbot/internal/metrics"
	"vipbot/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Notifier sends messages to a recipient through the messaging gateway.
// Every call may fail with a delivery error; callers treat sends as best-effort.
type Notifier interface {
	SendText(ctx context.Context, recipientID, text string, keyboard *models.Keyboard) error
	SendPhoto(ctx context.Context, recipientID, fileHandle, caption string) error
}

// BreakerNotifier guards a Notifier with a circuit breaker so that a dead gateway
// does not stall the sweeper or request handling on every send.
type BreakerNotifier struct {
	next Notifier
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerNotifier wraps next with a circuit breaker.
func NewBreakerNotifier(next Notifier) *BreakerNotifier {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "messaging-gateway",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		// A recipient that cannot be reached says nothing about the gateway.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, common.ErrRecipient)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker changed state")
		},
	})
	return &BreakerNotifier{next: next, cb: cb}
}

func (b *BreakerNotifier) SendText(ctx context.Context, recipientID, text string, keyboard *models.Keyboard) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.SendText(ctx, recipientID, text, keyboard)
	})
	metrics.NotificationsTotal.WithLabelValues("text", metrics.Result(err)).Inc()
	if err != nil {
		return common.DeliveryError(recipientID, err)
	}
	return nil
}

func (b *BreakerNotifier) SendPhoto(ctx context.Context, recipientID, fileHandle, caption string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.SendPhoto(ctx, recipientID, fileHandle, caption)
	})
	metrics.NotificationsTotal.WithLabelValues("photo", metrics.Result(err)).Inc()
	if err != nil {
		return common.DeliveryError(recipientID, err)
	}
	return nil
}

// State reports the breaker state for health checks.
func (b *BreakerNotifier) State() string {
	return b.cb.State().String()
}

// NotifyBestEffort sends a text message and logs, rather than returns, any failure.
func NotifyBestEffort(ctx context.Context, n Notifier, recipientID, text string) {
	if n == nil || recipientID == "" {
		return
	}
	if err := n.SendText(ctx, recipientID, text, nil); err != nil {
		log.Warn().Err(err).Str("recipient_id", recipientID).Msg("Notification not delivered")
	}
}
