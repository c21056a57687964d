package jobs

import (
	"context"
	"fmt"
	"runtime/debug"

	"vipbot/internal/metrics"
	"vipbot/internal/services"

	"github.com/rs/zerolog/log"
)

// SweeperConfig controls what the sweeper reports after each iteration.
type SweeperConfig struct {
	OperatorID string
	// Report sends the full ledger listing to the operator after each sweep.
	Report bool
	// NotifySubscribers tells each expired subscriber that access ended.
	NotifySubscribers bool
}

// ExpiryService removes expired subscriptions and reports them to the operator.
type ExpiryService struct {
	subscriptions services.SubscriptionService
	notifier      services.Notifier
	config        SweeperConfig
}

func NewExpiryService(subscriptions services.SubscriptionService, notifier services.Notifier, cfg SweeperConfig) *ExpiryService {
	return &ExpiryService{
		subscriptions: subscriptions,
		notifier:      notifier,
		config:        cfg,
	}
}

// RunOnce performs one sweep iteration. It never panics and never returns an
// error to the scheduler: a failed iteration is logged and the next tick retries.
func (e *ExpiryService) RunOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			metrics.SweepsTotal.WithLabelValues("panic").Inc()
			log.Error().Str("panic", fmt.Sprint(r)).Bytes("stack", debug.Stack()).Msg("Expiry sweep panicked")
		}
	}()

	if err := e.sweep(ctx); err != nil {
		metrics.SweepsTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("Expiry sweep failed")
		return
	}
	metrics.SweepsTotal.WithLabelValues("ok").Inc()
}

func (e *ExpiryService) sweep(ctx context.Context) error {
	log.Info().Msg("Starting expiry sweep")

	expired, err := e.subscriptions.SweepExpired(ctx)
	if err != nil {
		return err
	}

	for _, id := range expired {
		services.NotifyBestEffort(ctx, e.notifier, e.config.OperatorID, fmt.Sprintf("⚠️ Subscription expired for %s", id))
		if e.config.NotifySubscribers {
			services.NotifyBestEffort(ctx, e.notifier, id, "⚠️ Your VIP access has expired.")
		}
	}

	if e.config.Report {
		statuses := e.subscriptions.ListAll(ctx)
		if len(statuses) > 0 {
			services.NotifyBestEffort(ctx, e.notifier, e.config.OperatorID, "📊 Daily VIP Report:\n"+FormatReport(statuses))
		}
	}

	log.Info().Int("expired", len(expired)).Msg("Completed expiry sweep")
	return nil
}
