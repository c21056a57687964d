package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"vipbot/internal/common"
	"vipbot/internal/metrics"
	"vipbot/internal/models"
	"vipbot/internal/repositories"

	"github.com/rs/zerolog/log"
)

// SubscriptionService holds the business rules over the ledger. Every mutation
// is a read-modify-write of the whole ledger serialized behind one mutex.
type SubscriptionService interface {
	// Grant sets the expiry to now + days, overwriting any existing record.
	Grant(ctx context.Context, subscriberID string, days int) (time.Time, error)
	// Extend adds days to the current expiry, or grants from now when absent.
	Extend(ctx context.Context, subscriberID string, days int) (time.Time, error)
	// Reduce subtracts days from the expiry and deletes the record when it reaches now.
	Reduce(ctx context.Context, subscriberID string, days int) (*ReduceResult, error)
	Remove(ctx context.Context, subscriberID string) error
	// DaysRemaining reports whole days left; ok is false when there is no record.
	DaysRemaining(ctx context.Context, subscriberID string) (days int, ok bool)
	// SweepExpired removes every record with expiry at or before now and returns their ids.
	SweepExpired(ctx context.Context) ([]string, error)
	ListAll(ctx context.Context) []models.SubscriberStatus
	BulkImport(ctx context.Context, entries []models.ImportEntry) (*models.ImportResult, error)
	Export(ctx context.Context) ([]byte, error)
}

// ReduceResult is the effect of a reduction.
type ReduceResult struct {
	ExpiresAt time.Time
	// Expired is set when the reduction removed the record.
	Expired bool
}

type SubscriptionOption func(*subscriptionService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) SubscriptionOption {
	return func(s *subscriptionService) { s.now = now }
}

// WithSubscriberNotifications sends best-effort messages to subscribers whose access changed.
func WithSubscriberNotifications(n Notifier) SubscriptionOption {
	return func(s *subscriptionService) { s.notifier = n }
}

type subscriptionService struct {
	mu       sync.Mutex
	repo     repositories.LedgerRepository
	ledger   *models.Ledger
	now      func() time.Time
	notifier Notifier
}

var errNoChange = errors.New("no change")

// NewSubscriptionService creates a new SubscriptionService instance
func NewSubscriptionService(repo repositories.LedgerRepository, opts ...SubscriptionOption) SubscriptionService {
	s := &subscriptionService{
		repo: repo,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// current returns the in-memory ledger, loading it on first use. Callers hold s.mu.
func (s *subscriptionService) current(ctx context.Context) *models.Ledger {
	if s.ledger == nil {
		s.ledger = s.repo.Load(ctx)
		metrics.ActiveSubscribers.Set(float64(s.ledger.Len()))
	}
	return s.ledger
}

// mutate applies fn to a copy of the ledger and commits the copy only after it was
// persisted, so memory and storage never disagree.
func (s *subscriptionService) mutate(ctx context.Context, op string, fn func(l *models.Ledger, now time.Time) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	next := s.current(ctx).Clone()
	if err := fn(next, now); err != nil {
		if errors.Is(err, errNoChange) {
			return nil
		}
		metrics.LedgerOperationsTotal.WithLabelValues(op, "rejected").Inc()
		return err
	}

	if err := s.repo.Save(ctx, next); err != nil {
		metrics.LedgerOperationsTotal.WithLabelValues(op, "error").Inc()
		log.Error().Err(err).Str("op", op).Msg("Failed to persist ledger")
		return common.IOError(op, err)
	}

	s.ledger = next
	metrics.ActiveSubscribers.Set(float64(next.Len()))
	metrics.LedgerOperationsTotal.WithLabelValues(op, "ok").Inc()
	return nil
}

func daysToDuration(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}

func (s *subscriptionService) Grant(ctx context.Context, subscriberID string, days int) (time.Time, error) {
	var expiresAt time.Time
	err := s.mutate(ctx, "grant", func(l *models.Ledger, now time.Time) error {
		expiresAt = now.Add(daysToDuration(days))
		l.Put(subscriberID, expiresAt)
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}

	log.Info().Str("subscriber_id", subscriberID).Int("days", days).Time("expires_at", expiresAt).Msg("Subscription granted")
	NotifyBestEffort(ctx, s.notifier, subscriberID,
		fmt.Sprintf("✅ Your VIP access is active for %d days (until %s UTC).", days, expiresAt.Format("2006-01-02 15:04")))
	return expiresAt, nil
}

func (s *subscriptionService) Extend(ctx context.Context, subscriberID string, days int) (time.Time, error) {
	var expiresAt time.Time
	err := s.mutate(ctx, "extend", func(l *models.Ledger, now time.Time) error {
		base := now
		if current, ok := l.Get(subscriberID); ok && current.After(now) {
			base = current
		}
		expiresAt = base.Add(daysToDuration(days))
		l.Put(subscriberID, expiresAt)
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}

	log.Info().Str("subscriber_id", subscriberID).Int("days", days).Time("expires_at", expiresAt).Msg("Subscription extended")
	NotifyBestEffort(ctx, s.notifier, subscriberID,
		fmt.Sprintf("✅ Your VIP access was extended by %d days (until %s UTC).", days, expiresAt.Format("2006-01-02 15:04")))
	return expiresAt, nil
}

func (s *subscriptionService) Reduce(ctx context.Context, subscriberID string, days int) (*ReduceResult, error) {
	result := &ReduceResult{}
	err := s.mutate(ctx, "reduce", func(l *models.Ledger, now time.Time) error {
		current, ok := l.Get(subscriberID)
		if !ok {
			return common.NotFoundError(subscriberID)
		}
		result.ExpiresAt = current.Add(-daysToDuration(days))
		if !result.ExpiresAt.After(now) {
			l.Delete(subscriberID)
			result.Expired = true
			return nil
		}
		l.Put(subscriberID, result.ExpiresAt)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Expired {
		metrics.ExpiredTotal.Inc()
		log.Info().Str("subscriber_id", subscriberID).Int("days", days).Msg("Subscription expired by reduction")
		NotifyBestEffort(ctx, s.notifier, subscriberID, "⚠️ Your VIP access has ended.")
	} else {
		log.Info().Str("subscriber_id", subscriberID).Int("days", days).Time("expires_at", result.ExpiresAt).Msg("Subscription reduced")
	}
	return result, nil
}

func (s *subscriptionService) Remove(ctx context.Context, subscriberID string) error {
	err := s.mutate(ctx, "remove", func(l *models.Ledger, now time.Time) error {
		if !l.Delete(subscriberID) {
			return common.NotFoundError(subscriberID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Str("subscriber_id", subscriberID).Msg("Subscription removed")
	NotifyBestEffort(ctx, s.notifier, subscriberID, "Your VIP access has been removed.")
	return nil
}

func (s *subscriptionService) DaysRemaining(ctx context.Context, subscriberID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.current(ctx).Get(subscriberID)
	if !ok {
		return 0, false
	}
	return models.DaysRemaining(expiresAt, s.now().UTC()), true
}

func (s *subscriptionService) SweepExpired(ctx context.Context) ([]string, error) {
	var expired []string
	err := s.mutate(ctx, "sweep", func(l *models.Ledger, now time.Time) error {
		for _, rec := range l.Records() {
			if !rec.ExpiresAt.After(now) {
				expired = append(expired, rec.SubscriberID)
			}
		}
		if len(expired) == 0 {
			return errNoChange
		}
		for _, id := range expired {
			l.Delete(id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ExpiredTotal.Add(float64(len(expired)))
	return expired, nil
}

func (s *subscriptionService) ListAll(ctx context.Context) []models.SubscriberStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	records := s.current(ctx).Records()
	out := make([]models.SubscriberStatus, 0, len(records))
	for _, rec := range records {
		out = append(out, models.SubscriberStatus{
			SubscriberID:  rec.SubscriberID,
			ExpiresAt:     rec.ExpiresAt,
			DaysRemaining: models.DaysRemaining(rec.ExpiresAt, now),
		})
	}
	return out
}

// BulkImport merges entries into the ledger, overwriting on collision. Malformed
// entries are skipped and reported in the result, never aborting the import.
func (s *subscriptionService) BulkImport(ctx context.Context, entries []models.ImportEntry) (*models.ImportResult, error) {
	result := &models.ImportResult{Errors: []string{}}
	err := s.mutate(ctx, "import", func(l *models.Ledger, now time.Time) error {
		for _, entry := range entries {
			result.RecordsProcessed++
			id, expiresAt, err := resolveImportEntry(entry, now)
			if err != nil {
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			l.Put(id, expiresAt)
			result.RecordsImported++
		}
		if result.RecordsImported == 0 {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		result.RecordsImported = 0
		return result, err
	}

	log.Info().Int("processed", result.RecordsProcessed).Int("imported", result.RecordsImported).Msg("Ledger import applied")
	return result, nil
}

// resolveImportEntry accepts a whole number of days (relative to now) or an
// absolute expiry timestamp.
func resolveImportEntry(entry models.ImportEntry, now time.Time) (string, time.Time, error) {
	id, err := common.ValidateSubscriberID(entry.SubscriberID)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("entry %q: %v", entry.SubscriberID, err)
	}

	value := strings.TrimSpace(entry.Value)
	if days, convErr := strconv.Atoi(value); convErr == nil {
		if err := common.ValidatePositiveInteger(days, "days", common.MaxDays); err != nil {
			return "", time.Time{}, fmt.Errorf("entry %q: %v", id, err)
		}
		return id, now.Add(daysToDuration(days)), nil
	}

	expiresAt, err := models.ParseTimestamp(value)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("entry %q: %q is neither a day count nor a timestamp", id, value)
	}
	if !expiresAt.After(now) {
		return "", time.Time{}, fmt.Errorf("entry %q: already expired at %s", id, models.FormatTimestamp(expiresAt))
	}
	return id, expiresAt, nil
}

func (s *subscriptionService) Export(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return repositories.EncodeLedger(s.current(ctx))
}
