package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vipbot/internal/caching"
	"vipbot/internal/common"
	"vipbot/internal/metrics"
	"vipbot/internal/models"

	"github.com/rs/zerolog/log"
)

// MethodCallbackPrefix prefixes the callback id of every payment method button.
const MethodCallbackPrefix = "pay:"

// IntakeService walks a buyer from choosing a payment method to a screenshot
// forwarded to the operator. It never touches the ledger: granting access is a
// separate operator action.
type IntakeService interface {
	// StartPurchase clears any in-flight intake and begins a new one. With a single
	// configured method the buyer goes straight to awaiting proof.
	StartPurchase(ctx context.Context, buyer models.Buyer) (*PurchaseStart, error)
	// SelectMethod always begins a fresh awaiting-proof intake for the method.
	SelectMethod(ctx context.Context, buyer models.Buyer, methodID string) (*models.PaymentMethod, error)
	// SubmitProof forwards the screenshot to the operator and ends the intake.
	SubmitProof(ctx context.Context, buyer models.Buyer, fileHandle string) (*models.PaymentMethod, error)
	// HandleText rejects text while a screenshot is expected; otherwise it is a no-op.
	HandleText(ctx context.Context, buyer models.Buyer, text string) error
	Cancel(ctx context.Context, buyer models.Buyer) (bool, error)
	State(ctx context.Context, subscriberID string) (*models.IntakeState, error)
	Methods() []models.PaymentMethod
	EvictExpired(ctx context.Context) (int, error)
}

// PurchaseStart tells the caller what to show the buyer: either the list of
// methods to choose from, or the single method already selected.
type PurchaseStart struct {
	Methods  []models.PaymentMethod
	Selected *models.PaymentMethod
}

type intakeService struct {
	store      caching.IntakeStore
	methods    []models.PaymentMethod
	operatorID string
	notifier   Notifier
	archive    ProofArchive
	now        func() time.Time
}

type IntakeOption func(*intakeService)

// WithProofArchive keeps a copy of every forwarded proof.
func WithProofArchive(a ProofArchive) IntakeOption {
	return func(s *intakeService) { s.archive = a }
}

// WithIntakeClock overrides the time source.
func WithIntakeClock(now func() time.Time) IntakeOption {
	return func(s *intakeService) { s.now = now }
}

// NewIntakeService creates the intake state machine.
func NewIntakeService(store caching.IntakeStore, methods []models.PaymentMethod, operatorID string, notifier Notifier, opts ...IntakeOption) IntakeService {
	s := &intakeService{
		store:      store,
		methods:    append([]models.PaymentMethod(nil), methods...),
		operatorID: operatorID,
		notifier:   notifier,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *intakeService) Methods() []models.PaymentMethod {
	return append([]models.PaymentMethod(nil), s.methods...)
}

func (s *intakeService) findMethod(methodID string) (*models.PaymentMethod, bool) {
	for i := range s.methods {
		if s.methods[i].ID == methodID {
			m := s.methods[i]
			return &m, true
		}
	}
	return nil, false
}

func (s *intakeService) transition(event string) {
	metrics.IntakeTransitionsTotal.WithLabelValues(event).Inc()
}

func (s *intakeService) StartPurchase(ctx context.Context, buyer models.Buyer) (*PurchaseStart, error) {
	if err := s.store.Delete(ctx, buyer.ID); err != nil {
		return nil, fmt.Errorf("reset intake: %w", err)
	}

	switch len(s.methods) {
	case 0:
		s.transition("start_unavailable")
		return nil, common.ErrNoPaymentMethods
	case 1:
		method := s.methods[0]
		if err := s.save(ctx, buyer.ID, models.PhaseAwaitingProof, &method); err != nil {
			return nil, err
		}
		s.transition("start_direct")
		return &PurchaseStart{Selected: &method}, nil
	default:
		if err := s.save(ctx, buyer.ID, models.PhaseMethodSelection, nil); err != nil {
			return nil, err
		}
		s.transition("start")
		return &PurchaseStart{Methods: s.Methods()}, nil
	}
}

func (s *intakeService) SelectMethod(ctx context.Context, buyer models.Buyer, methodID string) (*models.PaymentMethod, error) {
	method, ok := s.findMethod(strings.TrimPrefix(methodID, MethodCallbackPrefix))
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownPaymentMethod, methodID)
	}
	if err := s.save(ctx, buyer.ID, models.PhaseAwaitingProof, method); err != nil {
		return nil, err
	}
	s.transition("select")
	return method, nil
}

func (s *intakeService) save(ctx context.Context, subscriberID string, phase models.IntakePhase, method *models.PaymentMethod) error {
	now := s.now().UTC()
	state := &models.IntakeState{
		SubscriberID: subscriberID,
		Phase:        phase,
		Method:       method,
		StartedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Set(ctx, state); err != nil {
		return fmt.Errorf("save intake: %w", err)
	}
	return nil
}

func (s *intakeService) SubmitProof(ctx context.Context, buyer models.Buyer, fileHandle string) (*models.PaymentMethod, error) {
	// Claiming the intake first means a burst of photos is forwarded once.
	state, err := s.store.Take(ctx, buyer.ID, models.PhaseAwaitingProof)
	if err != nil {
		return nil, fmt.Errorf("claim intake: %w", err)
	}
	if state == nil || state.Method == nil {
		s.transition("proof_rejected")
		return nil, common.ErrNoActiveIntake
	}

	if err := s.notifier.SendPhoto(ctx, s.operatorID, fileHandle, proofCaption(buyer, *state.Method)); err != nil {
		// Put the intake back so the buyer can resend the screenshot.
		if restoreErr := s.store.Set(ctx, state); restoreErr != nil {
			log.Warn().Err(restoreErr).Str("subscriber_id", buyer.ID).Msg("Failed to restore intake after undelivered proof")
		}
		s.transition("proof_undelivered")
		return nil, err
	}

	s.transition("proof_forwarded")
	log.Info().Str("subscriber_id", buyer.ID).Str("method", state.Method.ID).Msg("Payment proof forwarded to operator")

	if s.archive != nil {
		if objectName, err := s.archive.Archive(ctx, buyer, state.Method.ID, fileHandle); err != nil {
			log.Warn().Err(err).Str("subscriber_id", buyer.ID).Msg("Failed to archive payment proof")
		} else {
			log.Debug().Str("subscriber_id", buyer.ID).Str("object", objectName).Msg("Payment proof archived")
		}
	}
	return state.Method, nil
}

func proofCaption(buyer models.Buyer, method models.PaymentMethod) string {
	var b strings.Builder
	b.WriteString("🧾 Payment proof\n")
	fmt.Fprintf(&b, "Buyer ID: %s\n", buyer.ID)
	if buyer.DisplayName != "" {
		fmt.Fprintf(&b, "Name: %s\n", buyer.DisplayName)
	}
	if link := buyer.ProfileLink(); link != "" {
		fmt.Fprintf(&b, "Profile: %s\n", link)
	}
	fmt.Fprintf(&b, "Method: %s (%s)\n", method.Label, method.ID)
	fmt.Fprintf(&b, "Grant with: /grant %s <days>", buyer.ID)
	return b.String()
}

func (s *intakeService) HandleText(ctx context.Context, buyer models.Buyer, text string) error {
	state, err := s.store.Get(ctx, buyer.ID)
	if err != nil {
		return fmt.Errorf("load intake: %w", err)
	}
	if state != nil && state.Phase == models.PhaseAwaitingProof {
		s.transition("text_rejected")
		return common.ErrProofRequired
	}
	return nil
}

func (s *intakeService) Cancel(ctx context.Context, buyer models.Buyer) (bool, error) {
	state, err := s.store.Get(ctx, buyer.ID)
	if err != nil {
		return false, fmt.Errorf("load intake: %w", err)
	}
	if state == nil {
		return false, nil
	}
	if err := s.store.Delete(ctx, buyer.ID); err != nil {
		return false, fmt.Errorf("clear intake: %w", err)
	}
	s.transition("cancel")
	return true, nil
}

func (s *intakeService) State(ctx context.Context, subscriberID string) (*models.IntakeState, error) {
	return s.store.Get(ctx, subscriberID)
}

func (s *intakeService) EvictExpired(ctx context.Context) (int, error) {
	n, err := s.store.EvictExpired(ctx)
	if n > 0 {
		metrics.IntakeTransitionsTotal.WithLabelValues("evicted").Add(float64(n))
	}
	return n, err
}
