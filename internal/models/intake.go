package models

import "time"

// IntakePhase is the position of a buyer in the pay -> prove -> confirm flow.
type IntakePhase string

const (
	// PhaseIdle means no intake is in progress. Idle states are never stored.
	PhaseIdle IntakePhase = "idle"
	// PhaseMethodSelection means the buyer was shown the payment methods and has not chosen yet.
	PhaseMethodSelection IntakePhase = "method_selection"
	// PhaseAwaitingProof means a method is chosen and the buyer owes a screenshot.
	PhaseAwaitingProof IntakePhase = "awaiting_proof"
)

// PaymentMethod is a configured way to pay, e.g. a wallet.
type PaymentMethod struct {
	ID          string `json:"id" toml:"id" validate:"required"`
	Label       string `json:"label" toml:"label" validate:"required"`
	Destination string `json:"destination" toml:"destination" validate:"required"`
}

// IntakeState is the transient, in-memory state of one buyer's purchase flow.
type IntakeState struct {
	SubscriberID string         `json:"subscriber_id"`
	Phase        IntakePhase    `json:"phase"`
	Method       *PaymentMethod `json:"method,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// MethodID returns the selected method id or "" when none is selected.
func (s IntakeState) MethodID() string {
	if s.Method == nil {
		return ""
	}
	return s.Method.ID
}

// Buyer identifies the sender of an inbound event.
type Buyer struct {
	ID          string
	DisplayName string
	Username    string
}

// ProfileLink returns a link to the buyer's profile when a username is known.
func (b Buyer) ProfileLink() string {
	if b.Username == "" {
		return ""
	}
	return "https://t.me/" + b.Username
}
