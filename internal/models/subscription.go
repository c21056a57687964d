package models

import (
	"sort"
	"strings"
	"time"
)

// LedgerVersion is the schema version written into every persisted ledger document.
const LedgerVersion = 1

// SubscriptionRecord is a single active VIP subscription.
// A record exists only while the subscriber has access; expiry is represented by deletion.
type SubscriptionRecord struct {
	SubscriberID string    `json:"subscriber_id"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// SubscriberStatus is one line of the ledger report.
type SubscriberStatus struct {
	SubscriberID  string    `json:"subscriber_id"`
	ExpiresAt     time.Time `json:"expires_at"`
	DaysRemaining int       `json:"days_remaining"`
}

// Ledger is the full set of subscription records keyed by subscriber id.
// Iteration follows insertion order; overwriting a key keeps its position.
type Ledger struct {
	index   map[string]int
	records []SubscriptionRecord
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{index: make(map[string]int)}
}

// LedgerFromMap builds a ledger from a plain map. Keys are inserted in sorted order
// so that a ledger loaded from disk has a deterministic iteration order.
func LedgerFromMap(entries map[string]time.Time) *Ledger {
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	l := NewLedger()
	for _, id := range ids {
		l.Put(id, entries[id])
	}
	return l
}

func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.records)
}

// Get returns the expiry for a subscriber.
func (l *Ledger) Get(subscriberID string) (time.Time, bool) {
	if l == nil {
		return time.Time{}, false
	}
	i, ok := l.index[subscriberID]
	if !ok {
		return time.Time{}, false
	}
	return l.records[i].ExpiresAt, true
}

// Put inserts or overwrites the expiry for a subscriber. Expiries are stored in UTC.
func (l *Ledger) Put(subscriberID string, expiresAt time.Time) {
	expiresAt = expiresAt.UTC()
	if i, ok := l.index[subscriberID]; ok {
		l.records[i].ExpiresAt = expiresAt
		return
	}
	l.index[subscriberID] = len(l.records)
	l.records = append(l.records, SubscriptionRecord{SubscriberID: subscriberID, ExpiresAt: expiresAt})
}

// Delete removes a subscriber and reports whether it was present.
func (l *Ledger) Delete(subscriberID string) bool {
	i, ok := l.index[subscriberID]
	if !ok {
		return false
	}
	l.records = append(l.records[:i], l.records[i+1:]...)
	delete(l.index, subscriberID)
	for j := i; j < len(l.records); j++ {
		l.index[l.records[j].SubscriberID] = j
	}
	return true
}

// Records returns a copy of the records in insertion order.
func (l *Ledger) Records() []SubscriptionRecord {
	if l == nil {
		return nil
	}
	out := make([]SubscriptionRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Map returns the ledger as a plain map.
func (l *Ledger) Map() map[string]time.Time {
	out := make(map[string]time.Time, l.Len())
	for _, r := range l.Records() {
		out[r.SubscriberID] = r.ExpiresAt
	}
	return out
}

// Clone returns a deep copy.
func (l *Ledger) Clone() *Ledger {
	c := NewLedger()
	for _, r := range l.Records() {
		c.Put(r.SubscriberID, r.ExpiresAt)
	}
	return c
}

// DaysRemaining converts the time left until expiresAt into whole days.
// The fractional remainder is discarded and the result is never negative.
func DaysRemaining(expiresAt, now time.Time) int {
	left := expiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / (24 * time.Hour))
}

// ImportEntry is a single raw entry of a bulk import. Value is either an integer
// day count or an expiry timestamp; it is resolved by the subscription service.
type ImportEntry struct {
	SubscriberID string
	Value        string
}

// ImportResult summarises a bulk import.
type ImportResult struct {
	RecordsProcessed int
	RecordsImported  int
	Errors           []string
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 expiry. Timestamps without a zone are UTC,
// which is how older ledger files were written.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// FormatTimestamp renders an expiry the way it is persisted.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
