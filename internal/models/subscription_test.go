package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_InsertionOrderAndOverwrite(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLedger()
	l.Put("c", base)
	l.Put("a", base.Add(time.Hour))
	l.Put("b", base.Add(2*time.Hour))
	l.Put("c", base.Add(3*time.Hour))

	records := l.Records()
	require.Len(t, records, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{records[0].SubscriberID, records[1].SubscriberID, records[2].SubscriberID})
	assert.Equal(t, base.Add(3*time.Hour), records[0].ExpiresAt)

	assert.True(t, l.Delete("a"))
	assert.False(t, l.Delete("a"))
	got, ok := l.Get("b")
	assert.True(t, ok)
	assert.Equal(t, base.Add(2*time.Hour), got)
	assert.Equal(t, 2, l.Len())
}

func TestLedger_CloneIsIndependent(t *testing.T) {
	l := NewLedger()
	l.Put("a", time.Unix(100, 0))
	c := l.Clone()
	c.Put("b", time.Unix(200, 0))
	c.Delete("a")

	assert.Equal(t, 1, l.Len())
	_, ok := l.Get("a")
	assert.True(t, ok)
}

func TestLedger_PutStoresUTC(t *testing.T) {
	zone := time.FixedZone("UTC+3", 3*3600)
	l := NewLedger()
	l.Put("a", time.Date(2025, 1, 1, 3, 0, 0, 0, zone))

	got, _ := l.Get("a")
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, 0, got.Hour())
}

func TestDaysRemaining(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		expiresAt time.Time
		want      int
	}{
		{"exact days", now.Add(30 * 24 * time.Hour), 30},
		{"fraction discarded", now.Add(30*24*time.Hour - time.Second), 29},
		{"under a day", now.Add(23 * time.Hour), 0},
		{"at expiry", now, 0},
		{"past expiry", now.Add(-72 * time.Hour), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysRemaining(tt.expiresAt, now))
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2030-01-02T03:04:05Z", time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"2030-01-02T03:04:05.5+01:00", time.Date(2030, 1, 2, 2, 4, 5, 500000000, time.UTC)},
		{"2030-01-02T03:04:05.123456", time.Date(2030, 1, 2, 3, 4, 5, 123456000, time.UTC)},
		{"2030-01-02 03:04:05", time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"2030-01-02", time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.True(t, tt.want.Equal(got), "%s: got %s", tt.raw, got)
	}

	_, err := ParseTimestamp("tomorrow")
	assert.Error(t, err)
}
