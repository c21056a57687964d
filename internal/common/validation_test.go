package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscriberAndDays(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantID  string
		want    int
		wantErr bool
	}{
		{"valid", []string{"1001", "30"}, "1001", 30, false},
		{"missing days", []string{"1001"}, "", 0, true},
		{"too many", []string{"1001", "30", "x"}, "", 0, true},
		{"zero days", []string{"1001", "0"}, "", 0, true},
		{"negative days", []string{"1001", "-3"}, "", 0, true},
		{"not a number", []string{"1001", "ten"}, "", 0, true},
		{"too large", []string{"1001", "36501"}, "", 0, true},
		{"colon in id", []string{"a:b", "3"}, "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, days, err := SubscriberAndDays(tt.args)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrValidation), "got %v", err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.want, days)
		})
	}
}

func TestValidateSubscriberID(t *testing.T) {
	id, err := ValidateSubscriberID("  alice ")
	assert.NoError(t, err)
	assert.Equal(t, "alice", id)

	_, err = ValidateSubscriberID("   ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestErrorHelpersWrapSentinels(t *testing.T) {
	assert.ErrorIs(t, NotFoundError("x"), ErrNotFound)
	assert.ErrorIs(t, IOError("save", errors.New("disk full")), ErrIOFailure)
	assert.ErrorIs(t, DeliveryError("1", errors.New("blocked")), ErrDelivery)
	assert.Contains(t, IOError("save", errors.New("disk full")).Error(), "disk full")
}
