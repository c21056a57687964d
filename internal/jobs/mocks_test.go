package jobs

import (
	"context"
	"time"

	"vipbot/internal/models"
	"vipbot/internal/services"

	"github.com/stretchr/testify/mock"
)

type MockSubscriptionService struct {
	mock.Mock
}

var _ services.SubscriptionService = (*MockSubscriptionService)(nil)

func (m *MockSubscriptionService) Grant(ctx context.Context, subscriberID string, days int) (time.Time, error) {
	args := m.Called(ctx, subscriberID, days)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockSubscriptionService) Extend(ctx context.Context, subscriberID string, days int) (time.Time, error) {
	args := m.Called(ctx, subscriberID, days)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockSubscriptionService) Reduce(ctx context.Context, subscriberID string, days int) (*services.ReduceResult, error) {
	args := m.Called(ctx, subscriberID, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ReduceResult), args.Error(1)
}

func (m *MockSubscriptionService) Remove(ctx context.Context, subscriberID string) error {
	args := m.Called(ctx, subscriberID)
	return args.Error(0)
}

func (m *MockSubscriptionService) DaysRemaining(ctx context.Context, subscriberID string) (int, bool) {
	args := m.Called(ctx, subscriberID)
	return args.Int(0), args.Bool(1)
}

func (m *MockSubscriptionService) SweepExpired(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockSubscriptionService) ListAll(ctx context.Context) []models.SubscriberStatus {
	args := m.Called(ctx)
	return args.Get(0).([]models.SubscriberStatus)
}

func (m *MockSubscriptionService) BulkImport(ctx context.Context, entries []models.ImportEntry) (*models.ImportResult, error) {
	args := m.Called(ctx, entries)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ImportResult), args.Error(1)
}

func (m *MockSubscriptionService) Export(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendText(ctx context.Context, recipientID, text string, keyboard *models.Keyboard) error {
	args := m.Called(ctx, recipientID, text, keyboard)
	return args.Error(0)
}

func (m *MockNotifier) SendPhoto(ctx context.Context, recipientID, fileHandle, caption string) error {
	args := m.Called(ctx, recipientID, fileHandle, caption)
	return args.Error(0)
}
