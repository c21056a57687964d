package background

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"vipbot/internal/caching"
	"vipbot/internal/jobs"
	"vipbot/internal/models"
	"vipbot/internal/repositories"
	"vipbot/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discardNotifier struct{}

func (discardNotifier) SendText(ctx context.Context, recipientID, text string, keyboard *models.Keyboard) error {
	return nil
}

func (discardNotifier) SendPhoto(ctx context.Context, recipientID, fileHandle, caption string) error {
	return nil
}

func newExpiryService(t *testing.T) *jobs.ExpiryService {
	repo := repositories.NewFileLedgerRepo(filepath.Join(t.TempDir(), "vip_data.json"))
	subs := services.NewSubscriptionService(repo)
	return jobs.NewExpiryService(subs, discardNotifier{}, jobs.SweeperConfig{OperatorID: "1"})
}

func TestJobScheduler_RegistersJobs(t *testing.T) {
	intake := services.NewIntakeService(caching.NewMemoryIntakeStore(time.Hour, nil), nil, "1", discardNotifier{})

	js, err := NewJobScheduler(newExpiryService(t), intake, SchedulerConfig{
		SweepInterval: 24 * time.Hour,
		EvictInterval: 10 * time.Minute,
	})
	require.NoError(t, err)
	js.Start()
	defer func() { assert.NoError(t, js.Stop()) }()

	status := js.GetJobStatus()
	assert.Equal(t, 2, status["total_jobs"])
	next := status["next_runs"].(map[string]string)
	assert.Contains(t, next, "expiry-sweep")
	assert.Contains(t, next, "intake-eviction")
}

func TestJobScheduler_WithoutIntakeOnlySweeps(t *testing.T) {
	js, err := NewJobScheduler(newExpiryService(t), nil, SchedulerConfig{SweepInterval: time.Hour, EvictInterval: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, 1, js.GetJobStatus()["total_jobs"])
	assert.NoError(t, js.Stop())
}

func TestJobScheduler_RejectsZeroSweepInterval(t *testing.T) {
	_, err := NewJobScheduler(newExpiryService(t), nil, SchedulerConfig{})
	assert.Error(t, err)
}

type countingStore struct {
	caching.IntakeStore
	evictions atomic.Int32
}

func (c *countingStore) EvictExpired(ctx context.Context) (int, error) {
	c.evictions.Add(1)
	return c.IntakeStore.EvictExpired(ctx)
}

func TestJobScheduler_EvictsAbandonedIntakes(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{IntakeStore: caching.NewMemoryIntakeStore(time.Millisecond, nil)}
	methods := []models.PaymentMethod{{ID: "A", Label: "A", Destination: "x"}, {ID: "B", Label: "B", Destination: "y"}}
	intake := services.NewIntakeService(store, methods, "1", discardNotifier{})

	_, err := intake.StartPurchase(ctx, models.Buyer{ID: "42"})
	require.NoError(t, err)

	js, err := NewJobScheduler(newExpiryService(t), intake, SchedulerConfig{
		SweepInterval: time.Hour,
		EvictInterval: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	js.Start()
	defer func() { assert.NoError(t, js.Stop()) }()

	assert.Eventually(t, func() bool {
		return store.evictions.Load() > 0
	}, 2*time.Second, 10*time.Millisecond)
}
