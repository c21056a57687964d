package repositories

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vipbot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLedgerRepo_SaveThenLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vip_data.json")
	repo := NewFileLedgerRepo(path)

	expiry := time.Date(2025, 5, 1, 8, 30, 0, 123, time.UTC)
	ledger := models.NewLedger()
	ledger.Put("1001", expiry)
	ledger.Put("alice", expiry.Add(time.Hour))
	require.NoError(t, repo.Save(ctx, ledger))

	loaded := repo.Load(ctx)
	assert.Equal(t, ledger.Map(), loaded.Map())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": 1`)
	assert.Contains(t, string(data), `"1001": "2025-05-01T08:30:00.000000123Z"`)

	leftovers, err := filepath.Glob(path + ".*.tmp")
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFileLedgerRepo_LoadDegradesToEmpty(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name    string
		content *string
	}{
		{name: "missing file", content: nil},
		{name: "malformed JSON", content: strPtr("{not json")},
		{name: "array instead of object", content: strPtr(`["a","b"]`)},
		{name: "newer version", content: strPtr(`{"version":99,"subscribers":{"a":"2030-01-01T00:00:00Z"}}`)},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "ledger"+string(rune('a'+i))+".json")
			if tt.content != nil {
				require.NoError(t, os.WriteFile(path, []byte(*tt.content), 0o600))
			}
			ledger := NewFileLedgerRepo(path).Load(ctx)
			require.NotNil(t, ledger)
			assert.Zero(t, ledger.Len())
		})
	}
}

func TestDecodeLedger_LegacyFlatMap(t *testing.T) {
	ledger, err := DecodeLedger([]byte(`{
		"alice": "2030-01-02T03:04:05.678901",
		"1001": "2030-01-02T03:04:05+02:00",
		"broken": "next tuesday",
		"numeric": 5
	}`))
	require.NoError(t, err)

	got := ledger.Map()
	assert.Len(t, got, 2)
	assert.Equal(t, time.Date(2030, 1, 2, 3, 4, 5, 678901000, time.UTC), got["alice"])
	assert.Equal(t, time.Date(2030, 1, 2, 1, 4, 5, 0, time.UTC), got["1001"])
}

func TestDecodeLedger_VersionedDocument(t *testing.T) {
	ledger, err := DecodeLedger([]byte(`{"version":1,"subscribers":{"b":"2030-01-01T00:00:00Z","a":"2030-02-01T00:00:00Z"}}`))
	require.NoError(t, err)

	records := ledger.Records()
	require.Len(t, records, 2)
	// Loaded ledgers iterate in sorted key order.
	assert.Equal(t, "a", records[0].SubscriberID)
	assert.Equal(t, "b", records[1].SubscriberID)
}

func TestFileLedgerRepo_SaveFailsWhenDirectoryMissing(t *testing.T) {
	repo := NewFileLedgerRepo(filepath.Join(t.TempDir(), "missing", "vip_data.json"))
	err := repo.Save(context.Background(), models.NewLedger())
	assert.Error(t, err)
	assert.Error(t, repo.Ping(context.Background()))
}

func TestFileLedgerRepo_Ping(t *testing.T) {
	repo := NewFileLedgerRepo(filepath.Join(t.TempDir(), "vip_data.json"))
	assert.NoError(t, repo.Ping(context.Background()))
}

func strPtr(s string) *string {
	return &s
}
