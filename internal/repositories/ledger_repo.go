package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"vipbot/internal/models"

	"github.com/rs/zerolog/log"
)

// LedgerRepository persists the whole ledger. It has no business rules and does
// not coordinate concurrent writers; callers serialize mutations.
type LedgerRepository interface {
	// Load returns the persisted ledger. Missing, unreadable or malformed content
	// yields an empty ledger.
	Load(ctx context.Context) *models.Ledger
	// Save replaces the persisted ledger.
	Save(ctx context.Context, ledger *models.Ledger) error
	// Ping checks that the backing medium is usable.
	Ping(ctx context.Context) error
}

// LedgerDocument is the on-disk shape of the ledger.
type LedgerDocument struct {
	Version     int               `json:"version"`
	Subscribers map[string]string `json:"subscribers"`
}

type fileLedgerRepo struct {
	path string
}

// NewFileLedgerRepo returns a repository backed by a single JSON file.
func NewFileLedgerRepo(path string) LedgerRepository {
	return &fileLedgerRepo{path: path}
}

func (r *fileLedgerRepo) Load(ctx context.Context) *models.Ledger {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", r.path).Msg("Ledger unreadable, starting from an empty ledger")
		}
		return models.NewLedger()
	}

	ledger, err := DecodeLedger(data)
	if err != nil {
		log.Warn().Err(err).Str("path", r.path).Msg("Ledger malformed, starting from an empty ledger")
		return models.NewLedger()
	}
	return ledger
}

func (r *fileLedgerRepo) Save(ctx context.Context, ledger *models.Ledger) error {
	data, err := EncodeLedger(ledger)
	if err != nil {
		return err
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

func (r *fileLedgerRepo) Ping(ctx context.Context) error {
	info, err := os.Stat(filepath.Dir(r.path))
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", filepath.Dir(r.path))
	}
	return nil
}

// EncodeLedger renders the canonical versioned document.
func EncodeLedger(ledger *models.Ledger) ([]byte, error) {
	doc := LedgerDocument{
		Version:     models.LedgerVersion,
		Subscribers: make(map[string]string, ledger.Len()),
	}
	for _, rec := range ledger.Records() {
		doc.Subscribers[rec.SubscriberID] = models.FormatTimestamp(rec.ExpiresAt)
	}
	return json.MarshalIndent(doc, "", "  ")
}

// DecodeLedger parses either the versioned document or the legacy flat
// object of subscriber -> timestamp. Entries with unparsable timestamps are dropped.
func DecodeLedger(data []byte) (*models.Ledger, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	entries := raw
	if _, versioned := raw["version"]; versioned {
		var doc struct {
			Version     int                        `json:"version"`
			Subscribers map[string]json.RawMessage `json:"subscribers"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		if doc.Version > models.LedgerVersion {
			return nil, fmt.Errorf("unsupported ledger version %d", doc.Version)
		}
		entries = doc.Subscribers
	}

	parsed := make(map[string]time.Time, len(entries))
	for id, value := range entries {
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			log.Warn().Str("subscriber_id", id).Msg("Skipping ledger entry with non-string expiry")
			continue
		}
		expiresAt, err := models.ParseTimestamp(s)
		if err != nil {
			log.Warn().Str("subscriber_id", id).Str("expires_at", s).Msg("Skipping ledger entry with invalid expiry")
			continue
		}
		parsed[id] = expiresAt
	}
	return models.LedgerFromMap(parsed), nil
}
