package handlers

import (
	"context"
	"fmt"
	"io"
	"strings"

	"vipbot/internal/common"
	"vipbot/internal/jobs"
	"vipbot/internal/models"
	"vipbot/internal/services"
)

// MaxImportSize bounds an attached import file.
const MaxImportSize = 1 << 20

// OperatorHandlers implements the ledger management commands.
type OperatorHandlers struct {
	subscriptions services.SubscriptionService
	notifier      services.Notifier
	fetcher       services.FileFetcher
}

// NewOperatorHandlers creates the operator command handlers. fetcher may be nil,
// in which case only inline imports are accepted.
func NewOperatorHandlers(subscriptions services.SubscriptionService, notifier services.Notifier, fetcher services.FileFetcher) *OperatorHandlers {
	return &OperatorHandlers{
		subscriptions: subscriptions,
		notifier:      notifier,
		fetcher:       fetcher,
	}
}

func (h *OperatorHandlers) reply(ctx context.Context, cmd models.CommandInvoked, text string) {
	for _, chunk := range splitMessage(text, maxMessageLength) {
		services.NotifyBestEffort(ctx, h.notifier, cmd.From.ID, chunk)
	}
}

// Grant handles /grant <id> <days>.
func (h *OperatorHandlers) Grant(ctx context.Context, cmd models.CommandInvoked) error {
	id, days, err := common.SubscriberAndDays(cmd.Args)
	if err != nil {
		return err
	}
	expiresAt, err := h.subscriptions.Grant(ctx, id, days)
	if err != nil {
		return err
	}
	h.reply(ctx, cmd, fmt.Sprintf("✅ %s granted VIP for %d days (until %s).", id, days, formatExpiry(expiresAt)))
	return nil
}

// Extend handles /extend <id> <days>.
func (h *OperatorHandlers) Extend(ctx context.Context, cmd models.CommandInvoked) error {
	id, days, err := common.SubscriberAndDays(cmd.Args)
	if err != nil {
		return err
	}
	expiresAt, err := h.subscriptions.Extend(ctx, id, days)
	if err != nil {
		return err
	}
	h.reply(ctx, cmd, fmt.Sprintf("✅ %s extended by %d days (until %s).", id, days, formatExpiry(expiresAt)))
	return nil
}

// Reduce handles /reduce <id> <days>.
func (h *OperatorHandlers) Reduce(ctx context.Context, cmd models.CommandInvoked) error {
	id, days, err := common.SubscriberAndDays(cmd.Args)
	if err != nil {
		return err
	}
	result, err := h.subscriptions.Reduce(ctx, id, days)
	if err != nil {
		return err
	}
	if result.Expired {
		h.reply(ctx, cmd, fmt.Sprintf("⚠️ Subscription expired for %s", id))
		return nil
	}
	h.reply(ctx, cmd, fmt.Sprintf("✅ %s reduced by %d days (until %s).", id, days, formatExpiry(result.ExpiresAt)))
	return nil
}

// Remove handles /remove <id>.
func (h *OperatorHandlers) Remove(ctx context.Context, cmd models.CommandInvoked) error {
	if len(cmd.Args) != 1 {
		return common.ValidationError("arguments", "expected <subscriberId>")
	}
	id, err := common.ValidateSubscriberID(cmd.Args[0])
	if err != nil {
		return err
	}
	if err := h.subscriptions.Remove(ctx, id); err != nil {
		return err
	}
	h.reply(ctx, cmd, fmt.Sprintf("🗑 %s removed from VIP.", id))
	return nil
}

// List handles /list.
func (h *OperatorHandlers) List(ctx context.Context, cmd models.CommandInvoked) error {
	h.reply(ctx, cmd, jobs.FormatReport(h.subscriptions.ListAll(ctx)))
	return nil
}

// Export handles /export [json|lines].
func (h *OperatorHandlers) Export(ctx context.Context, cmd models.CommandInvoked) error {
	format := "json"
	if len(cmd.Args) > 1 {
		return common.ValidationError("arguments", "expected at most one format")
	}
	if len(cmd.Args) == 1 {
		format = strings.ToLower(cmd.Args[0])
	}

	switch format {
	case "json":
		data, err := h.subscriptions.Export(ctx)
		if err != nil {
			return err
		}
		h.reply(ctx, cmd, string(data))
	case "lines":
		lines := jobs.FormatLines(h.subscriptions.ListAll(ctx))
		if lines == "" {
			lines = jobs.FormatReport(nil)
		}
		h.reply(ctx, cmd, lines)
	default:
		return common.ValidationError("format", "must be json or lines")
	}
	return nil
}

// Import handles /import with the payload inline or as an attached document.
func (h *OperatorHandlers) Import(ctx context.Context, cmd models.CommandInvoked) error {
	payload, err := h.importPayload(ctx, cmd)
	if err != nil {
		return err
	}

	entries, parseErrors := jobs.ParseImportPayload(payload)
	if len(entries) == 0 {
		if len(parseErrors) > 0 {
			return common.ValidationError("payload", parseErrors[0])
		}
		return common.ValidationError("payload", "contains no entries")
	}

	result, err := h.subscriptions.BulkImport(ctx, entries)
	if err != nil {
		return err
	}
	h.reply(ctx, cmd, importSummary(result, parseErrors))
	return nil
}

func (h *OperatorHandlers) importPayload(ctx context.Context, cmd models.CommandInvoked) ([]byte, error) {
	if strings.TrimSpace(cmd.Payload) != "" {
		return []byte(cmd.Payload), nil
	}
	if cmd.Attachment == "" {
		return nil, common.ValidationError("payload", "is required")
	}
	if h.fetcher == nil {
		return nil, common.ValidationError("payload", "attachments are not supported, paste it inline")
	}

	body, size, err := h.fetcher.FetchFile(ctx, cmd.Attachment)
	if err != nil {
		return nil, common.DeliveryError(cmd.From.ID, err)
	}
	defer body.Close()

	if size > MaxImportSize {
		return nil, common.ValidationError("file", "is larger than 1 MiB")
	}
	data, err := io.ReadAll(io.LimitReader(body, MaxImportSize+1))
	if err != nil {
		return nil, common.DeliveryError(cmd.From.ID, err)
	}
	if len(data) > MaxImportSize {
		return nil, common.ValidationError("file", "is larger than 1 MiB")
	}
	return data, nil
}
