package handlers

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"vipbot/internal/models"
	"vipbot/internal/services"
)

const (
	msgWelcome         = "👋 Welcome! Send /buy to get VIP access, /status to see your remaining days."
	msgNoMethods       = "Purchases are not available right now. Please try again later."
	msgChooseMethod    = "💳 Choose a payment method:"
	msgSendScreenshot  = "📸 Please send a screenshot of your payment."
	msgNoIntake        = "Send /buy first, then the payment screenshot."
	msgProofReceived   = "✅ Screenshot received. The admin will confirm your payment shortly."
	msgProofFailed     = "⚠️ We could not forward your screenshot. Please send it again."
	msgUnknownMethod   = "That payment method is no longer available. Send /buy to start again."
	msgNotVIP          = "You do not have VIP access. Send /buy to get it."
	msgCancelled       = "Purchase cancelled."
	msgNothingToCancel = "There is no purchase in progress."
	msgTryAgain        = "Something went wrong. Please try again."
	msgUnknownCommand  = "Unknown command. Send /start for help."

	usageGrant  = "Usage: /grant <subscriberId> <days>"
	usageExtend = "Usage: /extend <subscriberId> <days>"
	usageReduce = "Usage: /reduce <subscriberId> <days>"
	usageRemove = "Usage: /remove <subscriberId>"
	usageExport = "Usage: /export [json|lines]"
	usageImport = "Usage: /import <payload> (id:days lines or JSON), or attach a file with /import as caption"
)

// maxImportErrors caps how many skipped entries are echoed back to the operator.
const maxImportErrors = 5

func formatExpiry(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04") + " UTC"
}

func paymentInstructions(method models.PaymentMethod) string {
	return fmt.Sprintf("💳 %s\nSend the payment to:\n%s\n\n%s", method.Label, method.Destination, msgSendScreenshot)
}

// methodKeyboard lays out one payment method per row.
func methodKeyboard(methods []models.PaymentMethod) *models.Keyboard {
	kb := &models.Keyboard{}
	for _, m := range methods {
		kb.Rows = append(kb.Rows, []models.KeyboardButton{{
			Label:      m.Label,
			CallbackID: services.MethodCallbackPrefix + m.ID,
		}})
	}
	return kb
}

func importSummary(result *models.ImportResult, parseErrors []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📥 Imported %d of %d entries.", result.RecordsImported, result.RecordsProcessed+len(parseErrors))
	skipped := append(append([]string(nil), parseErrors...), result.Errors...)
	for i, e := range skipped {
		if i == maxImportErrors {
			fmt.Fprintf(&b, "\n… and %d more skipped", len(skipped)-maxImportErrors)
			break
		}
		b.WriteString("\n• " + e)
	}
	return b.String()
}

// maxMessageLength keeps replies under the gateway's per-message limit.
const maxMessageLength = 4000

// splitMessage breaks text into chunks of at most limit bytes, cutting on line
// boundaries where possible.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	var b strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			if b.Len() > 0 {
				chunks = append(chunks, b.String())
				b.Reset()
			}
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if b.Len()+len(line) > limit {
			chunks = append(chunks, b.String())
			b.Reset()
		}
		b.WriteString(line)
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}
