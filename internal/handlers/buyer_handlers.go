package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vipbot/internal/common"
	"vipbot/internal/models"
	"vipbot/internal/services"

	"github.com/rs/zerolog/log"
)

// BuyerHandlers drives the purchase flow and the buyer's own status queries.
// Every rejection is answered with a corrective instruction.
type BuyerHandlers struct {
	intake        services.IntakeService
	subscriptions services.SubscriptionService
	notifier      services.Notifier
}

func NewBuyerHandlers(intake services.IntakeService, subscriptions services.SubscriptionService, notifier services.Notifier) *BuyerHandlers {
	return &BuyerHandlers{
		intake:        intake,
		subscriptions: subscriptions,
		notifier:      notifier,
	}
}

func (h *BuyerHandlers) reply(ctx context.Context, buyer models.Buyer, text string) {
	services.NotifyBestEffort(ctx, h.notifier, buyer.ID, text)
}

func (h *BuyerHandlers) Start(ctx context.Context, cmd models.CommandInvoked) error {
	h.reply(ctx, cmd.From, msgWelcome)
	return nil
}

// Buy begins a fresh intake, discarding any in-flight one.
func (h *BuyerHandlers) Buy(ctx context.Context, cmd models.CommandInvoked) error {
	start, err := h.intake.StartPurchase(ctx, cmd.From)
	if err != nil {
		if errors.Is(err, common.ErrNoPaymentMethods) {
			h.reply(ctx, cmd.From, msgNoMethods)
		} else {
			h.reply(ctx, cmd.From, msgTryAgain)
		}
		return err
	}

	if start.Selected != nil {
		h.reply(ctx, cmd.From, paymentInstructions(*start.Selected))
		return nil
	}
	if err := h.notifier.SendText(ctx, cmd.From.ID, msgChooseMethod, methodKeyboard(start.Methods)); err != nil {
		log.Warn().Err(err).Str("subscriber_id", cmd.From.ID).Msg("Failed to send payment methods")
	}
	return nil
}

func (h *BuyerHandlers) Status(ctx context.Context, cmd models.CommandInvoked) error {
	days, ok := h.subscriptions.DaysRemaining(ctx, cmd.From.ID)
	if !ok {
		h.reply(ctx, cmd.From, msgNotVIP)
		return nil
	}
	h.reply(ctx, cmd.From, fmt.Sprintf("⭐ You are VIP: %d days left.", days))
	return nil
}

func (h *BuyerHandlers) Cancel(ctx context.Context, cmd models.CommandInvoked) error {
	cancelled, err := h.intake.Cancel(ctx, cmd.From)
	if err != nil {
		h.reply(ctx, cmd.From, msgTryAgain)
		return err
	}
	if !cancelled {
		h.reply(ctx, cmd.From, msgNothingToCancel)
		return nil
	}
	h.reply(ctx, cmd.From, msgCancelled)
	return nil
}

// HandleButton selects the payment method behind an inline button.
func (h *BuyerHandlers) HandleButton(ctx context.Context, ev models.ButtonPressed) error {
	if !strings.HasPrefix(ev.CallbackID, services.MethodCallbackPrefix) {
		return nil
	}
	method, err := h.intake.SelectMethod(ctx, ev.From, ev.CallbackID)
	if err != nil {
		if errors.Is(err, common.ErrUnknownPaymentMethod) {
			h.reply(ctx, ev.From, msgUnknownMethod)
		} else {
			h.reply(ctx, ev.From, msgTryAgain)
		}
		return err
	}
	h.reply(ctx, ev.From, paymentInstructions(*method))
	return nil
}

// HandlePhoto forwards a payment screenshot when one is expected.
func (h *BuyerHandlers) HandlePhoto(ctx context.Context, ev models.PhotoReceived) error {
	_, err := h.intake.SubmitProof(ctx, ev.From, ev.FileHandle)
	switch {
	case err == nil:
		h.reply(ctx, ev.From, msgProofReceived)
	case errors.Is(err, common.ErrNoActiveIntake):
		h.reply(ctx, ev.From, msgNoIntake)
	case errors.Is(err, common.ErrDelivery):
		h.reply(ctx, ev.From, msgProofFailed)
	default:
		h.reply(ctx, ev.From, msgTryAgain)
	}
	return err
}

// HandleText rejects free text while a screenshot is expected and ignores it otherwise.
func (h *BuyerHandlers) HandleText(ctx context.Context, ev models.TextReceived) error {
	err := h.intake.HandleText(ctx, ev.From, ev.Text)
	if errors.Is(err, common.ErrProofRequired) {
		h.reply(ctx, ev.From, msgSendScreenshot)
	}
	return err
}
