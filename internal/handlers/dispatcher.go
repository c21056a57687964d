package handlers

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"vipbot/internal/common"
	"vipbot/internal/middleware"
	"vipbot/internal/models"
	"vipbot/internal/services"

	"github.com/rs/zerolog/log"
)

type commandRoute struct {
	handler middleware.CommandHandler
	// usage is appended to validation errors; empty for buyer commands, which
	// reply on their own.
	usage    string
	operator bool
}

// Dispatcher routes inbound gateway events to the operator and buyer handlers.
type Dispatcher struct {
	buyer    *BuyerHandlers
	notifier services.Notifier
	routes   map[string]commandRoute
}

// NewDispatcher registers every command. Operator commands run behind the guard.
func NewDispatcher(operator *OperatorHandlers, buyer *BuyerHandlers, guard *middleware.OperatorGuard, notifier services.Notifier) *Dispatcher {
	d := &Dispatcher{
		buyer:    buyer,
		notifier: notifier,
		routes:   make(map[string]commandRoute),
	}

	op := func(h middleware.CommandHandler, usage string, names ...string) {
		wrapped := middleware.Chain(h, middleware.AuditCommands(), guard.RequireOperator())
		for _, name := range names {
			d.routes[name] = commandRoute{handler: wrapped, usage: usage, operator: true}
		}
	}
	op(operator.Grant, usageGrant, "grant", "addvip")
	op(operator.Extend, usageExtend, "extend")
	op(operator.Reduce, usageReduce, "reduce", "reducevip")
	op(operator.Remove, usageRemove, "remove", "removevip")
	op(operator.List, "", "list", "viplist", "backup")
	op(operator.Export, usageExport, "export")
	op(operator.Import, usageImport, "import", "importlist")

	for name, h := range map[string]middleware.CommandHandler{
		"start":  buyer.Start,
		"help":   buyer.Start,
		"buy":    buyer.Buy,
		"status": buyer.Status,
		"cancel": buyer.Cancel,
	} {
		d.routes[name] = commandRoute{handler: middleware.Chain(h, middleware.AuditCommands())}
	}
	return d
}

// Handle processes one event. Failures are logged and answered, never returned:
// a bad event must not stop the update loop.
func (d *Dispatcher) Handle(ctx context.Context, event models.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprint(r)).Bytes("stack", debug.Stack()).Msg("Event handler panicked")
		}
	}()

	switch ev := event.(type) {
	case models.CommandInvoked:
		d.handleCommand(ctx, ev)
	case models.TextReceived:
		d.logFailure(d.buyer.HandleText(ctx, ev), "text", ev.From.ID)
	case models.PhotoReceived:
		d.logFailure(d.buyer.HandlePhoto(ctx, ev), "photo", ev.From.ID)
	case models.ButtonPressed:
		d.logFailure(d.buyer.HandleButton(ctx, ev), "button", ev.From.ID)
	default:
		log.Debug().Str("type", fmt.Sprintf("%T", event)).Msg("Ignoring unsupported event")
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, cmd models.CommandInvoked) {
	route, ok := d.routes[strings.ToLower(cmd.Name)]
	if !ok {
		services.NotifyBestEffort(ctx, d.notifier, cmd.From.ID, msgUnknownCommand)
		return
	}

	err := route.handler(ctx, cmd)
	if err == nil || !route.operator {
		return
	}
	// Non-operators get no answer at all.
	if errors.Is(err, common.ErrNotAuthorized) {
		return
	}
	services.NotifyBestEffort(ctx, d.notifier, cmd.From.ID, operatorErrorReply(err, route.usage))
}

// operatorErrorReply turns a failed operator command into a one-line explanation.
func operatorErrorReply(err error, usage string) string {
	switch {
	case errors.Is(err, common.ErrValidation):
		msg := "❌ " + strings.TrimPrefix(err.Error(), common.ErrValidation.Error()+": ")
		if usage != "" {
			msg += ". " + usage
		}
		return msg
	case errors.Is(err, common.ErrNotFound):
		return "❌ No VIP record for " + strings.TrimPrefix(err.Error(), common.ErrNotFound.Error()+": ")
	case errors.Is(err, common.ErrIOFailure):
		return "❌ Could not save the VIP list, nothing was changed."
	case errors.Is(err, common.ErrDelivery):
		return "❌ Could not download the attached file."
	default:
		return "❌ Command failed: " + err.Error()
	}
}

func (d *Dispatcher) logFailure(err error, kind, senderID string) {
	if err == nil {
		return
	}
	log.Debug().Err(err).Str("event", kind).Str("sender_id", senderID).Msg("Event rejected")
}
