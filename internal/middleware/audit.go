package middleware

import (
	"context"
	"errors"
	"time"

	"vipbot/internal/common"
	"vipbot/internal/models"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AuditCommands logs every command with its outcome. Validation and not-found
// rejections are expected operator mistakes and log at info; other failures at error.
func AuditCommands() CommandMiddleware {
	return func(next CommandHandler) CommandHandler {
		return func(ctx context.Context, cmd models.CommandInvoked) error {
			start := time.Now()
			err := next(ctx, cmd)

			event := log.Info()
			if err != nil && !expectedRejection(err) {
				event = log.Error()
			}
			event.
				Str("command", cmd.Name).
				Strs("args", cmd.Args).
				Str("sender_id", cmd.From.ID).
				Dur("duration", time.Since(start)).
				Func(func(e *zerolog.Event) {
					if err != nil {
						e.Err(err)
					}
				}).
				Msg("Command handled")
			return err
		}
	}
}

func expectedRejection(err error) bool {
	return errors.Is(err, common.ErrValidation) ||
		errors.Is(err, common.ErrNotFound) ||
		errors.Is(err, common.ErrNotAuthorized) ||
		errors.Is(err, common.ErrNoActiveIntake) ||
		errors.Is(err, common.ErrNoPaymentMethods)
}
