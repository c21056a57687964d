package middleware

import (
	"context"
	"strings"

	"vipbot/internal/common"
	"vipbot/internal/models"

	"github.com/rs/zerolog/log"
)

// CommandHandler handles one chat command.
type CommandHandler func(ctx context.Context, cmd models.CommandInvoked) error

// CommandMiddleware wraps a CommandHandler.
type CommandMiddleware func(next CommandHandler) CommandHandler

// Chain applies middlewares so that the first one listed runs outermost.
func Chain(h CommandHandler, mws ...CommandMiddleware) CommandHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

type OperatorGuard struct {
	operatorID string
}

func NewOperatorGuard(operatorID string) *OperatorGuard {
	return &OperatorGuard{operatorID: strings.TrimSpace(operatorID)}
}

// IsOperator reports whether senderID is the configured operator.
func (g *OperatorGuard) IsOperator(senderID string) bool {
	return g.operatorID != "" && senderID == g.operatorID
}

// RequireOperator rejects the command with ErrNotAuthorized unless it was sent by
// the operator. The wrapped handler never runs for anyone else.
func (g *OperatorGuard) RequireOperator() CommandMiddleware {
	return func(next CommandHandler) CommandHandler {
		return func(ctx context.Context, cmd models.CommandInvoked) error {
			if !g.IsOperator(cmd.From.ID) {
				log.Warn().
					Str("command", cmd.Name).
					Str("sender_id", cmd.From.ID).
					Msg("Rejected operator command from unauthorized sender")
				return common.ErrNotAuthorized
			}
			return next(ctx, cmd)
		}
	}
}
