package middleware

import (
	"context"
	"errors"
	"testing"

	"vipbot/internal/common"
	"vipbot/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestOperatorGuard(t *testing.T) {
	guard := NewOperatorGuard(" 999 ")
	assert.True(t, guard.IsOperator("999"))
	assert.False(t, guard.IsOperator("42"))
	assert.False(t, guard.IsOperator(""))

	assert.False(t, NewOperatorGuard("").IsOperator(""))
}

func TestRequireOperator(t *testing.T) {
	calls := 0
	handler := NewOperatorGuard("999").RequireOperator()(func(ctx context.Context, cmd models.CommandInvoked) error {
		calls++
		return nil
	})

	err := handler(context.Background(), models.CommandInvoked{Name: "grant", From: models.Buyer{ID: "42"}})
	assert.ErrorIs(t, err, common.ErrNotAuthorized)
	assert.Equal(t, 0, calls)

	err = handler(context.Background(), models.CommandInvoked{Name: "grant", From: models.Buyer{ID: "999"}})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) CommandMiddleware {
		return func(next CommandHandler) CommandHandler {
			return func(ctx context.Context, cmd models.CommandInvoked) error {
				order = append(order, name)
				return next(ctx, cmd)
			}
		}
	}

	h := Chain(func(ctx context.Context, cmd models.CommandInvoked) error {
		order = append(order, "handler")
		return nil
	}, tag("outer"), tag("inner"))

	assert.NoError(t, h(context.Background(), models.CommandInvoked{}))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestAuditCommandsPassesErrorsThrough(t *testing.T) {
	boom := errors.New("boom")
	h := Chain(func(ctx context.Context, cmd models.CommandInvoked) error {
		return boom
	}, AuditCommands())
	assert.ErrorIs(t, h(context.Background(), models.CommandInvoked{Name: "list"}), boom)

	assert.True(t, expectedRejection(common.ValidationError("days", "must be positive")))
	assert.True(t, expectedRejection(common.NotFoundError("42")))
	assert.True(t, expectedRejection(common.ErrNotAuthorized))
	assert.False(t, expectedRejection(common.IOError("grant", boom)))
	assert.False(t, expectedRejection(boom))
}
