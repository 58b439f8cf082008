package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/pttech/commerce/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  *domain.Error
		want string
	}{
		{
			name: "message only",
			err:  &domain.Error{Code: domain.EINVALID, Message: "quantity must be positive"},
			want: "quantity must be positive",
		},
		{
			name: "op and message",
			err:  &domain.Error{Code: domain.ECONFLICT, Op: "order.cancel", Message: "order already cancelled"},
			want: "order.cancel: order already cancelled",
		},
		{
			name: "wrapped error",
			err: &domain.Error{
				Code:    domain.EINTERNAL,
				Op:      "order.create",
				Message: "failed to persist order",
				Err:     errors.New("connection reset"),
			},
			want: "order.create: failed to persist order: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "", domain.ErrorCode(nil))
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(domain.ErrDiscountAlreadyUsed))
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(errors.New("plain")))

	// Codes survive wrapping with fmt.Errorf.
	wrapped := fmt.Errorf("creating order: %w", domain.ErrOrderNotFound)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(wrapped))
	assert.True(t, domain.IsCode(wrapped, domain.ENOTFOUND))
}

func TestErrorMessageHidesInternals(t *testing.T) {
	internal := domain.Internal(errors.New("dial tcp: refused"), "order.create", "failed to persist order")
	msg := domain.ErrorMessage(internal)
	assert.NotContains(t, msg, "dial tcp")

	visible := domain.Conflict("order.cancel", "order is not in a cancellable state")
	assert.Equal(t, "order is not in a cancellable state", domain.ErrorMessage(visible))
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, domain.WrapError(nil, domain.EINTERNAL, "op", "msg"))

	base := errors.New("boom")
	err := domain.WrapError(base, domain.EEXTERNAL, "payment.url", "gateway unavailable")
	assert.Equal(t, domain.EEXTERNAL, domain.ErrorCode(err))
	assert.ErrorIs(t, err, base)
}
