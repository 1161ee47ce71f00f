package fiatbridge

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		kind Kind
	}{
		{ErrNotOwner, KindAuthorization},
		{ErrNotTransactionOwner, KindAuthorization},
		{ErrDurationTooLong, KindValidation},
		{ErrFeeTooHigh, KindValidation},
		{ErrAmountSpentExceedsLocked, KindValidation},
		{ErrPaused, KindState},
		{ErrLockNotExpired, KindState},
		{ErrAlreadyProcessed, KindState},
		{ErrSettingsNotFound, KindStore},
		{fmt.Errorf("wrapped: %w", ErrLockExpired), KindState},
		{errors.New("plain"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "fiatbridge: transaction already processed", ErrAlreadyProcessed.Error())
	assert.Equal(t, "fiatbridge: amount must be greater than zero", ErrAmountMustBePositive.Error())
	assert.Equal(t, "fiatbridge: not transaction owner", ErrNotTransactionOwner.Error())
}

func TestTransferError(t *testing.T) {
	cause := errors.New("execution reverted")
	err := fmt.Errorf("initiate: %w", &TransferError{
		Op:    "transfer_from",
		Token: common.HexToAddress("0x01"),
		Err:   cause,
	})

	assert.ErrorIs(t, err, ErrTransferFailed)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsTransferError(err))
	assert.False(t, IsStateError(err))
	assert.Contains(t, err.Error(), "transfer_from")
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrTransactionNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("x: %w", ErrPermissionNotFound)))
	assert.False(t, IsNotFound(ErrAlreadyProcessed))
}
