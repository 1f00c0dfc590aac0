package entities_test

import (
	"testing"
	"time"

	"payments/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	testCases := []struct {
		from    entities.PaymentStatus
		to      entities.PaymentStatus
		allowed bool
	}{
		{entities.StatusPending, entities.StatusSuccess, true},
		{entities.StatusPending, entities.StatusFailed, true},
		{entities.StatusPending, entities.StatusCancelled, true},
		{entities.StatusPending, entities.StatusRefund, false},
		{entities.StatusFailed, entities.StatusCancelled, true},
		{entities.StatusFailed, entities.StatusSuccess, false},
		{entities.StatusSuccess, entities.StatusRefund, true},
		{entities.StatusSuccess, entities.StatusCancelled, false},
		{entities.StatusCancelled, entities.StatusPending, false},
		{entities.StatusCancelled, entities.StatusSuccess, false},
		{entities.StatusRefund, entities.StatusSuccess, false},
	}

	for _, tc := range testCases {
		assert.Equal(
			t,
			tc.allowed,
			tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to,
		)
	}
}

func TestTransitionToUpdatesTimestamp(t *testing.T) {
	created := time.Now().UTC().Add(-time.Minute)
	payment := entities.Payment{
		Status:    entities.StatusPending,
		CreatedAt: created,
		UpdatedAt: created,
	}

	now := time.Now().UTC()
	err := payment.TransitionTo(entities.StatusSuccess, now)
	require.NoError(t, err)

	assert.Equal(t, entities.StatusSuccess, payment.Status)
	assert.Equal(t, now, payment.UpdatedAt)
	assert.Equal(t, created, payment.CreatedAt)
}

func TestCancellingSettledPaymentIsRejected(t *testing.T) {
	payment := entities.Payment{
		Status:    entities.StatusSuccess,
		UpdatedAt: time.Now().UTC(),
	}
	before := payment.UpdatedAt

	err := payment.TransitionTo(entities.StatusCancelled, time.Now().UTC())

	require.ErrorIs(t, err, entities.ErrInvalidTransition)
	assert.Equal(t, entities.StatusSuccess, payment.Status)
	assert.Equal(t, before, payment.UpdatedAt)
}

func TestParseStatus(t *testing.T) {
	status, err := entities.ParseStatus("cancelled")
	require.NoError(t, err)
	assert.Equal(t, entities.StatusCancelled, status)

	_, err = entities.ParseStatus("SETTLED")
	assert.Error(t, err)
}

func TestMaskCardNumber(t *testing.T) {
	assert.Equal(t, "**** **** **** 1111", entities.MaskCardNumber("4111111111111111"))
	assert.Equal(t, "**** **** **** ****", entities.MaskCardNumber("41"))
}

func TestIsPermanent(t *testing.T) {
	assert.False(t, entities.IsPermanent(assert.AnError))
	assert.True(t, entities.IsPermanent(entities.NewPermanentError(assert.AnError)))

	wrapped := entities.NewPermanentError(entities.ErrFraudDetected)
	assert.ErrorIs(t, wrapped, entities.ErrFraudDetected)
}
