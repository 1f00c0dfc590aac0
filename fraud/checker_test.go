package fraud_test

import (
	"context"
	"testing"

	"payments/entities"
	"payments/fraud"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAmountThresholdChecker(t *testing.T) {
	checker := fraud.NewAmountThresholdChecker(decimal.NewFromInt(15000))
	ctx := context.Background()

	testCases := []struct {
		amount string
		fraud  bool
	}{
		{"1.00", false},
		{"14999.99", false},
		{"15000.00", false},
		{"15000.01", true},
		{"100000.00", true},
	}

	for _, tc := range testCases {
		payment := entities.Payment{
			PaymentID: uuid.New(),
			Amount:    decimal.RequireFromString(tc.amount),
			Status:    entities.StatusPending,
		}

		assert.Equal(t, tc.fraud, checker.IsFraudulent(ctx, payment), "amount %s", tc.amount)
	}
}
