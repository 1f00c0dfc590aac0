package fraud

import (
	"context"
	"payments/entities"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Checker interface {
	IsFraudulent(ctx context.Context, payment entities.Payment) bool
}

// AmountThresholdChecker flags payments whose amount exceeds a fixed ceiling.
// Placeholder policy: the pipeline treats the checker as a pluggable
// predicate, not a fraud engine.
type AmountThresholdChecker struct {
	ceiling decimal.Decimal
}

func NewAmountThresholdChecker(ceiling decimal.Decimal) AmountThresholdChecker {
	return AmountThresholdChecker{
		ceiling: ceiling,
	}
}

func (c AmountThresholdChecker) IsFraudulent(ctx context.Context, payment entities.Payment) bool {
	fraud := payment.Amount.GreaterThan(c.ceiling)

	log.FromContext(ctx).WithFields(logrus.Fields{
		"payment_id": payment.PaymentID,
		"amount":     payment.Amount,
		"fraud":      fraud,
	}).Info("Fraud check done")

	return fraud
}
