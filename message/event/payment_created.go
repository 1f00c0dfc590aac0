package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payments/entities"
	"payments/metrics"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/message"
)

// ProcessPayment settles a created payment: clean payments go to SUCCESS,
// fraudulent ones to FAILED. Fraud is a business outcome, not a transient
// fault: the audit record is written to the dead-letter store in the same
// transaction as the status, then the delivery is acked.
func (h Handler) ProcessPayment(ctx context.Context, event *entities.PaymentCreated_v1) error {
	log.FromContext(ctx).WithField("payment_id", event.PaymentID).Info("Processing payment")

	payment, settled, err := h.paymentRepo.Settle(
		ctx,
		event.PaymentID,
		func(p entities.Payment) (entities.PaymentStatus, *entities.DeadLetter) {
			if h.fraudChecker.IsFraudulent(ctx, p) {
				return entities.StatusFailed, &entities.DeadLetter{
					PaymentID:   p.PaymentID,
					MessageUUID: event.Header.ID,
					Reason:      entities.ErrFraudDetected.Error(),
					Topic:       message.SubscribeTopicFromCtx(ctx),
					Handler:     message.HandlerNameFromCtx(ctx),
					ReceivedAt:  time.Now().UTC(),
				}
			}
			return entities.StatusSuccess, nil
		},
	)
	if errors.Is(err, entities.ErrPaymentNotFound) {
		return entities.NewPermanentError(fmt.Errorf("payment %s: %w", event.PaymentID, err))
	}
	if err != nil {
		return fmt.Errorf("could not settle payment %s: %w", event.PaymentID, err)
	}

	if !settled {
		// redelivery of an already settled payment, nothing to do
		log.FromContext(ctx).
			WithField("payment_id", event.PaymentID).
			WithField("status", payment.Status).
			Info("Payment already settled. Ignoring.")
		return nil
	}

	metrics.PaymentsSettled.WithLabelValues(string(payment.Status)).Inc()

	if payment.Status == entities.StatusFailed {
		metrics.PaymentsDeadLettered.Inc()
		log.FromContext(ctx).
			WithField("payment_id", event.PaymentID).
			Error("Payment failed fraud check, dead-lettered for audit")
	}

	return nil
}
