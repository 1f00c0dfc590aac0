package event

import (
	"context"

	"payments/entities"

	"github.com/google/uuid"
)

type PaymentRepository interface {
	Settle(
		ctx context.Context,
		paymentID uuid.UUID,
		decide func(entities.Payment) (entities.PaymentStatus, *entities.DeadLetter),
	) (entities.Payment, bool, error)
}

type FraudChecker interface {
	IsFraudulent(ctx context.Context, payment entities.Payment) bool
}

type Handler struct {
	paymentRepo  PaymentRepository
	fraudChecker FraudChecker
}

func NewHandler(paymentRepo PaymentRepository, fraudChecker FraudChecker) Handler {
	if paymentRepo == nil {
		panic("missing paymentRepo")
	}
	if fraudChecker == nil {
		panic("missing fraudChecker")
	}
	return Handler{
		paymentRepo:  paymentRepo,
		fraudChecker: fraudChecker,
	}
}
