package http

import (
	"context"
	"errors"
	"net/http"

	"payments/entities"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	eventBus       *cqrs.EventBus
	paymentRepo    PaymentRepository
	deadLetterRepo DeadLetterRepository
}

type PaymentRepository interface {
	CreateOrGet(ctx context.Context, payment entities.Payment) (entities.Payment, bool, error)
	GetByID(ctx context.Context, paymentID uuid.UUID) (entities.Payment, error)
	List(ctx context.Context) ([]entities.Payment, error)
	UpdateStatus(ctx context.Context, paymentID uuid.UUID, newStatus entities.PaymentStatus) (entities.Payment, error)
}

type DeadLetterRepository interface {
	List(ctx context.Context) ([]entities.DeadLetter, error)
	Drain(ctx context.Context) ([]entities.DeadLetter, error)
}

func domainError(err error) error {
	switch {
	case errors.Is(err, entities.ErrPaymentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "payment not found")
	case errors.Is(err, entities.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return err
}
