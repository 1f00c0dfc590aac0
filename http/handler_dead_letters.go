package http

import (
	"fmt"
	"net/http"

	"payments/entities"
	"payments/metrics"

	"github.com/labstack/echo/v4"
)

func (h Handler) GetDeadLetters(c echo.Context) error {
	letters, err := h.deadLetterRepo.List(c.Request().Context())
	if err != nil {
		return fmt.Errorf("failed to list dead letters: %w", err)
	}

	return c.JSON(http.StatusOK, letters)
}

// PostDeadLettersReplay drains the dead-letter store and re-submits each
// payment for processing. Manual trigger only; replay relies on the
// consumer's PENDING check for safety, not on any ordering.
func (h Handler) PostDeadLettersReplay(c echo.Context) error {
	ctx := c.Request().Context()

	letters, err := h.deadLetterRepo.Drain(ctx)
	if err != nil {
		return fmt.Errorf("failed to drain dead letters: %w", err)
	}

	for _, letter := range letters {
		err := h.eventBus.Publish(ctx, entities.PaymentCreated_v1{
			Header:    entities.NewEventHeader(),
			PaymentID: letter.PaymentID,
		})
		if err != nil {
			return fmt.Errorf("failed to replay payment %s: %w", letter.PaymentID, err)
		}
		metrics.PaymentsReplayed.Inc()
	}

	return c.JSON(http.StatusOK, map[string]int{"replayed": len(letters)})
}
