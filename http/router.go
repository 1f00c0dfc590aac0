package http

import (
	"net/http"

	libHttp "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewHttpRouter(
	eventBus *cqrs.EventBus,
	paymentRepo PaymentRepository,
	deadLetterRepo DeadLetterRepository,
) *echo.Echo {
	e := libHttp.NewEcho()

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	handler := Handler{
		eventBus:       eventBus,
		paymentRepo:    paymentRepo,
		deadLetterRepo: deadLetterRepo,
	}

	e.POST("/payments/card", handler.PostCardPayment)
	e.POST("/payments/bank", handler.PostBankPayment)
	e.GET("/payments", handler.GetPayments)
	e.GET("/payments/:payment_id", handler.GetPayment)
	e.PUT("/payments/:payment_id/status", handler.PutPaymentStatus)
	e.PATCH("/payments/:payment_id/cancel", handler.PatchPaymentCancel)

	e.GET("/dead-letters", handler.GetDeadLetters)
	e.POST("/dead-letters/replay", handler.PostDeadLettersReplay)

	return e
}
