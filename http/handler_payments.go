package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"payments/entities"
	"payments/metrics"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type cardPaymentRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	CardNumber     string          `json:"card_number"`
	CardHolderName string          `json:"card_holder_name"`
	ExpiryMonth    int             `json:"expiry_month"`
	ExpiryYear     int             `json:"expiry_year"`
	CVV            string          `json:"cvv"`
}

type bankPaymentRequest struct {
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	AccountNumber     string          `json:"account_number"`
	BSB               string          `json:"bsb"`
	AccountHolderName string          `json:"account_holder_name"`
	BankName          string          `json:"bank_name"`
}

type paymentResponse struct {
	PaymentID uuid.UUID              `json:"payment_id"`
	Status    entities.PaymentStatus `json:"status"`
	Amount    decimal.Decimal        `json:"amount"`
	Currency  string                 `json:"currency"`
	CreatedAt time.Time              `json:"created_at"`
}

func newPaymentResponse(payment entities.Payment) paymentResponse {
	return paymentResponse{
		PaymentID: payment.PaymentID,
		Status:    payment.Status,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		CreatedAt: payment.CreatedAt,
	}
}

func (h Handler) PostCardPayment(c echo.Context) error {
	var request cardPaymentRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	idempotencyKey, err := submissionPreconditions(c, request.Amount)
	if err != nil {
		return err
	}

	// the full card number never reaches the store, the CVV is dropped here
	payment := newPendingPayment(idempotencyKey, request.Amount, request.Currency, entities.PaymentTypeCard)
	payment.CardDetails = &entities.CardDetails{
		CardNumber:     entities.MaskCardNumber(request.CardNumber),
		CardHolderName: request.CardHolderName,
		ExpiryMonth:    request.ExpiryMonth,
		ExpiryYear:     request.ExpiryYear,
	}

	return h.submit(c, payment)
}

func (h Handler) PostBankPayment(c echo.Context) error {
	var request bankPaymentRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	idempotencyKey, err := submissionPreconditions(c, request.Amount)
	if err != nil {
		return err
	}

	payment := newPendingPayment(idempotencyKey, request.Amount, request.Currency, entities.PaymentTypeBank)
	payment.BankDetails = &entities.BankDetails{
		AccountNumber:     request.AccountNumber,
		BSB:               request.BSB,
		AccountHolderName: request.AccountHolderName,
		BankName:          request.BankName,
	}

	return h.submit(c, payment)
}

// submissionPreconditions rejects submissions before any store access:
// a blank idempotency key and a non-positive amount are caller errors,
// never retried and never published.
func submissionPreconditions(c echo.Context, amount decimal.Decimal) (string, error) {
	idempotencyKey := c.Request().Header.Get("Idempotency-Key")
	if strings.TrimSpace(idempotencyKey) == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "Idempotency-Key header is required")
	}
	if !amount.IsPositive() {
		return "", echo.NewHTTPError(http.StatusBadRequest, "amount must be greater than zero")
	}
	return idempotencyKey, nil
}

func newPendingPayment(idempotencyKey string, amount decimal.Decimal, currency string, paymentType entities.PaymentType) entities.Payment {
	now := time.Now().UTC()
	return entities.Payment{
		PaymentID:      uuid.New(),
		IdempotencyKey: idempotencyKey,
		Amount:         amount,
		Currency:       currency,
		PaymentType:    paymentType,
		Status:         entities.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (h Handler) submit(c echo.Context, payment entities.Payment) error {
	stored, created, err := h.paymentRepo.CreateOrGet(c.Request().Context(), payment)
	if err != nil {
		return fmt.Errorf("failed to submit payment: %w", err)
	}
	if created {
		metrics.PaymentsCreated.Inc()
	}

	return c.JSON(http.StatusOK, newPaymentResponse(stored))
}

func (h Handler) GetPayment(c echo.Context) error {
	paymentID, err := uuid.Parse(c.Param("payment_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payment id")
	}

	payment, err := h.paymentRepo.GetByID(c.Request().Context(), paymentID)
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusOK, newPaymentResponse(payment))
}

func (h Handler) GetPayments(c echo.Context) error {
	payments, err := h.paymentRepo.List(c.Request().Context())
	if err != nil {
		return fmt.Errorf("failed to list payments: %w", err)
	}

	responses := make([]paymentResponse, 0, len(payments))
	for _, payment := range payments {
		responses = append(responses, newPaymentResponse(payment))
	}

	return c.JSON(http.StatusOK, responses)
}

func (h Handler) PutPaymentStatus(c echo.Context) error {
	paymentID, err := uuid.Parse(c.Param("payment_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payment id")
	}

	status, err := entities.ParseStatus(c.QueryParam("status"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	payment, err := h.paymentRepo.UpdateStatus(c.Request().Context(), paymentID, status)
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusOK, newPaymentResponse(payment))
}

func (h Handler) PatchPaymentCancel(c echo.Context) error {
	paymentID, err := uuid.Parse(c.Param("payment_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payment id")
	}

	payment, err := h.paymentRepo.UpdateStatus(c.Request().Context(), paymentID, entities.StatusCancelled)
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusOK, newPaymentResponse(payment))
}
