package entities

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrInvalidTransition = errors.New("illegal status transition")
	ErrFraudDetected     = errors.New("fraud detected")
)

type PaymentType string

const (
	PaymentTypeCard PaymentType = "CARD"
	PaymentTypeBank PaymentType = "BANK"
)

type PaymentStatus string

const (
	StatusPending   PaymentStatus = "PENDING"
	StatusSuccess   PaymentStatus = "SUCCESS"
	StatusFailed    PaymentStatus = "FAILED"
	StatusCancelled PaymentStatus = "CANCELLED"
	StatusRefund    PaymentStatus = "REFUND"
)

// statusTransitions is the single source of truth for legal status changes.
// Every status writer goes through Payment.TransitionTo, there is no other
// mutation path.
var statusTransitions = map[PaymentStatus][]PaymentStatus{
	StatusPending:   {StatusSuccess, StatusFailed, StatusCancelled},
	StatusFailed:    {StatusCancelled},
	StatusSuccess:   {StatusRefund},
	StatusCancelled: {},
	StatusRefund:    {},
}

func ParseStatus(s string) (PaymentStatus, error) {
	status := PaymentStatus(strings.ToUpper(s))
	if _, ok := statusTransitions[status]; !ok {
		return "", fmt.Errorf("unknown payment status: %s", s)
	}
	return status, nil
}

func (s PaymentStatus) CanTransitionTo(to PaymentStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

type Payment struct {
	PaymentID      uuid.UUID       `json:"payment_id" db:"payment_id"`
	IdempotencyKey string          `json:"idempotency_key" db:"idempotency_key"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	Currency       string          `json:"currency" db:"currency"`
	PaymentType    PaymentType     `json:"payment_type" db:"payment_type"`
	Status         PaymentStatus   `json:"status" db:"status"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`

	CardDetails *CardDetails `json:"card_details,omitempty" db:"-"`
	BankDetails *BankDetails `json:"bank_details,omitempty" db:"-"`
}

// TransitionTo mutates the status if the transition is legal and advances
// UpdatedAt.
func (p *Payment) TransitionTo(to PaymentStatus, now time.Time) error {
	if !p.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, to)
	}

	p.Status = to
	p.UpdatedAt = now
	return nil
}

type CardDetails struct {
	PaymentID      uuid.UUID `json:"-" db:"payment_id"`
	CardNumber     string    `json:"card_number" db:"card_number"`
	CardHolderName string    `json:"card_holder_name" db:"card_holder_name"`
	ExpiryMonth    int       `json:"expiry_month" db:"expiry_month"`
	ExpiryYear     int       `json:"expiry_year" db:"expiry_year"`
}

type BankDetails struct {
	PaymentID         uuid.UUID `json:"-" db:"payment_id"`
	AccountNumber     string    `json:"account_number" db:"account_number"`
	BSB               string    `json:"bsb" db:"bsb"`
	AccountHolderName string    `json:"account_holder_name" db:"account_holder_name"`
	BankName          string    `json:"bank_name,omitempty" db:"bank_name"`
}

// MaskCardNumber keeps the last 4 digits only. Full numbers are never stored.
func MaskCardNumber(cardNumber string) string {
	if len(cardNumber) < 4 {
		return "**** **** **** ****"
	}
	return "**** **** **** " + cardNumber[len(cardNumber)-4:]
}

type DeadLetter struct {
	ID          int64     `json:"id" db:"dead_letter_id"`
	PaymentID   uuid.UUID `json:"payment_id" db:"payment_id"`
	MessageUUID string    `json:"message_uuid" db:"message_uuid"`
	Reason      string    `json:"reason" db:"reason"`
	Topic       string    `json:"topic" db:"topic"`
	Handler     string    `json:"handler" db:"handler"`
	ReceivedAt  time.Time `json:"received_at" db:"received_at"`
}
