package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"payments/entities"
	"payments/message/event"
	"payments/message/outbox"

	"github.com/google/uuid"
)

const selectPayment = `
	SELECT payment_id, idempotency_key, amount, currency, payment_type, status, created_at, updated_at
	FROM payments`

type PaymentRepository struct {
	db *DB
}

func NewPaymentRepository(db *DB) PaymentRepository {
	if db == nil {
		panic("db is nil")
	}
	return PaymentRepository{
		db: db,
	}
}

// CreateOrGet stores the payment and its details atomically, publishing
// PaymentCreated through the transactional outbox in the same transaction.
// If another submission already holds the idempotency key, the stored
// payment is returned unchanged and nothing is written or published.
// The returned bool reports whether this call won the insert.
func (pr PaymentRepository) CreateOrGet(ctx context.Context, payment entities.Payment) (entities.Payment, bool, error) {
	existing, err := pr.GetByIdempotencyKey(ctx, payment.IdempotencyKey)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, entities.ErrPaymentNotFound) {
		return entities.Payment{}, false, err
	}

	err = pr.create(ctx, payment)
	if isErrorUniqueViolation(err) {
		// a concurrent submission won the race for the key; return the winner
		winner, readErr := pr.GetByIdempotencyKey(ctx, payment.IdempotencyKey)
		if readErr != nil {
			return entities.Payment{}, false, fmt.Errorf("could not read winning payment after conflict: %w", readErr)
		}
		return winner, false, nil
	}
	if err != nil {
		return entities.Payment{}, false, err
	}

	return payment, true, nil
}

func (pr PaymentRepository) create(ctx context.Context, payment entities.Payment) (err error) {
	tx, err := pr.db.Conn.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			rollbackErr := tx.Rollback()
			if rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				err = errors.Join(err, rollbackErr)
			}
			return
		}
		err = tx.Commit()
	}()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO
		    payments (payment_id, idempotency_key, amount, currency, payment_type, status, created_at, updated_at)
		VALUES
		    (:payment_id, :idempotency_key, :amount, :currency, :payment_type, :status, :created_at, :updated_at)
		`, payment)
	if err != nil {
		if isErrorUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("could not store payment: %w", err)
	}

	switch payment.PaymentType {
	case entities.PaymentTypeCard:
		if payment.CardDetails == nil {
			return fmt.Errorf("card payment %s has no card details", payment.PaymentID)
		}
		details := *payment.CardDetails
		details.PaymentID = payment.PaymentID
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO
			    card_payment_details (payment_id, card_number, card_holder_name, expiry_month, expiry_year)
			VALUES
			    (:payment_id, :card_number, :card_holder_name, :expiry_month, :expiry_year)
			`, details)
	case entities.PaymentTypeBank:
		if payment.BankDetails == nil {
			return fmt.Errorf("bank payment %s has no bank details", payment.PaymentID)
		}
		details := *payment.BankDetails
		details.PaymentID = payment.PaymentID
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO
			    bank_payment_details (payment_id, account_number, bsb, account_holder_name, bank_name)
			VALUES
			    (:payment_id, :account_number, :bsb, :account_holder_name, :bank_name)
			`, details)
	default:
		return fmt.Errorf("unknown payment type: %s", payment.PaymentType)
	}
	if err != nil {
		return fmt.Errorf("could not store payment details: %w", err)
	}

	outboxPublisher, err := outbox.NewPublisherForDb(ctx, tx)
	if err != nil {
		return fmt.Errorf("error creating event outbox publisher: %w", err)
	}
	err = event.NewBus(outboxPublisher).Publish(ctx, entities.PaymentCreated_v1{
		Header:    entities.NewEventHeaderWithIdempotencyKey(payment.IdempotencyKey),
		PaymentID: payment.PaymentID,
	})
	if err != nil {
		return fmt.Errorf("could not publish event: %w", err)
	}

	return nil
}

func (pr PaymentRepository) GetByID(ctx context.Context, paymentID uuid.UUID) (entities.Payment, error) {
	var payment entities.Payment
	err := pr.db.Conn.GetContext(ctx, &payment, selectPayment+` WHERE payment_id = $1`, paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Payment{}, entities.ErrPaymentNotFound
	}
	if err != nil {
		return entities.Payment{}, fmt.Errorf("could not get payment: %w", err)
	}

	err = pr.loadDetails(ctx, &payment)
	if err != nil {
		return entities.Payment{}, err
	}

	return payment, nil
}

func (pr PaymentRepository) GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (entities.Payment, error) {
	var payment entities.Payment
	err := pr.db.Conn.GetContext(ctx, &payment, selectPayment+` WHERE idempotency_key = $1`, idempotencyKey)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Payment{}, entities.ErrPaymentNotFound
	}
	if err != nil {
		return entities.Payment{}, fmt.Errorf("could not get payment by idempotency key: %w", err)
	}

	return payment, nil
}

func (pr PaymentRepository) loadDetails(ctx context.Context, payment *entities.Payment) error {
	switch payment.PaymentType {
	case entities.PaymentTypeCard:
		var details entities.CardDetails
		err := pr.db.Conn.GetContext(ctx, &details, `
			SELECT payment_id, card_number, card_holder_name, expiry_month, expiry_year
			FROM card_payment_details WHERE payment_id = $1`, payment.PaymentID)
		if err != nil {
			return fmt.Errorf("could not get card details: %w", err)
		}
		payment.CardDetails = &details
	case entities.PaymentTypeBank:
		var details entities.BankDetails
		err := pr.db.Conn.GetContext(ctx, &details, `
			SELECT payment_id, account_number, bsb, account_holder_name, bank_name
			FROM bank_payment_details WHERE payment_id = $1`, payment.PaymentID)
		if err != nil {
			return fmt.Errorf("could not get bank details: %w", err)
		}
		payment.BankDetails = &details
	}
	return nil
}

func (pr PaymentRepository) List(ctx context.Context) ([]entities.Payment, error) {
	var payments []entities.Payment
	err := pr.db.Conn.SelectContext(ctx, &payments, selectPayment+` ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("could not list payments: %w", err)
	}

	return payments, nil
}

// UpdateStatus re-reads the current status under a row lock and applies the
// transition table before writing, so a stale caller can never bypass the
// state machine.
func (pr PaymentRepository) UpdateStatus(ctx context.Context, paymentID uuid.UUID, newStatus entities.PaymentStatus) (payment entities.Payment, err error) {
	tx, err := pr.db.Conn.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable})
	if err != nil {
		return entities.Payment{}, fmt.Errorf("could not begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			rollbackErr := tx.Rollback()
			if rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				err = errors.Join(err, rollbackErr)
			}
			return
		}
		err = tx.Commit()
	}()

	err = tx.GetContext(ctx, &payment, selectPayment+` WHERE payment_id = $1 FOR UPDATE`, paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Payment{}, entities.ErrPaymentNotFound
	}
	if err != nil {
		return entities.Payment{}, fmt.Errorf("could not get payment: %w", err)
	}

	err = payment.TransitionTo(newStatus, time.Now().UTC())
	if err != nil {
		return payment, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE payments SET status = $1, updated_at = $2 WHERE payment_id = $3`,
		payment.Status, payment.UpdatedAt, paymentID)
	if err != nil {
		return payment, fmt.Errorf("could not update payment status: %w", err)
	}

	return payment, nil
}

// Settle runs the consumer's read-check-transition sequence as a single
// transaction. The row lock guarantees two redeliveries can never both
// observe PENDING. A payment that already left PENDING is returned with
// settled=false and nothing is written.
//
// When decide returns an audit record it is stored in the same transaction,
// so a crash between the status write and the audit write cannot lose it.
func (pr PaymentRepository) Settle(
	ctx context.Context,
	paymentID uuid.UUID,
	decide func(entities.Payment) (entities.PaymentStatus, *entities.DeadLetter),
) (payment entities.Payment, settled bool, err error) {
	tx, err := pr.db.Conn.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable})
	if err != nil {
		return entities.Payment{}, false, fmt.Errorf("could not begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			rollbackErr := tx.Rollback()
			if rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				err = errors.Join(err, rollbackErr)
			}
			return
		}
		err = tx.Commit()
	}()

	err = tx.GetContext(ctx, &payment, selectPayment+` WHERE payment_id = $1 FOR UPDATE`, paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Payment{}, false, entities.ErrPaymentNotFound
	}
	if err != nil {
		return entities.Payment{}, false, fmt.Errorf("could not get payment: %w", err)
	}

	if payment.Status != entities.StatusPending {
		return payment, false, nil
	}

	newStatus, audit := decide(payment)

	err = payment.TransitionTo(newStatus, time.Now().UTC())
	if err != nil {
		return payment, false, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE payments SET status = $1, updated_at = $2 WHERE payment_id = $3`,
		payment.Status, payment.UpdatedAt, paymentID)
	if err != nil {
		return payment, false, fmt.Errorf("could not update payment status: %w", err)
	}

	if audit != nil {
		_, err = tx.NamedExecContext(ctx, insertDeadLetter, *audit)
		if err != nil {
			return payment, false, fmt.Errorf("could not store dead letter: %w", err)
		}
	}

	return payment, true, nil
}
