package db

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"payments/entities"
	"payments/message/outbox"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var testDB *DB
var getDbOnce sync.Once

func getDb(t *testing.T) *DB {
	t.Helper()

	if os.Getenv("POSTGRES_URL") == "" {
		t.Skip("POSTGRES_URL not set")
	}

	getDbOnce.Do(func() {
		conn, err := sqlx.Open("postgres", os.Getenv("POSTGRES_URL"))
		if err != nil {
			panic(err)
		}
		testDB = &DB{Conn: conn}
		testDB.MigrateSchema()

		// creates the outbox table the repository publishes into
		outbox.SubscribeForPGMessages(conn, watermill.NopLogger{})
	})
	return testDB
}

func newCardPayment(amount string) entities.Payment {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return entities.Payment{
		PaymentID:      uuid.New(),
		IdempotencyKey: uuid.NewString(),
		Amount:         decimal.RequireFromString(amount),
		Currency:       "AUD",
		PaymentType:    entities.PaymentTypeCard,
		Status:         entities.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
		CardDetails: &entities.CardDetails{
			CardNumber:     entities.MaskCardNumber("4111111111111111"),
			CardHolderName: "Jane Doe",
			ExpiryMonth:    12,
			ExpiryYear:     2030,
		},
	}
}

func settleToSuccess(p entities.Payment) (entities.PaymentStatus, *entities.DeadLetter) {
	return entities.StatusSuccess, nil
}

func TestCreateOrGetIsIdempotent(t *testing.T) {
	repo := NewPaymentRepository(getDb(t))
	ctx := context.Background()

	payment := newCardPayment("100.00")

	first, created, err := repo.CreateOrGet(ctx, payment)
	require.NoError(t, err)
	assert.True(t, created)

	duplicate := newCardPayment("100.00")
	duplicate.IdempotencyKey = payment.IdempotencyKey

	second, created, err := repo.CreateOrGet(ctx, duplicate)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.PaymentID, second.PaymentID)

	var count int
	err = testDB.Conn.GetContext(ctx, &count,
		`SELECT count(*) FROM payments WHERE idempotency_key = $1`, payment.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreateOrGetConcurrentSubmissions(t *testing.T) {
	repo := NewPaymentRepository(getDb(t))
	ctx := context.Background()

	idempotencyKey := uuid.NewString()

	const submissions = 10
	ids := make([]uuid.UUID, submissions)
	wins := make([]bool, submissions)

	g := errgroup.Group{}
	for i := 0; i < submissions; i++ {
		i := i
		g.Go(func() error {
			payment := newCardPayment("250.00")
			payment.IdempotencyKey = idempotencyKey

			stored, created, err := repo.CreateOrGet(ctx, payment)
			if err != nil {
				return err
			}
			ids[i] = stored.PaymentID
			wins[i] = created
			return nil
		})
	}
	require.NoError(t, g.Wait())

	winners := 0
	for i := 0; i < submissions; i++ {
		assert.Equal(t, ids[0], ids[i], "all callers must observe the same payment")
		if wins[i] {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one submission must win the insert")

	var count int
	err := testDB.Conn.GetContext(ctx, &count,
		`SELECT count(*) FROM payments WHERE idempotency_key = $1`, idempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGetByIDRoundTrip(t *testing.T) {
	repo := NewPaymentRepository(getDb(t))
	ctx := context.Background()

	payment := newCardPayment("42.50")
	_, _, err := repo.CreateOrGet(ctx, payment)
	require.NoError(t, err)

	stored, err := repo.GetByID(ctx, payment.PaymentID)
	require.NoError(t, err)

	assert.Equal(t, payment.PaymentID, stored.PaymentID)
	assert.Equal(t, payment.IdempotencyKey, stored.IdempotencyKey)
	assert.True(t, payment.Amount.Equal(stored.Amount))
	assert.Equal(t, "AUD", stored.Currency)
	assert.Equal(t, entities.PaymentTypeCard, stored.PaymentType)
	assert.Equal(t, entities.StatusPending, stored.Status)

	require.NotNil(t, stored.CardDetails)
	assert.Equal(t, "**** **** **** 1111", stored.CardDetails.CardNumber)
	assert.Equal(t, "Jane Doe", stored.CardDetails.CardHolderName)
}

func TestGetByIDNotFound(t *testing.T) {
	repo := NewPaymentRepository(getDb(t))

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, entities.ErrPaymentNotFound)
}

func TestSettleTransitionsOnce(t *testing.T) {
	repo := NewPaymentRepository(getDb(t))
	ctx := context.Background()

	payment := newCardPayment("100.00")
	_, _, err := repo.CreateOrGet(ctx, payment)
	require.NoError(t, err)

	settledPayment, settled, err := repo.Settle(ctx, payment.PaymentID, settleToSuccess)
	require.NoError(t, err)
	assert.True(t, settled)
	assert.Equal(t, entities.StatusSuccess, settledPayment.Status)

	// redelivery: the payment already left PENDING, nothing may change
	again, settled, err := repo.Settle(ctx, payment.PaymentID, settleToSuccess)
	require.NoError(t, err)
	assert.False(t, settled)
	assert.Equal(t, entities.StatusSuccess, again.Status)
	// Postgres keeps microseconds, the in-memory value nanoseconds
	assert.WithinDuration(t, settledPayment.UpdatedAt, again.UpdatedAt, time.Microsecond)
}

func TestSettleNotFound(t *testing.T) {
	repo := NewPaymentRepository(getDb(t))

	_, _, err := repo.Settle(context.Background(), uuid.New(), settleToSuccess)
	assert.ErrorIs(t, err, entities.ErrPaymentNotFound)
}

func TestSettleFailureStoresAuditRecord(t *testing.T) {
	repo := NewPaymentRepository(getDb(t))
	deadLetters := NewDeadLetterRepository(getDb(t))
	ctx := context.Background()

	// drain leftovers from previous runs so counts below are exact
	_, err := deadLetters.Drain(ctx)
	require.NoError(t, err)

	payment := newCardPayment("15000.01")
	_, _, err = repo.CreateOrGet(ctx, payment)
	require.NoError(t, err)

	messageUUID := uuid.NewString()
	settledPayment, settled, err := repo.Settle(
		ctx,
		payment.PaymentID,
		func(p entities.Payment) (entities.PaymentStatus, *entities.DeadLetter) {
			return entities.StatusFailed, &entities.DeadLetter{
				PaymentID:   p.PaymentID,
				MessageUUID: messageUUID,
				Reason:      entities.ErrFraudDetected.Error(),
				Topic:       "events.entities.PaymentCreated_v1",
				Handler:     "ProcessPayment",
				ReceivedAt:  time.Now().UTC(),
			}
		},
	)
	require.NoError(t, err)
	assert.True(t, settled)
	assert.Equal(t, entities.StatusFailed, settledPayment.Status)

	// the audit record commits with the status write
	letters, err := deadLetters.List(ctx)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, payment.PaymentID, letters[0].PaymentID)
	assert.Equal(t, messageUUID, letters[0].MessageUUID)
	assert.Equal(t, entities.ErrFraudDetected.Error(), letters[0].Reason)

	// redelivery is a no-op and must not add a second record
	_, settled, err = repo.Settle(
		ctx,
		payment.PaymentID,
		func(p entities.Payment) (entities.PaymentStatus, *entities.DeadLetter) {
			t.Fatal("decide must not run for a settled payment")
			return entities.StatusFailed, nil
		},
	)
	require.NoError(t, err)
	assert.False(t, settled)

	letters, err = deadLetters.List(ctx)
	require.NoError(t, err)
	assert.Len(t, letters, 1)
}

func TestUpdateStatusCancellationGuard(t *testing.T) {
	repo := NewPaymentRepository(getDb(t))
	ctx := context.Background()

	pending := newCardPayment("10.00")
	_, _, err := repo.CreateOrGet(ctx, pending)
	require.NoError(t, err)

	cancelled, err := repo.UpdateStatus(ctx, pending.PaymentID, entities.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusCancelled, cancelled.Status)
	assert.True(t, cancelled.UpdatedAt.After(cancelled.CreatedAt))

	settled := newCardPayment("20.00")
	_, _, err = repo.CreateOrGet(ctx, settled)
	require.NoError(t, err)
	_, _, err = repo.Settle(ctx, settled.PaymentID, settleToSuccess)
	require.NoError(t, err)

	_, err = repo.UpdateStatus(ctx, settled.PaymentID, entities.StatusCancelled)
	assert.ErrorIs(t, err, entities.ErrInvalidTransition)

	stored, err := repo.GetByID(ctx, settled.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusSuccess, stored.Status)
}

func TestDeadLetterEnqueueAndDrain(t *testing.T) {
	repo := NewDeadLetterRepository(getDb(t))
	ctx := context.Background()

	// drain leftovers from previous runs so counts below are exact
	_, err := repo.Drain(ctx)
	require.NoError(t, err)

	letter := entities.DeadLetter{
		PaymentID:   uuid.New(),
		MessageUUID: uuid.NewString(),
		Reason:      "fraud detected",
		Topic:       "events.entities.PaymentCreated_v1",
		Handler:     "ProcessPayment",
		ReceivedAt:  time.Now().UTC(),
	}
	require.NoError(t, repo.Enqueue(ctx, letter))

	letters, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, letter.PaymentID, letters[0].PaymentID)
	assert.Equal(t, letter.Reason, letters[0].Reason)

	drained, err := repo.Drain(ctx)
	require.NoError(t, err)
	require.Len(t, drained, 1)
	assert.Equal(t, letter.PaymentID, drained[0].PaymentID)

	letters, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, letters)
}
