package message

import (
	"context"
	"testing"

	"payments/entities"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deadLetterStoreMock struct {
	letters []entities.DeadLetter
}

func (m *deadLetterStoreMock) Enqueue(ctx context.Context, letter entities.DeadLetter) error {
	m.letters = append(m.letters, letter)
	return nil
}

func poisonedMessage(t *testing.T, paymentID uuid.UUID, topic string) *message.Message {
	t.Helper()

	msg := message.NewMessage(watermill.NewUUID(), []byte(`{"payment_id":"`+paymentID.String()+`"}`))
	msg.SetContext(context.Background())
	msg.Metadata.Set(middleware.ReasonForPoisonedKey, "fraud detected")
	msg.Metadata.Set(middleware.PoisonedTopicKey, topic)
	msg.Metadata.Set(middleware.PoisonedHandlerKey, "ProcessPayment")
	return msg
}

func TestDeadLetterHandlerStoresPaymentReference(t *testing.T) {
	store := &deadLetterStoreMock{}
	handler := NewDeadLetterHandler(store)

	paymentID := uuid.New()
	err := handler(poisonedMessage(t, paymentID, "events.entities.PaymentCreated_v1"))
	require.NoError(t, err)

	require.Len(t, store.letters, 1)
	letter := store.letters[0]
	assert.Equal(t, paymentID, letter.PaymentID)
	assert.Equal(t, "fraud detected", letter.Reason)
	assert.Equal(t, "events.entities.PaymentCreated_v1", letter.Topic)
	assert.Equal(t, "ProcessPayment", letter.Handler)
}

func TestDeadLetterHandlerIgnoresForeignTopics(t *testing.T) {
	store := &deadLetterStoreMock{}
	handler := NewDeadLetterHandler(store)

	err := handler(poisonedMessage(t, uuid.New(), "events_to_forward"))
	require.NoError(t, err)

	assert.Empty(t, store.letters)
}

func TestDeadLetterHandlerAcksUnparseablePayload(t *testing.T) {
	store := &deadLetterStoreMock{}
	handler := NewDeadLetterHandler(store)

	msg := message.NewMessage(watermill.NewUUID(), []byte("not json"))
	msg.SetContext(context.Background())
	msg.Metadata.Set(middleware.PoisonedTopicKey, "events.entities.PaymentCreated_v1")

	err := handler(msg)
	require.NoError(t, err)

	assert.Empty(t, store.letters)
}
