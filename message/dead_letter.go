package message

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"payments/entities"
	"payments/metrics"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type DeadLetterStore interface {
	Enqueue(ctx context.Context, letter entities.DeadLetter) error
}

// NewDeadLetterHandler drains the dead-letter topic into the durable store,
// keeping the poison metadata (reason, original topic and handler) for
// traceability. Entries that cannot be attributed to a payment are logged
// and acknowledged: the delivery already failed for good, re-poisoning it
// would loop forever.
func NewDeadLetterHandler(store DeadLetterStore) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		logger := log.FromContext(msg.Context()).WithFields(logrus.Fields{
			"message_id": msg.UUID,
			"reason":     msg.Metadata.Get(middleware.ReasonForPoisonedKey),
		})

		poisonedTopic := msg.Metadata.Get(middleware.PoisonedTopicKey)
		if !strings.HasPrefix(poisonedTopic, "events.") {
			logger.WithField("topic", poisonedTopic).
				Warn("Dead-lettered message from unexpected topic. Ignoring.")
			return nil
		}

		var event entities.PaymentCreated_v1
		if err := json.Unmarshal(msg.Payload, &event); err != nil || event.PaymentID == uuid.Nil {
			logger.Error("Dead-lettered message with unparseable payload. Ignoring.")
			return nil
		}

		letter := entities.DeadLetter{
			PaymentID:   event.PaymentID,
			MessageUUID: msg.UUID,
			Reason:      msg.Metadata.Get(middleware.ReasonForPoisonedKey),
			Topic:       poisonedTopic,
			Handler:     msg.Metadata.Get(middleware.PoisonedHandlerKey),
			ReceivedAt:  time.Now().UTC(),
		}

		// store errors are transient: fail the delivery and let the
		// dead-letter stream redeliver it
		if err := store.Enqueue(msg.Context(), letter); err != nil {
			return err
		}

		metrics.PaymentsDeadLettered.Inc()
		logger.WithField("payment_id", event.PaymentID).Error("Payment dead-lettered")

		return nil
	}
}
