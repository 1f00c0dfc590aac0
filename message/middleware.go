package message

import (
	"context"
	"errors"
	"strings"
	"time"

	"payments/entities"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/lithammer/shortuuid/v3"
	"github.com/sirupsen/logrus"
)

const (
	// DeadLetterTopic receives deliveries that failed permanently or
	// exhausted their retries.
	DeadLetterTopic = "payments-dlq"

	consumerMaxRetries = 3
	consumerRetryDelay = 2 * time.Second
)

func useMiddlewares(router *message.Router, publisher message.Publisher, watermillLogger watermill.LoggerAdapter) {
	router.AddMiddleware(middleware.Recoverer)

	router.AddMiddleware(func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			ctx := msg.Context()

			reqCorrelationID := msg.Metadata.Get("correlation_id")
			if reqCorrelationID == "" {
				reqCorrelationID = shortuuid.New()
			}

			ctx = log.ToContext(ctx, logrus.WithFields(logrus.Fields{"correlation_id": reqCorrelationID}))
			ctx = log.ContextWithCorrelationID(ctx, reqCorrelationID)

			msg.SetContext(ctx)

			return h(msg)
		}
	})

	router.AddMiddleware(func(next message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			logger := log.FromContext(msg.Context()).WithFields(logrus.Fields{
				"message_id": msg.UUID,
				"payload":    string(msg.Payload),
				"metadata":   msg.Metadata,
			})

			logger.Info("Handling a message")

			msgs, err := next(msg)
			if err != nil {
				logger.WithError(err).Error("Error while handling a message")
			}

			return msgs, err
		}
	})

	// order matters: the poison queue wraps the retry loop, so a delivery is
	// dead-lettered either immediately (permanent error) or after the retries
	// are exhausted
	poisonQueue, err := middleware.PoisonQueueWithFilter(publisher, DeadLetterTopic, shouldPoison)
	if err != nil {
		panic(err)
	}
	// only event subscriptions feed the poison queue. The dead-letter intake
	// and the outbox forwarder must nack failed deliveries so the broker
	// redelivers them: poisoning a dead-letter delivery would re-publish it
	// onto its own topic with the original metadata overwritten, and the
	// record would be lost
	router.AddMiddleware(func(h message.HandlerFunc) message.HandlerFunc {
		poisoned := poisonQueue(h)
		return func(msg *message.Message) ([]*message.Message, error) {
			if !strings.HasPrefix(message.SubscribeTopicFromCtx(msg.Context()), "events.") {
				return h(msg)
			}
			return poisoned(msg)
		}
	})

	router.AddMiddleware(RetryTransient{
		MaxRetries: consumerMaxRetries,
		Delay:      consumerRetryDelay,
		Logger:     watermillLogger,
	}.Middleware)
}

// shouldPoison reports whether a failed delivery belongs on the dead-letter
// topic. A delivery interrupted by shutdown did not actually fail, the
// broker redelivers it on restart.
func shouldPoison(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// RetryTransient redelivers failed messages with a fixed delay. Permanent
// failures (entities.IsPermanent) skip the retry loop entirely: a missing
// payment will never appear on redelivery.
type RetryTransient struct {
	MaxRetries int
	Delay      time.Duration
	Logger     watermill.LoggerAdapter
}

func (r RetryTransient) Middleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		producedMessages, err := h(msg)

		retries := 0
		for err != nil && !entities.IsPermanent(err) && retries < r.MaxRetries {
			retries++
			r.Logger.Info("Retrying delivery of failed message", watermill.LogFields{
				"message_id": msg.UUID,
				"retry":      retries,
				"error":      err.Error(),
			})

			select {
			case <-time.After(r.Delay):
			case <-msg.Context().Done():
				return nil, msg.Context().Err()
			}

			producedMessages, err = h(msg)
		}

		return producedMessages, err
	}
}
