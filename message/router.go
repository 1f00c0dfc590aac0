package message

import (
	"payments/message/event"
	"payments/message/outbox"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
)

func NewWatermillRouter(
	pgSubscriber message.Subscriber,
	publisher message.Publisher,
	deadLetterSubscriber message.Subscriber,
	eventProcessorConfig cqrs.EventProcessorConfig,
	eventsHandler event.Handler,
	deadLetterStore DeadLetterStore,
	watermillLogger watermill.LoggerAdapter,
) *message.Router {
	router, err := message.NewRouter(message.RouterConfig{}, watermillLogger)
	if err != nil {
		panic(err)
	}

	useMiddlewares(router, publisher, watermillLogger)

	_, err = outbox.NewForwarder(pgSubscriber, publisher, watermillLogger, router)
	if err != nil {
		panic(err)
	}

	eventProcessor, err := cqrs.NewEventProcessorWithConfig(router, eventProcessorConfig)
	if err != nil {
		panic(err)
	}

	err = eventProcessor.AddHandlers(
		cqrs.NewEventHandler(
			"ProcessPayment",
			eventsHandler.ProcessPayment,
		),
	)
	if err != nil {
		panic(err)
	}

	router.AddNoPublisherHandler(
		"StoreDeadLetter",
		DeadLetterTopic,
		deadLetterSubscriber,
		NewDeadLetterHandler(deadLetterStore),
	)

	return router
}
