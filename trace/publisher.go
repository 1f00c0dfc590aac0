package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ThreeDotsLabs/watermill/message"
)

type TracingPublisherDecorator struct {
	message.Publisher
}

func (p TracingPublisherDecorator) Publish(topic string, messages ...*message.Message) error {
	tracer := otel.Tracer("payments")

	for _, msg := range messages {
		ctx, span := tracer.Start(
			msg.Context(),
			"publish "+topic,
			trace.WithSpanKind(trace.SpanKindProducer),
			trace.WithAttributes(attribute.String("message_id", msg.UUID)),
		)
		msg.SetContext(ctx)
		span.End()
	}

	return p.Publisher.Publish(topic, messages...)
}
