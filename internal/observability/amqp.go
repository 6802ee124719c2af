package observability

import (
	"context"
)

// Publisher is the broker side of lifecycle event publishing.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

var defaultPublisher Publisher

func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

// PublishEvent publishes through the process publisher. It is a no-op until SetPublisher is called.
func PublishEvent(ctx context.Context, routingKey string, message interface{}) error {
	if defaultPublisher == nil {
		return nil
	}

	err := defaultPublisher.Publish(ctx, routingKey, message, HeadersFromContext(ctx))
	if err != nil {
		IncAMQPPublishError()
	}
	return err
}
