package observability

import "context"

// EventEnvelope is the wire shape for service events published to the
// message broker.
type EventEnvelope struct {
	EventType string         `json:"event_type"`
	EventName string         `json:"event_name"`
	RequestID string         `json:"request_id,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
	Payload   map[string]any `json:"payload"`
}

// Publisher publishes service events. The AMQP implementation lives in the
// rabbitmq package; tests use a mock.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

var defaultPublisher Publisher

// SetPublisher installs the process-wide event publisher.
func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

// PublishEvent publishes an event through the installed publisher. A nil
// publisher drops the event silently.
func PublishEvent(ctx context.Context, routingKey string, event EventEnvelope) error {
	if defaultPublisher == nil {
		return nil
	}

	err := defaultPublisher.Publish(ctx, routingKey, event)
	if err != nil {
		IncAMQPPublishError()
	}
	return err
}
