package telemetry

import (
	"github.com/berfenger/solarcharger/internal/core/domain"
	"github.com/berfenger/solarcharger/internal/core/port"

	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

// EventStreamSink logs a diagnostic and publishes it for the MQTT bridge.
type EventStreamSink struct {
	eventStream *eventstream.EventStream
	logger      *zap.Logger
}

var _ port.TelemetrySink = (*EventStreamSink)(nil)

func NewEventStreamSink(eventStream *eventstream.EventStream, logger *zap.Logger) *EventStreamSink {
	return &EventStreamSink{
		eventStream: eventStream,
		logger:      logger.Named("telemetry"),
	}
}

func (s *EventStreamSink) Send(tag string, message string) {
	s.logger.Warn("diagnostic", zap.String("tag", tag), zap.String("message", message))
	s.eventStream.Publish(domain.DiagnosticEvent{
		UpdateEventMixIn: domain.UpdateEventMixIn{
			Id: tag,
		},
		Tag:     tag,
		Message: message,
	})
}
