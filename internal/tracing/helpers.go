package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MediaOperation represents the type of media service call being traced.
type MediaOperation string

const (
	// MediaOperationCreateRoom represents a room creation call.
	MediaOperationCreateRoom MediaOperation = "create_room"
	// MediaOperationDeleteRoom represents a room deletion call.
	MediaOperationDeleteRoom MediaOperation = "delete_room"
	// MediaOperationGetRoom represents a room lookup call.
	MediaOperationGetRoom MediaOperation = "get_room"
	// MediaOperationGetParticipant represents a participant lookup call.
	MediaOperationGetParticipant MediaOperation = "get_participant"
	// MediaOperationUpdateParticipant represents a participant update call.
	MediaOperationUpdateParticipant MediaOperation = "update_participant"
	// MediaOperationCreateIngress represents an ingress creation call.
	MediaOperationCreateIngress MediaOperation = "create_ingress"
)

// StartMediaSpan creates a new span for a LiveKit server API call.
// Returns the new context and a function to end the span.
//
// Example usage:
//
//	ctx, endSpan := tracing.StartMediaSpan(ctx, roomName, tracing.MediaOperationCreateRoom)
//	defer endSpan(err)
//	// ... perform the call ...
func StartMediaSpan(ctx context.Context, roomName string, operation MediaOperation) (context.Context, func(error)) {
	tracer := otel.Tracer("openstage/livekit")

	spanName := string(operation)
	if roomName != "" {
		spanName = spanName + " " + roomName
	}

	ctx, span := tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.system", "livekit"),
			attribute.String("rpc.method", string(operation)),
		),
	)

	if roomName != "" {
		span.SetAttributes(attribute.String("room.name", roomName))
	}

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// StartSpan creates a new span for a general operation.
// Returns the new context and a function to end the span.
//
// Example usage:
//
//	ctx, endSpan := tracing.StartSpan(ctx, "apply_stage_transition")
//	defer endSpan(err)
//	// ... perform operation ...
func StartSpan(ctx context.Context, name string) (context.Context, func(error)) {
	tracer := otel.Tracer("openstage")

	ctx, span := tracer.Start(ctx, name)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the current span.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attrs...)
}
