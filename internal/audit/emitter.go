package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Emitter is the narrow interface services depend on. ChannelEmitter is the
// production implementation; tests pass a Noop or a recording stub.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// ChannelEmitter stamps events and hands them to the worker inbox without
// blocking the caller when the buffer is full. ID and Timestamp are assigned
// here, at emit time, so the trail reflects when the action happened rather
// than when the worker drained it.
type ChannelEmitter struct {
	inbox chan<- Event
	log   *slog.Logger
}

func NewChannelEmitter(inbox chan<- Event, log *slog.Logger) *ChannelEmitter {
	return &ChannelEmitter{inbox: inbox, log: log}
}

func (e *ChannelEmitter) Emit(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case e.inbox <- event:
	default:
		e.log.Warn("audit inbox full, dropping event", "action", event.Action)
	}
	return nil
}

// Noop drops every event. Used when no audit sink is configured.
type Noop struct{}

func (Noop) Emit(ctx context.Context, event Event) error { return nil }
