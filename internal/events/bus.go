package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/phrazzld/caro-api/internal/platform/logger"
	"github.com/phrazzld/caro-api/internal/task"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/phrazzld/caro-api/internal/events"

var (
	// ErrBusClosed is returned by Publish and Subscribe after Close.
	ErrBusClosed = errors.New("event bus is closed")

	// ErrDuplicateHandler is returned when a handler ID is already subscribed.
	ErrDuplicateHandler = errors.New("handler already subscribed")

	// ErrInvalidSubscription is returned for an empty handler ID, event name,
	// or a nil handler.
	ErrInvalidSubscription = errors.New("invalid subscription")
)

// Subscription describes one registered handler.
type Subscription struct {
	HandlerID string
	EventName string
}

type subscriber struct {
	id      string
	handler Handler
}

// Bus is an in-process publish/subscribe bus.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]subscriber
	handlerIDs  map[string]string
	closed      bool

	dispatch DispatchPolicy
	failure  FailurePolicy
	metrics  *Metrics
	tracer   trace.Tracer
	logger   *slog.Logger
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithDispatchPolicy sets where deliveries run. The default is an
// AsyncPolicy on an unbounded executor.
func WithDispatchPolicy(policy DispatchPolicy) BusOption {
	return func(b *Bus) { b.dispatch = policy }
}

// WithFailurePolicy sets what happens to failed deliveries. The default is
// LogAndDiscard.
func WithFailurePolicy(policy FailurePolicy) BusOption {
	return func(b *Bus) { b.failure = policy }
}

// WithMetrics enables delivery metrics.
func WithMetrics(m *Metrics) BusOption {
	return func(b *Bus) { b.metrics = m }
}

// WithTracerProvider sets the provider of delivery spans. The default is
// the global provider.
func WithTracerProvider(tp trace.TracerProvider) BusOption {
	return func(b *Bus) { b.tracer = tp.Tracer(tracerName) }
}

// NewBus creates a bus. If logger is nil, a default logger will be used.
func NewBus(logger *slog.Logger, opts ...BusOption) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "event_bus"))

	b := &Bus{
		subscribers: make(map[string][]subscriber),
		handlerIDs:  make(map[string]string),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.dispatch == nil {
		b.dispatch = NewAsyncPolicy(task.NewExecutor(task.ExecutorConfig{}, logger))
	}
	if b.failure == nil {
		b.failure = NewLogAndDiscard(logger)
	}
	if b.tracer == nil {
		b.tracer = otel.Tracer(tracerName)
	}
	return b
}

var _ Publisher = (*Bus)(nil)

// Subscribe registers handler for events named eventName under handlerID.
// Handler IDs are unique across the bus.
func (b *Bus) Subscribe(handlerID, eventName string, handler Handler) error {
	if handlerID == "" || eventName == "" || handler == nil {
		return ErrInvalidSubscription
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if _, exists := b.handlerIDs[handlerID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, handlerID)
	}

	b.handlerIDs[handlerID] = eventName
	b.subscribers[eventName] = append(b.subscribers[eventName], subscriber{id: handlerID, handler: handler})

	b.logger.Info("handler subscribed",
		slog.String("handler_id", handlerID),
		slog.String("event_name", eventName))
	return nil
}

// Subscriptions returns the registered handlers ordered by handler ID.
func (b *Bus) Subscriptions() []Subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subs := make([]Subscription, 0, len(b.handlerIDs))
	for id, name := range b.handlerIDs {
		subs = append(subs, Subscription{HandlerID: id, EventName: name})
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].HandlerID < subs[j].HandlerID })
	return subs
}

// Publish implements Publisher. Each subscriber of the event's name gets
// its own delivery; a subscriber that fails never affects the others or
// the publisher. Publish only fails when the bus is closed or event is nil.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	subs := append([]subscriber(nil), b.subscribers[event.EventName()]...)
	b.mu.RUnlock()

	log := logger.FromContextOrDefault(ctx, b.logger).With(slog.String("event_name", event.EventName()))
	if len(subs) == 0 {
		log.Debug("no handlers subscribed to event")
		return nil
	}

	for _, sub := range subs {
		d := Delivery{HandlerID: sub.id, Event: event}
		handler := sub.handler
		if err := b.dispatch.Dispatch(ctx, d, func(ctx context.Context) {
			b.deliver(ctx, d, handler)
		}); err != nil {
			b.metrics.dispatchRejected(d)
			log.Error("failed to dispatch event",
				slog.String("handler_id", d.HandlerID),
				slog.String("error", err.Error()))
		}
	}

	log.Debug("event published", slog.Int("handler_count", len(subs)))
	return nil
}

// Close stops accepting events and waits for in-flight deliveries until
// ctx ends.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.logger.Info("closing event bus")
	return b.dispatch.Shutdown(ctx)
}

func (b *Bus) deliver(ctx context.Context, d Delivery, handler Handler) {
	log := b.logger.With(
		slog.String("handler_id", d.HandlerID),
		slog.String("event_name", d.Event.EventName()),
	)
	if e, ok := d.Event.(CardReviewedEvent); ok {
		log = log.With(slog.String("event_id", e.EventID))
	}
	ctx = logger.WithLogger(ctx, log)

	ctx, span := b.tracer.Start(ctx, "events.deliver", trace.WithAttributes(
		attribute.String("event.name", d.Event.EventName()),
		attribute.String("handler.id", d.HandlerID),
	))
	defer span.End()

	b.metrics.deliveryStarted()
	result := invoke(ctx, d, handler)
	b.metrics.deliveryFinished(result)

	if !result.Failed() {
		log.Debug("event delivered", slog.Int64("duration_ms", result.Duration.Milliseconds()))
		return
	}

	span.RecordError(result.Err)
	span.SetStatus(codes.Error, result.Err.Error())
	b.failure.OnFailure(ctx, result)
}
