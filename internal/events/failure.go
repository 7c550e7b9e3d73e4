package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/phrazzld/caro-api/internal/platform/logger"
)

// FailurePolicy decides what happens to a failed delivery.
type FailurePolicy interface {
	OnFailure(ctx context.Context, result Result)
}

// FailurePolicyFunc adapts a function to the FailurePolicy interface.
type FailurePolicyFunc func(ctx context.Context, result Result)

// OnFailure implements FailurePolicy.
func (f FailurePolicyFunc) OnFailure(ctx context.Context, result Result) {
	f(ctx, result)
}

// LogAndDiscard logs the failed delivery with its payload and drops it.
type LogAndDiscard struct {
	logger *slog.Logger
}

// NewLogAndDiscard creates the default failure policy.
func NewLogAndDiscard(logger *slog.Logger) *LogAndDiscard {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogAndDiscard{logger: logger}
}

// OnFailure implements FailurePolicy.
func (p *LogAndDiscard) OnFailure(ctx context.Context, result Result) {
	log := logger.FromContextOrDefault(ctx, p.logger)

	payload, err := json.Marshal(result.Delivery.Event)
	if err != nil {
		payload = []byte("<unserializable>")
	}

	log.Error("event delivery failed, discarding",
		slog.String("handler_id", result.Delivery.HandlerID),
		slog.String("event_name", result.Delivery.Event.EventName()),
		slog.String("payload", string(payload)),
		slog.String("error", result.Err.Error()),
		slog.Bool("panicked", result.Panicked),
		slog.Int64("duration_ms", result.Duration.Milliseconds()))
}

var (
	_ FailurePolicy = (*LogAndDiscard)(nil)
	_ FailurePolicy = FailurePolicyFunc(nil)
)
