package events

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

// CardReviewedEventName is the name of CardReviewedEvent.
const CardReviewedEventName = "card.reviewed"

// Event is a fact published on the bus. Subscriptions match on EventName.
type Event interface {
	EventName() string
}

// CardReviewedEvent is published once for every review that was committed.
// It is passed by value, so subscribers cannot change what others see.
type CardReviewedEvent struct {
	// EventID correlates log lines of every delivery of this event.
	EventID      string    `json:"eventId"`
	ReviewID     int64     `json:"reviewId"`
	MemberID     int64     `json:"memberId"`
	CardID       int64     `json:"cardId"`
	DeckID       int64     `json:"deckId"`
	Quality      int       `json:"quality"`
	ReviewTimeMs int64     `json:"reviewTimeMs"`
	ReviewedAt   time.Time `json:"reviewedAt"`
}

// NewCardReviewedEvent returns the event for a committed review.
func NewCardReviewedEvent(
	reviewID, memberID, cardID, deckID int64,
	quality int,
	reviewTimeMs int64,
	reviewedAt time.Time,
) CardReviewedEvent {
	return CardReviewedEvent{
		EventID:      ulid.Make().String(),
		ReviewID:     reviewID,
		MemberID:     memberID,
		CardID:       cardID,
		DeckID:       deckID,
		Quality:      quality,
		ReviewTimeMs: reviewTimeMs,
		ReviewedAt:   reviewedAt,
	}
}

// EventName implements Event.
func (CardReviewedEvent) EventName() string { return CardReviewedEventName }

var _ Event = CardReviewedEvent{}

// Handler processes events it subscribed to.
type Handler interface {
	HandleEvent(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

// HandleEvent implements Handler.
func (f HandlerFunc) HandleEvent(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Publisher is the side of the bus services depend on.
type Publisher interface {
	// Publish hands event to every subscriber of its name and returns
	// without waiting for them.
	Publish(ctx context.Context, event Event) error
}

// ErrUnexpectedEvent is returned by handlers given an event type they do
// not process.
var ErrUnexpectedEvent = errors.New("unexpected event type")
