// Package service contains the application use cases of caro-api.
//
// Each subpackage owns one area:
//
//   - review schedules cards with SM-2 and publishes a CardReviewedEvent
//     after every committed review.
//   - gamification, analytics, and notification subscribe to that event.
//     Each owns its own aggregate and exposes a small query API.
//
// Services receive their stores, publisher, and logger through constructors
// and never depend on a concrete database. Unexpected failures are returned
// as *ServiceError so the API layer can log the failing operation, while
// sentinel errors from domain and store pass through for errors.Is checks.
package service
