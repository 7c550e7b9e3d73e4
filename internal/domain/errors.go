// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when a member, card, or deck ID is not positive.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidQuality is returned when a review quality is outside 0..5.
	ErrInvalidQuality = errors.New("quality must be between 0 and 5")

	// ErrInvalidReviewTime is returned when a review duration is not positive.
	ErrInvalidReviewTime = errors.New("review time must be positive")
)
