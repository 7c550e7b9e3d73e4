package srs

import "github.com/phrazzld/caro-api/internal/domain"

// Params defines all configurable parameters for the SM-2 algorithm
type Params struct {
	// Ease factor bounds
	InitialEaseFactor float64
	MinEaseFactor     float64

	// Fixed intervals for the first two successful reviews
	FirstInterval  int
	SecondInterval int

	// MaxInterval caps the interval in days so review dates stay storable
	MaxInterval int

	// PassingQuality is the lowest quality that counts as a successful recall
	PassingQuality int

	// FailurePenalty is subtracted from the ease factor on a failed recall
	FailurePenalty float64
}

// DefaultMaxInterval is one hundred years in days.
const DefaultMaxInterval = 36500

// ParamsConfig allows overriding the default parameters when creating a new Params instance.
// Zero values keep the SM-2 defaults.
type ParamsConfig struct {
	InitialEaseFactor float64
	MinEaseFactor     float64
	FirstInterval     int
	SecondInterval    int
	MaxInterval       int
	PassingQuality    int
	FailurePenalty    float64
}

// NewDefaultParams creates a new Params instance with the classic SM-2 values
func NewDefaultParams() *Params {
	return &Params{
		InitialEaseFactor: domain.DefaultEaseFactor,
		MinEaseFactor:     domain.MinEaseFactor,
		FirstInterval:     1,
		SecondInterval:    6,
		MaxInterval:       DefaultMaxInterval,
		PassingQuality:    3,
		FailurePenalty:    0.2,
	}
}

// NewParams creates a new Params instance with custom configuration
func NewParams(config ParamsConfig) *Params {
	params := NewDefaultParams()

	if config.MinEaseFactor > 0 {
		params.MinEaseFactor = config.MinEaseFactor
	}
	if config.InitialEaseFactor > 0 {
		params.InitialEaseFactor = config.InitialEaseFactor
	}
	// A record must never start below the floor it can be pushed down to.
	if params.InitialEaseFactor < params.MinEaseFactor {
		params.InitialEaseFactor = params.MinEaseFactor
	}

	if config.FirstInterval > 0 {
		params.FirstInterval = config.FirstInterval
	}
	if config.SecondInterval > 0 {
		params.SecondInterval = config.SecondInterval
	}
	if config.MaxInterval > 0 {
		params.MaxInterval = config.MaxInterval
	}
	if params.MaxInterval < params.SecondInterval {
		params.MaxInterval = params.SecondInterval
	}
	if config.PassingQuality > 0 && config.PassingQuality <= domain.MaxQuality {
		params.PassingQuality = config.PassingQuality
	}
	if config.FailurePenalty > 0 {
		params.FailurePenalty = config.FailurePenalty
	}

	return params
}
