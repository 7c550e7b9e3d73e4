package srs

import (
	"testing"
)

func TestNewDefaultParams(t *testing.T) {
	params := NewDefaultParams()

	if params.MinEaseFactor != 1.3 {
		t.Errorf("MinEaseFactor should be 1.3, got %f", params.MinEaseFactor)
	}

	if params.InitialEaseFactor != 2.5 {
		t.Errorf("InitialEaseFactor should be 2.5, got %f", params.InitialEaseFactor)
	}

	if params.FirstInterval != 1 || params.SecondInterval != 6 {
		t.Errorf("Expected intervals 1 and 6, got %d and %d", params.FirstInterval, params.SecondInterval)
	}

	if params.PassingQuality != 3 {
		t.Errorf("PassingQuality should be 3, got %d", params.PassingQuality)
	}

	if params.MaxInterval != 36500 {
		t.Errorf("MaxInterval should be 36500, got %d", params.MaxInterval)
	}
}

func TestNewParams(t *testing.T) {
	// Empty config keeps the defaults
	params := NewParams(ParamsConfig{})
	defaults := NewDefaultParams()
	if *params != *defaults {
		t.Errorf("Expected defaults for empty config, got %+v", params)
	}

	params = NewParams(ParamsConfig{
		InitialEaseFactor: 2.2,
		MinEaseFactor:     1.4,
		FirstInterval:     2,
		SecondInterval:    5,
		PassingQuality:    4,
		FailurePenalty:    0.3,
	})

	if params.InitialEaseFactor != 2.2 {
		t.Errorf("Expected InitialEaseFactor 2.2, got %f", params.InitialEaseFactor)
	}
	if params.MinEaseFactor != 1.4 {
		t.Errorf("Expected MinEaseFactor 1.4, got %f", params.MinEaseFactor)
	}
	if params.FirstInterval != 2 || params.SecondInterval != 5 {
		t.Errorf("Expected intervals 2 and 5, got %d and %d", params.FirstInterval, params.SecondInterval)
	}
	if params.PassingQuality != 4 {
		t.Errorf("Expected PassingQuality 4, got %d", params.PassingQuality)
	}
	if params.FailurePenalty != 0.3 {
		t.Errorf("Expected FailurePenalty 0.3, got %f", params.FailurePenalty)
	}

	// Initial ease is lifted to the floor
	params = NewParams(ParamsConfig{InitialEaseFactor: 1.2})
	if params.InitialEaseFactor != params.MinEaseFactor {
		t.Errorf("Expected InitialEaseFactor to be raised to %f, got %f", params.MinEaseFactor, params.InitialEaseFactor)
	}

	params = NewParams(ParamsConfig{MaxInterval: 365})
	if params.MaxInterval != 365 {
		t.Errorf("Expected MaxInterval 365, got %d", params.MaxInterval)
	}

	// The cap never undercuts the fixed second interval
	params = NewParams(ParamsConfig{MaxInterval: 3})
	if params.MaxInterval != params.SecondInterval {
		t.Errorf("Expected MaxInterval to be raised to %d, got %d", params.SecondInterval, params.MaxInterval)
	}

	// Out-of-scale passing quality is ignored
	params = NewParams(ParamsConfig{PassingQuality: 9})
	if params.PassingQuality != 3 {
		t.Errorf("Expected PassingQuality 3, got %d", params.PassingQuality)
	}
}
