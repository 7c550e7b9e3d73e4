package srs

import (
	"math"
	"time"

	"github.com/phrazzld/caro-api/internal/domain"
)

// State is the part of a review record the algorithm reads.
type State struct {
	EaseFactor  float64
	Interval    int
	Repetitions int
}

// Result is the outcome of one scheduling step.
type Result struct {
	EaseFactor     float64
	Interval       int
	Repetitions    int
	NextReviewDate time.Time
}

// calculateNewEaseFactor determines the new ease factor after a review.
//
// A passing review moves the ease factor by 0.1 − (5−q)(0.08 + (5−q)·0.02),
// which is +0.1 for a perfect recall and −0.14 for a barely passing one.
// A failed review subtracts params.FailurePenalty. Either way the result is
// clamped to params.MinEaseFactor.
func calculateNewEaseFactor(currentEF float64, quality int, params *Params) float64 {
	var newEF float64
	if quality >= params.PassingQuality {
		miss := float64(domain.MaxQuality - quality)
		newEF = currentEF + (0.1 - miss*(0.08+miss*0.02))
	} else {
		newEF = currentEF - params.FailurePenalty
	}

	if newEF < params.MinEaseFactor {
		newEF = params.MinEaseFactor
	}
	return newEF
}

// calculateNewInterval determines the interval in days after a review.
//
// The first two consecutive successes use the fixed intervals from params;
// later successes multiply the previous interval by the updated ease factor,
// rounding half up, and never exceed params.MaxInterval. A failure always
// schedules the card for the next day.
func calculateNewInterval(
	currentInterval int,
	newRepetitions int,
	newEF float64,
	passed bool,
	params *Params,
) int {
	if !passed {
		return params.FirstInterval
	}

	switch newRepetitions {
	case 1:
		return params.FirstInterval
	case 2:
		return params.SecondInterval
	default:
		next := float64(currentInterval) * newEF
		if next >= float64(params.MaxInterval) {
			return params.MaxInterval
		}
		return roundHalfUp(next)
	}
}

// roundHalfUp rounds x to the nearest integer, with .5 going up.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

// calculateNext runs one SM-2 step. It is pure: the same inputs always
// produce the same result.
func calculateNext(state State, quality int, today time.Time, params *Params) Result {
	passed := quality >= params.PassingQuality

	newEF := calculateNewEaseFactor(state.EaseFactor, quality, params)

	newReps := 0
	if passed {
		newReps = state.Repetitions + 1
	}

	interval := calculateNewInterval(state.Interval, newReps, newEF, passed, params)

	return Result{
		EaseFactor:     newEF,
		Interval:       interval,
		Repetitions:    newReps,
		NextReviewDate: domain.AddDays(today, interval),
	}
}
