package domain

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func Test_NormalizedProgressInRange(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("progress is in [0,1] or unknown", prop.ForAll(
		func(p float64) bool {
			n := NormalizeProgress(p)
			return n == UnknownProgress || (n >= 0 && n <= 1)
		},
		gen.Float64(),
	))

	properties.Property("eta is never negative for valid progress", prop.ForAll(
		func(p, runTime float64) bool {
			eta, ok := EstimateRemaining(p, runTime)
			return !ok || eta >= 0
		},
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1e6),
	))

	properties.TestingRun(t)
}

func Test_TerminalStatesAreClosed(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("nothing leaves Done or Failed", prop.ForAll(
		func(to JobState) bool {
			return !ValidTransition(Done, to) && !ValidTransition(Failed, to)
		},
		gen.OneConstOf(Queued, Running, Paused, Stopping, Done, Failed),
	))
	properties.TestingRun(t)
}
