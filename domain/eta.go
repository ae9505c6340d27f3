package domain

// Below this much progress the extrapolation is too noisy to report.
const ETAProgressThreshold = 0.01

// EstimateRemaining linearly extrapolates the minutes left from the fraction done
// and the seconds spent so far. ok is false when the estimate is unknown.
func EstimateRemaining(progress, runTime float64) (minutes float64, ok bool) {
	if !(progress > ETAProgressThreshold) {
		return UnknownProgress, false
	}
	return (runTime/progress - runTime) / 60, true
}
