package poll

import "math"

// EaseProgress maps attempt/maxAttempts onto a cubic ease-out curve capped at 95 and
// never below previous+1.
func EaseProgress(attempt, maxAttempts, previous int) int {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	t := math.Min(1, float64(attempt)/float64(maxAttempts))
	step := int(math.Round(95 * (1 - math.Pow(1-t, 3))))
	return min(95, max(previous+1, max(1, step)))
}

// Estimate is the queue-based progress heuristic: an ease-out to 95 over the expected
// number of polls, then a slow exponential approach towards 99.
func Estimate(current, expected int) int {
	if expected <= 0 {
		expected = 1
	}
	if current <= expected {
		r := float64(current) / float64(expected)
		return int(math.Floor((1 - (1-r)*(1-r)) * 95))
	}
	extra := float64(current - expected)
	tail := math.Floor(4 * (1 - math.Exp(-extra/(float64(expected)*0.5))))
	return min(99, 95+int(tail))
}
