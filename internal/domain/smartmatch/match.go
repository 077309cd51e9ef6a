package smartmatch

import "math"

// MatchClosest returns the option token whose ratio is nearest to width/height.
//
// Distance is measured as |ln(asset) - ln(option)| so that 2:1 and 1:2 are equally far
// from 1:1. Sentinel and unparsable tokens are skipped and the first option wins a tie.
// ok is false when the dimensions are unusable or no option carries a concrete ratio.
func MatchClosest(width, height int, options []string) (string, bool) {
	if width <= 0 || height <= 0 {
		return "", false
	}
	return MatchRatio(float64(width)/float64(height), options)
}

// MatchRatio is MatchClosest for a precomputed ratio.
func MatchRatio(r float64, options []string) (string, bool) {
	if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return "", false
	}
	target := math.Log(r)

	best := ""
	bestDist := math.Inf(1)
	for _, opt := range options {
		if IsSentinel(opt) {
			continue
		}
		or, ok := ParseRatio(opt)
		if !ok {
			continue
		}
		if d := math.Abs(target - math.Log(or)); d < bestDist {
			best, bestDist = opt, d
		}
	}
	return best, best != ""
}
