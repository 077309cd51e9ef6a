package smartmatch

import (
	"fmt"
	"math"
)

// Tier is a target pixel budget class.
type Tier string

const (
	Tier2K Tier = "2K"
	Tier4K Tier = "4K"
)

// Pixel budgets per tier.
const (
	Budget2K = 2048 * 2048
	Budget4K = 4096 * 4096
)

const (
	minSide     = 512
	minRatio    = 1.0 / 16
	maxRatio    = 16.0
	tolerance2K = 1.05
)

// Size is a pixel resolution.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// String renders the size as "WxH".
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Pixels returns Width*Height.
func (s Size) Pixels() int {
	return s.Width * s.Height
}

// ParseTier maps loose input onto a tier. Anything other than "2K" is 4K.
func ParseTier(s string) Tier {
	if s == string(Tier2K) || s == "2k" {
		return Tier2K
	}
	return Tier4K
}

func budgetFor(tier Tier) (budget int, maxAllowed float64) {
	if tier == Tier2K {
		return Budget2K, Budget2K * tolerance2K
	}
	return Budget4K, Budget4K
}

func floor8(v float64) int {
	return int(math.Floor(v/8)) * 8
}

// SmartResolution computes the largest multiple-of-8 resolution with the given ratio that
// fits the tier budget. 2K may overshoot by up to 5% to land closer to the budget; 4K never
// exceeds it. Ratios outside [1/16, 16] fall back to a square.
func SmartResolution(r float64, tier Tier) Size {
	budget, maxAllowed := budgetFor(tier)

	if r < minRatio || r > maxRatio || math.IsNaN(r) {
		side := 2048
		if tier == Tier4K {
			side = 4096
		}
		return Size{Width: side, Height: side}
	}

	h := math.Sqrt(float64(budget) / r)
	w := h * r
	width, height := floor8(w), floor8(h)

	if tier == Tier2K {
		if width*height < budget {
			current := abs(budget - width*height)
			if p := (width + 8) * height; float64(p) <= maxAllowed && abs(budget-p) < current {
				width += 8
			} else if p := width * (height + 8); float64(p) <= maxAllowed && abs(budget-p) < current {
				height += 8
			}
		}
	} else if actual := width * height; actual > budget {
		scale := math.Sqrt(float64(budget) / float64(actual))
		width = floor8(float64(width) * scale)
		height = floor8(float64(height) * scale)
	}

	width = max(width, minSide)
	height = max(height, minSide)

	if actual := float64(width * height); actual > maxAllowed {
		scale := math.Sqrt(maxAllowed / actual)
		width = floor8(float64(width) * scale)
		height = floor8(float64(height) * scale)
	}

	return Size{Width: width, Height: height}
}

// SmartResolutionFor is SmartResolution for asset dimensions.
func SmartResolutionFor(width, height int, tier Tier) Size {
	if width <= 0 || height <= 0 {
		return SmartResolution(1, tier)
	}
	return SmartResolution(float64(width)/float64(height), tier)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// baseResolutions are the 2K sizes for named ratios; 4K doubles both sides.
var baseResolutions = map[string]Size{
	"1:1":  {2048, 2048},
	"4:3":  {2304, 1728},
	"3:4":  {1728, 2304},
	"16:9": {2560, 1440},
	"9:16": {1440, 2560},
	"3:2":  {2496, 1664},
	"2:3":  {1664, 2496},
	"21:9": {3024, 1296},
}

// BaseResolution returns the fixed size for a named ratio, falling back to 1:1.
func BaseResolution(ratio string, tier Tier) Size {
	s, ok := baseResolutions[ratio]
	if !ok {
		s = baseResolutions["1:1"]
	}
	if tier == Tier4K {
		s = Size{Width: s.Width * 2, Height: s.Height * 2}
	}
	return s
}

// CommonAspectRatios are the ratios offered for base-size driven models.
var CommonAspectRatios = []string{"21:9", "16:9", "3:2", "4:3", "1:1", "3:4", "2:3", "9:16", "9:21"}

// CalculateResolution keeps the pixel count at or below base*base for the ratio
// widthRatio:heightRatio, with both sides floored to a multiple of 8.
func CalculateResolution(base int, widthRatio, heightRatio float64) Size {
	if widthRatio == heightRatio {
		return Size{Width: base, Height: base}
	}
	r := widthRatio / heightRatio
	h := math.Sqrt(float64(base*base) / r)
	return Size{Width: floor8(h * r), Height: floor8(h)}
}

// CalculateResolutionWithBounds is CalculateResolution clamped so that each side lies in
// [minSize, maxSize] and is a multiple of 16.
func CalculateResolutionWithBounds(base int, widthRatio, heightRatio float64, minSize, maxSize int) Size {
	s := CalculateResolution(base, widthRatio, heightRatio)
	width, height := float64(s.Width), float64(s.Height)
	floor16 := func(v float64) float64 { return math.Floor(v/16) * 16 }

	maxDim := math.Max(width, height)
	minDim := math.Min(width, height)
	if maxDim > float64(maxSize) {
		scale := float64(maxSize) / maxDim
		width = floor16(width * scale)
		height = floor16(height * scale)
	}
	if minDim < float64(minSize) {
		scale := float64(minSize) / minDim
		width = floor16(width * scale)
		height = floor16(height * scale)
	}

	width = math.Max(float64(minSize), math.Min(float64(maxSize), width))
	height = math.Max(float64(minSize), math.Min(float64(maxSize), height))

	return Size{Width: int(floor16(width)), Height: int(floor16(height))}
}

// BaseSizeBounds bounds a user supplied square edge length.
type BaseSizeBounds struct {
	Min  int
	Max  int
	Step int
}

// DefaultBaseSizeBounds is [512, 2048] in steps of 8.
var DefaultBaseSizeBounds = BaseSizeBounds{Min: 512, Max: 2048, Step: 8}

// ValidateBaseSize reports whether base lies in bounds and on a step.
func ValidateBaseSize(base int, b BaseSizeBounds) bool {
	return base >= b.Min && base <= b.Max && base%b.Step == 0
}

// NormalizeBaseSize clamps base into bounds and rounds it to the nearest step.
func NormalizeBaseSize(base int, b BaseSizeBounds) int {
	n := min(max(base, b.Min), b.Max)
	return int(math.Round(float64(n)/float64(b.Step))) * b.Step
}

// QwenResolution fits the ratio into [64, 2048] per side, preferring the largest edge.
func QwenResolution(widthRatio, heightRatio float64) Size {
	const (
		minSize = 64
		maxSize = 2048
	)
	if widthRatio == heightRatio {
		return Size{Width: maxSize, Height: maxSize}
	}

	r := widthRatio / heightRatio
	var width, height float64
	if r > 1 {
		width = maxSize
		height = width / r
		if height < minSize {
			height = minSize
			width = height * r
		}
	} else {
		height = maxSize
		width = height * r
		if width < minSize {
			width = minSize
			height = width / r
		}
	}

	return Size{
		Width:  min(max(floor8(width), minSize), maxSize),
		Height: min(max(floor8(height), minSize), maxSize),
	}
}
