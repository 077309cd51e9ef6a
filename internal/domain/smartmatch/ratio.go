// Package smartmatch picks provider aspect-ratio tokens and pixel sizes that best fit an
// uploaded asset. Everything here is pure and safe for concurrent use.
package smartmatch

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Sentinel option tokens that never describe a concrete ratio.
const (
	TokenAuto    = "auto"
	TokenSmart   = "smart"
	TokenSmartZH = "智能"
)

// IsSentinel reports whether token is a placeholder such as "auto" or "smart".
func IsSentinel(token string) bool {
	switch strings.TrimSpace(strings.ToLower(token)) {
	case TokenAuto, TokenSmart, TokenSmartZH:
		return true
	}
	return false
}

// ParseRatio parses "W:H", "W*H" or "WxH" into width/height.
func ParseRatio(token string) (float64, bool) {
	w, h, ok := parsePair(token)
	if !ok {
		return 0, false
	}
	return w / h, true
}

// ParsePair parses a ratio or size token into its two components.
func ParsePair(token string) (float64, float64, bool) {
	return parsePair(token)
}

func parsePair(token string) (float64, float64, bool) {
	token = strings.TrimSpace(token)
	var parts []string
	for _, sep := range []string{":", "*", "x", "X"} {
		if strings.Contains(token, sep) {
			parts = strings.SplitN(token, sep, 2)
			break
		}
	}
	if len(parts) != 2 {
		return 0, 0, false
	}
	w, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	h, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}
	if w <= 0 || h <= 0 || math.IsInf(w, 0) || math.IsInf(h, 0) {
		return 0, 0, false
	}
	return w, h, true
}

// commonRatios maps a ratio rounded to three decimals onto its conventional token.
var commonRatios = map[string]string{
	"2.333": "21:9",
	"2.370": "21:9",
	"1.778": "16:9",
	"1.777": "16:9",
	"1.500": "3:2",
	"1.333": "4:3",
	"1.250": "5:4",
	"1.000": "1:1",
	"0.800": "4:5",
	"0.750": "3:4",
	"0.667": "2:3",
	"0.563": "9:16",
	"0.562": "9:16",
	"0.429": "9:21",
	"0.422": "9:21",
}

// FormatRatio renders a ratio as a "W:H" token. Well-known ratios use their usual
// spelling, everything else is reduced from a hundredths approximation.
func FormatRatio(r float64) string {
	if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return "1:1"
	}
	if token, ok := commonRatios[strconv.FormatFloat(r, 'f', 3, 64)]; ok {
		return token
	}
	w := int(math.Round(r * 100))
	h := 100
	d := gcd(w, h)
	return fmt.Sprintf("%d:%d", w/d, h/d)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}
