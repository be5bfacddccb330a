package vlm

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	currencySymbols  = regexp.MustCompile(`[$£€¥]`)
	thousandsComma   = regexp.MustCompile(`,`)
	magnitudeSuffix  = regexp.MustCompile(`(?i)\s*(million|billion|thousand|mm|bn|k)\s*$`)
	parenNegative    = regexp.MustCompile(`^\((.*)\)$`)
)

// NormalizeAmount converts a raw financial-figure string as it appears in a
// filing (e.g. "$1,234.5 million", "(56.2)", "1.2bn") into raw millions of
// the filing's reporting currency. It returns nil if raw is empty or not a
// recognizable number, which callers store as a null metric rather than a
// guessed value.
func NormalizeAmount(raw string) *float64 {
	s := strings.TrimSpace(raw)
	if s == "" || s == "-" || s == "—" || strings.EqualFold(s, "n/a") {
		return nil
	}

	negative := false
	if m := parenNegative.FindStringSubmatch(s); m != nil {
		negative = true
		s = m[1]
	}

	s = currencySymbols.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	magnitude := 1.0
	if m := magnitudeSuffix.FindString(s); m != "" {
		magnitude = magnitudeMultiplier(m)
		s = magnitudeSuffix.ReplaceAllString(s, "")
	}

	s = thousandsComma.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}

	millions := val * magnitude
	if negative {
		millions = -millions
	}
	return &millions
}

// magnitudeMultiplier converts a trailing magnitude word/abbreviation into
// the multiplier needed to express the value in millions.
func magnitudeMultiplier(word string) float64 {
	switch strings.ToLower(strings.TrimSpace(word)) {
	case "billion", "bn":
		return 1000
	case "million", "mm":
		return 1
	case "thousand", "k":
		return 0.001
	default:
		return 1
	}
}
