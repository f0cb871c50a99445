package loader

import (
	"strconv"
	"strings"
	"time"

	"NgxQuant/internal/domain/models"
)

// Vendor exports are messy: prices carry currency prefixes and thousands
// separators, volumes use K/M/B shorthand, dates come in several layouts.
// Every parser here returns ok=false for blank or placeholder cells
// ("", "N/A", "-") instead of erroring, so one bad cell never kills a file.

var placeholders = map[string]bool{"": true, "N/A": true, "-": true, "—": true}

// ParsePrice strips everything except digits, dot and minus before parsing.
// "NGN 1,234.56" -> 1234.56, "610.00" -> 610.
func ParsePrice(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if placeholders[s] {
		return 0, false
	}
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseVolume handles K/M/B shorthand: "1.2M" -> 1200000, "345K" -> 345000,
// "12345" -> 12345.
func ParseVolume(s string) (int64, bool) {
	s = strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), ",", "")
	if placeholders[s] {
		return 0, false
	}
	multiplier := 0.0
	switch {
	case strings.HasSuffix(s, "B"):
		multiplier = 1e9
	case strings.HasSuffix(s, "M"):
		multiplier = 1e6
	case strings.HasSuffix(s, "K"):
		multiplier = 1e3
	default:
		var b strings.Builder
		for _, r := range s {
			if r >= '0' && r <= '9' {
				b.WriteRune(r)
			}
		}
		v, err := strconv.ParseInt(b.String(), 10, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	num, err := strconv.ParseFloat(strings.TrimSpace(s[:len(s)-1]), 64)
	if err != nil {
		return 0, false
	}
	return int64(num * multiplier), true
}

// ParsePct reads "+2.09%" or "-1.4" as a percentage value.
func ParsePct(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(s), "%", ""), ",", "")
	if placeholders[s] {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var dateLayouts = []string{
	"Jan 2, 2006", // investing.com export
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"2 Jan 2006",
}

// ParseDate tries the known vendor layouts in order and returns a
// UTC-midnight date.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.Midnight(t.UTC()), true
		}
	}
	return time.Time{}, false
}

func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizePair collapses "USD/NGN" and "usd ngn" to "USDNGN".
func NormalizePair(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "/", "")
	return strings.ReplaceAll(s, " ", "")
}
