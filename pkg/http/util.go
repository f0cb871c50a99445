package http

import (
	"time"

	xutil "NgxQuant/pkg/util"
)

// ParseIntDefault parses an int query value, falling back on empty or
// malformed input.
func ParseIntDefault(s string, def int) int { return xutil.ParseIntDefault(s, def) }

// ParseTime accepts RFC3339, RFC3339Nano, plain dates, and unix seconds.
func ParseTime(s string) (time.Time, bool) { return xutil.ParseTime(s) }

// ParseTimeDefault parses a time value, falling back on empty or malformed
// input.
func ParseTimeDefault(s string, def time.Time) time.Time { return xutil.ParseTimeDefault(s, def) }
