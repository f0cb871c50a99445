package util

import "strconv"

// ParseIntDefault parses s as an int, falling back to def when s is empty
// or malformed.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
