package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimePlainDate(t *testing.T) {
	got, ok := ParseTime("2024-02-20")
	if !ok {
		t.Fatalf("expected ok")
	}
	want := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestNextBusinessDaySkipsWeekend(t *testing.T) {
	friday := time.Date(2024, 6, 14, 15, 0, 0, 0, time.UTC)
	got := NextBusinessDay(friday)
	want := time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("next business day = %v, want %v", got, want)
	}
}

func TestClampDateRangeSwapsInverted(t *testing.T) {
	a := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	b := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	from, to := ClampDateRange(a, b)
	if !from.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) || !to.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("clamp = %v..%v", from, to)
	}
}
