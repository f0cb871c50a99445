package loader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"NgxQuant/internal/domain/models"
	"NgxQuant/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"610.00", 610, true},
		{"NGN 1,234.56", 1234.56, true},
		{"1,234.56", 1234.56, true},
		{"-3.5", -3.5, true},
		{"N/A", 0, false},
		{"-", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := ParsePrice(c.in)
		if ok != c.ok || got != c.want {
			t.Fatalf("ParsePrice(%q) = %v,%v, want %v,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestParseVolumeShorthand(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"1.2M", 1_200_000, true},
		{"345K", 345_000, true},
		{"1.5B", 1_500_000_000, true},
		{"12345", 12345, true},
		{"12,345", 12345, true},
		{"N/A", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseVolume(c.in)
		if ok != c.ok || got != c.want {
			t.Fatalf("ParseVolume(%q) = %v,%v, want %v,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestParsePct(t *testing.T) {
	if v, ok := ParsePct("+2.09%"); !ok || v != 2.09 {
		t.Fatalf("ParsePct(+2.09%%) = %v,%v", v, ok)
	}
	if v, ok := ParsePct("-1.40%"); !ok || v != -1.4 {
		t.Fatalf("ParsePct(-1.40%%) = %v,%v", v, ok)
	}
	if _, ok := ParsePct("N/A"); ok {
		t.Fatalf("placeholder parsed as percentage")
	}
}

func TestParseDateLayouts(t *testing.T) {
	want := models.Day(2024, time.February, 20)
	for _, in := range []string{"Feb 20, 2024", "2024-02-20", "20/02/2024", "20 Feb 2024"} {
		got, ok := ParseDate(in)
		if !ok || !got.Equal(want) {
			t.Fatalf("ParseDate(%q) = %v,%v, want %v", in, got, ok, want)
		}
	}
	if _, ok := ParseDate("not a date"); ok {
		t.Fatalf("garbage parsed as date")
	}
}

func TestNormalizePair(t *testing.T) {
	for in, want := range map[string]string{
		"USD/NGN": "USDNGN",
		"usd ngn": "USDNGN",
		"USDNGN":  "USDNGN",
	} {
		if got := NormalizePair(in); got != want {
			t.Fatalf("NormalizePair(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSymbolFromFilename(t *testing.T) {
	cases := map[string]string{
		"/data/DANGCEM_daily.csv":       "DANGCEM",
		"/data/gtco historical.csv":     "GTCO",
		"/data/MTNN.2024.csv":           "MTNN",
		"/data/zenith_export.csv":       "ZENITH",
		"/data/usdngn historical 2.csv": "USDNGN",
	}
	for in, want := range cases {
		got, ok := SymbolFromFilename(in)
		if !ok || got != want {
			t.Fatalf("SymbolFromFilename(%q) = %q,%v, want %q", in, got, ok, want)
		}
	}
}

func TestLoadBarsInvestingLayout(t *testing.T) {
	csvBody := `"Date","Price","Open","High","Low","Vol.","Change %"
"Feb 20, 2024","610.00","605.00","615.00","600.00","1.2M","+2.09%"
"Feb 19, 2024","597.50","590.00","600.00","588.00","345K","-0.42%"
"Feb 16, 2024","600.00","N/A","N/A","N/A","-","-"
"bad date","600.00","","","","",""
"Feb 15, 2024","-1.00","","","","",""
`
	dir := t.TempDir()
	path := writeFile(t, dir, "DANGCEM_daily.csv", csvBody)

	symbol, bars, err := New(testLogger(t)).LoadBars(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if symbol != "DANGCEM" {
		t.Fatalf("symbol = %q", symbol)
	}
	// Bad-date and non-positive-close rows are skipped, not fatal.
	if len(bars) != 3 {
		t.Fatalf("bars = %d, want 3", len(bars))
	}

	first := bars[0]
	if !first.Date.Equal(models.Day(2024, time.February, 20)) {
		t.Fatalf("date = %v", first.Date)
	}
	if first.Close != 610 {
		t.Fatalf("close = %v", first.Close)
	}
	if first.Open == nil || *first.Open != 605 {
		t.Fatalf("open = %v", first.Open)
	}
	if first.Volume == nil || *first.Volume != 1_200_000 {
		t.Fatalf("volume = %v", first.Volume)
	}
	if first.ChangePct == nil || *first.ChangePct != 2.09 {
		t.Fatalf("change pct = %v", first.ChangePct)
	}

	sparse := bars[2]
	if sparse.Open != nil || sparse.Volume != nil || sparse.ChangePct != nil {
		t.Fatalf("placeholder cells must stay nil: %+v", sparse)
	}
	if sparse.Close != 600 {
		t.Fatalf("sparse close = %v", sparse.Close)
	}
}

func TestLoadFxRatesNormalizesPair(t *testing.T) {
	csvBody := `Date,Price,Open,High,Low,Vol.,Change %
"Feb 20, 2024","1580.50","1575.00","1590.00","1570.00","","+0.35%"
`
	dir := t.TempDir()
	path := writeFile(t, dir, "usdngn historical.csv", csvBody)

	rates, err := New(testLogger(t)).LoadFxRates(path, "USD/NGN", "cbn")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rates) != 1 {
		t.Fatalf("rates = %d, want 1", len(rates))
	}
	if rates[0].Symbol != "USDNGN" {
		t.Fatalf("pair = %q, want USDNGN", rates[0].Symbol)
	}
	if rates[0].Source != "cbn" {
		t.Fatalf("source = %q", rates[0].Source)
	}
	if rates[0].Close != 1580.5 {
		t.Fatalf("close = %v", rates[0].Close)
	}
}

func TestDiscoverFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.csv", "x")
	writeFile(t, dir, "a.CSV", "x")
	writeFile(t, dir, "notes.txt", "x")

	files, err := DiscoverFiles(dir)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %v, want two csvs", files)
	}

	missing, err := DiscoverFiles(filepath.Join(dir, "nope"))
	if err != nil || missing != nil {
		t.Fatalf("missing dir should be empty result, got %v, %v", missing, err)
	}
}

func TestLoadRegimes(t *testing.T) {
	csvBody := `date,regime
2024-01-02,stable
2024-06-14,depreciation
2024-06-15,
`
	dir := t.TempDir()
	path := writeFile(t, dir, "regimes.csv", csvBody)

	regimes, err := New(testLogger(t)).LoadRegimes(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(regimes) != 2 {
		t.Fatalf("regimes = %v, want 2 labelled dates", regimes)
	}
	if regimes[models.Day(2024, time.June, 14)] != "depreciation" {
		t.Fatalf("regime lookup failed: %v", regimes)
	}
}
