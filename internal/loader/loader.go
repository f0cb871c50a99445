// Package loader bulk-imports vendor CSV exports (investing.com layout:
// Date, Price, Open, High, Low, Volume, Change %) into daily bars. Rows that
// fail to parse are logged and skipped; a file only errors when it cannot be
// opened or read at all.
package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"NgxQuant/internal/domain/models"
	"NgxQuant/pkg/logger"
)

type Loader struct {
	log *logger.Logger
	now func() time.Time
}

func New(log *logger.Logger) *Loader {
	return &Loader{log: log, now: time.Now}
}

// SymbolFromFilename derives the instrument symbol from the file stem:
// "DANGCEM_daily.csv" -> "DANGCEM", "usdngn historical.csv" -> "USDNGN".
func SymbolFromFilename(path string) (string, bool) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	head := strings.FieldsFunc(stem, func(r rune) bool {
		return r == '_' || r == ' ' || r == '.'
	})
	if len(head) == 0 {
		return "", false
	}
	symbol := NormalizeSymbol(head[0])
	if symbol == "" {
		return "", false
	}
	return symbol, true
}

// DiscoverFiles returns the .csv files directly under dir, sorted by name.
// A missing directory is an empty result, not an error.
func DiscoverFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("loader: read dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// LoadBars parses one equity or index CSV. The symbol comes from the
// filename.
func (l *Loader) LoadBars(path string) (string, []models.DailyBar, error) {
	symbol, ok := SymbolFromFilename(path)
	if !ok {
		return "", nil, fmt.Errorf("loader: no symbol in filename %s", path)
	}
	bars, err := l.readBars(path, symbol, "")
	if err != nil {
		return "", nil, err
	}
	return symbol, bars, nil
}

// LoadFxRates parses one FX CSV. The pair is supplied by the caller and
// normalized ("USD/NGN" -> "USDNGN"); source tags the vendor.
func (l *Loader) LoadFxRates(path, pair, source string) ([]models.DailyBar, error) {
	normalized := NormalizePair(pair)
	if normalized == "" {
		return nil, fmt.Errorf("loader: empty fx pair for %s", path)
	}
	return l.readBars(path, normalized, source)
}

func (l *Loader) readBars(path, symbol, source string) ([]models.DailyBar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // vendor files vary in trailing columns

	scrapedAt := l.now().UTC()
	var bars []models.DailyBar
	row := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			l.log.Warn("skipping malformed csv row",
				logger.String("file", path), logger.Int("row", row), logger.Error(err))
			continue
		}
		if row == 1 && isHeader(record) {
			continue
		}
		bar, ok := rowToBar(record, symbol, source, scrapedAt)
		if !ok {
			l.log.Warn("skipping unparseable csv row",
				logger.String("file", path), logger.Int("row", row))
			continue
		}
		bars = append(bars, bar)
	}

	l.log.Info("csv file loaded",
		logger.String("file", path), logger.String("symbol", symbol), logger.Int("bars", len(bars)))
	return bars, nil
}

func isHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	_, ok := ParseDate(record[0])
	return !ok
}

// rowToBar maps Date, Price, Open, High, Low, Volume, Change %. Only date
// and a positive close are mandatory; the rest stays nil when absent.
func rowToBar(record []string, symbol, source string, scrapedAt time.Time) (models.DailyBar, bool) {
	cell := func(i int) string {
		if i < len(record) {
			return record[i]
		}
		return ""
	}
	date, ok := ParseDate(cell(0))
	if !ok {
		return models.DailyBar{}, false
	}
	close, ok := ParsePrice(cell(1))
	if !ok || close <= 0 {
		return models.DailyBar{}, false
	}

	bar := models.DailyBar{
		Symbol:    symbol,
		Date:      date,
		Close:     close,
		Source:    source,
		ScrapedAt: scrapedAt,
	}
	if v, ok := ParsePrice(cell(2)); ok {
		bar.Open = &v
	}
	if v, ok := ParsePrice(cell(3)); ok {
		bar.High = &v
	}
	if v, ok := ParsePrice(cell(4)); ok {
		bar.Low = &v
	}
	if v, ok := ParseVolume(cell(5)); ok {
		bar.Volume = &v
	}
	if v, ok := ParsePct(cell(6)); ok {
		bar.ChangePct = &v
	}
	return bar, true
}

// LoadRegimes parses a two-column date,label CSV into the regime map the
// backtester slices reports by.
func (l *Loader) LoadRegimes(path string) (map[time.Time]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	regimes := make(map[time.Time]string)
	row := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, fmt.Errorf("loader: %s row %d: %w", path, row, err)
		}
		if len(record) < 2 {
			continue
		}
		date, ok := ParseDate(record[0])
		if !ok {
			if row == 1 {
				continue // header
			}
			return nil, fmt.Errorf("loader: %s row %d: bad date %q", path, row, record[0])
		}
		label := strings.TrimSpace(record[1])
		if label != "" {
			regimes[date] = label
		}
	}
	return regimes, nil
}
