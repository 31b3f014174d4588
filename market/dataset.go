package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ulikunitz/xz"
)

// LoadBars reads a bar dataset from a CSV file. Files ending in .xz are
// decompressed on the fly, so large archives can be replayed without
// unpacking them first.
//
// Expected columns, with an optional header row:
//
//	time,symbol,open,high,low,close,volume
//
// time is RFC3339 (nanosecond precision accepted).
func LoadBars(path string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var src io.Reader = f
	if strings.HasSuffix(path, ".xz") {
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open xz %s: %w", path, err)
		}
		src = xr
	}

	return ReadBars(src)
}

// ReadBars parses bar CSV rows from r. Rows must be time-ordered; the
// loader rejects out-of-order data rather than silently reordering it.
func ReadBars(r io.Reader) ([]Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var bars []Bar
	var last time.Time
	line := 0

	for {
		row, err := cr.Read()
		if err == io.EOF {
			return bars, nil
		}
		if err != nil {
			return nil, err
		}
		line++

		if len(row) == 0 {
			continue
		}
		// Header detection, same trick as the tick replayer: first
		// column named "time".
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "time") {
			continue
		}

		b, err := parseBarRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if !last.IsZero() && b.Time.Before(last) {
			return nil, fmt.Errorf("line %d: bar at %s out of order", line, b.Time.Format(time.RFC3339))
		}
		last = b.Time
		bars = append(bars, b)
	}
}

func parseBarRow(row []string) (Bar, error) {
	if len(row) < 7 {
		return Bar{}, fmt.Errorf("need 7 cols time,symbol,open,high,low,close,volume, got %d", len(row))
	}

	ts := strings.TrimSpace(row[0])
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return Bar{}, fmt.Errorf("bad time %q: %w", row[0], err)
		}
	}

	vals := make([]decimal.Decimal, 5)
	for i, col := range row[2:7] {
		d, err := decimal.NewFromString(strings.TrimSpace(col))
		if err != nil {
			return Bar{}, fmt.Errorf("bad number %q: %w", col, err)
		}
		vals[i] = d
	}

	return Bar{
		Symbol: strings.TrimSpace(row[1]),
		Time:   t,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
