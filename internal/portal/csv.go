package portal

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mftransact/internal/util"
)

// -----------------------------------------------------------------------------
// CSV-backed source
// -----------------------------------------------------------------------------

// CSVSource reads report tables exported as CSV files under a directory,
// one file per report per date:
//
//	<dir>/order_status_<YYYY-MM-DD>.csv
//	<dir>/provisional_<YYYY-MM-DD>.csv
//
// A missing file means the report is not out yet for that date and yields
// zero rows. A rate limiter paces the reads so a reconciliation sweep over
// many dates matches the cadence the live portal tolerates.
type CSVSource struct {
	dir     string
	limiter *util.RateLimiter
}

var _ Source = (*CSVSource)(nil)

func NewCSVSource(dir string, limiter *util.RateLimiter) *CSVSource {
	return &CSVSource{dir: dir, limiter: limiter}
}

func (s *CSVSource) OrderStatusRows(ctx context.Context, date time.Time) ([]Row, error) {
	return s.read(ctx, "order_status", date, RowFromStatusReport)
}

func (s *CSVSource) ProvisionalOrderRows(ctx context.Context, date time.Time) ([]Row, error) {
	return s.read(ctx, "provisional", date, RowFromProvisionalReport)
}

func (s *CSVSource) read(ctx context.Context, kind string, date time.Time, parse func([]string) (Row, bool)) ([]Row, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s.csv", kind, date.Format("2006-01-02")))
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s report: %w", kind, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s report: %w", kind, err)
	}

	var rows []Row
	for i, cells := range records {
		if i == 0 {
			continue // header
		}
		if row, ok := parse(cells); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}
