package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"
)

// ReportArchive persists scraped settlement-report rows as Parquet files on
// disk, one file per report date. The archive is write-mostly: it exists so
// that a reconciliation run can be audited or replayed without re-scraping
// the portal.
type ReportArchive struct {
	DataDir string
}

// NewReportArchive creates a ReportArchive rooted at the given data directory.
func NewReportArchive(dataDir string) *ReportArchive {
	return &ReportArchive{DataDir: dataDir}
}

// SettlementRecord is the Parquet schema for one archived report row.
type SettlementRecord struct {
	OrderID         string `parquet:"order_id"`
	RawStatus       string `parquet:"raw_status"`
	Folio           string `parquet:"folio"`
	RegistrationRef string `parquet:"registration_ref"`
	ReportDate      string `parquet:"report_date"` // YYYY-MM-DD
	ArchivedAt      int64  `parquet:"archived_at,timestamp(millisecond)"`
}

// ArchiveRows writes the rows scraped for one report date, merging with any
// rows already archived for that date. Rows are deduplicated by order id,
// newest scrape winning.
// Layout: <dataDir>/reports/settlement/<YYYY-MM-DD>.parquet
func (a *ReportArchive) ArchiveRows(date time.Time, records []SettlementRecord) error {
	if len(records) == 0 {
		return nil
	}
	path := a.reportPath(date)

	existing, _ := readParquetFile[SettlementRecord](path)
	merged := mergeSettlementRecords(existing, records)

	if err := writeParquetFile(path, merged); err != nil {
		return fmt.Errorf("archiving report rows for %s: %w", date.Format("2006-01-02"), err)
	}
	return nil
}

// ReadRows returns the archived rows for one report date. A missing file
// reads as an empty archive.
func (a *ReportArchive) ReadRows(date time.Time) ([]SettlementRecord, error) {
	records, err := readParquetFile[SettlementRecord](a.reportPath(date))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading report archive for %s: %w", date.Format("2006-01-02"), err)
	}
	return records, nil
}

// reportPath returns the filesystem path for one report date's archive.
func (a *ReportArchive) reportPath(date time.Time) string {
	return filepath.Join(a.DataDir, "reports", "settlement", date.Format("2006-01-02")+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeSettlementRecords deduplicates rows by order id, preferring incoming
// records over existing ones. Results are sorted by order id for stable
// files.
func mergeSettlementRecords(existing, incoming []SettlementRecord) []SettlementRecord {
	seen := make(map[string]SettlementRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.OrderID] = r
	}
	for _, r := range incoming {
		seen[r.OrderID] = r
	}

	merged := make([]SettlementRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].OrderID < merged[j].OrderID
	})
	return merged
}
