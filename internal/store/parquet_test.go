package store

import (
	"testing"
	"time"
)

func TestReportArchivePath(t *testing.T) {
	a := NewReportArchive("/data")
	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	got := a.reportPath(date)
	want := "/data/reports/settlement/2024-03-04.parquet"
	if got != want {
		t.Errorf("path = %s, want %s", got, want)
	}
}

func TestReportArchiveWriteRead(t *testing.T) {
	a := NewReportArchive(t.TempDir())
	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	records := []SettlementRecord{
		{OrderID: "10000001", RawStatus: "ALLOTMENT DONE", Folio: "123456789012345", ReportDate: "2024-03-04", ArchivedAt: 1709539200000},
		{OrderID: "10000002", RawStatus: "SENT TO RTA FOR VALIDATION", ReportDate: "2024-03-04", ArchivedAt: 1709539200000},
	}
	if err := a.ArchiveRows(date, records); err != nil {
		t.Fatalf("ArchiveRows: %v", err)
	}

	got, err := a.ReadRows(date)
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("read %d records, want 2", len(got))
	}
	if got[0].OrderID != "10000001" || got[0].Folio != "123456789012345" {
		t.Errorf("first record = %+v", got[0])
	}
}

func TestReportArchiveMergeDeduplicates(t *testing.T) {
	a := NewReportArchive(t.TempDir())
	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	first := []SettlementRecord{
		{OrderID: "10000001", RawStatus: "SENT TO RTA FOR VALIDATION", ReportDate: "2024-03-04", ArchivedAt: 1},
	}
	if err := a.ArchiveRows(date, first); err != nil {
		t.Fatalf("ArchiveRows: %v", err)
	}

	// A later scrape of the same order must replace the earlier row, and a
	// new order must be appended.
	second := []SettlementRecord{
		{OrderID: "10000001", RawStatus: "ALLOTMENT DONE", Folio: "123456789012345", ReportDate: "2024-03-04", ArchivedAt: 2},
		{OrderID: "10000002", RawStatus: "ALLOTMENT DONE", ReportDate: "2024-03-04", ArchivedAt: 2},
	}
	if err := a.ArchiveRows(date, second); err != nil {
		t.Fatalf("ArchiveRows: %v", err)
	}

	got, err := a.ReadRows(date)
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("read %d records, want 2 after dedupe", len(got))
	}
	if got[0].RawStatus != "ALLOTMENT DONE" {
		t.Errorf("status = %q, want the newer scrape to win", got[0].RawStatus)
	}
}

func TestReportArchiveMissingDateIsEmpty(t *testing.T) {
	a := NewReportArchive(t.TempDir())
	got, err := a.ReadRows(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("read %d records from an empty archive, want 0", len(got))
	}
}
