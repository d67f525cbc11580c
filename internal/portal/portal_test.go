package portal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mftransact/internal/domain"
)

func TestParseStatusToken(t *testing.T) {
	cases := []struct {
		token string
		want  domain.SettlementStatus
	}{
		{"ALLOTMENT DONE", domain.SettlementAllotmentDone},
		{"SENT TO RTA FOR VALIDATION", domain.SettlementSentForValidation},
		{"ORDER CANCELLED BY USER", domain.SettlementCancelledByUser},
		{"PAYMENT NOT RECEIVED TILL DATE", domain.SettlementPaymentNotReceived},
		{"SOMETHING NEW", domain.SettlementUnknown},
		{"", domain.SettlementUnknown},
	}
	for _, tc := range cases {
		if got := ParseStatusToken(tc.token); got != tc.want {
			t.Errorf("ParseStatusToken(%q) = %q, want %q", tc.token, got, tc.want)
		}
	}
}

func statusCells(orderID, folio, status string) []string {
	cells := make([]string, 19)
	cells[statusColOrderID] = orderID
	cells[statusColFolio] = folio
	cells[statusColStatus] = status
	return cells
}

func TestRowFromStatusReport(t *testing.T) {
	row, ok := RowFromStatusReport(statusCells("10000001", "123456789012345", "ALLOTMENT DONE"))
	if !ok {
		t.Fatal("expected a parsed row")
	}
	if row.OrderID != "10000001" {
		t.Errorf("order id = %q", row.OrderID)
	}
	if row.Folio != "123456789012345" {
		t.Errorf("folio = %q", row.Folio)
	}
	if row.Status != domain.SettlementAllotmentDone {
		t.Errorf("status = %q", row.Status)
	}
	if row.RawStatus != "ALLOTMENT DONE" {
		t.Errorf("raw status = %q", row.RawStatus)
	}
}

func TestRowFromStatusReportShortRow(t *testing.T) {
	if _, ok := RowFromStatusReport([]string{"", "", "", "total"}); ok {
		t.Error("summary rows must be dropped")
	}
	if _, ok := RowFromStatusReport(statusCells("", "", "ALLOTMENT DONE")); ok {
		t.Error("rows without an order id must be dropped")
	}
}

func TestRowFromProvisionalReport(t *testing.T) {
	cells := make([]string, 25)
	cells[provColOrderID] = "20000001"
	cells[provColRegRef] = "77001122"

	row, ok := RowFromProvisionalReport(cells)
	if !ok {
		t.Fatal("expected a parsed row")
	}
	if row.OrderID != "20000001" {
		t.Errorf("order id = %q", row.OrderID)
	}
	if row.RegistrationRef != "77001122" {
		t.Errorf("registration ref = %q", row.RegistrationRef)
	}
}

func TestCSVSourceReadsReport(t *testing.T) {
	dir := t.TempDir()
	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	var lines []string
	lines = append(lines, strings.Repeat(",", 18)) // header
	lines = append(lines, strings.Join(statusCells("10000001", "123456789012345", "ALLOTMENT DONE"), ","))
	lines = append(lines, strings.Join(statusCells("10000002", "", "SENT TO RTA FOR VALIDATION"), ","))
	path := filepath.Join(dir, "order_status_2024-03-04.csv")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	src := NewCSVSource(dir, nil)
	rows, err := src.OrderStatusRows(context.Background(), date)
	if err != nil {
		t.Fatalf("OrderStatusRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].OrderID != "10000001" || rows[0].Status != domain.SettlementAllotmentDone {
		t.Errorf("first row = %+v", rows[0])
	}
	if rows[1].Status != domain.SettlementSentForValidation {
		t.Errorf("second row status = %q", rows[1].Status)
	}
}

func TestCSVSourceMissingFileIsEmpty(t *testing.T) {
	src := NewCSVSource(t.TempDir(), nil)
	rows, err := src.OrderStatusRows(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("OrderStatusRows: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows from a missing report, want 0", len(rows))
	}
}
