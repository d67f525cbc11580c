// Package portal consumes the vendor's web-report source: per-date tabular
// reports whose positionally defined columns carry order settlement status
// and provisional-order listings. How the tables are obtained (export,
// crawl, download) is the caller's concern; this package owns the column
// layout and the status-token vocabulary.
package portal

import (
	"context"
	"time"

	"mftransact/internal/domain"
)

// Row is one parsed report row.
type Row struct {
	OrderID         string
	RawStatus       string
	Status          domain.SettlementStatus
	Folio           string
	RegistrationRef string // recurring-plan registration id, provisional report only
}

// Source provides the two per-date report queries the reconciliation engine
// needs.
type Source interface {
	// OrderStatusRows returns the settlement-status report rows for one
	// trading date.
	OrderStatusRows(ctx context.Context, date time.Time) ([]Row, error)

	// ProvisionalOrderRows returns the provisional-order listing for one
	// trading date, used to discover vendor order ids for recurring
	// instalments due that day.
	ProvisionalOrderRows(ctx context.Context, date time.Time) ([]Row, error)
}

// Positional column indexes in the two report tables. The layouts are the
// vendor's; do not renumber.
const (
	statusColOrderID = 3
	statusColFolio   = 15
	statusColStatus  = 18

	provColOrderID = 5
	provColRegRef  = 24
)

// ParseStatusToken maps the report's free-text status cell onto the
// settlement signal values. Unrecognised tokens map to SettlementUnknown
// and are ignored by the reconciliation engine.
func ParseStatusToken(token string) domain.SettlementStatus {
	switch token {
	case "ALLOTMENT DONE":
		return domain.SettlementAllotmentDone
	case "SENT TO RTA FOR VALIDATION":
		return domain.SettlementSentForValidation
	case "ORDER CANCELLED BY USER":
		return domain.SettlementCancelledByUser
	case "PAYMENT NOT RECEIVED TILL DATE":
		return domain.SettlementPaymentNotReceived
	}
	return domain.SettlementUnknown
}

// RowFromStatusReport parses one settlement-status report row from its
// cells. Rows too short to carry the status column are dropped (the report
// ends with summary rows that do not describe orders).
func RowFromStatusReport(cells []string) (Row, bool) {
	if len(cells) <= statusColStatus || cells[statusColOrderID] == "" {
		return Row{}, false
	}
	raw := cells[statusColStatus]
	return Row{
		OrderID:   cells[statusColOrderID],
		RawStatus: raw,
		Status:    ParseStatusToken(raw),
		Folio:     cells[statusColFolio],
	}, true
}

// RowFromProvisionalReport parses one provisional-order report row from its
// cells.
func RowFromProvisionalReport(cells []string) (Row, bool) {
	if len(cells) <= provColRegRef || cells[provColOrderID] == "" {
		return Row{}, false
	}
	return Row{
		OrderID:         cells[provColOrderID],
		RegistrationRef: cells[provColRegRef],
	}, true
}
