// Package reconcile advances ledger entries by polling two independent
// signal sources: the gateway's payment-status call and the portal's
// per-date settlement reports. Signals may arrive out of order or never;
// entries only move forward through the lifecycle, with one documented
// exception handled in applyPaymentStatus.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mftransact/internal/calendar"
	"mftransact/internal/domain"
	"mftransact/internal/gateway"
	"mftransact/internal/order"
	"mftransact/internal/portal"
	"mftransact/internal/store"
)

// Comments recorded on entries failed by payment signals. The texts are
// load-bearing: downstream tooling matches on them.
const (
	commentNoPayment    = "Failed due to no payment"
	commentPaymentError = "Failed due to error in payment"
)

// EntryError is one failed entry within a batch.
type EntryError struct {
	TransactionID int64
	Err           error
}

// BatchResult summarizes one reconciliation run. A failure on one entry is
// recorded here and never aborts the rest of the batch.
type BatchResult struct {
	Examined int
	Advanced int
	Errors   []EntryError
}

// Archive receives the scraped report rows for long-term retention.
type Archive interface {
	ArchiveRows(date time.Time, records []store.SettlementRecord) error
}

// Engine runs reconciliation batches.
type Engine struct {
	ledger  store.TransactionStore
	acks    store.AckStore
	gw      gateway.Gateway
	reports portal.Source
	cal     *calendar.Resolver
	archive Archive

	log *slog.Logger
	now func() time.Time

	// Per-run report caches, keyed by report date. Reset each Run.
	statusRows map[string][]portal.Row
	provRows   map[string][]portal.Row
}

func NewEngine(ledger store.TransactionStore, acks store.AckStore, gw gateway.Gateway, reports portal.Source, cal *calendar.Resolver, archive Archive, log *slog.Logger) *Engine {
	return &Engine{
		ledger:  ledger,
		acks:    acks,
		gw:      gw,
		reports: reports,
		cal:     cal,
		archive: archive,
		log:     log,
		now:     time.Now,
	}
}

// Run executes one reconciliation batch over every pending entry: discover
// vendor order ids for recurring instalments due, apply settlement-report
// transitions, apply payment-status transitions, and archive the scraped
// rows. The returned error covers batch-level failures only; per-entry
// failures are collected in the result.
func (e *Engine) Run(ctx context.Context) (*BatchResult, error) {
	e.statusRows = make(map[string][]portal.Row)
	e.provRows = make(map[string][]portal.Row)

	pending, err := e.ledger.PendingReconciliation(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending entries: %w", err)
	}

	res := &BatchResult{Examined: len(pending)}
	for i := range pending {
		t := &pending[i]
		advanced, err := e.reconcileEntry(ctx, t)
		if err != nil {
			e.log.Error("reconciliation failed for entry",
				"transaction", t.ID, "err", err)
			res.Errors = append(res.Errors, EntryError{TransactionID: t.ID, Err: err})
			continue
		}
		if advanced {
			res.Advanced++
		}
	}

	e.archiveScrapedRows()
	e.log.Info("reconciliation batch done",
		"examined", res.Examined, "advanced", res.Advanced, "errors", len(res.Errors))
	return res, nil
}

func (e *Engine) reconcileEntry(ctx context.Context, t *domain.Transaction) (bool, error) {
	before := t.Status
	beforeDone := t.InstalmentsDone
	beforeRecorded := len(t.Instalments)

	if t.IsRecurring() {
		if err := e.discoverInstalments(ctx, t); err != nil {
			return false, err
		}
	}
	if err := e.applySettlement(ctx, t); err != nil {
		return false, err
	}
	if !t.IsRecurring() {
		if err := e.applyPaymentStatus(ctx, t); err != nil {
			return false, err
		}
	}

	changed := t.Status != before || t.InstalmentsDone != beforeDone ||
		len(t.Instalments) != beforeRecorded
	if changed {
		if err := e.ledger.UpdateTransaction(ctx, t); err != nil {
			return false, fmt.Errorf("persist entry %d: %w", t.ID, err)
		}
		e.log.Info("entry advanced",
			"transaction", t.ID, "from", string(before), "to", string(t.Status),
			"instalmentsDone", t.InstalmentsDone)
	}
	return changed, nil
}

// -----------------------------------------------------------------------------
// Instalment discovery
// -----------------------------------------------------------------------------

// discoverInstalments looks up the provisional-order listing for each
// recurring instalment that is due but has no recorded vendor order id yet,
// matching rows by the plan's registration reference. Discovered pairs are
// appended to the instalment history in date order.
func (e *Engine) discoverInstalments(ctx context.Context, t *domain.Transaction) error {
	if t.InstalmentCount > 0 && len(t.Instalments) >= t.InstalmentCount {
		return nil
	}
	regID, err := e.registrationRef(ctx, t)
	if err != nil {
		return err
	}

	for t.InstalmentCount == 0 || len(t.Instalments) < t.InstalmentCount {
		date, due, err := e.nextInstalmentDate(t)
		if err != nil {
			return err
		}
		if !due {
			return nil
		}
		rows, err := e.provisionalRows(ctx, date)
		if err != nil {
			return err
		}
		var found *portal.Row
		for i := range rows {
			if rows[i].RegistrationRef == regID {
				found = &rows[i]
				break
			}
		}
		if found == nil {
			// Listing not out yet for this date; try again next run.
			return nil
		}
		t.Instalments = append(t.Instalments, domain.Instalment{
			Date:          date,
			VendorOrderID: found.OrderID,
		})
		if err := e.ledger.UpdateTransaction(ctx, t); err != nil {
			return fmt.Errorf("record instalment: %w", err)
		}
		e.log.Info("instalment discovered",
			"transaction", t.ID, "date", date.Format("2006-01-02"),
			"vendorID", found.OrderID)
	}
	return nil
}

// nextInstalmentDate resolves the trading date of the next unrecorded
// instalment. The first instalment is placed at submission; later ones fall
// on the declared start date advanced by whole months. due is false when the
// resolved date is still in the future.
func (e *Engine) nextInstalmentDate(t *domain.Transaction) (date time.Time, due bool, err error) {
	var event time.Time
	if n := len(t.Instalments); n == 0 {
		event = t.Created
	} else {
		event = t.StartDate.AddDate(0, n-1, 0)
	}
	date, err = e.cal.Resolve(event)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("resolve instalment date: %w", err)
	}
	today := dayIn(e.now(), e.cal.Location())
	return date, !date.After(today), nil
}

// registrationRef returns the vendor registration id of a recurring plan,
// echoed in the acknowledgement of the placing order.
func (e *Engine) registrationRef(ctx context.Context, t *domain.Transaction) (string, error) {
	ack, err := e.acks.AckByRef(ctx, t.OrderRef)
	if err != nil {
		return "", fmt.Errorf("look up registration reference: %w", err)
	}
	return ack.VendorOrderID, nil
}

// -----------------------------------------------------------------------------
// Settlement-report transitions
// -----------------------------------------------------------------------------

// applySettlement fetches the settlement-status report for each of the
// entry's unsettled orders and applies the report's signal.
func (e *Engine) applySettlement(ctx context.Context, t *domain.Transaction) error {
	orders, err := e.unsettledOrders(ctx, t)
	if err != nil {
		return err
	}
	today := dayIn(e.now(), e.cal.Location())

	for _, ord := range orders {
		if ord.date.After(today) {
			break
		}
		rows, err := e.settlementRows(ctx, ord.date)
		if err != nil {
			return err
		}
		var row *portal.Row
		for i := range rows {
			if rows[i].OrderID == ord.vendorID {
				row = &rows[i]
				break
			}
		}
		if row == nil {
			continue
		}
		if err := e.applySettlementSignal(t, ord, row); err != nil {
			return err
		}
		if terminal(t.Status) {
			break
		}
	}
	return nil
}

// pendingOrder is one (date, vendor order id) pair awaiting a settlement
// signal, with its 1-based instalment index (0 for lumpsum).
type pendingOrder struct {
	date     time.Time
	vendorID string
	index    int
}

func (o pendingOrder) first() bool { return o.index <= 1 }

func (e *Engine) unsettledOrders(ctx context.Context, t *domain.Transaction) ([]pendingOrder, error) {
	if !t.IsRecurring() {
		ack, err := e.acks.AckByRef(ctx, t.OrderRef)
		if err != nil {
			return nil, fmt.Errorf("look up vendor order id: %w", err)
		}
		date, err := e.cal.Resolve(t.Created)
		if err != nil {
			return nil, fmt.Errorf("resolve settlement date: %w", err)
		}
		return []pendingOrder{{date: date, vendorID: ack.VendorOrderID}}, nil
	}

	var orders []pendingOrder
	for i := t.InstalmentsDone; i < len(t.Instalments); i++ {
		inst := t.Instalments[i]
		orders = append(orders, pendingOrder{
			date:     inst.Date,
			vendorID: inst.VendorOrderID,
			index:    i + 1,
		})
	}
	return orders, nil
}

func (e *Engine) applySettlementSignal(t *domain.Transaction, ord pendingOrder, row *portal.Row) error {
	switch row.Status {
	case domain.SettlementAllotmentDone:
		if ord.first() {
			if t.Status.Rank() < domain.StatusCompleted.Rank() {
				t.Status = domain.StatusCompleted
				t.Folio = row.Folio
				t.SettledAt = settlementTimestamp(ord.date)
				if t.IsRecurring() {
					t.InstalmentsDone = 1
				}
			}
			break
		}
		if t.Status == domain.StatusCompleted {
			t.InstalmentsDone++
			if t.InstalmentCount > 0 && t.InstalmentsDone >= t.InstalmentCount {
				t.Status = domain.StatusConcluded
			}
		}

	case domain.SettlementSentForValidation:
		if t.Status.Rank() < domain.StatusPaymentProvisional.Rank() {
			t.Status = domain.StatusPaymentProvisional
		}

	case domain.SettlementCancelledByUser:
		if ord.first() {
			if !terminal(t.Status) {
				t.Status = domain.StatusCancelled
			}
			break
		}
		dropLastInstalment(t)

	case domain.SettlementPaymentNotReceived:
		if ord.first() {
			switch t.Status {
			case domain.StatusPlaced:
				t.Status = domain.StatusCancelled
				t.StatusComment = commentNoPayment
			case domain.StatusRedirected, domain.StatusPaymentProvisional:
				t.Status = domain.StatusCancelled
				t.StatusComment = commentPaymentError
			}
			break
		}
		dropLastInstalment(t)
	}
	return nil
}

// dropLastInstalment forgets the most recent recorded (date, order id) pair
// of a plan whose later instalment was not funded or was cancelled, so a
// future listing can be matched afresh. The plan itself stays Completed.
func dropLastInstalment(t *domain.Transaction) {
	if n := len(t.Instalments); n > 0 {
		t.Instalments = t.Instalments[:n-1]
	}
}

// -----------------------------------------------------------------------------
// Payment-status transitions
// -----------------------------------------------------------------------------

// applyPaymentStatus queries the gateway for a lumpsum entry's payment
// status. The vendor reports not-initiated or rejected even for orders it
// has already moved past redirection, so those answers retreat the entry to
// Placed rather than holding the forward-only rule. The vendor refuses the
// query for redemptions, which carry no client payment.
func (e *Engine) applyPaymentStatus(ctx context.Context, t *domain.Transaction) error {
	if t.Kind == domain.KindRedemption {
		return nil
	}
	switch t.Status {
	case domain.StatusPlaced, domain.StatusRedirected, domain.StatusPaymentProvisional, domain.StatusCompleted:
	default:
		return nil
	}
	ack, err := e.acks.AckByRef(ctx, t.OrderRef)
	if err != nil {
		return fmt.Errorf("look up vendor order id: %w", err)
	}
	status, err := e.gw.PaymentStatus(ctx, order.ClientCode(t.ClientID), ack.VendorOrderID)
	if err != nil {
		return fmt.Errorf("query payment status: %w", err)
	}

	switch status {
	case domain.PaymentNotInitiated, domain.PaymentRejected:
		// The retreat applies only once the entry has moved past Placed;
		// an unpaid order still sitting at Placed is left as is.
		switch t.Status {
		case domain.StatusRedirected, domain.StatusPaymentProvisional, domain.StatusCompleted:
			t.Status = domain.StatusPlaced
			if status == domain.PaymentNotInitiated {
				t.StatusComment = commentNoPayment
			} else {
				t.StatusComment = commentPaymentError
			}
		}
	default:
		if t.Status.Rank() < domain.StatusPaymentProvisional.Rank() {
			t.Status = domain.StatusPaymentProvisional
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Archiving and report caches
// -----------------------------------------------------------------------------

func (e *Engine) archiveScrapedRows() {
	if e.archive == nil {
		return
	}
	archivedAt := e.now().UnixMilli()
	for key, rows := range e.statusRows {
		if len(rows) == 0 {
			continue
		}
		date, err := time.Parse("2006-01-02", key)
		if err != nil {
			continue
		}
		records := make([]store.SettlementRecord, 0, len(rows))
		for _, r := range rows {
			records = append(records, store.SettlementRecord{
				OrderID:         r.OrderID,
				RawStatus:       r.RawStatus,
				Folio:           r.Folio,
				RegistrationRef: r.RegistrationRef,
				ReportDate:      key,
				ArchivedAt:      archivedAt,
			})
		}
		if err := e.archive.ArchiveRows(date, records); err != nil {
			e.log.Error("report archiving failed", "date", key, "err", err)
		}
	}
}

func (e *Engine) settlementRows(ctx context.Context, date time.Time) ([]portal.Row, error) {
	key := date.Format("2006-01-02")
	if rows, ok := e.statusRows[key]; ok {
		return rows, nil
	}
	rows, err := e.reports.OrderStatusRows(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("fetch settlement report for %s: %w", key, err)
	}
	e.statusRows[key] = rows
	return rows, nil
}

func (e *Engine) provisionalRows(ctx context.Context, date time.Time) ([]portal.Row, error) {
	key := date.Format("2006-01-02")
	if rows, ok := e.provRows[key]; ok {
		return rows, nil
	}
	rows, err := e.reports.ProvisionalOrderRows(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("fetch provisional listing for %s: %w", key, err)
	}
	e.provRows[key] = rows
	return rows, nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func terminal(s domain.TransactionStatus) bool {
	switch s {
	case domain.StatusCancelled, domain.StatusReversed, domain.StatusConcluded:
		return true
	}
	return false
}

// settlementTimestamp pins an allotment to noon UTC of its settlement date.
func settlementTimestamp(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 12, 0, 0, 0, time.UTC)
}

func dayIn(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
}
