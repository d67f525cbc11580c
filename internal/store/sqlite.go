package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"mftransact/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ TransactionStore = (*SQLiteStore)(nil)
var _ ReferenceStore = (*SQLiteStore)(nil)
var _ AckStore = (*SQLiteStore)(nil)
var _ MandateStore = (*SQLiteStore)(nil)

// SQLiteStore implements the ledger interfaces backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	client_id      INTEGER NOT NULL,
	plan_code      TEXT    NOT NULL,
	kind           TEXT    NOT NULL,
	mode           TEXT    NOT NULL,
	status         TEXT    NOT NULL DEFAULT '0',
	status_comment TEXT    NOT NULL DEFAULT '',
	amount         REAL    NOT NULL DEFAULT 0,
	all_redeem     INTEGER,
	inst_count     INTEGER NOT NULL DEFAULT 0,
	start_date     TEXT    NOT NULL DEFAULT '',
	inst_done      INTEGER NOT NULL DEFAULT 0,
	inst_dates     TEXT    NOT NULL DEFAULT '',
	inst_order_ids TEXT    NOT NULL DEFAULT '',
	mandate_id     TEXT    NOT NULL DEFAULT '',
	order_ref      TEXT    NOT NULL DEFAULT '',
	folio          TEXT    NOT NULL DEFAULT '',
	settled_at     TEXT    NOT NULL DEFAULT '',
	created        TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status);
CREATE INDEX IF NOT EXISTS idx_transactions_client_plan ON transactions(client_id, plan_code);

CREATE TABLE IF NOT EXISTS order_refs (
	ref       TEXT PRIMARY KEY,
	client_id INTEGER NOT NULL,
	mode      TEXT    NOT NULL,
	created   TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS order_acks (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	trans_code      TEXT NOT NULL,
	order_ref       TEXT NOT NULL,
	vendor_order_id TEXT NOT NULL DEFAULT '',
	user_id         TEXT NOT NULL DEFAULT '',
	member_id       TEXT NOT NULL DEFAULT '',
	client_code     TEXT NOT NULL DEFAULT '',
	remarks         TEXT NOT NULL DEFAULT '',
	success         INTEGER NOT NULL,
	mode            TEXT NOT NULL,
	created         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_order_acks_ref ON order_acks(order_ref);

CREATE TABLE IF NOT EXISTS mandates (
	id             TEXT PRIMARY KEY,
	client_id      INTEGER NOT NULL,
	account_number TEXT NOT NULL DEFAULT '',
	branch_code    TEXT NOT NULL DEFAULT '',
	ceiling        REAL NOT NULL DEFAULT 0,
	status         TEXT NOT NULL,
	created        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mandates_client ON mandates(client_id, status);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// TransactionStore implementation
// ---------------------------------------------------------------------------

const transactionColumns = `id, client_id, plan_code, kind, mode, status, status_comment,
	amount, all_redeem, inst_count, start_date, inst_done, inst_dates,
	inst_order_ids, mandate_id, order_ref, folio, settled_at, created`

// SaveTransaction inserts a new ledger entry and assigns its ID.
func (s *SQLiteStore) SaveTransaction(ctx context.Context, t *domain.Transaction) error {
	dates, ids := encodeInstalments(t.Instalments)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (client_id, plan_code, kind, mode, status,
			status_comment, amount, all_redeem, inst_count, start_date,
			inst_done, inst_dates, inst_order_ids, mandate_id, order_ref,
			folio, settled_at, created)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ClientID, t.PlanCode, string(t.Kind), string(t.Mode), string(t.Status),
		t.StatusComment, t.Amount, encodeNullBool(t.AllRedeem), t.InstalmentCount,
		encodeDate(t.StartDate), t.InstalmentsDone, dates, ids, t.MandateID,
		t.OrderRef, t.Folio, encodeTime(t.SettledAt), encodeTime(t.Created),
	)
	if err != nil {
		return fmt.Errorf("inserting transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted transaction id: %w", err)
	}
	t.ID = id
	return nil
}

// GetTransaction retrieves a single entry by its ID.
func (s *SQLiteStore) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, fmt.Errorf("loading transaction %d: %w", id, err)
	}
	return t, nil
}

// UpdateTransaction persists changes to an existing entry.
func (s *SQLiteStore) UpdateTransaction(ctx context.Context, t *domain.Transaction) error {
	dates, ids := encodeInstalments(t.Instalments)
	_, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET status = ?, status_comment = ?, amount = ?,
			all_redeem = ?, inst_count = ?, start_date = ?, inst_done = ?,
			inst_dates = ?, inst_order_ids = ?, mandate_id = ?, order_ref = ?,
			folio = ?, settled_at = ?
		WHERE id = ?`,
		string(t.Status), t.StatusComment, t.Amount, encodeNullBool(t.AllRedeem),
		t.InstalmentCount, encodeDate(t.StartDate), t.InstalmentsDone, dates,
		ids, t.MandateID, t.OrderRef, t.Folio, encodeTime(t.SettledAt), t.ID,
	)
	if err != nil {
		return fmt.Errorf("updating transaction %d: %w", t.ID, err)
	}
	return nil
}

// ListByStatus returns all entries in any of the given statuses, oldest
// first.
func (s *SQLiteStore) ListByStatus(ctx context.Context, statuses ...domain.TransactionStatus) ([]domain.Transaction, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = string(st)
	}
	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE status IN (` +
		placeholders(len(statuses)) + `) ORDER BY created, id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions by status: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// PendingReconciliation returns entries awaiting status signals: Placed,
// Redirected, or PaymentProvisional in any mode, plus Completed recurring
// plans whose later instalments may still arrive.
func (s *SQLiteStore) PendingReconciliation(ctx context.Context) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE status IN ('2', '4', '5') OR (status = '6' AND mode = '2')
		ORDER BY created, id`)
	if err != nil {
		return nil, fmt.Errorf("listing pending transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// PriorCompletedPurchase returns the oldest completed Purchase for the
// client and plan with a non-blank folio.
func (s *SQLiteStore) PriorCompletedPurchase(ctx context.Context, clientID int64, planCode string) (*domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE client_id = ? AND plan_code = ? AND kind = 'P' AND status = '6'
			AND folio != ''
		ORDER BY created, id LIMIT 1`, clientID, planCode)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoPriorHolding
	}
	if err != nil {
		return nil, fmt.Errorf("looking up prior purchase: %w", err)
	}
	return t, nil
}

// RecurringTotalForMandate sums the amounts of the client's recurring
// entries in active states referencing the mandate.
func (s *SQLiteStore) RecurringTotalForMandate(ctx context.Context, clientID int64, mandateID string) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM transactions
		WHERE client_id = ? AND mandate_id = ? AND mode = '2'
			AND status IN ('2', '5', '6', '8')`, clientID, mandateID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing mandate usage: %w", err)
	}
	return total, nil
}

// ---------------------------------------------------------------------------
// ReferenceStore implementation
// ---------------------------------------------------------------------------

// MaxCounter returns the highest counter suffix among references starting
// with prefix. The prefix is always 15 characters (8-digit date, 1-digit
// mode, 6-digit client), so the counter is everything from position 16.
func (s *SQLiteStore) MaxCounter(ctx context.Context, prefix string) (int, error) {
	var maxCounter int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(CAST(SUBSTR(ref, ?) AS INTEGER)), 0)
		FROM order_refs WHERE ref LIKE ?`,
		len(prefix)+1, prefix+"%").Scan(&maxCounter)
	if err != nil {
		return 0, fmt.Errorf("reading max reference counter: %w", err)
	}
	return maxCounter, nil
}

// RecordRef persists a newly issued reference. A primary-key conflict maps
// to domain.ErrDuplicateRef so the generator can detect a stale counter.
func (s *SQLiteStore) RecordRef(ctx context.Context, ref string, clientID int64, mode domain.OrderMode) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO order_refs (ref, client_id, mode, created)
		VALUES (?, ?, ?, ?)`,
		ref, clientID, string(mode), encodeTime(time.Now().UTC()))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("recording reference %s: %w", ref, domain.ErrDuplicateRef)
		}
		return fmt.Errorf("recording reference %s: %w", ref, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// AckStore implementation
// ---------------------------------------------------------------------------

// SaveAck inserts an acknowledgement record.
func (s *SQLiteStore) SaveAck(ctx context.Context, ack *domain.OrderAck) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO order_acks (trans_code, order_ref, vendor_order_id,
			user_id, member_id, client_code, remarks, success, mode, created)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ack.TransCode, ack.OrderRef, ack.VendorOrderID, ack.UserID,
		ack.MemberID, ack.ClientCode, ack.Remarks, boolToInt(ack.Success),
		string(ack.Mode), encodeTime(ack.Created))
	if err != nil {
		return fmt.Errorf("inserting acknowledgement: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted acknowledgement id: %w", err)
	}
	ack.ID = id
	return nil
}

// AckByRef returns the acknowledgement for the given order reference.
func (s *SQLiteStore) AckByRef(ctx context.Context, orderRef string) (*domain.OrderAck, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, trans_code, order_ref, vendor_order_id, user_id, member_id,
			client_code, remarks, success, mode, created
		FROM order_acks WHERE order_ref = ?`, orderRef)

	var (
		ack     domain.OrderAck
		success int
		mode    string
		created string
	)
	err := row.Scan(&ack.ID, &ack.TransCode, &ack.OrderRef, &ack.VendorOrderID,
		&ack.UserID, &ack.MemberID, &ack.ClientCode, &ack.Remarks, &success,
		&mode, &created)
	if err != nil {
		return nil, fmt.Errorf("loading acknowledgement for %s: %w", orderRef, err)
	}
	ack.Success = success != 0
	ack.Mode = domain.OrderMode(mode)
	ack.Created = decodeTime(created)
	return &ack, nil
}

// ---------------------------------------------------------------------------
// MandateStore implementation
// ---------------------------------------------------------------------------

// SaveMandate inserts or replaces a mandate by its vendor-assigned ID.
func (s *SQLiteStore) SaveMandate(ctx context.Context, m *domain.Mandate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO mandates (id, client_id, account_number,
			branch_code, ceiling, status, created)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ClientID, m.Account.AccountNumber, m.Account.BranchCode,
		m.Ceiling, string(m.Status), encodeTime(m.Created))
	if err != nil {
		return fmt.Errorf("saving mandate %s: %w", m.ID, err)
	}
	return nil
}

// MandatesByStatus returns the client's mandates in any of the given
// statuses, oldest first.
func (s *SQLiteStore) MandatesByStatus(ctx context.Context, clientID int64, statuses ...domain.MandateStatus) ([]domain.Mandate, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := []any{clientID}
	for _, st := range statuses {
		args = append(args, string(st))
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, account_number, branch_code, ceiling, status, created
		FROM mandates WHERE client_id = ? AND status IN (`+placeholders(len(statuses))+`)
		ORDER BY created, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing mandates: %w", err)
	}
	defer rows.Close()

	var out []domain.Mandate
	for rows.Next() {
		var (
			m       domain.Mandate
			status  string
			created string
		)
		if err := rows.Scan(&m.ID, &m.ClientID, &m.Account.AccountNumber,
			&m.Account.BranchCode, &m.Ceiling, &status, &created); err != nil {
			return nil, fmt.Errorf("scanning mandate: %w", err)
		}
		m.Status = domain.MandateStatus(status)
		m.Created = decodeTime(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Row helpers
// ---------------------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		t         domain.Transaction
		kind      string
		mode      string
		status    string
		allRedeem sql.NullInt64
		startDate string
		dates     string
		ids       string
		settledAt string
		created   string
	)
	err := row.Scan(&t.ID, &t.ClientID, &t.PlanCode, &kind, &mode, &status,
		&t.StatusComment, &t.Amount, &allRedeem, &t.InstalmentCount,
		&startDate, &t.InstalmentsDone, &dates, &ids, &t.MandateID,
		&t.OrderRef, &t.Folio, &settledAt, &created)
	if err != nil {
		return nil, err
	}
	t.Kind = domain.TransactionKind(kind)
	t.Mode = domain.OrderMode(mode)
	t.Status = domain.TransactionStatus(status)
	t.AllRedeem = decodeNullBool(allRedeem)
	t.StartDate = decodeDate(startDate)
	t.Instalments = decodeInstalments(dates, ids)
	t.SettledAt = decodeTime(settledAt)
	t.Created = decodeTime(created)
	return &t, nil
}

func collectTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encodeNullBool(b *bool) any {
	if b == nil {
		return nil
	}
	return boolToInt(*b)
}

func decodeNullBool(v sql.NullInt64) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Int64 != 0
	return &b
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func encodeDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func decodeDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Instalment history is stored as two parallel comma-joined columns, one of
// DDMMYY dates and one of vendor order ids, matching the report's own date
// format.
func encodeInstalments(insts []domain.Instalment) (dates, ids string) {
	if len(insts) == 0 {
		return "", ""
	}
	ds := make([]string, len(insts))
	is := make([]string, len(insts))
	for i, inst := range insts {
		ds[i] = inst.Date.Format("020106")
		is[i] = inst.VendorOrderID
	}
	return strings.Join(ds, ","), strings.Join(is, ",")
}

func decodeInstalments(dates, ids string) []domain.Instalment {
	if dates == "" {
		return nil
	}
	ds := strings.Split(dates, ",")
	is := strings.Split(ids, ",")
	out := make([]domain.Instalment, 0, len(ds))
	for i := range ds {
		d, err := time.Parse("020106", ds[i])
		if err != nil {
			continue
		}
		inst := domain.Instalment{Date: d}
		if i < len(is) {
			inst.VendorOrderID = is[i]
		}
		out = append(out, inst)
	}
	return out
}
