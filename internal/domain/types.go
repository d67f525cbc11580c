// Package domain defines the core types of the fund-order engine: ledger
// transactions, mandates, order acknowledgements, and the status signals
// produced by the vendor gateway and the settlement report.
package domain

import "time"

// ---------------------------------------------------------------------------
// Enumerations
// ---------------------------------------------------------------------------

// TransactionKind distinguishes purchases, additional purchases, and
// redemptions. The values are the single-character codes used on the wire.
type TransactionKind string

const (
	KindPurchase           TransactionKind = "P"
	KindAdditionalPurchase TransactionKind = "A"
	KindRedemption         TransactionKind = "R"
)

// OrderMode distinguishes one-time (lumpsum) orders from recurring plans.
// The values are the single-digit codes embedded in order references.
type OrderMode string

const (
	ModeLumpsum   OrderMode = "1"
	ModeRecurring OrderMode = "2"
)

// TransactionStatus tracks a ledger entry through its lifecycle. The values
// are the single-character codes persisted in the ledger; "3" is unassigned
// by the vendor and intentionally missing.
type TransactionStatus string

const (
	StatusUnknown            TransactionStatus = ""
	StatusRequested          TransactionStatus = "0"
	StatusCancelled          TransactionStatus = "1"
	StatusPlaced             TransactionStatus = "2"
	StatusRedirected         TransactionStatus = "4"
	StatusPaymentProvisional TransactionStatus = "5"
	StatusCompleted          TransactionStatus = "6"
	StatusReversed           TransactionStatus = "7"
	StatusConcluded          TransactionStatus = "8"
)

// Rank returns the position of s in the forward lifecycle, for "advance,
// never regress" comparisons. Terminal states (Cancelled, Reversed) and
// unknown values return -1 and never compare as later.
func (s TransactionStatus) Rank() int {
	switch s {
	case StatusRequested:
		return 0
	case StatusPlaced:
		return 1
	case StatusRedirected:
		return 2
	case StatusPaymentProvisional:
		return 3
	case StatusCompleted:
		return 4
	case StatusConcluded:
		return 5
	}
	return -1
}

// MandateStatus tracks a standing debit authorization through registration.
type MandateStatus string

const (
	MandateCreated       MandateStatus = "0"
	MandateCancelled     MandateStatus = "1"
	MandateRegistered    MandateStatus = "2"
	MandateFormSubmitted MandateStatus = "3"
	MandateReceived      MandateStatus = "4"
	MandateAccepted      MandateStatus = "5"
	MandateRejected      MandateStatus = "6"
	MandateExhausted     MandateStatus = "7"
)

// EligibleMandateStatuses are the states in which a mandate may back new
// recurring instalments.
var EligibleMandateStatuses = []MandateStatus{
	MandateRegistered,
	MandateFormSubmitted,
	MandateReceived,
	MandateAccepted,
}

// ActiveRecurringStatuses are the transaction states in which a recurring
// plan still consumes capacity on its mandate.
var ActiveRecurringStatuses = []TransactionStatus{
	StatusPlaced,
	StatusPaymentProvisional,
	StatusCompleted,
	StatusConcluded,
}

// ---------------------------------------------------------------------------
// Ledger entities
// ---------------------------------------------------------------------------

// Instalment records one recorded instalment of a recurring plan: the
// trading date it was placed for and the vendor order identifier discovered
// for it on the provisional-order report.
type Instalment struct {
	Date          time.Time
	VendorOrderID string
}

// Transaction is one ledger entry: a single lumpsum order or a whole
// recurring plan. Recurring fields are populated iff Mode is ModeRecurring.
// For redemptions exactly one of Amount and AllRedeem carries the intent;
// AllRedeem nil means the intent was never captured.
type Transaction struct {
	ID       int64
	ClientID int64
	PlanCode string // vendor scheme plan code

	Kind TransactionKind
	Mode OrderMode

	Status        TransactionStatus
	StatusComment string

	Amount    float64
	AllRedeem *bool

	// Recurring plan bookkeeping.
	InstalmentCount int
	StartDate       time.Time // declared start of the second instalment onward
	InstalmentsDone int
	Instalments     []Instalment
	MandateID       string

	// Set once the placing (or cancelling) order has been acknowledged.
	OrderRef  string // our generated reference of the latest gateway order
	Folio     string
	SettledAt time.Time // allotment timestamp, noon UTC of the settlement date

	Created time.Time
}

// IsRecurring reports whether the entry is a recurring plan.
func (t *Transaction) IsRecurring() bool { return t.Mode == ModeRecurring }

// BankAccount identifies a client bank account as far as this engine needs
// it: the account number and the branch (IFSC) code the vendor echoes back
// on mandate registration.
type BankAccount struct {
	AccountNumber string
	BranchCode    string
}

// Mandate is a vendor-registered standing debit authorization with a ceiling
// consumed incrementally by recurring-plan instalments.
type Mandate struct {
	ID       string // vendor-assigned
	ClientID int64
	Account  BankAccount
	Ceiling  float64
	Status   MandateStatus
	Created  time.Time
}

// OrderAck is the parsed acknowledgement of one order-entry or cancellation
// call. It is immutable and persisted unconditionally, including on vendor
// rejection, to preserve the audit trail.
type OrderAck struct {
	ID            int64
	TransCode     string // NEW or CXL
	OrderRef      string // our reference, echoed back
	VendorOrderID string // vendor order id (lumpsum) or registration id (recurring)
	UserID        string
	MemberID      string
	ClientCode    string
	Remarks       string
	Success       bool
	Mode          OrderMode
	Created       time.Time
}

// ---------------------------------------------------------------------------
// Status signals (transient, never persisted)
// ---------------------------------------------------------------------------

// PaymentStatus is the gateway's answer to a payment-status query.
type PaymentStatus string

const (
	PaymentNotInitiated PaymentStatus = "not-initiated"
	PaymentRejected     PaymentStatus = "rejected"
	PaymentConfirmed    PaymentStatus = "confirmed"
)

// SettlementStatus is a report-sourced settlement signal for one order.
type SettlementStatus string

const (
	SettlementUnknown            SettlementStatus = ""
	SettlementAllotmentDone      SettlementStatus = "allotment-done"
	SettlementSentForValidation  SettlementStatus = "sent-for-validation"
	SettlementCancelledByUser    SettlementStatus = "cancelled-by-user"
	SettlementPaymentNotReceived SettlementStatus = "payment-not-received"
)
