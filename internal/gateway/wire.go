package gateway

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"mftransact/internal/domain"
)

// Wire method names on the vendor services.
const (
	methodGetPassword    = "getPassword"
	methodOrderEntry     = "orderEntryParam"
	methodRecurringEntry = "xsipOrderEntryParam"
	methodGeneric        = "MFAPI"
)

// Transaction codes carried in the first positional field of an order entry.
const (
	TransCodeNew    = "NEW"
	TransCodeModify = "MOD"
	TransCodeCancel = "CXL"
)

const responseDelimiter = "|"

// statusOK is the numeric status code on auth and generic-call responses.
const statusOK = "100"

// ackSuccessFlag is the dedicated success indicator on order-entry
// responses; anything else is a rejection.
const ackSuccessFlag = "0"

var numericPattern = regexp.MustCompile(`^[0-9]*$`)

// ---------------------------------------------------------------------------
// Lumpsum order entry
// ---------------------------------------------------------------------------

// OrderEntry is one positional lumpsum order-entry payload, new or
// cancellation. The field set and widths follow the vendor schema; defaults
// describe a fresh physical-mode purchase so callers only touch the fields
// their order kind needs.
type OrderEntry struct {
	TransCode  string // NEW, MOD, CXL
	OrderRef   string // our generated reference (unique per call)
	OrderID    string // vendor order id, cancellation only
	UserID     string
	MemberID   string
	ClientCode string
	SchemeCode string
	BuySell     string // P or R
	BuySellType string // FRESH or ADDITIONAL
	DPTxn       string // P, N, C
	Amount      string // rupee amount, digits only; blank for full redemptions
	Qty         string
	AllRedeem   string // Y or N
	FolioNo     string
	Remarks     string
	KYCStatus   string
	RefNo       string
	SubBroker   string
	EUIN        string
	EUINFlag    string
	MinRedeem   string
	DPC         string
	IPAddress   string
	Param1      string
	Param2      string
	Param3      string
}

// NewOrderEntry returns an OrderEntry pre-filled for a fresh purchase with
// the member credentials applied.
func NewOrderEntry(creds Credentials) *OrderEntry {
	return &OrderEntry{
		TransCode:   TransCodeNew,
		UserID:      creds.UserID,
		MemberID:    creds.MemberID,
		BuySell:     "P",
		BuySellType: "FRESH",
		DPTxn:       "P",
		AllRedeem:   "N",
		KYCStatus:   "Y",
		EUIN:        creds.EUIN,
		EUINFlag:    "N",
		MinRedeem:   "N",
		DPC:         "N",
	}
}

// Validate checks the entry against the destination schema: widths,
// numeric-only patterns, and enumerations. It returns a
// *domain.ValidationError naming every offending field.
func (e *OrderEntry) Validate() error {
	var bad []string

	checkEnum(&bad, "trans_code", e.TransCode, TransCodeNew, TransCodeModify, TransCodeCancel)
	checkRequired(&bad, "trans_no", e.OrderRef, 19)
	checkNumeric(&bad, "order_id", e.OrderID, 8)
	checkRequired(&bad, "user_id", e.UserID, 10)
	checkNumeric(&bad, "user_id", e.UserID, 10)
	checkRequired(&bad, "member_id", e.MemberID, 20)
	checkRequired(&bad, "client_code", e.ClientCode, 20)

	if e.TransCode != TransCodeCancel {
		checkRequired(&bad, "scheme_cd", e.SchemeCode, 20)
		checkEnum(&bad, "buy_sell", e.BuySell, "P", "R")
		checkEnum(&bad, "buy_sell_type", e.BuySellType, "FRESH", "ADDITIONAL")
		checkEnum(&bad, "dp_txn", e.DPTxn, "P", "N", "C")
		checkNumeric(&bad, "order_val", e.Amount, 8)
		checkNumeric(&bad, "qty", e.Qty, 8)
		checkEnum(&bad, "all_redeem", e.AllRedeem, "Y", "N")
		checkEnum(&bad, "kyc_status", e.KYCStatus, "Y", "N")
		checkEnum(&bad, "min_redeem", e.MinRedeem, "Y", "N")
		checkWidth(&bad, "folio_no", e.FolioNo, 20)
		checkWidth(&bad, "remarks", e.Remarks, 255)
	}

	if len(bad) > 0 {
		return &domain.ValidationError{Fields: dedupe(bad)}
	}
	return nil
}

// args assembles the fixed positional argument list for the order-entry
// call. The order is the vendor's, not ours; do not reorder.
func (e *OrderEntry) args(sess Session) []string {
	return []string{
		e.TransCode,
		e.OrderRef,
		e.OrderID,
		e.UserID,
		e.MemberID,
		e.ClientCode,
		e.SchemeCode,
		e.BuySell,
		e.BuySellType,
		e.DPTxn,
		e.Amount,
		e.Qty,
		e.AllRedeem,
		e.FolioNo,
		e.Remarks,
		e.KYCStatus,
		e.RefNo,
		e.SubBroker,
		e.EUIN,
		e.EUINFlag,
		e.MinRedeem,
		e.DPC,
		e.IPAddress,
		sess.Password,
		sess.PassKey,
		e.Param1,
		e.Param2,
		e.Param3,
	}
}

// ---------------------------------------------------------------------------
// Recurring order entry
// ---------------------------------------------------------------------------

// RecurringOrderEntry is one positional recurring-plan order-entry payload.
type RecurringOrderEntry struct {
	TransCode   string // NEW, CXL
	OrderRef    string
	SchemeCode  string
	MemberID    string
	ClientCode  string
	UserID      string
	IntRefNo    string
	TransMode   string // D, P, DP
	DPTxn       string
	StartDate   string // DD/MM/YYYY
	FreqType    string
	FreqAllowed string
	InstAmount  string // digits only
	NumInst     string // digits only
	Remarks     string
	FolioNo     string
	FirstOrder  string // Y when the first instalment is debited today
	Brokerage   string
	MandateID   string
	SubBroker   string
	EUIN        string
	EUINFlag    string
	DPC         string
	RegID       string // vendor registration id, cancellation only
	IPAddress   string
	Param1      string
	Param2      string
	Param3      string
}

// NewRecurringOrderEntry returns a RecurringOrderEntry pre-filled for a new
// monthly plan whose first instalment is debited on the day of placement.
func NewRecurringOrderEntry(creds Credentials) *RecurringOrderEntry {
	return &RecurringOrderEntry{
		TransCode:   TransCodeNew,
		UserID:      creds.UserID,
		MemberID:    creds.MemberID,
		TransMode:   "P",
		DPTxn:       "P",
		FreqType:    "MONTHLY",
		FreqAllowed: "1",
		FirstOrder:  "Y",
		EUIN:        creds.EUIN,
		EUINFlag:    "N",
		DPC:         "N",
	}
}

// Validate checks the entry against the destination schema.
func (e *RecurringOrderEntry) Validate() error {
	var bad []string

	checkEnum(&bad, "trans_code", e.TransCode, TransCodeNew, TransCodeCancel)
	checkRequired(&bad, "trans_no", e.OrderRef, 19)
	checkRequired(&bad, "user_id", e.UserID, 10)
	checkNumeric(&bad, "user_id", e.UserID, 10)
	checkRequired(&bad, "member_id", e.MemberID, 20)
	checkRequired(&bad, "client_code", e.ClientCode, 20)

	if e.TransCode == TransCodeCancel {
		checkRequired(&bad, "xsip_reg_id", e.RegID, 10)
		checkNumeric(&bad, "xsip_reg_id", e.RegID, 10)
	} else {
		checkRequired(&bad, "scheme_cd", e.SchemeCode, 20)
		checkRequired(&bad, "start_date", e.StartDate, 10)
		if _, err := time.Parse("02/01/2006", e.StartDate); err != nil {
			bad = append(bad, "start_date")
		}
		checkRequired(&bad, "inst_amt", e.InstAmount, 8)
		checkNumeric(&bad, "inst_amt", e.InstAmount, 8)
		checkRequired(&bad, "num_inst", e.NumInst, 2)
		checkNumeric(&bad, "num_inst", e.NumInst, 2)
		checkNumeric(&bad, "mandate_id", e.MandateID, 8)
		checkEnum(&bad, "trans_mode", e.TransMode, "D", "P", "DP")
		checkEnum(&bad, "dp_txn", e.DPTxn, "P", "N", "C")
		checkEnum(&bad, "freq_type", e.FreqType, "MONTHLY", "QUARTERLY", "WEEKLY")
		checkEnum(&bad, "first_order_flag", e.FirstOrder, "Y", "N")
		checkNumeric(&bad, "brokerage", e.Brokerage, 8)
		checkWidth(&bad, "folio_no", e.FolioNo, 20)
		checkWidth(&bad, "remarks", e.Remarks, 100)
	}

	if len(bad) > 0 {
		return &domain.ValidationError{Fields: dedupe(bad)}
	}
	return nil
}

// args assembles the fixed positional argument list for the recurring
// order-entry call.
func (e *RecurringOrderEntry) args(sess Session) []string {
	return []string{
		e.TransCode,
		e.OrderRef,
		e.SchemeCode,
		e.MemberID,
		e.ClientCode,
		e.UserID,
		e.IntRefNo,
		e.TransMode,
		e.DPTxn,
		e.StartDate,
		e.FreqType,
		e.FreqAllowed,
		e.InstAmount,
		e.NumInst,
		e.Remarks,
		e.FolioNo,
		e.FirstOrder,
		e.Brokerage,
		e.MandateID,
		e.SubBroker,
		e.EUIN,
		e.EUINFlag,
		e.DPC,
		e.RegID,
		e.IPAddress,
		sess.Password,
		sess.PassKey,
		e.Param1,
		e.Param2,
		e.Param3,
	}
}

// ---------------------------------------------------------------------------
// Response parsing
// ---------------------------------------------------------------------------

// parseLumpsumAck parses the delimited response to a lumpsum order-entry
// call. Field order: trans code, our reference, vendor order id, user,
// member, client, remarks, success flag.
func parseLumpsumAck(resp string, now time.Time) (*domain.OrderAck, error) {
	f := strings.Split(resp, responseDelimiter)
	if len(f) < 8 {
		return nil, fmt.Errorf("malformed order acknowledgement (%d fields): %q", len(f), resp)
	}
	return &domain.OrderAck{
		TransCode:     f[0],
		OrderRef:      f[1],
		VendorOrderID: f[2],
		UserID:        f[3],
		MemberID:      f[4],
		ClientCode:    f[5],
		Remarks:       f[6],
		Success:       f[7] == ackSuccessFlag,
		Mode:          domain.ModeLumpsum,
		Created:       now,
	}, nil
}

// parseRecurringAck parses the delimited response to a recurring order-entry
// call. The member/client/user/vendor-id positions differ from the lumpsum
// layout.
func parseRecurringAck(resp string, now time.Time) (*domain.OrderAck, error) {
	f := strings.Split(resp, responseDelimiter)
	if len(f) < 8 {
		return nil, fmt.Errorf("malformed recurring acknowledgement (%d fields): %q", len(f), resp)
	}
	return &domain.OrderAck{
		TransCode:     f[0],
		OrderRef:      f[1],
		MemberID:      f[2],
		ClientCode:    f[3],
		UserID:        f[4],
		VendorOrderID: f[5],
		Remarks:       f[6],
		Success:       f[7] == ackSuccessFlag,
		Mode:          domain.ModeRecurring,
		Created:       now,
	}, nil
}

// ---------------------------------------------------------------------------
// Field checks
// ---------------------------------------------------------------------------

func checkRequired(bad *[]string, name, value string, width int) {
	if value == "" || len(value) > width {
		*bad = append(*bad, name)
	}
}

func checkWidth(bad *[]string, name, value string, width int) {
	if len(value) > width {
		*bad = append(*bad, name)
	}
}

func checkNumeric(bad *[]string, name, value string, width int) {
	if len(value) > width || !numericPattern.MatchString(value) {
		*bad = append(*bad, name)
	}
}

func checkEnum(bad *[]string, name, value string, allowed ...string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	*bad = append(*bad, name)
}

func dedupe(fields []string) []string {
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
