package gateway

import (
	"fmt"
	"strconv"
	"strings"
)

// The vendor multiplexes several operations over one generic call, selected
// by a 2-digit operation code. Each operation is modelled as a typed request
// variant; the client maps the variant to its wire opcode here, so nothing
// outside this package ever issues a raw code.

// GenericRequest is the sealed union of generic-call variants.
type GenericRequest interface {
	opcode() string
	param() string
}

// TaxProfileUpload carries a client's pre-assembled tax-profile record
// (opcode 01). The record itself is produced by the onboarding system, which
// owns the field layout; this engine only forwards it.
type TaxProfileUpload struct {
	Record string
}

func (TaxProfileUpload) opcode() string  { return "01" }
func (r TaxProfileUpload) param() string { return r.Record }

// ClientRegistration carries a pre-assembled client-creation record
// (opcode 02). As with TaxProfileUpload, the onboarding system owns the
// layout.
type ClientRegistration struct {
	Record string
}

func (ClientRegistration) opcode() string  { return "02" }
func (r ClientRegistration) param() string { return r.Record }

// PaymentLinkRequest asks for the payment redirect URL for a client
// (opcode 03).
type PaymentLinkRequest struct {
	MemberCode string
	ClientCode string
	LogoutURL  string
}

func (PaymentLinkRequest) opcode() string { return "03" }
func (r PaymentLinkRequest) param() string {
	return strings.Join([]string{r.MemberCode, r.ClientCode, r.LogoutURL}, "|")
}

// MandateRegistration registers a standing debit authorization (opcode 06).
type MandateRegistration struct {
	MemberCode    string
	ClientCode    string
	Amount        float64
	BranchCode    string
	AccountNumber string
}

func (MandateRegistration) opcode() string { return "06" }
func (r MandateRegistration) param() string {
	return strings.Join([]string{
		r.MemberCode,
		r.ClientCode,
		strconv.FormatInt(int64(r.Amount), 10),
		r.BranchCode,
		r.AccountNumber,
		"X", // exchange-mode mandate
	}, "|")
}

// PaymentStatusQuery asks whether a client has paid for a vendor order
// (opcode 11).
type PaymentStatusQuery struct {
	ClientCode    string
	VendorOrderID string
}

func (PaymentStatusQuery) opcode() string { return "11" }
func (r PaymentStatusQuery) param() string {
	return strings.Join([]string{r.ClientCode, r.VendorOrderID, "BSEMF"}, "|")
}

// genericReply is the parsed response to a generic call: the numeric status
// code followed by positional payload fields.
type genericReply struct {
	code   string
	fields []string
}

func (r genericReply) ok() bool { return r.code == statusOK }

// field returns payload field i, or "" when the response is short.
func (r genericReply) field(i int) string {
	if i < len(r.fields) {
		return r.fields[i]
	}
	return ""
}

func parseGenericReply(resp string) (genericReply, error) {
	f := strings.Split(resp, responseDelimiter)
	if len(f) < 2 {
		return genericReply{}, fmt.Errorf("malformed generic response: %q", resp)
	}
	return genericReply{code: f[0], fields: f[1:]}, nil
}
