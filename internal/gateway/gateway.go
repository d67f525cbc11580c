// Package gateway talks to the vendor's order-processing network. It builds
// the fixed positional request payloads, parses the delimiter-separated
// responses, and exposes the result as typed acknowledgements and signal
// values. The underlying round trip is delegated to a Transport so the
// vendor's SOAP plumbing stays at the edge.
package gateway

import (
	"context"

	"mftransact/internal/domain"
)

// Session is a short-lived credential issued by the gateway's password
// endpoint. Every subsequent call on the same endpoint carries it.
type Session struct {
	Password string
	PassKey  string
}

// Credentials are the vendor-assigned member credentials, injected at
// construction; core components read no global state.
type Credentials struct {
	UserID   string
	MemberID string
	Password string
	PassKey  string
	EUIN     string
}

// Endpoints are the two vendor service URLs: order entry (create/cancel)
// and the upload service that hosts every other call.
type Endpoints struct {
	OrderURL  string
	UploadURL string
}

// Transport performs one remote call against a vendor endpoint: it sends
// the positional argument list for the named method and returns the raw
// delimited response string. Implementations wrap network failures in
// *domain.TransportError so callers can retry them.
type Transport interface {
	Call(ctx context.Context, endpoint, method string, args []string) (string, error)
}

// MandateReceipt is the vendor's answer to a mandate registration: the
// assigned mandate id and the bank branch the mandate was registered
// against.
type MandateReceipt struct {
	MandateID  string
	BranchCode string
}

// Gateway abstracts the vendor's order network.
//
// PlaceOrder and PlaceRecurringOrder return the parsed acknowledgement even
// when the vendor rejected the order (ack.Success false); an error return
// means the call itself failed and no acknowledgement exists. This lets the
// orchestrator persist every acknowledgement for audit before acting on it.
type Gateway interface {
	// Authenticate obtains a session credential for the order endpoint.
	// Fails with domain.ErrAuthFailed on a non-success status.
	Authenticate(ctx context.Context) (Session, error)

	// PlaceOrder submits a lumpsum order entry (new or cancellation).
	PlaceOrder(ctx context.Context, sess Session, e *OrderEntry) (*domain.OrderAck, error)

	// PlaceRecurringOrder submits a recurring-plan order entry (new or
	// cancellation).
	PlaceRecurringOrder(ctx context.Context, sess Session, e *RecurringOrderEntry) (*domain.OrderAck, error)

	// CreateMandate registers a standing debit authorization and returns
	// the vendor's receipt.
	CreateMandate(ctx context.Context, reg MandateRegistration) (MandateReceipt, error)

	// PaymentStatus asks whether the client has paid for the given vendor
	// order.
	PaymentStatus(ctx context.Context, clientCode, vendorOrderID string) (domain.PaymentStatus, error)

	// PaymentLink returns the redirect URL a client uses to pay for freshly
	// placed orders.
	PaymentLink(ctx context.Context, clientCode, logoutURL string) (string, error)
}
