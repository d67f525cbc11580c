package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mftransact/internal/domain"
)

// Compile-time interface check.
var _ Gateway = (*Client)(nil)

// Client implements Gateway over an injected Transport.
type Client struct {
	creds     Credentials
	endpoints Endpoints
	transport Transport
	log       *slog.Logger
	now       func() time.Time
}

// NewClient creates a gateway client with the given member credentials,
// endpoints, and transport.
func NewClient(creds Credentials, endpoints Endpoints, transport Transport, log *slog.Logger) *Client {
	return &Client{
		creds:     creds,
		endpoints: endpoints,
		transport: transport,
		log:       log.With("component", "gateway"),
		now:       time.Now,
	}
}

// Authenticate obtains a session credential from the order endpoint's
// password call.
func (c *Client) Authenticate(ctx context.Context) (Session, error) {
	resp, err := c.transport.Call(ctx, c.endpoints.OrderURL, methodGetPassword,
		[]string{c.creds.UserID, c.creds.Password, c.creds.PassKey})
	if err != nil {
		return Session{}, err
	}
	return c.parseSession(resp)
}

// authenticateUpload obtains a session credential from the upload endpoint,
// which additionally wants the member id.
func (c *Client) authenticateUpload(ctx context.Context) (Session, error) {
	resp, err := c.transport.Call(ctx, c.endpoints.UploadURL, methodGetPassword,
		[]string{c.creds.MemberID, c.creds.UserID, c.creds.Password, c.creds.PassKey})
	if err != nil {
		return Session{}, err
	}
	return c.parseSession(resp)
}

func (c *Client) parseSession(resp string) (Session, error) {
	f := strings.Split(resp, responseDelimiter)
	if len(f) < 2 || f[0] != statusOK {
		c.log.Warn("authentication refused", "status", f[0])
		return Session{}, fmt.Errorf("status %s: %w", f[0], domain.ErrAuthFailed)
	}
	return Session{Password: f[1], PassKey: c.creds.PassKey}, nil
}

// PlaceOrder submits a lumpsum order entry and returns the parsed
// acknowledgement, successful or not.
func (c *Client) PlaceOrder(ctx context.Context, sess Session, e *OrderEntry) (*domain.OrderAck, error) {
	resp, err := c.transport.Call(ctx, c.endpoints.OrderURL, methodOrderEntry, e.args(sess))
	if err != nil {
		return nil, err
	}
	ack, err := parseLumpsumAck(resp, c.now().UTC())
	if err != nil {
		return nil, err
	}
	c.log.Info("order acknowledged",
		"ref", ack.OrderRef, "vendorID", ack.VendorOrderID, "success", ack.Success)
	return ack, nil
}

// PlaceRecurringOrder submits a recurring order entry and returns the
// parsed acknowledgement, successful or not.
func (c *Client) PlaceRecurringOrder(ctx context.Context, sess Session, e *RecurringOrderEntry) (*domain.OrderAck, error) {
	resp, err := c.transport.Call(ctx, c.endpoints.OrderURL, methodRecurringEntry, e.args(sess))
	if err != nil {
		return nil, err
	}
	ack, err := parseRecurringAck(resp, c.now().UTC())
	if err != nil {
		return nil, err
	}
	c.log.Info("recurring order acknowledged",
		"ref", ack.OrderRef, "regID", ack.VendorOrderID, "success", ack.Success)
	return ack, nil
}

// CreateMandate registers a mandate via the generic call and returns the
// vendor's receipt: the assigned id and the branch the mandate was
// registered against.
func (c *Client) CreateMandate(ctx context.Context, reg MandateRegistration) (MandateReceipt, error) {
	reply, err := c.generic(ctx, reg)
	if err != nil {
		return MandateReceipt{}, err
	}
	if !reply.ok() {
		return MandateReceipt{}, &domain.VendorRejection{Op: "mandate creation", Remarks: reply.field(0)}
	}
	receipt := MandateReceipt{MandateID: reply.field(1), BranchCode: reply.field(2)}
	c.log.Info("mandate registered", "mandateID", receipt.MandateID, "client", reg.ClientCode)
	return receipt, nil
}

// PaymentStatus asks whether the client has paid for a vendor order and
// maps the vendor's free-text answer onto the payment signal values.
func (c *Client) PaymentStatus(ctx context.Context, clientCode, vendorOrderID string) (domain.PaymentStatus, error) {
	reply, err := c.generic(ctx, PaymentStatusQuery{ClientCode: clientCode, VendorOrderID: vendorOrderID})
	if err != nil {
		return "", err
	}
	if !reply.ok() {
		return "", &domain.VendorRejection{Op: "payment status query", Remarks: reply.field(0)}
	}

	msg := reply.field(0)
	switch {
	case msg == "PAYMENT NOT INITIATED FOR GIVEN ORDER":
		return domain.PaymentNotInitiated, nil
	case strings.Contains(msg, "REJECTED"):
		return domain.PaymentRejected, nil
	default:
		return domain.PaymentConfirmed, nil
	}
}

// PaymentLink returns the payment redirect URL for a client.
func (c *Client) PaymentLink(ctx context.Context, clientCode, logoutURL string) (string, error) {
	reply, err := c.generic(ctx, PaymentLinkRequest{
		MemberCode: c.creds.MemberID,
		ClientCode: clientCode,
		LogoutURL:  logoutURL,
	})
	if err != nil {
		return "", err
	}
	if !reply.ok() {
		return "", &domain.VendorRejection{Op: "payment link creation", Remarks: reply.field(0)}
	}
	return reply.field(0), nil
}

// generic authenticates against the upload endpoint and fires one
// opcode-multiplexed call.
func (c *Client) generic(ctx context.Context, req GenericRequest) (genericReply, error) {
	sess, err := c.authenticateUpload(ctx)
	if err != nil {
		return genericReply{}, err
	}
	resp, err := c.transport.Call(ctx, c.endpoints.UploadURL, methodGeneric,
		[]string{req.opcode(), c.creds.UserID, sess.Password, req.param()})
	if err != nil {
		return genericReply{}, err
	}
	return parseGenericReply(resp)
}
