package order

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mftransact/internal/domain"
	"mftransact/internal/gateway"
	"mftransact/internal/refgen"
	"mftransact/internal/store"
	"mftransact/internal/util"
)

// Engine drives order submission and cancellation against the gateway,
// persists every acknowledgement, and advances ledger state on success.
//
// Transport failures on authentication are retried within the configured
// budget. Order placement itself is attempted exactly once per call: a
// transport failure mid-placement leaves it unknown whether the vendor
// accepted the order, and a blind retry would risk a duplicate.
type Engine struct {
	gw     gateway.Gateway
	ledger store.TransactionStore
	acks   store.AckStore
	refs   *refgen.Generator
	creds  gateway.Credentials

	maxAttempts int
	backoff     time.Duration

	log *slog.Logger
	now func() time.Time
}

func NewEngine(gw gateway.Gateway, ledger store.TransactionStore, acks store.AckStore, refs *refgen.Generator, creds gateway.Credentials, maxAttempts int, backoff time.Duration, log *slog.Logger) *Engine {
	return &Engine{
		gw:          gw,
		ledger:      ledger,
		acks:        acks,
		refs:        refs,
		creds:       creds,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		log:         log,
		now:         time.Now,
	}
}

// Submit places a built order and returns the vendor's order reference
// (lumpsum) or registration reference (recurring). On vendor rejection the
// acknowledgement is persisted, the transaction state is left unchanged, and
// the rejection is returned with the vendor's remarks.
func (e *Engine) Submit(ctx context.Context, req *Request) (string, error) {
	t := req.Transaction

	sess, err := e.authenticate(ctx)
	if err != nil {
		return "", err
	}

	var ack *domain.OrderAck
	if req.Recurring != nil {
		ack, err = e.gw.PlaceRecurringOrder(ctx, sess, req.Recurring)
	} else {
		ack, err = e.gw.PlaceOrder(ctx, sess, req.Lumpsum)
	}
	if err != nil {
		return "", fmt.Errorf("place order: %w", err)
	}

	if err := e.recordAck(ctx, ack); err != nil {
		return "", err
	}
	if !ack.Success {
		e.log.Warn("order rejected",
			"ref", ack.OrderRef, "client", t.ClientID, "remarks", ack.Remarks)
		return "", &domain.VendorRejection{Op: "order placement", Remarks: ack.Remarks}
	}

	t.Status = domain.StatusPlaced
	t.OrderRef = ack.OrderRef
	if err := e.ledger.UpdateTransaction(ctx, t); err != nil {
		return "", fmt.Errorf("advance to placed: %w", err)
	}
	e.log.Info("order placed",
		"ref", ack.OrderRef, "vendorID", ack.VendorOrderID, "client", t.ClientID)
	return ack.VendorOrderID, nil
}

// Cancel submits a cancellation for a previously placed transaction. The
// vendor reference comes from the stored acknowledgement of the placing
// order; the payload shape differs by mode (recurring cancellation carries
// the plan's registration reference instead of an order id).
func (e *Engine) Cancel(ctx context.Context, t *domain.Transaction) (string, error) {
	placed, err := e.acks.AckByRef(ctx, t.OrderRef)
	if err != nil {
		return "", fmt.Errorf("look up placing acknowledgement: %w", err)
	}

	ref, err := e.refs.Next(ctx, t.ClientID, t.Mode, e.now())
	if err != nil {
		return "", fmt.Errorf("issue cancellation reference: %w", err)
	}

	sess, err := e.authenticate(ctx)
	if err != nil {
		return "", err
	}

	var ack *domain.OrderAck
	if t.IsRecurring() {
		entry := gateway.NewRecurringOrderEntry(e.creds)
		entry.TransCode = gateway.TransCodeCancel
		entry.OrderRef = ref
		entry.ClientCode = ClientCode(t.ClientID)
		entry.RegID = placed.VendorOrderID
		if err := entry.Validate(); err != nil {
			return "", err
		}
		ack, err = e.gw.PlaceRecurringOrder(ctx, sess, entry)
	} else {
		entry := gateway.NewOrderEntry(e.creds)
		entry.TransCode = gateway.TransCodeCancel
		entry.OrderRef = ref
		entry.ClientCode = ClientCode(t.ClientID)
		entry.OrderID = placed.VendorOrderID
		if err := entry.Validate(); err != nil {
			return "", err
		}
		ack, err = e.gw.PlaceOrder(ctx, sess, entry)
	}
	if err != nil {
		return "", fmt.Errorf("place cancellation: %w", err)
	}

	if err := e.recordAck(ctx, ack); err != nil {
		return "", err
	}
	if !ack.Success {
		e.log.Warn("cancellation rejected",
			"ref", ack.OrderRef, "client", t.ClientID, "remarks", ack.Remarks)
		return "", &domain.VendorRejection{Op: "order cancellation", Remarks: ack.Remarks}
	}

	t.Status = domain.StatusCancelled
	t.OrderRef = ack.OrderRef
	if err := e.ledger.UpdateTransaction(ctx, t); err != nil {
		return "", fmt.Errorf("advance to cancelled: %w", err)
	}
	e.log.Info("order cancelled",
		"ref", ack.OrderRef, "vendorID", ack.VendorOrderID, "client", t.ClientID)
	return ack.VendorOrderID, nil
}

// PaymentLink returns the payment redirect URL for a client's freshly placed
// orders and advances the transaction to Redirected.
func (e *Engine) PaymentLink(ctx context.Context, t *domain.Transaction, logoutURL string) (string, error) {
	link, err := e.gw.PaymentLink(ctx, ClientCode(t.ClientID), logoutURL)
	if err != nil {
		return "", fmt.Errorf("payment link: %w", err)
	}
	if t.Status == domain.StatusPlaced {
		t.Status = domain.StatusRedirected
		if err := e.ledger.UpdateTransaction(ctx, t); err != nil {
			return "", fmt.Errorf("advance to redirected: %w", err)
		}
	}
	return link, nil
}

func (e *Engine) authenticate(ctx context.Context) (gateway.Session, error) {
	var sess gateway.Session
	err := util.Retry(ctx, e.maxAttempts, e.backoff, domain.Retriable, func() error {
		var err error
		sess, err = e.gw.Authenticate(ctx)
		return err
	})
	if err != nil {
		return gateway.Session{}, fmt.Errorf("authenticate: %w", err)
	}
	return sess, nil
}

func (e *Engine) recordAck(ctx context.Context, ack *domain.OrderAck) error {
	if err := e.acks.SaveAck(ctx, ack); err != nil {
		return fmt.Errorf("persist acknowledgement: %w", err)
	}
	return nil
}
