package order

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"mftransact/internal/domain"
	"mftransact/internal/gateway"
	"mftransact/internal/refgen"
)

func newTestEngine(ledger *memLedger, gw gateway.Gateway) *Engine {
	refs := refgen.New(ledger, true)
	return NewEngine(gw, ledger, ledger, refs, testCreds(), 3, time.Millisecond, slog.Default())
}

// rejectingGateway rejects every order with fixed remarks.
type rejectingGateway struct {
	*gateway.Simulator
}

func (g *rejectingGateway) PlaceOrder(ctx context.Context, sess gateway.Session, e *gateway.OrderEntry) (*domain.OrderAck, error) {
	ack, err := g.Simulator.PlaceOrder(ctx, sess, e)
	if err != nil {
		return nil, err
	}
	ack.Success = false
	ack.Remarks = "INSUFFICIENT BALANCE"
	return ack, nil
}

func placeLumpsum(t *testing.T, ledger *memLedger, gw gateway.Gateway) *domain.Transaction {
	t.Helper()
	b := newTestBuilder(ledger)
	tr := &domain.Transaction{
		ClientID: 9, PlanCode: "02-DP",
		Kind: domain.KindPurchase, Mode: domain.ModeLumpsum,
		Status: domain.StatusRequested, Amount: 5000,
		Created: buildTime,
	}
	if err := ledger.SaveTransaction(context.Background(), tr); err != nil {
		t.Fatalf("SaveTransaction: %v", err)
	}
	req, err := b.Build(context.Background(), tr)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	engine := newTestEngine(ledger, gw)
	if _, err := engine.Submit(context.Background(), req); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return tr
}

func TestSubmitAdvancesToPlaced(t *testing.T) {
	ledger := newMemLedger()
	tr := placeLumpsum(t, ledger, gateway.NewSimulator())

	if tr.Status != domain.StatusPlaced {
		t.Errorf("status = %q, want Placed", tr.Status)
	}
	if tr.OrderRef == "" {
		t.Error("expected the order reference on the transaction")
	}
	stored := ledger.transactions[tr.ID]
	if stored.Status != domain.StatusPlaced {
		t.Errorf("persisted status = %q, want Placed", stored.Status)
	}
	if _, ok := ledger.acks[tr.OrderRef]; !ok {
		t.Error("acknowledgement not persisted")
	}
}

func TestSubmitRejectionLeavesStateAndKeepsAck(t *testing.T) {
	ledger := newMemLedger()
	b := newTestBuilder(ledger)
	gw := &rejectingGateway{Simulator: gateway.NewSimulator()}
	engine := newTestEngine(ledger, gw)

	tr := &domain.Transaction{
		ClientID: 9, PlanCode: "02-DP",
		Kind: domain.KindPurchase, Mode: domain.ModeLumpsum,
		Status: domain.StatusRequested, Amount: 5000,
	}
	if err := ledger.SaveTransaction(context.Background(), tr); err != nil {
		t.Fatalf("SaveTransaction: %v", err)
	}
	req, err := b.Build(context.Background(), tr)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	_, err = engine.Submit(context.Background(), req)
	var rej *domain.VendorRejection
	if !errors.As(err, &rej) {
		t.Fatalf("got %v, want VendorRejection", err)
	}
	if rej.Remarks != "INSUFFICIENT BALANCE" {
		t.Errorf("remarks = %q, want vendor remarks attached", rej.Remarks)
	}
	if tr.Status != domain.StatusRequested {
		t.Errorf("status = %q, want unchanged Requested", tr.Status)
	}
	if _, ok := ledger.acks[req.Ref()]; !ok {
		t.Error("acknowledgement must be persisted even on rejection")
	}
}

func TestCancelLumpsum(t *testing.T) {
	ledger := newMemLedger()
	gw := gateway.NewSimulator()
	tr := placeLumpsum(t, ledger, gw)

	engine := newTestEngine(ledger, gw)
	vendorRef, err := engine.Cancel(context.Background(), tr)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if vendorRef == "" {
		t.Error("expected the vendor reference from the cancellation ack")
	}
	if tr.Status != domain.StatusCancelled {
		t.Errorf("status = %q, want Cancelled", tr.Status)
	}
}

func TestCancelRecurringUsesRegistrationRef(t *testing.T) {
	ledger := newMemLedger()
	gw := gateway.NewSimulator()
	b := newTestBuilder(ledger)
	engine := newTestEngine(ledger, gw)
	ctx := context.Background()

	tr := &domain.Transaction{
		ClientID: 9, PlanCode: "02-DP",
		Kind: domain.KindPurchase, Mode: domain.ModeRecurring,
		Status: domain.StatusRequested, Amount: 2000,
		InstalmentCount: 12,
		StartDate:       buildTime.AddDate(0, 0, 45),
	}
	if err := ledger.SaveTransaction(ctx, tr); err != nil {
		t.Fatalf("SaveTransaction: %v", err)
	}
	req, err := b.Build(ctx, tr)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	regID, err := engine.Submit(ctx, req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if regID == "" {
		t.Fatal("expected a registration reference")
	}

	if _, err := engine.Cancel(ctx, tr); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if tr.Status != domain.StatusCancelled {
		t.Errorf("status = %q, want Cancelled", tr.Status)
	}
	cancelAck := ledger.acks[tr.OrderRef]
	if cancelAck == nil {
		t.Fatal("cancellation acknowledgement not persisted")
	}
	if cancelAck.TransCode != gateway.TransCodeCancel {
		t.Errorf("trans code = %q, want CXL", cancelAck.TransCode)
	}
}

func TestPaymentLinkAdvancesToRedirected(t *testing.T) {
	ledger := newMemLedger()
	gw := gateway.NewSimulator()
	tr := placeLumpsum(t, ledger, gw)

	engine := newTestEngine(ledger, gw)
	link, err := engine.PaymentLink(context.Background(), tr, "https://example.com/done")
	if err != nil {
		t.Fatalf("PaymentLink: %v", err)
	}
	if link == "" {
		t.Error("expected a payment link")
	}
	if tr.Status != domain.StatusRedirected {
		t.Errorf("status = %q, want Redirected", tr.Status)
	}
}
