package mandate

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"mftransact/internal/domain"
	"mftransact/internal/gateway"
)

type fakeMandateStore struct {
	mandates []domain.Mandate
	saved    []domain.Mandate
}

func (s *fakeMandateStore) SaveMandate(_ context.Context, m *domain.Mandate) error {
	s.saved = append(s.saved, *m)
	s.mandates = append(s.mandates, *m)
	return nil
}

func (s *fakeMandateStore) MandatesByStatus(_ context.Context, clientID int64, statuses ...domain.MandateStatus) ([]domain.Mandate, error) {
	var out []domain.Mandate
	for _, m := range s.mandates {
		if m.ClientID != clientID {
			continue
		}
		for _, st := range statuses {
			if m.Status == st {
				out = append(out, m)
				break
			}
		}
	}
	return out, nil
}

type fakeLedger struct {
	consumed map[string]float64
}

func (l *fakeLedger) RecurringTotalForMandate(_ context.Context, _ int64, mandateID string) (float64, error) {
	return l.consumed[mandateID], nil
}

// fakeGateway embeds the simulator so only CreateMandate needs overriding in
// the bank-mismatch test.
type mismatchGateway struct {
	*gateway.Simulator
	branch string
}

func (g *mismatchGateway) CreateMandate(ctx context.Context, reg gateway.MandateRegistration) (gateway.MandateReceipt, error) {
	receipt, err := g.Simulator.CreateMandate(ctx, reg)
	if err != nil {
		return receipt, err
	}
	receipt.BranchCode = g.branch
	return receipt, nil
}

func testAccount() domain.BankAccount {
	return domain.BankAccount{AccountNumber: "001234567890", BranchCode: "HDFC0000123"}
}

func TestResolveFirstFitNotBestFit(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeMandateStore{mandates: []domain.Mandate{
		{ID: "5001", ClientID: 9, Ceiling: 10000, Status: domain.MandateRegistered, Created: created},
		{ID: "5002", ClientID: 9, Ceiling: 100000, Status: domain.MandateAccepted, Created: created.AddDate(0, 1, 0)},
	}}
	ledger := &fakeLedger{consumed: map[string]float64{
		"5001": 5000,  // 5000 headroom
		"5002": 20000, // 80000 headroom
	}}

	m := NewManager(store, ledger, gateway.NewSimulator(), "10001", slog.Default())
	got, err := m.Resolve(context.Background(), 9, "000009", testAccount(), 6000)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.ID != "5002" {
		t.Errorf("picked mandate %s, want 5002 (first with headroom >= 6000)", got.ID)
	}
	if len(store.saved) != 0 {
		t.Errorf("no new mandate should have been registered, got %d", len(store.saved))
	}
}

func TestResolveReusesFirstWithHeadroom(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeMandateStore{mandates: []domain.Mandate{
		{ID: "5001", ClientID: 9, Ceiling: 10000, Status: domain.MandateRegistered, Created: created},
		{ID: "5002", ClientID: 9, Ceiling: 100000, Status: domain.MandateAccepted, Created: created.AddDate(0, 1, 0)},
	}}
	ledger := &fakeLedger{consumed: map[string]float64{"5001": 2000}}

	m := NewManager(store, ledger, gateway.NewSimulator(), "10001", slog.Default())
	got, err := m.Resolve(context.Background(), 9, "000009", testAccount(), 3000)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.ID != "5001" {
		t.Errorf("picked mandate %s, want 5001", got.ID)
	}
}

func TestResolveRegistersNewMandate(t *testing.T) {
	store := &fakeMandateStore{}
	ledger := &fakeLedger{consumed: map[string]float64{}}

	m := NewManager(store, ledger, gateway.NewSimulator(), "10001", slog.Default())
	got, err := m.Resolve(context.Background(), 9, "000009", testAccount(), 3000)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Ceiling != 100000 {
		t.Errorf("ceiling = %v, want the 100000 floor", got.Ceiling)
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved %d mandates, want 1", len(store.saved))
	}
	if store.saved[0].ID != got.ID {
		t.Errorf("persisted id %s != returned id %s", store.saved[0].ID, got.ID)
	}
	if store.saved[0].Status != domain.MandateRegistered {
		t.Errorf("persisted status %q, want Registered", store.saved[0].Status)
	}
}

func TestResolveReusesFreshlyRegisteredMandate(t *testing.T) {
	store := &fakeMandateStore{}
	ledger := &fakeLedger{consumed: map[string]float64{}}

	m := NewManager(store, ledger, gateway.NewSimulator(), "10001", slog.Default())
	first, err := m.Resolve(context.Background(), 9, "000009", testAccount(), 3000)
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	second, err := m.Resolve(context.Background(), 9, "000009", testAccount(), 2000)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second plan got mandate %s, want the fresh %s reused", second.ID, first.ID)
	}
	if len(store.saved) != 1 {
		t.Errorf("registered %d mandates, want 1", len(store.saved))
	}
}

func TestResolveNewMandateSizedToLargeAmount(t *testing.T) {
	store := &fakeMandateStore{}
	ledger := &fakeLedger{consumed: map[string]float64{}}

	m := NewManager(store, ledger, gateway.NewSimulator(), "10001", slog.Default())
	got, err := m.Resolve(context.Background(), 9, "000009", testAccount(), 250000)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Ceiling != 250000 {
		t.Errorf("ceiling = %v, want 250000", got.Ceiling)
	}
}

func TestResolveBankMismatch(t *testing.T) {
	store := &fakeMandateStore{}
	ledger := &fakeLedger{consumed: map[string]float64{}}
	gw := &mismatchGateway{Simulator: gateway.NewSimulator(), branch: "ICIC0000999"}

	m := NewManager(store, ledger, gw, "10001", slog.Default())
	_, err := m.Resolve(context.Background(), 9, "000009", testAccount(), 3000)
	if !errors.Is(err, domain.ErrBankMismatch) {
		t.Fatalf("got %v, want ErrBankMismatch", err)
	}
	// The registration exists on the vendor side, so the record must still
	// be persisted for manual follow-up.
	if len(store.saved) != 1 {
		t.Errorf("saved %d mandates, want 1 despite mismatch", len(store.saved))
	}
}
