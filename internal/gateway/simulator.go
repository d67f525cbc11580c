package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mftransact/internal/domain"
)

// Compile-time interface check.
var _ Gateway = (*Simulator)(nil)

// Simulator implements Gateway in memory for test-environment runs and unit
// tests. Every order is acknowledged successfully with sequentially
// assigned vendor identifiers and no external call is made.
type Simulator struct {
	mu          sync.Mutex
	nextOrderID int
	nextMandate int
	orders      map[string]*domain.OrderAck // by our reference
	payments    map[string]domain.PaymentStatus
}

// NewSimulator creates a Simulator with empty state.
func NewSimulator() *Simulator {
	return &Simulator{
		nextOrderID: 10000001,
		nextMandate: 5000001,
		orders:      make(map[string]*domain.OrderAck),
		payments:    make(map[string]domain.PaymentStatus),
	}
}

// Authenticate issues a fixed simulated session.
func (s *Simulator) Authenticate(_ context.Context) (Session, error) {
	return Session{Password: "simulated", PassKey: "simulated"}, nil
}

// PlaceOrder acknowledges the entry successfully and remembers it.
func (s *Simulator) PlaceOrder(_ context.Context, _ Session, e *OrderEntry) (*domain.OrderAck, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ack := &domain.OrderAck{
		TransCode:     e.TransCode,
		OrderRef:      e.OrderRef,
		VendorOrderID: fmt.Sprintf("%d", s.nextOrderID),
		UserID:        e.UserID,
		MemberID:      e.MemberID,
		ClientCode:    e.ClientCode,
		Remarks:       "ORDER ACCEPTED",
		Success:       true,
		Mode:          domain.ModeLumpsum,
		Created:       time.Now().UTC(),
	}
	s.nextOrderID++
	s.orders[e.OrderRef] = ack
	s.payments[ack.VendorOrderID] = domain.PaymentNotInitiated
	return ack, nil
}

// PlaceRecurringOrder acknowledges the entry successfully and remembers it.
func (s *Simulator) PlaceRecurringOrder(_ context.Context, _ Session, e *RecurringOrderEntry) (*domain.OrderAck, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ack := &domain.OrderAck{
		TransCode:     e.TransCode,
		OrderRef:      e.OrderRef,
		VendorOrderID: fmt.Sprintf("%d", s.nextOrderID),
		UserID:        e.UserID,
		MemberID:      e.MemberID,
		ClientCode:    e.ClientCode,
		Remarks:       "REGISTRATION ACCEPTED",
		Success:       true,
		Mode:          domain.ModeRecurring,
		Created:       time.Now().UTC(),
	}
	s.nextOrderID++
	s.orders[e.OrderRef] = ack
	return ack, nil
}

// CreateMandate assigns the next simulated mandate id, registered against
// the requested branch.
func (s *Simulator) CreateMandate(_ context.Context, reg MandateRegistration) (MandateReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	receipt := MandateReceipt{
		MandateID:  fmt.Sprintf("%d", s.nextMandate),
		BranchCode: reg.BranchCode,
	}
	s.nextMandate++
	return receipt, nil
}

// PaymentStatus returns the configured status for the order, defaulting to
// not-initiated.
func (s *Simulator) PaymentStatus(_ context.Context, _, vendorOrderID string) (domain.PaymentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.payments[vendorOrderID]; ok {
		return st, nil
	}
	return domain.PaymentNotInitiated, nil
}

// PaymentLink returns a deterministic simulated URL.
func (s *Simulator) PaymentLink(_ context.Context, clientCode, _ string) (string, error) {
	return "https://payments.invalid/" + clientCode, nil
}

// SetPaymentStatus configures the answer PaymentStatus gives for a vendor
// order id. Test helper.
func (s *Simulator) SetPaymentStatus(vendorOrderID string, st domain.PaymentStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[vendorOrderID] = st
}
