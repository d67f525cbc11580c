// Package mandate selects or registers the standing debit authorization that
// backs a recurring plan. Selection is first-fit over the client's eligible
// mandates, oldest first; when none has headroom a new mandate is registered
// with the vendor and persisted before use.
package mandate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mftransact/internal/domain"
	"mftransact/internal/gateway"
	"mftransact/internal/store"
)

// minCeiling is the floor for new mandate ceilings. Registering the mandate
// larger than the triggering instalment leaves headroom for future plans on
// the same account.
const minCeiling = 100000

// Ledger is the slice of the transaction store the manager needs to compute
// how much of a mandate's ceiling is already consumed.
type Ledger interface {
	RecurringTotalForMandate(ctx context.Context, clientID int64, mandateID string) (float64, error)
}

// Manager resolves a mandate for each new recurring plan.
type Manager struct {
	mandates store.MandateStore
	ledger   Ledger
	gw       gateway.Gateway
	member   string
	log      *slog.Logger
	now      func() time.Time
}

func NewManager(mandates store.MandateStore, ledger Ledger, gw gateway.Gateway, memberCode string, log *slog.Logger) *Manager {
	return &Manager{
		mandates: mandates,
		ledger:   ledger,
		gw:       gw,
		member:   memberCode,
		log:      log,
		now:      time.Now,
	}
}

// Resolve returns the mandate that will back a recurring plan of the given
// monthly amount, registering a new one when no existing mandate has
// headroom. clientCode is the zero-padded client code used on the wire.
//
// A newly registered mandate whose vendor-echoed branch differs from the
// requested account is persisted and then reported as
// domain.ErrBankMismatch: the registration exists on the vendor side either
// way, so the record must survive for manual follow-up.
func (m *Manager) Resolve(ctx context.Context, clientID int64, clientCode string, account domain.BankAccount, amount float64) (*domain.Mandate, error) {
	existing, err := m.mandates.MandatesByStatus(ctx, clientID, domain.EligibleMandateStatuses...)
	if err != nil {
		return nil, fmt.Errorf("list mandates: %w", err)
	}
	for i := range existing {
		cand := &existing[i]
		consumed, err := m.ledger.RecurringTotalForMandate(ctx, clientID, cand.ID)
		if err != nil {
			return nil, fmt.Errorf("mandate consumption: %w", err)
		}
		if cand.Ceiling-consumed >= amount {
			m.log.Info("reusing mandate",
				"mandateID", cand.ID, "client", clientID,
				"ceiling", cand.Ceiling, "consumed", consumed)
			return cand, nil
		}
	}
	return m.register(ctx, clientID, clientCode, account, amount)
}

func (m *Manager) register(ctx context.Context, clientID int64, clientCode string, account domain.BankAccount, amount float64) (*domain.Mandate, error) {
	ceiling := float64(minCeiling)
	if amount > ceiling {
		ceiling = amount
	}
	receipt, err := m.gw.CreateMandate(ctx, gateway.MandateRegistration{
		MemberCode:    m.member,
		ClientCode:    clientCode,
		Amount:        ceiling,
		BranchCode:    account.BranchCode,
		AccountNumber: account.AccountNumber,
	})
	if err != nil {
		return nil, fmt.Errorf("register mandate: %w", err)
	}

	md := &domain.Mandate{
		ID:       receipt.MandateID,
		ClientID: clientID,
		Account: domain.BankAccount{
			AccountNumber: account.AccountNumber,
			BranchCode:    receipt.BranchCode,
		},
		Ceiling: ceiling,
		Status:  domain.MandateRegistered,
		Created: m.now(),
	}
	if err := m.mandates.SaveMandate(ctx, md); err != nil {
		return nil, fmt.Errorf("save mandate: %w", err)
	}
	m.log.Info("mandate registered",
		"mandateID", md.ID, "client", clientID, "ceiling", ceiling)

	if receipt.BranchCode != account.BranchCode {
		return md, fmt.Errorf("mandate %s registered against branch %s, wanted %s: %w",
			md.ID, receipt.BranchCode, account.BranchCode, domain.ErrBankMismatch)
	}
	return md, nil
}
