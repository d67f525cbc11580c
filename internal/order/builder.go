// Package order assembles validated order payloads from ledger entries and
// drives the create/cancel calls against the vendor gateway.
package order

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"mftransact/internal/domain"
	"mftransact/internal/gateway"
	"mftransact/internal/mandate"
	"mftransact/internal/refgen"
	"mftransact/internal/store"
)

// Recurring start dates must sit inside the vendor's registration window,
// measured in whole days from the day of placement.
const (
	startWindowMin = 30
	startWindowMax = 60
)

// BankDirectory resolves a client's default bank account, used when a new
// mandate has to be registered. Client master data lives outside this
// engine.
type BankDirectory interface {
	DefaultAccount(ctx context.Context, clientID int64) (domain.BankAccount, error)
}

// Request is a fully built, validated order payload ready for submission.
// Exactly one of Lumpsum and Recurring is set, matching the transaction's
// mode.
type Request struct {
	Transaction *domain.Transaction
	Lumpsum     *gateway.OrderEntry
	Recurring   *gateway.RecurringOrderEntry
}

// Ref returns the order reference carried by the payload.
func (r *Request) Ref() string {
	if r.Lumpsum != nil {
		return r.Lumpsum.OrderRef
	}
	return r.Recurring.OrderRef
}

// Builder turns a Requested transaction into an order payload: it issues the
// order reference, resolves the folio for follow-on orders, resolves the
// backing mandate for recurring plans, and checks every field against the
// destination schema.
type Builder struct {
	refs     *refgen.Generator
	ledger   store.TransactionStore
	mandates *mandate.Manager
	banks    BankDirectory
	creds    gateway.Credentials
	now      func() time.Time
}

func NewBuilder(refs *refgen.Generator, ledger store.TransactionStore, mandates *mandate.Manager, banks BankDirectory, creds gateway.Credentials) *Builder {
	return &Builder{
		refs:     refs,
		ledger:   ledger,
		mandates: mandates,
		banks:    banks,
		creds:    creds,
		now:      time.Now,
	}
}

// Build assembles the payload for t. Side effects on t: the resolved folio
// and, for recurring plans, the backing mandate id. t is not persisted here.
func (b *Builder) Build(ctx context.Context, t *domain.Transaction) (*Request, error) {
	now := b.now()

	ref, err := b.refs.Next(ctx, t.ClientID, t.Mode, now)
	if err != nil {
		return nil, fmt.Errorf("issue order reference: %w", err)
	}

	if t.IsRecurring() {
		entry, err := b.buildRecurring(ctx, t, ref, now)
		if err != nil {
			return nil, err
		}
		return &Request{Transaction: t, Recurring: entry}, nil
	}
	entry, err := b.buildLumpsum(ctx, t, ref)
	if err != nil {
		return nil, err
	}
	return &Request{Transaction: t, Lumpsum: entry}, nil
}

func (b *Builder) buildLumpsum(ctx context.Context, t *domain.Transaction, ref string) (*gateway.OrderEntry, error) {
	e := gateway.NewOrderEntry(b.creds)
	e.OrderRef = ref
	e.ClientCode = ClientCode(t.ClientID)
	e.SchemeCode = t.PlanCode

	switch t.Kind {
	case domain.KindPurchase:
		e.Amount = formatAmount(t.Amount)

	case domain.KindAdditionalPurchase:
		e.BuySellType = "ADDITIONAL"
		e.Amount = formatAmount(t.Amount)
		if err := b.resolveFolio(ctx, t, &e.FolioNo); err != nil {
			return nil, err
		}

	case domain.KindRedemption:
		e.BuySell = "R"
		if err := b.resolveFolio(ctx, t, &e.FolioNo); err != nil {
			return nil, err
		}
		if t.AllRedeem == nil {
			return nil, domain.ErrMissingRedeemIntent
		}
		if *t.AllRedeem {
			e.AllRedeem = "Y"
		} else {
			e.Amount = formatAmount(t.Amount)
		}

	default:
		return nil, fmt.Errorf("unknown transaction kind %q", t.Kind)
	}

	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func (b *Builder) buildRecurring(ctx context.Context, t *domain.Transaction, ref string, now time.Time) (*gateway.RecurringOrderEntry, error) {
	if err := checkStartWindow(t.StartDate, now); err != nil {
		return nil, err
	}

	account, err := b.banks.DefaultAccount(ctx, t.ClientID)
	if err != nil {
		return nil, fmt.Errorf("default bank account: %w", err)
	}
	md, err := b.mandates.Resolve(ctx, t.ClientID, ClientCode(t.ClientID), account, t.Amount)
	if err != nil {
		return nil, err
	}
	t.MandateID = md.ID

	e := gateway.NewRecurringOrderEntry(b.creds)
	e.OrderRef = ref
	e.ClientCode = ClientCode(t.ClientID)
	e.SchemeCode = t.PlanCode
	e.StartDate = t.StartDate.Format("02/01/2006")
	e.InstAmount = formatAmount(t.Amount)
	e.NumInst = strconv.Itoa(t.InstalmentCount)
	e.MandateID = md.ID

	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// resolveFolio locates the client's prior completed purchase on the same
// plan and copies its folio onto the transaction and the payload field.
func (b *Builder) resolveFolio(ctx context.Context, t *domain.Transaction, field *string) error {
	prior, err := b.ledger.PriorCompletedPurchase(ctx, t.ClientID, t.PlanCode)
	if err != nil {
		return fmt.Errorf("resolve folio: %w", err)
	}
	t.Folio = prior.Folio
	*field = prior.Folio
	return nil
}

// checkStartWindow enforces the registration window on a recurring plan's
// declared start date. A start date in the past is left for the vendor to
// reject.
func checkStartWindow(start, now time.Time) error {
	days := int(truncateDay(start).Sub(truncateDay(now)).Hours() / 24)
	switch {
	case days >= 0 && days < startWindowMin:
		return domain.ErrStartTooSoon
	case days > startWindowMax:
		return domain.ErrStartTooLate
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ClientCode renders a client id as the zero-padded code used on the wire.
func ClientCode(clientID int64) string {
	return fmt.Sprintf("%06d", clientID)
}

func formatAmount(amount float64) string {
	return strconv.FormatInt(int64(amount), 10)
}
