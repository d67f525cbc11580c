// Package refgen issues order reference numbers. A reference is built from
// the submission date, the order mode, the client identifier and a per-day
// per-client counter:
//
//	DDDDDDDD M CCCCCC NN
//
// where DDDDDDDD is the date as YYYYMMDD (or 00YYMMDD outside the live
// environment), M is the one-digit mode, CCCCCC the zero-padded client id
// and NN a counter from 1 to 99. The counter space caps a client at 99
// orders per mode per day.
package refgen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mftransact/internal/domain"
	"mftransact/internal/store"
)

// Generator issues references backed by a ReferenceStore so that issued
// numbers survive restarts and are unique across processes.
type Generator struct {
	mu    sync.Mutex
	store store.ReferenceStore
	live  bool
}

func New(refs store.ReferenceStore, live bool) *Generator {
	return &Generator{store: refs, live: live}
}

// Next issues the next reference for a client and mode at the given time.
// Returns domain.ErrCapacityExceeded when the day's counter space is used
// up. A lost race on the underlying store is retried once with a fresh
// counter read before giving up.
func (g *Generator) Next(ctx context.Context, clientID int64, mode domain.OrderMode, now time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	prefix := g.prefix(clientID, mode, now)

	ref, err := g.issue(ctx, prefix, clientID, mode)
	if errors.Is(err, domain.ErrDuplicateRef) {
		// Another writer took the slot between our read and write.
		ref, err = g.issue(ctx, prefix, clientID, mode)
		if errors.Is(err, domain.ErrDuplicateRef) {
			return "", fmt.Errorf("issue reference: %w", domain.ErrStaleCounter)
		}
	}
	return ref, err
}

func (g *Generator) issue(ctx context.Context, prefix string, clientID int64, mode domain.OrderMode) (string, error) {
	max, err := g.store.MaxCounter(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("read counter: %w", err)
	}
	next := max + 1
	if next > 99 {
		return "", domain.ErrCapacityExceeded
	}
	ref := fmt.Sprintf("%s%d", prefix, next)
	if err := g.store.RecordRef(ctx, ref, clientID, mode); err != nil {
		return "", err
	}
	return ref, nil
}

func (g *Generator) prefix(clientID int64, mode domain.OrderMode, now time.Time) string {
	date := now.Format("20060102")
	if !g.live {
		date = "00" + now.Format("060102")
	}
	return fmt.Sprintf("%s%s%06d", date, mode, clientID)
}
