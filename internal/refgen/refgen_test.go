package refgen

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mftransact/internal/domain"
)

// fakeRefStore is an in-memory ReferenceStore. failures makes the next N
// RecordRef calls report a uniqueness conflict, simulating lost races with
// another process.
type fakeRefStore struct {
	refs     map[string]bool
	failures int
}

func newFakeRefStore() *fakeRefStore {
	return &fakeRefStore{refs: make(map[string]bool)}
}

func (s *fakeRefStore) MaxCounter(_ context.Context, prefix string) (int, error) {
	max := 0
	for ref := range s.refs {
		if !strings.HasPrefix(ref, prefix) {
			continue
		}
		n := 0
		for _, c := range ref[len(prefix):] {
			n = n*10 + int(c-'0')
		}
		if n > max {
			max = n
		}
	}
	return max, nil
}

func (s *fakeRefStore) RecordRef(_ context.Context, ref string, _ int64, _ domain.OrderMode) error {
	if s.failures > 0 {
		s.failures--
		return domain.ErrDuplicateRef
	}
	if s.refs[ref] {
		return domain.ErrDuplicateRef
	}
	s.refs[ref] = true
	return nil
}

var testDay = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func TestNextIssuesSequentialRefs(t *testing.T) {
	g := New(newFakeRefStore(), true)
	ctx := context.Background()

	first, err := g.Next(ctx, 1234, domain.ModeLumpsum, testDay)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if first != "2024030410012341" {
		t.Errorf("first ref = %q, want 2024030410012341", first)
	}

	second, err := g.Next(ctx, 1234, domain.ModeLumpsum, testDay)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if second != "2024030410012342" {
		t.Errorf("second ref = %q, want 2024030410012342", second)
	}
}

func TestNextTestEnvironmentPrefix(t *testing.T) {
	g := New(newFakeRefStore(), false)

	ref, err := g.Next(context.Background(), 1234, domain.ModeRecurring, testDay)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !strings.HasPrefix(ref, "00240304") {
		t.Errorf("ref = %q, want 00240304 date prefix", ref)
	}
	if !strings.HasPrefix(ref, "002403042001234") {
		t.Errorf("ref = %q, want mode and client embedded", ref)
	}
}

func TestNextNeverRepeatsAndExhausts(t *testing.T) {
	g := New(newFakeRefStore(), true)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 99; i++ {
		ref, err := g.Next(ctx, 77, domain.ModeLumpsum, testDay)
		if err != nil {
			t.Fatalf("Next %d: %v", i+1, err)
		}
		if seen[ref] {
			t.Fatalf("duplicate ref %q at issue %d", ref, i+1)
		}
		seen[ref] = true
	}

	_, err := g.Next(ctx, 77, domain.ModeLumpsum, testDay)
	if !errors.Is(err, domain.ErrCapacityExceeded) {
		t.Errorf("100th issue: got %v, want ErrCapacityExceeded", err)
	}
}

func TestNextRetriesOnceOnConflict(t *testing.T) {
	store := newFakeRefStore()
	store.failures = 1
	g := New(store, true)

	ref, err := g.Next(context.Background(), 42, domain.ModeLumpsum, testDay)
	if err != nil {
		t.Fatalf("Next after single conflict: %v", err)
	}
	if ref == "" {
		t.Error("expected a ref after retry")
	}
}

func TestNextStaleCounterAfterDoubleConflict(t *testing.T) {
	store := newFakeRefStore()
	store.failures = 2
	g := New(store, true)

	_, err := g.Next(context.Background(), 42, domain.ModeLumpsum, testDay)
	if !errors.Is(err, domain.ErrStaleCounter) {
		t.Errorf("got %v, want ErrStaleCounter", err)
	}
}
