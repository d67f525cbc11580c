package calendar

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mftransact/internal/domain"
)

func mustLocation(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	return loc
}

func TestResolveBeforeCutoff(t *testing.T) {
	loc := mustLocation(t)
	r := New([]time.Time{
		time.Date(2024, 3, 4, 0, 0, 0, 0, loc),
		time.Date(2024, 3, 5, 0, 0, 0, 0, loc),
	}, loc)

	event := time.Date(2024, 3, 4, 10, 0, 0, 0, loc)
	got, err := r.Resolve(event)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := time.Date(2024, 3, 4, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestResolveAfterCutoffRollsForward(t *testing.T) {
	loc := mustLocation(t)
	r := New([]time.Time{
		time.Date(2024, 3, 4, 0, 0, 0, 0, loc),
		time.Date(2024, 3, 5, 0, 0, 0, 0, loc),
	}, loc)

	event := time.Date(2024, 3, 4, 16, 0, 0, 0, loc)
	got, err := r.Resolve(event)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := time.Date(2024, 3, 5, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestResolveSkipsNonTradingDay(t *testing.T) {
	loc := mustLocation(t)
	// March 9 is not in the list; the next trading day is March 11.
	r := New([]time.Time{
		time.Date(2024, 3, 8, 0, 0, 0, 0, loc),
		time.Date(2024, 3, 11, 0, 0, 0, 0, loc),
	}, loc)

	// Hour 16 on March 8 advances to March 9, a non-trading day.
	event := time.Date(2024, 3, 8, 16, 0, 0, 0, loc)
	got, err := r.Resolve(event)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := time.Date(2024, 3, 11, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestResolveExhaustedCalendar(t *testing.T) {
	loc := mustLocation(t)
	r := New([]time.Time{
		time.Date(2024, 3, 4, 0, 0, 0, 0, loc),
	}, loc)

	event := time.Date(2024, 6, 1, 10, 0, 0, 0, loc)
	_, err := r.Resolve(event)
	if !errors.Is(err, domain.ErrNoCalendarData) {
		t.Errorf("got %v, want ErrNoCalendarData", err)
	}
}

func TestLoadCSV(t *testing.T) {
	loc := mustLocation(t)
	path := filepath.Join(t.TempDir(), "market_dates.csv")
	data := "04/03/24\n05/03/24\n07/03/24\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	r, err := LoadCSV(path, loc)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}

	event := time.Date(2024, 3, 6, 9, 0, 0, 0, loc)
	got, err := r.Resolve(event)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := time.Date(2024, 3, 7, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
