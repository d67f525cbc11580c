// Package calendar resolves order event times to vendor trading dates.
//
// The vendor publishes the list of dates on which it accepts fund orders;
// the list is consumed here, never owned. An order placed after the 15:00
// local cutoff belongs to the next calendar day before the trading-date
// scan is applied.
package calendar

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"mftransact/internal/domain"
)

// CutoffHour is the local hour after which an order rolls to the next
// calendar day.
const CutoffHour = 15

// Resolver maps an event time to the trading date the vendor will process
// it on.
type Resolver struct {
	dates []time.Time // ascending, midnight in loc
	loc   *time.Location
}

// New creates a Resolver over the given trading dates, interpreted in loc.
// The dates are sorted; time-of-day components are discarded.
func New(dates []time.Time, loc *time.Location) *Resolver {
	norm := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		norm = append(norm, time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc))
	}
	sort.Slice(norm, func(i, j int) bool { return norm[i].Before(norm[j]) })
	return &Resolver{dates: norm, loc: loc}
}

// LoadCSV reads a trading-date list with one DD/MM/YY date per line, the
// format the vendor distributes, and returns a Resolver over it.
func LoadCSV(path string, loc *time.Location) (*Resolver, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening calendar file: %w", err)
	}
	defer f.Close()

	var dates []time.Time
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		d, err := time.ParseInLocation("02/01/06", line, loc)
		if err != nil {
			return nil, fmt.Errorf("parsing calendar line %q: %w", line, err)
		}
		dates = append(dates, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading calendar file: %w", err)
	}

	return New(dates, loc), nil
}

// Resolve returns the trading date on which an order whose event time is
// eventTime will be processed: the event is moved to the next calendar day
// when it falls at or after the 15:00 local cutoff, then the first trading
// date on or after it is selected. It fails with domain.ErrNoCalendarData
// when the list is exhausted.
func (r *Resolver) Resolve(eventTime time.Time) (time.Time, error) {
	local := eventTime.In(r.loc)
	if local.Hour() >= CutoffHour {
		local = local.AddDate(0, 0, 1)
	}
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.loc)

	i := sort.Search(len(r.dates), func(i int) bool { return !r.dates[i].Before(day) })
	if i == len(r.dates) {
		return time.Time{}, fmt.Errorf("resolving %s: %w", day.Format("2006-01-02"), domain.ErrNoCalendarData)
	}
	return r.dates[i], nil
}

// Location returns the calendar's local timezone.
func (r *Resolver) Location() *time.Location { return r.loc }
