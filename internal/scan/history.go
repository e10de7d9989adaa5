// Package scan provides the reporting surfaces over scan events:
// monthly history aggregation and volume prediction.
package scan

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/RetailPipe/RetailPipe/internal/models"
	"github.com/RetailPipe/RetailPipe/internal/store"
)

// ChartRenderer renders a monthly series as an image data URI. Rendering
// is an external concern; the default NopRenderer produces no image.
type ChartRenderer interface {
	RenderLine(title string, series []models.MonthCount) (string, error)
}

// NopRenderer is the default ChartRenderer; it renders nothing.
type NopRenderer struct{}

// RenderLine returns an empty image.
func (NopRenderer) RenderLine(title string, series []models.MonthCount) (string, error) {
	return "", nil
}

// History aggregates scan events by calendar month for reporting.
type History struct {
	store store.Store
	now   func() time.Time
}

// NewHistory creates a History service over the given store.
func NewHistory(st store.Store) *History {
	return &History{store: st, now: time.Now}
}

// monthOf truncates a time to the first day of its month in UTC.
func monthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// aggregateMonthly buckets events by month and fills interior gap months
// with zero so the series is contiguous from first to last.
func aggregateMonthly(events []models.ScanEvent) []models.MonthCount {
	if len(events) == 0 {
		return nil
	}
	byMonth := make(map[time.Time]int)
	first := monthOf(events[0].Date)
	last := first
	for _, e := range events {
		m := monthOf(e.Date)
		byMonth[m] += e.Count
		if m.Before(first) {
			first = m
		}
		if m.After(last) {
			last = m
		}
	}
	var out []models.MonthCount
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		out = append(out, models.MonthCount{Month: m, Count: byMonth[m]})
	}
	return out
}

// FullHistory returns the complete monthly series for a retailer.
func (h *History) FullHistory(retailer string) ([]models.MonthCount, error) {
	events, err := h.store.ScanEventsInRange(retailer, time.Time{}, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to load scan history for %s: %w", retailer, err)
	}
	return aggregateMonthly(events), nil
}

// LastNMonths returns the monthly series for the trailing n-month window.
func (h *History) LastNMonths(retailer string, n int) ([]models.MonthCount, error) {
	if n <= 0 {
		return h.FullHistory(retailer)
	}
	from := monthOf(h.now()).AddDate(0, -n, 0)
	events, err := h.store.ScanEventsInRange(retailer, from, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to load scan history for %s: %w", retailer, err)
	}
	series := aggregateMonthly(events)
	slog.Debug("History LastNMonths", "retailer", retailer, "months", n, "points", len(series))
	return series, nil
}

// FormatMonthly renders a monthly series as "Mon YYYY: count" lines.
func FormatMonthly(series []models.MonthCount) string {
	lines := make([]string, len(series))
	for i, mc := range series {
		lines[i] = fmt.Sprintf("%s: %d", mc.Month.Format("Jan 2006"), mc.Count)
	}
	return strings.Join(lines, "\n")
}

// Total sums a monthly series.
func Total(series []models.MonthCount) int {
	total := 0
	for _, mc := range series {
		total += mc.Count
	}
	return total
}
