package scan

import (
	"testing"
	"time"

	"github.com/RetailPipe/RetailPipe/internal/models"
	"github.com/RetailPipe/RetailPipe/internal/store"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedScans(t *testing.T, st *store.InMemoryStore, retailer string, events ...models.ScanEvent) {
	t.Helper()
	for i := range events {
		events[i].Retailer = retailer
		if err := st.AddScanEvent(events[i]); err != nil {
			t.Fatal(err)
		}
	}
}

func TestAggregateMonthly(t *testing.T) {
	tests := []struct {
		name   string
		events []models.ScanEvent
		want   []models.MonthCount
	}{
		{
			name: "buckets and sums within a month",
			events: []models.ScanEvent{
				{Date: date(2026, time.March, 3), Count: 2},
				{Date: date(2026, time.March, 28), Count: 1},
			},
			want: []models.MonthCount{{Month: date(2026, time.March, 1), Count: 3}},
		},
		{
			name: "fills interior gap months with zero",
			events: []models.ScanEvent{
				{Date: date(2026, time.January, 10), Count: 1},
				{Date: date(2026, time.April, 5), Count: 4},
			},
			want: []models.MonthCount{
				{Month: date(2026, time.January, 1), Count: 1},
				{Month: date(2026, time.February, 1), Count: 0},
				{Month: date(2026, time.March, 1), Count: 0},
				{Month: date(2026, time.April, 1), Count: 4},
			},
		},
		{
			name: "unordered input",
			events: []models.ScanEvent{
				{Date: date(2026, time.June, 1), Count: 1},
				{Date: date(2026, time.May, 1), Count: 2},
			},
			want: []models.MonthCount{
				{Month: date(2026, time.May, 1), Count: 2},
				{Month: date(2026, time.June, 1), Count: 1},
			},
		},
		{name: "empty", events: nil, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := aggregateMonthly(tt.events)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d months, want %d: %v", len(got), len(tt.want), got)
			}
			for i := range got {
				if !got[i].Month.Equal(tt.want[i].Month) || got[i].Count != tt.want[i].Count {
					t.Errorf("month %d = %v/%d, want %v/%d",
						i, got[i].Month, got[i].Count, tt.want[i].Month, tt.want[i].Count)
				}
			}
		})
	}
}

func TestHistoryLastNMonths(t *testing.T) {
	st := store.NewInMemoryStore()
	seedScans(t, st, "Acme Corp",
		models.ScanEvent{Date: date(2025, time.September, 15), Count: 5},
		models.ScanEvent{Date: date(2026, time.April, 2), Count: 1},
		models.ScanEvent{Date: date(2026, time.June, 20), Count: 2},
	)

	h := NewHistory(st)
	h.now = func() time.Time { return date(2026, time.July, 10) }

	series, err := h.LastNMonths("Acme Corp", 6)
	if err != nil {
		t.Fatal(err)
	}
	// window starts 2026-01; the 2025 event is excluded
	if Total(series) != 3 {
		t.Errorf("Total = %d, want 3", Total(series))
	}
	if len(series) == 0 || !series[0].Month.Equal(date(2026, time.April, 1)) {
		t.Errorf("series starts at %v, want April 2026", series)
	}

	full, err := h.FullHistory("Acme Corp")
	if err != nil {
		t.Fatal(err)
	}
	if Total(full) != 8 {
		t.Errorf("FullHistory total = %d, want 8", Total(full))
	}

	// n <= 0 means full history
	all, err := h.LastNMonths("Acme Corp", 0)
	if err != nil {
		t.Fatal(err)
	}
	if Total(all) != 8 {
		t.Errorf("LastNMonths(0) total = %d, want 8", Total(all))
	}
}

func TestFormatMonthly(t *testing.T) {
	series := []models.MonthCount{
		{Month: date(2026, time.May, 1), Count: 2},
		{Month: date(2026, time.June, 1), Count: 0},
	}
	got := FormatMonthly(series)
	want := "May 2026: 2\nJun 2026: 0"
	if got != want {
		t.Errorf("FormatMonthly = %q, want %q", got, want)
	}
	if FormatMonthly(nil) != "" {
		t.Error("FormatMonthly(nil) should be empty")
	}
}

func TestPredictNoHistory(t *testing.T) {
	st := store.NewInMemoryStore()
	p := NewPredictor(st)
	p.now = func() time.Time { return date(2026, time.July, 1) }

	out, err := p.Predict("Ghost Retailer", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d months, want 3", len(out))
	}
	if !AllZero(out) {
		t.Errorf("no-history forecast should be all zero, got %v", out)
	}
	if !out[0].Month.Equal(date(2026, time.July, 1)) {
		t.Errorf("forecast starts at %v, want current month", out[0].Month)
	}
}

func TestPredictFlatWithShortHistory(t *testing.T) {
	st := store.NewInMemoryStore()
	// Three recent months at a steady 2/month keeps the activity factor
	// at 1.0, so the flat forecast equals the rolling average.
	seedScans(t, st, "Acme Corp",
		models.ScanEvent{Date: date(2026, time.April, 5), Count: 2},
		models.ScanEvent{Date: date(2026, time.May, 5), Count: 2},
		models.ScanEvent{Date: date(2026, time.June, 5), Count: 2},
	)
	p := NewPredictor(st)
	p.now = func() time.Time { return date(2026, time.June, 30) }

	out, err := p.Predict("Acme Corp", 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 4 {
		t.Fatalf("got %d months, want 4", len(out))
	}
	for i, mc := range out {
		if mc.Count != 2 {
			t.Errorf("month %d forecast = %d, want flat 2", i, mc.Count)
		}
	}
}

func TestPredictDefaultHorizon(t *testing.T) {
	st := store.NewInMemoryStore()
	p := NewPredictor(st)
	p.now = func() time.Time { return date(2026, time.July, 1) }

	out, err := p.Predict("Acme Corp", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != rollingWindow {
		t.Errorf("default horizon = %d months, want %d", len(out), rollingWindow)
	}
}

func TestPredictSeasonalBlend(t *testing.T) {
	st := store.NewInMemoryStore()
	// Two full years: December spikes to 10, every other month is 2.
	var events []models.ScanEvent
	for _, year := range []int{2024, 2025} {
		for m := time.January; m <= time.December; m++ {
			count := 2
			if m == time.December {
				count = 10
			}
			events = append(events, models.ScanEvent{Date: date(year, m, 10), Count: count})
		}
	}
	seedScans(t, st, "Acme Corp", events...)

	p := NewPredictor(st)
	p.now = func() time.Time { return date(2025, time.December, 20) }

	out, err := p.Predict("Acme Corp", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d months, want 2", len(out))
	}
	dec, jan := out[0], out[1]
	if dec.Month.Month() != time.December || jan.Month.Month() != time.January {
		t.Fatalf("forecast months = %v, %v", dec.Month, jan.Month)
	}
	if dec.Count <= jan.Count {
		t.Errorf("seasonal December forecast (%d) should exceed January (%d)", dec.Count, jan.Count)
	}
	if jan.Count < 1 {
		t.Errorf("January forecast = %d, want at least the baseline", jan.Count)
	}
}

func TestActivityFactorDampsStaleHistory(t *testing.T) {
	st := store.NewInMemoryStore()
	// One old scan, then nothing for over a year.
	seedScans(t, st, "Dormant Shop",
		models.ScanEvent{Date: date(2025, time.January, 10), Count: 1},
	)
	p := NewPredictor(st)
	p.now = func() time.Time { return date(2026, time.July, 1) }

	out, err := p.Predict("Dormant Shop", 3)
	if err != nil {
		t.Fatal(err)
	}
	if !AllZero(out) {
		t.Errorf("dormant retailer forecast = %v, want all zero", out)
	}
}

func TestAllZero(t *testing.T) {
	if !AllZero(nil) {
		t.Error("AllZero(nil) = false")
	}
	if !AllZero([]models.MonthCount{{Count: 0}, {Count: 0}}) {
		t.Error("AllZero on zeros = false")
	}
	if AllZero([]models.MonthCount{{Count: 0}, {Count: 1}}) {
		t.Error("AllZero with nonzero = true")
	}
}
