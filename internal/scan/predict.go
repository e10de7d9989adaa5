package scan

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/RetailPipe/RetailPipe/internal/models"
	"github.com/RetailPipe/RetailPipe/internal/store"
)

// Seasonal blend weights: with enough history the forecast leans on the
// same-calendar-month seasonal mean, damped by the recent rolling average.
const (
	seasonalWeight   = 0.7
	rollingWeight    = 0.3
	rollingWindow    = 3
	minSeasonalMonth = 12
)

// Predictor forecasts monthly scan volume for a retailer.
type Predictor struct {
	store store.Store
	now   func() time.Time
}

// NewPredictor creates a Predictor over the given store.
func NewPredictor(st store.Store) *Predictor {
	return &Predictor{store: st, now: time.Now}
}

// RetailerExists checks the retailers table for the given name.
func (p *Predictor) RetailerExists(retailer string) (bool, error) {
	r, err := p.store.GetRetailer(retailer)
	if err != nil {
		return false, err
	}
	return r != nil, nil
}

// monthlyHistory loads the retailer's full history as a contiguous
// monthly series extended with zeros up to the current month.
func (p *Predictor) monthlyHistory(retailer string) ([]models.MonthCount, error) {
	events, err := p.store.ScanEventsInRange(retailer, time.Time{}, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to load scan events for %s: %w", retailer, err)
	}
	series := aggregateMonthly(events)
	if len(series) == 0 {
		return nil, nil
	}
	current := monthOf(p.now())
	for m := series[len(series)-1].Month.AddDate(0, 1, 0); !m.After(current); m = m.AddDate(0, 1, 0) {
		series = append(series, models.MonthCount{Month: m})
	}
	return series, nil
}

// activityFactor damps forecasts for inactive retailers based on the
// recency and frequency of their last scans.
func (p *Predictor) activityFactor(series []models.MonthCount) float64 {
	var (
		activeMonths  int
		totalScans    int
		lastScan      time.Time
		scansLast6mo  int
		sixMonthsBack time.Time
	)
	for _, mc := range series {
		if mc.Count > 0 {
			activeMonths++
			totalScans += mc.Count
			if mc.Month.After(lastScan) {
				lastScan = mc.Month
			}
		}
	}
	if activeMonths == 0 {
		return 0
	}
	sixMonthsBack = lastScan.AddDate(0, -6, 0)
	for _, mc := range series {
		if mc.Count > 0 && !mc.Month.Before(sixMonthsBack) {
			scansLast6mo += mc.Count
		}
	}

	avgPerMonth := float64(totalScans) / float64(activeMonths)
	monthsSinceLast := p.now().Sub(lastScan).Hours() / 24 / 30.44

	switch {
	case avgPerMonth >= 2 || scansLast6mo >= 4:
		return 1.0
	case scansLast6mo >= 2:
		return 0.8
	case monthsSinceLast <= 3:
		return 0.5
	default:
		return 0.3
	}
}

// rollingAverage is the mean of the trailing window of the series.
func rollingAverage(series []models.MonthCount, window int) float64 {
	if len(series) == 0 {
		return 0
	}
	if window > len(series) {
		window = len(series)
	}
	sum := 0
	for _, mc := range series[len(series)-window:] {
		sum += mc.Count
	}
	return float64(sum) / float64(window)
}

// seasonalMean forecasts one calendar month as the mean of the same
// month across all historical years. ok=false when that month never
// appears in history, which callers treat as a fitting failure.
func seasonalMean(series []models.MonthCount, month time.Month) (float64, bool) {
	sum, n := 0, 0
	for _, mc := range series {
		if mc.Month.Month() == month {
			sum += mc.Count
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return float64(sum) / float64(n), true
}

// Predict forecasts the next `months` months of scan volume. With fewer
// than 12 months of history the forecast is a flat rolling average scaled
// by the activity factor; with 12 or more it blends the seasonal mean
// (70%) with the rolling average (30%), clipped to [0, 2x rolling
// average], then applies the same factor. A seasonal fitting failure
// falls back to the flat estimate. An all-zero result means "not enough
// history" and is reported as such by the caller.
func (p *Predictor) Predict(retailer string, months int) ([]models.MonthCount, error) {
	if months <= 0 {
		months = rollingWindow
	}
	series, err := p.monthlyHistory(retailer)
	if err != nil {
		return nil, err
	}

	start := monthOf(p.now())
	out := make([]models.MonthCount, months)
	for i := range out {
		out[i].Month = start.AddDate(0, i, 0)
	}
	if len(series) == 0 {
		slog.Debug("Predictor no history", "retailer", retailer)
		return out, nil
	}

	rolling := rollingAverage(series, rollingWindow)
	factor := p.activityFactor(series)
	flat := int(math.Round(rolling * factor))

	if len(series) < minSeasonalMonth {
		for i := range out {
			out[i].Count = flat
		}
		slog.Debug("Predictor flat forecast", "retailer", retailer, "months_of_history", len(series), "flat", flat)
		return out, nil
	}

	clipHigh := math.Max(2*rolling, 1)
	for i := range out {
		seasonal, ok := seasonalMean(series, out[i].Month.Month())
		if !ok {
			out[i].Count = flat
			continue
		}
		yhat := seasonalWeight*seasonal + rollingWeight*rolling
		yhat = math.Min(math.Max(yhat, 0), clipHigh)
		out[i].Count = int(math.Round(yhat * factor))
	}
	slog.Debug("Predictor seasonal forecast", "retailer", retailer, "months_of_history", len(series))
	return out, nil
}

// AllZero reports whether a forecast has no predicted volume at all.
func AllZero(series []models.MonthCount) bool {
	for _, mc := range series {
		if mc.Count != 0 {
			return false
		}
	}
	return true
}
