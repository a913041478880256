// Package forecast projects stock depletion from recent quantity history.
// The projection is linear and advisory only.
package forecast

import (
	"math"
	"sort"
	"time"

	"bakery-inventory/internal/models"
)

const (
	Window           = 7 * 24 * time.Hour
	windowDays       = 7
	historicalPoints = 10
	predictedPoints  = 5
)

type Point struct {
	Date      models.Date `json:"date"`
	Quantity  float64     `json:"quantity"`
	Predicted bool        `json:"predicted"`
}

// Forecast is the depletion estimate for one product. DaysUntilDepletion is
// nil when usage is zero.
type Forecast struct {
	ProductID          uint    `json:"productId"`
	AvgDailyUsage      float64 `json:"avgDailyUsage"`
	DaysUntilDepletion *int    `json:"daysUntilDepletion"`
	NeverDepletes      bool    `json:"neverDepletes"`
	BelowMinimum       bool    `json:"belowMinimum"`
	Series             []Point `json:"series"`
}

// AvgDailyUsage sums the absolute change of every entry inside the trailing
// window and divides by seven, however many days actually saw activity.
func AvgDailyUsage(history []models.QuantityHistory, now time.Time) float64 {
	since := now.Add(-Window)
	total := 0
	for _, h := range history {
		if h.Timestamp.Before(since) {
			continue
		}
		total += abs(h.ChangeAmount)
	}
	return float64(total) / windowDays
}

// Estimate builds the forecast for p. history may be in any order.
func Estimate(p models.Product, history []models.QuantityHistory, now time.Time) Forecast {
	avg := AvgDailyUsage(history, now)
	f := Forecast{
		ProductID:     p.ID,
		AvgDailyUsage: avg,
		BelowMinimum:  p.Quantity < p.MinQuantity,
	}
	if avg > 0 {
		days := int(math.Floor(float64(p.Quantity) / avg))
		f.DaysUntilDepletion = &days
	} else {
		f.NeverDepletes = true
	}

	recent := newestFirst(history)
	if len(recent) > historicalPoints {
		recent = recent[:historicalPoints]
	}

	f.Series = make([]Point, 0, len(recent)+predictedPoints)
	for i := len(recent) - 1; i >= 0; i-- {
		f.Series = append(f.Series, Point{
			Date:     models.DateOf(recent[i].Timestamp),
			Quantity: float64(recent[i].Quantity),
		})
	}

	last := float64(p.Quantity)
	if len(recent) > 0 {
		last = float64(recent[0].Quantity)
	}
	for i := 1; i <= predictedPoints; i++ {
		f.Series = append(f.Series, Point{
			Date:      models.DateOf(now.AddDate(0, 0, i)),
			Quantity:  math.Max(0, last-avg*float64(i)),
			Predicted: true,
		})
	}
	return f
}

func newestFirst(history []models.QuantityHistory) []models.QuantityHistory {
	out := make([]models.QuantityHistory, len(history))
	copy(out, history)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
