package engine

import "sort"

// DefaultAlpha is the exponential smoothing factor used across the engine.
const DefaultAlpha = 0.35

// forecastUplift caps the weekly estimate relative to the observed baseline.
const forecastUplift = 1.35

// Forecast is the near-term demand estimate for one (region, SKU).
type Forecast struct {
	Region  Region  `json:"region"`
	SKUID   string  `json:"skuId"`
	Next7d  int     `json:"next7d"`
	Next28d int     `json:"next28d"`
	Alpha   float64 `json:"alpha"`
}

// Daily returns the daily run-rate, floored at 1 case so it is safe as a divisor.
func (f Forecast) Daily() float64 {
	d := float64(f.Next7d) / 7
	if d < 1 {
		return 1
	}
	return d
}

// ForecastDemand applies single exponential smoothing to the (region, sku)
// series and projects the mean of the last 7 smoothed values over a week.
// Simple and explainable over statistically optimal.
func ForecastDemand(history []DemandPoint, region Region, skuID string, alpha float64) Forecast {
	fc := Forecast{Region: region, SKUID: skuID, Alpha: alpha}

	var pts []DemandPoint
	for _, d := range history {
		if d.Region == region && d.SKUID == skuID {
			pts = append(pts, d)
		}
	}
	if len(pts) == 0 {
		return fc
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Day < pts[j].Day })

	smoothed := make([]float64, len(pts))
	level := float64(pts[0].DemandCases)
	smoothed[0] = level
	for i := 1; i < len(pts); i++ {
		level = alpha*float64(pts[i].DemandCases) + (1-alpha)*level
		smoothed[i] = level
	}

	tail := smoothed
	if len(tail) > 7 {
		tail = tail[len(tail)-7:]
	}
	sum := 0.0
	for _, v := range tail {
		sum += v
	}
	weekly := sum / float64(len(tail)) * 7
	if weekly < 0 {
		weekly = 0
	}
	base := clamp(weekly, weekly, weekly*forecastUplift)

	fc.Next7d = roundInt(base)
	fc.Next28d = fc.Next7d * 4
	return fc
}

// forecaster memoizes forecasts for one state snapshot.
type forecaster struct {
	history []DemandPoint
	cache   map[invKey]Forecast
}

func newForecaster(history []DemandPoint) *forecaster {
	return &forecaster{history: history, cache: make(map[invKey]Forecast)}
}

func (f *forecaster) get(region Region, skuID string) Forecast {
	k := invKey{string(region), skuID}
	if fc, ok := f.cache[k]; ok {
		return fc
	}
	fc := ForecastDemand(f.history, region, skuID, DefaultAlpha)
	f.cache[k] = fc
	return fc
}

// DaysOfCover returns (onHand+inTransit)/daily for a position.
func DaysOfCover(inv InventoryPosition, fc Forecast) float64 {
	return float64(inv.OnHand+inv.InTransit) / fc.Daily()
}

// MinCover is the days-of-cover floor below which a position is a stockout risk.
func MinCover(target int) float64 {
	t := float64(target) * 0.55
	if t < 6 {
		return 6
	}
	return t
}
