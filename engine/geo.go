package engine

import "math"

// EarthRadiusMiles is the mean Earth radius used for great-circle distance.
const EarthRadiusMiles = 3958.8

// HaversineMiles returns the great-circle distance between two nodes.
func HaversineMiles(a, b Node) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	lat1, lat2 := toRad(a.Lat), toRad(b.Lat)
	h := math.Pow(math.Sin(dLat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLon/2), 2)
	return 2 * EarthRadiusMiles * math.Asin(math.Sqrt(h))
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// round matches half-away-from-zero rounding for non-negative money and
// case counts.
func round(x float64) float64 { return math.Round(x) }

func roundInt(x float64) int { return int(math.Round(x)) }
