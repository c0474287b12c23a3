package geo

import (
	"fmt"
	"math"
)

// Quote is the delivery surcharge for one drop-off point.
type Quote struct {
	DistanceKm float64 `json:"distance_km"`
	CostRub    float64 `json:"cost_rub"`
}

// DeliveryCalculator prices delivery as a per-started-kilometer rate from the
// warehouse, with distance measured by haversine.
type DeliveryCalculator struct {
	WarehouseLat float64
	WarehouseLon float64
	RatePerKm    int
}

func (d *DeliveryCalculator) Cost(lat, lon float64) (Quote, error) {
	if !valid(lat, lon) || !valid(d.WarehouseLat, d.WarehouseLon) {
		return Quote{}, fmt.Errorf("invalid coords")
	}
	km := Haversine(d.WarehouseLat, d.WarehouseLon, lat, lon)
	return Quote{
		DistanceKm: km,
		CostRub:    math.Ceil(km) * float64(d.RatePerKm),
	}, nil
}

func valid(lat, lon float64) bool {
	return !math.IsNaN(lat) && !math.IsInf(lat, 0) &&
		!math.IsNaN(lon) && !math.IsInf(lon, 0) &&
		lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371
	dLat := deg2rad(lat2 - lat1)
	dLon := deg2rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(lat1))*math.Cos(deg2rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func deg2rad(deg float64) float64 {
	return deg * (math.Pi / 180)
}
