package geo

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHaversine(t *testing.T) {
	// Moscow to Saint Petersburg, roughly 634 km.
	km := Haversine(55.7558, 37.6173, 59.9343, 30.3351)
	require.InDelta(t, 634, km, 5)

	require.Zero(t, Haversine(55.75, 37.61, 55.75, 37.61))
}

func TestDeliveryCostRoundsUpStartedKilometers(t *testing.T) {
	d := &DeliveryCalculator{WarehouseLat: 55.7558, WarehouseLon: 37.6173, RatePerKm: 7}

	q, err := d.Cost(55.7858, 37.6173)
	require.NoError(t, err)
	require.InDelta(t, 3.34, q.DistanceKm, 0.1)
	require.InDelta(t, math.Ceil(q.DistanceKm)*7, q.CostRub, 0.001)
}

func TestDeliveryCostRejectsInvalidCoords(t *testing.T) {
	d := &DeliveryCalculator{WarehouseLat: 55.7558, WarehouseLon: 37.6173, RatePerKm: 7}

	_, err := d.Cost(91, 37.61)
	require.Error(t, err)
	_, err = d.Cost(55.75, 181)
	require.Error(t, err)
	_, err = d.Cost(math.NaN(), 37.61)
	require.Error(t, err)

	unset := &DeliveryCalculator{WarehouseLat: math.NaN(), RatePerKm: 7}
	_, err = unset.Cost(55.75, 37.61)
	require.Error(t, err)
}

func TestSuggest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Token test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "Москва", req["query"])
		require.EqualValues(t, 7, req["count"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"suggestions": []map[string]any{
				{"value": "г Москва", "data": map[string]string{"geo_lat": "55.7558", "geo_lon": "37.6173"}},
				{"value": "г Москва, ул Тверская", "data": map[string]string{"geo_lat": "", "geo_lon": ""}},
			},
		})
	}))
	defer srv.Close()

	c := &SuggestClient{HTTP: srv.Client(), BaseURL: srv.URL, APIKey: "test-key"}

	got, err := c.Suggest(context.Background(), "Москва")
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Equal(t, "г Москва", got[0].Value)
	require.NotNil(t, got[0].Lat)
	require.InDelta(t, 55.7558, *got[0].Lat, 0.0001)

	require.Nil(t, got[1].Lat)
	require.Nil(t, got[1].Lon)
}

func TestSuggestEmptyQuery(t *testing.T) {
	c := &SuggestClient{APIKey: "test-key"}
	got, err := c.Suggest(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSuggestProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := &SuggestClient{HTTP: srv.Client(), BaseURL: srv.URL, APIKey: "bad-key"}
	_, err := c.Suggest(context.Background(), "Москва")
	require.Error(t, err)
}
