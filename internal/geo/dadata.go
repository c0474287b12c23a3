package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const suggestCount = 7

type Suggestion struct {
	Value string   `json:"value"`
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
}

// SuggestClient wraps the dadata address suggestion API.
type SuggestClient struct {
	HTTP    *http.Client
	BaseURL string
	APIKey  string
}

func NewSuggestClient(apiKey string) *SuggestClient {
	return &SuggestClient{
		HTTP:    &http.Client{Timeout: 5 * time.Second},
		BaseURL: "https://suggestions.dadata.ru/suggestions/api/4_1/rs/suggest/address",
		APIKey:  apiKey,
	}
}

func (c *SuggestClient) Suggest(ctx context.Context, query string) ([]Suggestion, error) {
	if query == "" {
		return []Suggestion{}, nil
	}
	if c.APIKey == "" {
		return nil, fmt.Errorf("dadata key not configured")
	}

	payload, err := json.Marshal(map[string]any{"query": query, "count": suggestCount})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Token "+c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dadata: %s", resp.Status)
	}

	var body struct {
		Suggestions []struct {
			Value string `json:"value"`
			Data  struct {
				GeoLat string `json:"geo_lat"`
				GeoLon string `json:"geo_lon"`
			} `json:"data"`
		} `json:"suggestions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("dadata: decode: %w", err)
	}

	out := make([]Suggestion, 0, len(body.Suggestions))
	for _, s := range body.Suggestions {
		out = append(out, Suggestion{
			Value: s.Value,
			Lat:   parseCoord(s.Data.GeoLat),
			Lon:   parseCoord(s.Data.GeoLon),
		})
	}
	return out, nil
}

func parseCoord(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
