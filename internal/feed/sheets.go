package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/stroymarket/backend/internal/logging"
	"github.com/stroymarket/backend/internal/models"
)

const sheetRange = "A2:H1000"

// Client reads the product catalog from a Google Sheets values range.
// Positional columns: name, sizes, price, image, category, class,
// description, manufacturer.
type Client struct {
	HTTP          *http.Client
	BaseURL       string
	APIKey        string
	SpreadsheetID string
	SheetName     string
	Retries       int
}

func NewClient(apiKey, spreadsheetID, sheetName string) *Client {
	return &Client{
		HTTP:          &http.Client{Timeout: 10 * time.Second},
		BaseURL:       "https://sheets.googleapis.com/v4/spreadsheets",
		APIKey:        apiKey,
		SpreadsheetID: spreadsheetID,
		SheetName:     sheetName,
		Retries:       3,
	}
}

type Filter struct {
	Category string
	Class    string
}

type Facets struct {
	Manufacturers []string `json:"manufacturers"`
	Classes       []string `json:"classes"`
}

// Products returns the filtered catalog. On total fetch failure it returns an
// empty slice so callers can fall back to placeholder data.
func (c *Client) Products(ctx context.Context, f Filter) []models.Product {
	rows, err := c.fetchRows(ctx)
	if err != nil {
		logging.FromContext(ctx).Warn("feed_unavailable", "error", err)
		return []models.Product{}
	}

	products := make([]models.Product, 0, len(rows))
	for i, row := range rows {
		p, err := ParseRow(row, i)
		if err != nil {
			logging.FromContext(ctx).Debug("feed_row_skipped", "row", i+2, "error", err)
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Class != "" && p.Class != f.Class {
			continue
		}
		products = append(products, p)
	}
	return products
}

// FacetsFor lists distinct manufacturers and classes of the filtered set,
// sorted for stable rendering.
func (c *Client) FacetsFor(ctx context.Context, f Filter) Facets {
	manufacturers := map[string]struct{}{}
	classes := map[string]struct{}{}
	for _, p := range c.Products(ctx, f) {
		if p.Manufacturer != "" {
			manufacturers[p.Manufacturer] = struct{}{}
		}
		if p.Class != "" {
			classes[p.Class] = struct{}{}
		}
	}
	out := Facets{Manufacturers: keys(manufacturers), Classes: keys(classes)}
	sort.Strings(out.Manufacturers)
	sort.Strings(out.Classes)
	return out
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// ParseRow normalizes one sheet row into a Product. Rows with a blank name are
// rejected; a malformed price parses to 0 rather than failing the row.
func ParseRow(row []string, idx int) (models.Product, error) {
	name := strings.TrimSpace(cell(row, 0))
	if name == "" {
		return models.Product{}, fmt.Errorf("row %d: empty name", idx+2)
	}

	sizes := strings.TrimSpace(cell(row, 1))
	if sizes == "" {
		sizes = "Размеры не указаны"
	}

	return models.Product{
		ID:           fmt.Sprintf("row-%d", idx+2),
		Name:         name,
		Sizes:        sizes,
		Price:        parsePrice(cell(row, 2)),
		Image:        strings.TrimSpace(cell(row, 3)),
		Category:     strings.TrimSpace(cell(row, 4)),
		Class:        strings.TrimSpace(cell(row, 5)),
		Description:  strings.TrimSpace(cell(row, 6)),
		Manufacturer: strings.TrimSpace(cell(row, 7)),
		InStock:      true,
	}, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// parsePrice accepts space-grouped digits and a comma decimal separator.
func parsePrice(s string) float64 {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func (c *Client) fetchRows(ctx context.Context) ([][]string, error) {
	if c.APIKey == "" || c.SpreadsheetID == "" {
		return nil, fmt.Errorf("sheets credentials not configured")
	}

	u := fmt.Sprintf("%s/%s/values/%s?key=%s",
		c.BaseURL,
		c.SpreadsheetID,
		url.PathEscape(fmt.Sprintf("%s!%s", c.SheetName, sheetRange)),
		url.QueryEscape(c.APIKey),
	)

	var lastErr error
	for attempt := 0; attempt < c.Retries; attempt++ {
		if attempt > 0 {
			delay := time.Second << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		rows, err := c.fetchOnce(ctx, u)
		if err == nil {
			return rows, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, u string) ([][]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sheets api: %s", resp.Status)
	}

	var body struct {
		Values [][]string `json:"values"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("sheets api: decode: %w", err)
	}
	return body.Values, nil
}
