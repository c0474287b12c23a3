package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sheetServer(t *testing.T, rows [][]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.NotEmpty(t, r.URL.Query().Get("key"))
		_ = json.NewEncoder(w).Encode(map[string]any{"values": rows})
	}))
}

func testClient(srv *httptest.Server) *Client {
	return &Client{
		HTTP:          srv.Client(),
		BaseURL:       srv.URL,
		APIKey:        "test-key",
		SpreadsheetID: "sheet-1",
		SheetName:     "Материалы",
		Retries:       1,
	}
}

func TestParseRow(t *testing.T) {
	p, err := ParseRow([]string{
		"Кирпич рядовой", "250x120x65", "18,50", "http://img", "Кирпич", "М150", "Полнотелый", "ЗКЗ",
	}, 0)
	require.NoError(t, err)

	require.Equal(t, "row-2", p.ID)
	require.Equal(t, "Кирпич рядовой", p.Name)
	require.Equal(t, "250x120x65", p.Sizes)
	require.InDelta(t, 18.5, p.Price, 0.001)
	require.Equal(t, "Кирпич", p.Category)
	require.Equal(t, "М150", p.Class)
	require.Equal(t, "ЗКЗ", p.Manufacturer)
	require.True(t, p.InStock)
}

func TestParseRowDefaults(t *testing.T) {
	p, err := ParseRow([]string{"Цемент М500"}, 3)
	require.NoError(t, err)
	require.Equal(t, "row-5", p.ID)
	require.Equal(t, "Размеры не указаны", p.Sizes)
	require.Zero(t, p.Price)
}

func TestParseRowBlankName(t *testing.T) {
	_, err := ParseRow([]string{"   ", "250x120x65", "18,50"}, 0)
	require.Error(t, err)
}

func TestParsePrice(t *testing.T) {
	require.InDelta(t, 1234.5, parsePrice("1 234,50"), 0.001)
	require.InDelta(t, 450.0, parsePrice("450"), 0.001)
	require.InDelta(t, 18.5, parsePrice("18.50"), 0.001)
	require.Zero(t, parsePrice("дог."))
	require.Zero(t, parsePrice("-5"))
	require.Zero(t, parsePrice(""))
}

func TestProductsFiltersAndSkipsBlankRows(t *testing.T) {
	srv := sheetServer(t, [][]string{
		{"Кирпич рядовой", "", "18,50", "", "Кирпич", "М150"},
		{"", "", "450"},
		{"Цемент М500", "", "450", "", "Цемент", ""},
	})
	defer srv.Close()

	c := testClient(srv)

	all := c.Products(context.Background(), Filter{})
	require.Len(t, all, 2)

	bricks := c.Products(context.Background(), Filter{Category: "Кирпич"})
	require.Len(t, bricks, 1)
	require.Equal(t, "Кирпич рядовой", bricks[0].Name)

	classed := c.Products(context.Background(), Filter{Class: "М150"})
	require.Len(t, classed, 1)
}

func TestProductsUnavailableFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv)
	require.Empty(t, c.Products(context.Background(), Filter{}))
}

func TestProductsMissingCredentials(t *testing.T) {
	c := &Client{HTTP: http.DefaultClient, Retries: 1}
	require.Empty(t, c.Products(context.Background(), Filter{}))
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"values": [][]string{{"Кирпич рядовой"}}})
	}))
	defer srv.Close()

	c := testClient(srv)
	c.Retries = 3

	products := c.Products(context.Background(), Filter{})
	require.Len(t, products, 1)
	require.Equal(t, 2, attempts)
}

func TestFetchRespectsContextDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(srv)
	c.Retries = 3

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	require.Empty(t, c.Products(ctx, Filter{}))
	require.Less(t, time.Since(start), time.Second)
}

func TestFacetsSorted(t *testing.T) {
	srv := sheetServer(t, [][]string{
		{"Кирпич А", "", "10", "", "Кирпич", "М200", "", "Завод Б"},
		{"Кирпич Б", "", "12", "", "Кирпич", "М150", "", "Завод А"},
		{"Кирпич В", "", "14", "", "Кирпич", "М150", "", "Завод Б"},
	})
	defer srv.Close()

	facets := testClient(srv).FacetsFor(context.Background(), Filter{Category: "Кирпич"})
	require.Equal(t, []string{"Завод А", "Завод Б"}, facets.Manufacturers)
	require.Equal(t, []string{"М150", "М200"}, facets.Classes)
}
