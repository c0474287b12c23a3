package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/stroymarket/backend/internal/cart"
	"github.com/stroymarket/backend/internal/checkout"
	"github.com/stroymarket/backend/internal/models"
	"github.com/stroymarket/backend/internal/notify"
)

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.CartItem{}, &models.Order{}, &models.ContactMessage{}, &models.Partner{},
	))
	return db
}

func newCartManager(t *testing.T) *cart.Manager {
	cache, err := cart.NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	return cart.NewManager(cache, nil, nil)
}

func doJSON(t *testing.T, method, target string, body any) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.Set("cartSession", "sess-1")
	return rec, c
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) cartResponse {
	var resp cartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

type stubSender struct {
	err    error
	called int
}

func (s *stubSender) Send(ctx context.Context, n notify.Notification) error {
	s.called++
	return s.err
}

func TestCartHandlerFlow(t *testing.T) {
	h := &CartHandler{Carts: newCartManager(t)}

	addBody := map[string]any{
		"product":  models.Product{ID: "row-2", Name: "Кирпич рядовой", Price: 18.5},
		"quantity": 2,
	}

	rec, c := doJSON(t, http.MethodPost, "/api/v1/cart", addBody)
	require.NoError(t, h.AddToCart(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, decodeCart(t, rec).TotalItems)

	// Same product merges into the existing line.
	rec, c = doJSON(t, http.MethodPost, "/api/v1/cart", addBody)
	require.NoError(t, h.AddToCart(c))
	resp := decodeCart(t, rec)
	require.Len(t, resp.Items, 1)
	require.Equal(t, 4, resp.TotalItems)

	rec, c = doJSON(t, http.MethodPatch, "/api/v1/cart/row-2", map[string]int{"quantity": 10})
	c.SetParamNames("productID")
	c.SetParamValues("row-2")
	require.NoError(t, h.UpdateQuantity(c))
	require.Equal(t, 10, decodeCart(t, rec).TotalItems)

	rec, c = doJSON(t, http.MethodDelete, "/api/v1/cart/row-2", nil)
	c.SetParamNames("productID")
	c.SetParamValues("row-2")
	require.NoError(t, h.RemoveFromCart(c))
	require.Empty(t, decodeCart(t, rec).Items)
}

func TestCartHandlerRejectsInvalidProduct(t *testing.T) {
	h := &CartHandler{Carts: newCartManager(t)}

	_, c := doJSON(t, http.MethodPost, "/api/v1/cart", map[string]any{
		"product": models.Product{Name: "Без идентификатора"},
	})
	err := h.AddToCart(c)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestContactMessageSaved(t *testing.T) {
	db := initTestDB(t)
	email := &stubSender{}
	telegram := &stubSender{}
	h := &ContactHandler{DB: db, Email: email, Telegram: telegram}

	rec, c := doJSON(t, http.MethodPost, "/api/v1/contact", map[string]string{
		"name":    "Иван",
		"phone":   "8 (999) 123-45-67",
		"message": "Перезвоните мне",
	})
	require.NoError(t, h.SubmitMessage(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success      bool `json:"success"`
		DBSaved      bool `json:"db_saved"`
		EmailSent    bool `json:"email_sent"`
		TelegramSent bool `json:"telegram_sent"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.True(t, resp.DBSaved)
	require.True(t, resp.EmailSent)
	require.True(t, resp.TelegramSent)
	require.Equal(t, 1, email.called)
	require.Equal(t, 1, telegram.called)

	var msg models.ContactMessage
	require.NoError(t, db.First(&msg).Error)
	require.Equal(t, "79991234567", msg.Phone)
	require.Equal(t, "new", msg.Status)
}

func TestContactSucceedsWhenOnlyOneChannelWorks(t *testing.T) {
	db := initTestDB(t)
	require.NoError(t, db.Migrator().DropTable(&models.ContactMessage{}))

	h := &ContactHandler{
		DB:       db,
		Email:    &stubSender{err: errors.New("resend down")},
		Telegram: &stubSender{},
	}

	rec, c := doJSON(t, http.MethodPost, "/api/v1/contact", map[string]string{
		"name": "Иван", "phone": "89991234567", "message": "Перезвоните",
	})
	require.NoError(t, h.SubmitMessage(c))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestContactFailsWhenNothingReachable(t *testing.T) {
	db := initTestDB(t)
	require.NoError(t, db.Migrator().DropTable(&models.ContactMessage{}))

	h := &ContactHandler{
		DB:       db,
		Email:    &stubSender{err: errors.New("resend down")},
		Telegram: &stubSender{err: errors.New("telegram down")},
	}

	rec, c := doJSON(t, http.MethodPost, "/api/v1/contact", map[string]string{
		"name": "Иван", "phone": "89991234567", "message": "Перезвоните",
	})
	require.NoError(t, h.SubmitMessage(c))
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestContactRejectsBadPhone(t *testing.T) {
	h := &ContactHandler{DB: initTestDB(t)}

	_, c := doJSON(t, http.MethodPost, "/api/v1/contact", map[string]string{
		"name": "Иван", "phone": "123", "message": "Перезвоните",
	})
	err := h.SubmitMessage(c)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestCheckoutPersistenceFailureIsABackendFault(t *testing.T) {
	db := initTestDB(t)
	require.NoError(t, db.Migrator().DropTable(&models.Order{}))

	carts := newCartManager(t)
	s := carts.Store("sess-1")
	s.Activate(context.Background(), 0)
	s.AddLine(context.Background(), models.Product{ID: "row-2", Name: "Кирпич рядовой", Price: 100}, 1)

	h := &CheckoutHandler{Carts: carts, Orchestrator: &checkout.Orchestrator{DB: db}}

	rec, c := doJSON(t, http.MethodPost, "/api/v1/checkout", map[string]string{
		"name":    "Иван",
		"phone":   "89991234567",
		"address": "Москва",
	})
	require.NoError(t, h.SubmitOrder(c))
	require.Equal(t, http.StatusBadGateway, rec.Code)

	// Rejected input is still a plain 400.
	rec, c = doJSON(t, http.MethodPost, "/api/v1/checkout", map[string]string{
		"name": "Иван", "phone": "123", "address": "Москва",
	})
	require.NoError(t, h.SubmitOrder(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func seedOrder(t *testing.T, db *gorm.DB, id string, userID uint, status string) {
	require.NoError(t, db.Create(&models.Order{
		ID:              id,
		UserID:          userID,
		CustomerName:    "Иван",
		CustomerPhone:   "79991234567",
		CustomerAddress: "Москва",
		TotalAmount:     100,
		Status:          status,
	}).Error)
}

func TestListMyOrdersScopedToUser(t *testing.T) {
	db := initTestDB(t)
	seedOrder(t, db, "o-1", 7, models.OrderStatusNew)
	seedOrder(t, db, "o-2", 8, models.OrderStatusNew)

	h := &OrderHandler{DB: db}
	rec, c := doJSON(t, http.MethodGet, "/api/v1/orders", nil)
	c.Set("userID", uint(7))
	require.NoError(t, h.ListMyOrders(c))

	var orders []models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	require.Equal(t, "o-1", orders[0].ID)
}

func patchStatus(t *testing.T, h *AdminHandler, orderID, status string) (*httptest.ResponseRecorder, error) {
	rec, c := doJSON(t, http.MethodPatch, "/api/v1/admin/orders/"+orderID+"/status",
		map[string]string{"status": status})
	c.SetParamNames("id")
	c.SetParamValues(orderID)
	return rec, h.UpdateOrderStatus(c)
}

func TestUpdateOrderStatusTransitions(t *testing.T) {
	db := initTestDB(t)
	seedOrder(t, db, "o-1", 7, models.OrderStatusNew)
	h := &AdminHandler{DB: db}

	rec, err := patchStatus(t, h, "o-1", models.OrderStatusConfirmed)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	// Skipping steps is rejected.
	_, err = patchStatus(t, h, "o-1", models.OrderStatusDelivered)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusConflict, httpErr.Code)

	// Cancellation is open until delivery.
	_, err = patchStatus(t, h, "o-1", models.OrderStatusCancelled)
	require.NoError(t, err)

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", "o-1").Error)
	require.Equal(t, models.OrderStatusCancelled, order.Status)
}

func TestUpdateOrderStatusDeliveredIsFinal(t *testing.T) {
	db := initTestDB(t)
	seedOrder(t, db, "o-1", 7, models.OrderStatusDelivered)
	h := &AdminHandler{DB: db}

	_, err := patchStatus(t, h, "o-1", models.OrderStatusCancelled)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusConflict, httpErr.Code)
}

func TestUpdateOrderStatusUnknownOrder(t *testing.T) {
	h := &AdminHandler{DB: initTestDB(t)}

	_, err := patchStatus(t, h, "missing", models.OrderStatusConfirmed)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusNotFound, httpErr.Code)
}

func TestAdminStats(t *testing.T) {
	db := initTestDB(t)
	seedOrder(t, db, "o-1", 7, models.OrderStatusNew)
	seedOrder(t, db, "o-2", 7, models.OrderStatusNew)
	seedOrder(t, db, "o-3", 7, models.OrderStatusShipped)
	require.NoError(t, db.Create(&models.ContactMessage{
		Name: "Иван", Phone: "79991234567", Message: "Вопрос", Status: "new",
	}).Error)

	h := &AdminHandler{DB: db}
	rec, c := doJSON(t, http.MethodGet, "/api/v1/admin/stats", nil)
	require.NoError(t, h.Stats(c))

	var stats struct {
		NewOrders   int64 `json:"new_orders"`
		NewMessages int64 `json:"new_messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.EqualValues(t, 2, stats.NewOrders)
	require.EqualValues(t, 1, stats.NewMessages)
}

func TestAdminListOrdersFiltersByStatus(t *testing.T) {
	db := initTestDB(t)
	seedOrder(t, db, "o-1", 7, models.OrderStatusNew)
	seedOrder(t, db, "o-2", 7, models.OrderStatusShipped)

	h := &AdminHandler{DB: db}
	rec, c := doJSON(t, http.MethodGet, "/api/v1/admin/orders?status=shipped", nil)
	require.NoError(t, h.ListOrders(c))

	var orders []models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	require.Equal(t, "o-2", orders[0].ID)
}

func TestSearchWithoutBackendDegrades(t *testing.T) {
	h := &SearchHandler{}

	rec, c := doJSON(t, http.MethodGet, "/api/v1/search?q=кирпич", nil)
	require.NoError(t, h.Search(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Empty(t, resp.Products)
}

func TestSearchRequiresQuery(t *testing.T) {
	h := &SearchHandler{}

	_, c := doJSON(t, http.MethodGet, "/api/v1/search", nil)
	err := h.Search(c)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestListPartners(t *testing.T) {
	db := initTestDB(t)
	require.NoError(t, db.Create(&models.Partner{Name: "База Строй", Address: "Москва"}).Error)
	require.NoError(t, db.Create(&models.Partner{Name: "Арматура-Опт", Address: "Тула"}).Error)

	h := &PartnerHandler{DB: db}
	rec, c := doJSON(t, http.MethodGet, "/api/v1/partners", nil)
	require.NoError(t, h.ListPartners(c))

	var partners []models.Partner
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &partners))
	require.Len(t, partners, 2)
	require.Equal(t, "Арматура-Опт", partners[0].Name)
}
