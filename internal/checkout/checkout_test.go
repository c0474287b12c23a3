package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/stroymarket/backend/internal/cart"
	"github.com/stroymarket/backend/internal/geo"
	"github.com/stroymarket/backend/internal/models"
	"github.com/stroymarket/backend/internal/notify"
)

func newOrderDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Order{}))
	return db
}

type fakeCart struct {
	lines   []cart.Line
	cleared bool
}

func (f *fakeCart) Lines() []cart.Line        { return f.lines }
func (f *fakeCart) Clear(ctx context.Context) { f.cleared = true }

func cartWith(lines ...cart.Line) *fakeCart {
	return &fakeCart{lines: lines}
}

func line(id, name string, price float64, qty int) cart.Line {
	return cart.Line{
		ID:       id,
		Product:  models.Product{ID: id, Name: name, Price: price},
		Quantity: qty,
	}
}

type fixedQuoter struct {
	quote geo.Quote
	err   error
}

func (q fixedQuoter) Cost(lat, lon float64) (geo.Quote, error) { return q.quote, q.err }

type recordingSender struct {
	mu     sync.Mutex
	called int
	err    error
}

func (s *recordingSender) Send(ctx context.Context, n notify.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.called++
	return s.err
}

func (s *recordingSender) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.called
}

func validInfo() CustomerInfo {
	return CustomerInfo{
		Name:    "Иван Петров",
		Phone:   "89991234567",
		Email:   "ivan@example.ru",
		Address: "г. Москва, ул. Строителей, 5",
	}
}

func ptr(v float64) *float64 { return &v }

func TestSubmitOrderSuccess(t *testing.T) {
	db := newOrderDB(t)
	email := &recordingSender{}
	telegram := &recordingSender{}
	o := &Orchestrator{
		DB:       db,
		Delivery: fixedQuoter{quote: geo.Quote{DistanceKm: 12.3, CostRub: 91}},
		Email:    email,
		Telegram: telegram,
	}

	src := cartWith(line("row-2", "Кирпич рядовой", 100, 10))
	info := validInfo()
	info.Lat, info.Lon = ptr(55.75), ptr(37.61)

	res := o.SubmitOrder(context.Background(), src, info, 7)

	require.True(t, res.Success)
	require.Empty(t, res.Error)
	require.InDelta(t, 1091.0, res.Total, 0.001)
	require.NotNil(t, res.Delivery)
	require.True(t, res.EmailSent)
	require.True(t, res.TelegramSent)
	require.True(t, src.cleared)
	require.Equal(t, 1, email.calls())
	require.Equal(t, 1, telegram.calls())

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", res.OrderID).Error)
	require.Equal(t, uint(7), order.UserID)
	require.Equal(t, "79991234567", order.CustomerPhone)
	require.Equal(t, models.OrderStatusNew, order.Status)
	require.InDelta(t, 1091.0, order.TotalAmount, 0.001)
	require.Len(t, order.Items, 1)
	require.Equal(t, "Кирпич рядовой", order.Items[0].Name)
}

func TestSubmitOrderEmptyCart(t *testing.T) {
	o := &Orchestrator{DB: newOrderDB(t)}

	res := o.SubmitOrder(context.Background(), cartWith(), validInfo(), 0)

	require.False(t, res.Success)
	require.False(t, res.Unavailable)
	require.Equal(t, "корзина пуста", res.Error)
}

func TestSubmitOrderRejectsBadInput(t *testing.T) {
	o := &Orchestrator{DB: newOrderDB(t)}
	src := cartWith(line("row-2", "Кирпич рядовой", 100, 1))

	bad := validInfo()
	bad.Phone = "123"
	require.False(t, o.SubmitOrder(context.Background(), src, bad, 0).Success)

	bad = validInfo()
	bad.Email = "ivan@example"
	require.False(t, o.SubmitOrder(context.Background(), src, bad, 0).Success)

	bad = validInfo()
	bad.Name = "  "
	require.False(t, o.SubmitOrder(context.Background(), src, bad, 0).Success)

	bad = validInfo()
	bad.Address = ""
	require.False(t, o.SubmitOrder(context.Background(), src, bad, 0).Success)

	require.False(t, src.cleared)
}

func TestSubmitOrderQuoteFailureSkipsSurcharge(t *testing.T) {
	o := &Orchestrator{
		DB:       newOrderDB(t),
		Delivery: fixedQuoter{err: errors.New("provider down")},
	}

	src := cartWith(line("row-2", "Кирпич рядовой", 100, 10))
	info := validInfo()
	info.Lat, info.Lon = ptr(55.75), ptr(37.61)

	res := o.SubmitOrder(context.Background(), src, info, 0)

	require.True(t, res.Success)
	require.InDelta(t, 1000.0, res.Total, 0.001)
	require.Nil(t, res.Delivery)
}

func TestSubmitOrderWithoutCoordinates(t *testing.T) {
	o := &Orchestrator{
		DB:       newOrderDB(t),
		Delivery: fixedQuoter{quote: geo.Quote{DistanceKm: 5, CostRub: 35}},
	}

	src := cartWith(line("row-2", "Кирпич рядовой", 100, 10))

	res := o.SubmitOrder(context.Background(), src, validInfo(), 0)

	require.True(t, res.Success)
	require.InDelta(t, 1000.0, res.Total, 0.001)
	require.Nil(t, res.Delivery)
}

func TestSubmitOrderInsertFailure(t *testing.T) {
	db := newOrderDB(t)
	require.NoError(t, db.Migrator().DropTable(&models.Order{}))

	email := &recordingSender{}
	o := &Orchestrator{DB: db, Email: email}

	src := cartWith(line("row-2", "Кирпич рядовой", 100, 1))
	res := o.SubmitOrder(context.Background(), src, validInfo(), 0)

	require.False(t, res.Success)
	require.True(t, res.Unavailable)
	require.Equal(t, "не удалось сохранить заказ", res.Error)
	require.False(t, src.cleared)
	require.Zero(t, email.calls())
}

func TestSubmitOrderNotifyFailureStillSucceeds(t *testing.T) {
	o := &Orchestrator{
		DB:       newOrderDB(t),
		Email:    &recordingSender{err: errors.New("resend down")},
		Telegram: &recordingSender{err: errors.New("telegram down")},
	}

	src := cartWith(line("row-2", "Кирпич рядовой", 100, 1))
	res := o.SubmitOrder(context.Background(), src, validInfo(), 0)

	require.True(t, res.Success)
	require.False(t, res.EmailSent)
	require.False(t, res.TelegramSent)
	require.True(t, src.cleared)
}

func TestInflightGuard(t *testing.T) {
	o := &Orchestrator{}

	require.True(t, o.acquire("phone:79991234567"))
	require.False(t, o.acquire("phone:79991234567"))
	require.True(t, o.acquire("user:7"))

	o.release("phone:79991234567")
	require.True(t, o.acquire("phone:79991234567"))
}
