package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stroymarket/backend/internal/cart"
	"github.com/stroymarket/backend/internal/events"
	"github.com/stroymarket/backend/internal/geo"
	"github.com/stroymarket/backend/internal/models"
	"github.com/stroymarket/backend/internal/notify"
)

const defaultNotifyTimeout = 4 * time.Second

// CartSource is the slice of the cart store the orchestrator needs: a
// snapshot of lines going in, and a clear after the order is durably stored.
type CartSource interface {
	Lines() []cart.Line
	Clear(ctx context.Context)
}

type DeliveryQuoter interface {
	Cost(lat, lon float64) (geo.Quote, error)
}

type CustomerInfo struct {
	Name    string   `json:"name"`
	Phone   string   `json:"phone"`
	Email   string   `json:"email"`
	Address string   `json:"address"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

type Result struct {
	Success      bool       `json:"success"`
	OrderID      string     `json:"order_id,omitempty"`
	Total        float64    `json:"total,omitempty"`
	Delivery     *geo.Quote `json:"delivery,omitempty"`
	EmailSent    bool       `json:"email_sent"`
	TelegramSent bool       `json:"telegram_sent"`
	Error        string     `json:"error,omitempty"`

	// Unavailable separates a persistence failure from rejected input.
	Unavailable bool `json:"-"`
}

// Orchestrator runs checkout: validate, price delivery, persist the order,
// fire best-effort notifications, clear the cart. Order persistence is the
// sole success criterion.
type Orchestrator struct {
	DB            *gorm.DB
	Delivery      DeliveryQuoter
	Email         notify.Sender
	Telegram      notify.Sender
	Producer      *events.Producer
	NotifyTimeout time.Duration
	Log           *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

func (o *Orchestrator) SubmitOrder(ctx context.Context, source CartSource, info CustomerInfo, userID uint) Result {
	log := o.logger()

	lines := source.Lines()
	if len(lines) == 0 {
		return Result{Error: "корзина пуста"}
	}

	if strings.TrimSpace(info.Name) == "" {
		return Result{Error: "укажите имя"}
	}
	phone, err := NormalizePhone(info.Phone)
	if err != nil {
		return Result{Error: err.Error()}
	}
	if err := ValidateEmail(info.Email); err != nil {
		return Result{Error: err.Error()}
	}
	if strings.TrimSpace(info.Address) == "" {
		return Result{Error: "укажите адрес доставки"}
	}

	// Double-click guard: one submission at a time per user (or phone for
	// guests). Each accepted call still creates a new order row.
	guardKey := fmt.Sprintf("user:%d", userID)
	if userID == 0 {
		guardKey = "phone:" + phone
	}
	if !o.acquire(guardKey) {
		return Result{Error: "заказ уже оформляется"}
	}
	defer o.release(guardKey)

	var subtotal float64
	items := make(models.OrderItems, 0, len(lines))
	for _, l := range lines {
		subtotal += l.Product.Price * float64(l.Quantity)
		items = append(items, models.OrderItem{
			Name:     l.Product.Name,
			Price:    l.Product.Price,
			Quantity: l.Quantity,
		})
	}

	var delivery *geo.Quote
	total := subtotal
	if info.Lat != nil && info.Lon != nil && o.Delivery != nil {
		quote, err := o.Delivery.Cost(*info.Lat, *info.Lon)
		if err != nil {
			// No quote means no surcharge, not a failed checkout.
			log.Warn("delivery_quote_failed", "error", err)
		} else {
			delivery = &quote
			total += quote.CostRub
		}
	}

	// The provisional label only lives until the insert; the stored id
	// supersedes it everywhere downstream.
	provisionalID := fmt.Sprintf("%d-%04d", time.Now().UnixMilli(), rand.Intn(10000))

	order := models.Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		CustomerName:    strings.TrimSpace(info.Name),
		CustomerPhone:   phone,
		CustomerEmail:   info.Email,
		CustomerAddress: strings.TrimSpace(info.Address),
		Items:           items,
		TotalAmount:     total,
		Status:          models.OrderStatusNew,
		CreatedAt:       time.Now(),
	}
	if delivery != nil {
		order.DeliveryKm = delivery.DistanceKm
		order.DeliveryCost = delivery.CostRub
	}

	if err := o.DB.WithContext(ctx).Create(&order).Error; err != nil {
		log.Error("order_save_failed", "provisional_id", provisionalID, "error", err)
		return Result{Error: "не удалось сохранить заказ", Unavailable: true}
	}
	log.Info("order_saved", "order_id", order.ID, "total", total, "user_id", userID)

	emailSent, telegramSent := o.dispatchNotifications(order)

	o.publishOrderCreated(ctx, order)

	source.Clear(ctx)

	return Result{
		Success:      true,
		OrderID:      order.ID,
		Total:        total,
		Delivery:     delivery,
		EmailSent:    emailSent,
		TelegramSent: telegramSent,
	}
}

// dispatchNotifications fires both channels concurrently, each bounded by its
// own timeout and detached from the request context so a client disconnect
// cannot cut them short. Failures only flip the result flags.
func (o *Orchestrator) dispatchNotifications(order models.Order) (emailSent, telegramSent bool) {
	n := notify.ForOrder(notificationData(order))
	timeout := o.NotifyTimeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}

	var wg sync.WaitGroup
	send := func(s notify.Sender, channel string, ok *bool) {
		defer wg.Done()
		if s == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.Send(ctx, n); err != nil {
			o.logger().Warn("order_notify_failed", "channel", channel, "order_id", order.ID, "error", err)
			return
		}
		*ok = true
	}

	wg.Add(2)
	go send(o.Email, "email", &emailSent)
	go send(o.Telegram, "telegram", &telegramSent)
	wg.Wait()
	return emailSent, telegramSent
}

func (o *Orchestrator) publishOrderCreated(ctx context.Context, order models.Order) {
	event := map[string]any{
		"type":     "order_created",
		"order_id": order.ID,
		"user_id":  order.UserID,
		"total":    order.TotalAmount,
		"items":    order.Items,
	}
	if err := o.Producer.Publish(ctx, events.TopicOrderEvents, fmt.Sprint(order.UserID), event); err != nil {
		o.logger().Warn("order_event_failed", "order_id", order.ID, "error", err)
	}
}

func notificationData(order models.Order) notify.OrderData {
	items := make([]notify.OrderItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, notify.OrderItem{Name: it.Name, Price: it.Price, Quantity: it.Quantity})
	}
	return notify.OrderData{
		OrderID:         order.ID,
		CustomerName:    order.CustomerName,
		CustomerPhone:   order.CustomerPhone,
		CustomerEmail:   order.CustomerEmail,
		CustomerAddress: order.CustomerAddress,
		Items:           items,
		TotalAmount:     order.TotalAmount,
		DeliveryKm:      order.DeliveryKm,
		DeliveryCost:    order.DeliveryCost,
	}
}

func (o *Orchestrator) acquire(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inflight == nil {
		o.inflight = make(map[string]struct{})
	}
	if _, busy := o.inflight[key]; busy {
		return false
	}
	o.inflight[key] = struct{}{}
	return true
}

func (o *Orchestrator) release(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, key)
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Log != nil {
		return o.Log
	}
	return slog.Default()
}
