package notify

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Sender delivers one side-channel notification. Implementations are
// best-effort: the caller bounds the attempt with a timeout and records the
// outcome without acting on it.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

type Notification struct {
	Type      string // "contact" or "order"
	Contact   *ContactData
	Order     *OrderData
	Timestamp time.Time
}

type ContactData struct {
	Name             string
	Phone            string
	Email            string
	Message          string
	PreferredContact string
}

type OrderItem struct {
	Name     string
	Price    float64
	Quantity int
}

type OrderData struct {
	OrderID         string
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	CustomerAddress string
	Items           []OrderItem
	TotalAmount     float64
	DeliveryKm      float64
	DeliveryCost    float64
}

func ForContact(d ContactData) Notification {
	return Notification{Type: "contact", Contact: &d, Timestamp: time.Now()}
}

func ForOrder(d OrderData) Notification {
	return Notification{Type: "order", Order: &d, Timestamp: time.Now()}
}

func orderLines(items []OrderItem) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "• %s - %d шт. × %.0f₽\n", it.Name, it.Quantity, it.Price)
	}
	return strings.TrimRight(b.String(), "\n")
}

func orEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
