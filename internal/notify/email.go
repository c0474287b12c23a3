package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// EmailSender posts operator notifications through the Resend HTTP API.
type EmailSender struct {
	HTTP    *http.Client
	BaseURL string
	APIKey  string
	From    string
	To      string
}

func NewEmailSender(apiKey, from, to string) *EmailSender {
	return &EmailSender{
		HTTP:    &http.Client{Timeout: 5 * time.Second},
		BaseURL: "https://api.resend.com/emails",
		APIKey:  apiKey,
		From:    from,
		To:      to,
	}
}

func (s *EmailSender) Send(ctx context.Context, n Notification) error {
	if s.APIKey == "" {
		return fmt.Errorf("email: api key not configured")
	}

	subject, html := renderEmail(n)
	payload, err := json.Marshal(map[string]any{
		"from":    s.From,
		"to":      []string{s.To},
		"subject": subject,
		"html":    html,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email: %s: %s", resp.Status, body)
	}
	return nil
}

func renderEmail(n Notification) (subject, html string) {
	ts := n.Timestamp.Format("02.01.2006 15:04")

	switch n.Type {
	case "contact":
		d := n.Contact
		subject = fmt.Sprintf("Новое сообщение от %s", d.Name)
		var b bytes.Buffer
		fmt.Fprintf(&b, "<h2>Новое сообщение с сайта</h2>")
		fmt.Fprintf(&b, "<p><strong>Имя:</strong> %s</p>", d.Name)
		fmt.Fprintf(&b, "<p><strong>Телефон:</strong> %s</p>", d.Phone)
		if d.Email != "" {
			fmt.Fprintf(&b, "<p><strong>Email:</strong> %s</p>", d.Email)
		}
		fmt.Fprintf(&b, "<p><strong>Сообщение:</strong></p><p>%s</p>", d.Message)
		fmt.Fprintf(&b, "<p><strong>Способ связи:</strong> %s</p>", d.PreferredContact)
		fmt.Fprintf(&b, "<p>%s</p>", ts)
		html = b.String()

	case "order":
		d := n.Order
		subject = fmt.Sprintf("Новый заказ #%s", d.OrderID)
		var b bytes.Buffer
		fmt.Fprintf(&b, "<h2>Новый заказ #%s</h2>", d.OrderID)
		fmt.Fprintf(&b, "<p><strong>Покупатель:</strong> %s</p>", d.CustomerName)
		fmt.Fprintf(&b, "<p><strong>Телефон:</strong> %s</p>", d.CustomerPhone)
		if d.CustomerEmail != "" {
			fmt.Fprintf(&b, "<p><strong>Email:</strong> %s</p>", d.CustomerEmail)
		}
		fmt.Fprintf(&b, "<p><strong>Адрес доставки:</strong> %s</p>", d.CustomerAddress)
		if d.DeliveryCost > 0 {
			fmt.Fprintf(&b, "<p><strong>Доставка:</strong> %.1f км, %.0f ₽</p>", d.DeliveryKm, d.DeliveryCost)
		}
		fmt.Fprintf(&b, "<table border=\"1\" cellpadding=\"5\"><tr><th>Наименование</th><th>Количество</th><th>Цена</th><th>Сумма</th></tr>")
		for _, it := range d.Items {
			fmt.Fprintf(&b, "<tr><td>%s</td><td>%d шт.</td><td>%.0f ₽</td><td>%.0f ₽</td></tr>",
				it.Name, it.Quantity, it.Price, it.Price*float64(it.Quantity))
		}
		fmt.Fprintf(&b, "<tr><td colspan=\"3\"><strong>Итого:</strong></td><td><strong>%.0f ₽</strong></td></tr></table>", d.TotalAmount)
		fmt.Fprintf(&b, "<p>%s</p>", ts)
		html = b.String()
	}
	return subject, html
}
