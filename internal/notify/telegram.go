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

// TelegramSender pushes chat-bot notifications through the Bot API.
type TelegramSender struct {
	HTTP    *http.Client
	BaseURL string
	Token   string
	ChatID  string
}

func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		HTTP:    &http.Client{Timeout: 5 * time.Second},
		BaseURL: "https://api.telegram.org",
		Token:   token,
		ChatID:  chatID,
	}
}

func (s *TelegramSender) Send(ctx context.Context, n Notification) error {
	if s.Token == "" || s.ChatID == "" {
		return fmt.Errorf("telegram: bot not configured")
	}

	payload, err := json.Marshal(map[string]any{
		"chat_id":    s.ChatID,
		"text":       renderTelegram(n),
		"parse_mode": "Markdown",
	})
	if err != nil {
		return err
	}

	u := fmt.Sprintf("%s/bot%s/sendMessage", s.BaseURL, s.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram: %s: %s", resp.Status, body)
	}
	return nil
}

func renderTelegram(n Notification) string {
	ts := n.Timestamp.Format("02.01.2006 15:04")

	switch n.Type {
	case "contact":
		d := n.Contact
		return fmt.Sprintf(
			"🔔 *Новое сообщение с сайта*\n\n"+
				"👤 *Имя:* %s\n"+
				"📞 *Телефон:* %s\n"+
				"📧 *Email:* %s\n"+
				"💬 *Сообщение:* %s\n"+
				"📱 *Предпочтительная связь:* %s\n"+
				"🕐 *Время:* %s",
			d.Name, d.Phone, orEmpty(d.Email, "Не указан"), d.Message, d.PreferredContact, ts)

	case "order":
		d := n.Order
		return fmt.Sprintf(
			"🛒 *Новый заказ #%s*\n\n"+
				"👤 *Покупатель:* %s\n"+
				"📞 *Телефон:* %s\n"+
				"📧 *Email:* %s\n"+
				"📍 *Адрес:* %s\n\n"+
				"📦 *Товары:*\n%s\n\n"+
				"💰 *Общая сумма:* %.0f₽\n"+
				"🕐 *Время заказа:* %s",
			d.OrderID, d.CustomerName, d.CustomerPhone,
			orEmpty(d.CustomerEmail, "Не указан"), d.CustomerAddress,
			orderLines(d.Items), d.TotalAmount, ts)
	}
	return ""
}
