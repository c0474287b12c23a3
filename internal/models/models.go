package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Product is a catalog row owned by the external feed. It is never written to
// the database; cart and order rows keep their own copied snapshots.
type Product struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Sizes        string  `json:"sizes"`
	Price        float64 `json:"price"`
	Image        string  `json:"image"`
	Category     string  `json:"category"`
	Class        string  `json:"class"`
	Description  string  `json:"description"`
	Manufacturer string  `json:"manufacturer,omitempty"`
	InStock      bool    `json:"in_stock"`
}

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string    `gorm:"unique;not null"          json:"email"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Profile struct {
	ID        uint      `gorm:"primaryKey"     json:"id"`
	Email     string    `gorm:"not null"       json:"email"`
	FullName  string    `gorm:"not null"       json:"full_name"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	IsAdmin   bool      `gorm:"default:false"  json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"      json:"id"`
	Token     string `gorm:"unique;not null" json:"token"`
	UserID    uint   `gorm:"index;not null"  json:"user_id"`
	JTI       string `json:"jti"`
	ExpiresAt int64  `gorm:"not null"        json:"expires_at"`
	Revoked   bool   `gorm:"default:false"   json:"revoked"`
}

// CartItem is the remote mirror of one cart line, product snapshot included.
type CartItem struct {
	ID              uint      `gorm:"primaryKey"                 json:"id"`
	UserID          uint      `gorm:"index;not null"             json:"user_id"`
	ProductID       string    `gorm:"not null"                   json:"product_id"`
	ProductName     string    `gorm:"not null"                   json:"product_name"`
	ProductPrice    float64   `gorm:"not null"                   json:"product_price"`
	ProductImage    string    `json:"product_image"`
	ProductCategory string    `json:"product_category"`
	Quantity        int       `gorm:"default:1;check:quantity>0" json:"quantity"`
	CreatedAt       time.Time `json:"created_at"`
}

const (
	OrderStatusNew        = "new"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

type OrderItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// OrderItems is stored as a JSON column: item lines are frozen copies, not
// references to live products.
type OrderItems []OrderItem

func (i OrderItems) Value() (driver.Value, error) {
	return json.Marshal(i)
}

func (i *OrderItems) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, i)
	case string:
		return json.Unmarshal([]byte(v), i)
	case nil:
		*i = nil
		return nil
	}
	return fmt.Errorf("cannot scan order items from %T", src)
}

type Order struct {
	ID              string     `gorm:"primaryKey"     json:"id"`
	UserID          uint       `gorm:"index"          json:"user_id,omitempty"`
	CustomerName    string     `gorm:"not null"       json:"customer_name"`
	CustomerPhone   string     `gorm:"not null"       json:"customer_phone"`
	CustomerEmail   string     `json:"customer_email,omitempty"`
	CustomerAddress string     `gorm:"not null"       json:"customer_address"`
	Items           OrderItems `gorm:"type:jsonb"     json:"items"`
	TotalAmount     float64    `gorm:"not null"       json:"total_amount"`
	DeliveryKm      float64    `json:"delivery_km,omitempty"`
	DeliveryCost    float64    `json:"delivery_cost,omitempty"`
	Status          string     `gorm:"not null;default:new" json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
}

type ContactMessage struct {
	ID               uint      `gorm:"primaryKey"           json:"id"`
	Name             string    `gorm:"not null"             json:"name"`
	Phone            string    `gorm:"not null"             json:"phone"`
	Email            string    `json:"email,omitempty"`
	Message          string    `gorm:"not null"             json:"message"`
	PreferredContact string    `json:"preferred_contact"`
	Status           string    `gorm:"not null;default:new" json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

type Partner struct {
	ID      uint     `gorm:"primaryKey" json:"id"`
	Name    string   `gorm:"not null"   json:"name"`
	Address string   `gorm:"not null"   json:"address"`
	Contact string   `json:"contact,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
}
