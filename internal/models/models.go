package models

import (
	"time"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string    `gorm:"not null"                 json:"name"`
	Email        string    `gorm:"unique;not null"          json:"email"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	IsAdmin      bool      `gorm:"not null;default:false"   json:"is_admin"`
	LastActive   time.Time `json:"last_active"`
	Addresses    []Address `gorm:"constraint:OnDelete:CASCADE" json:"addresses,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Address struct {
	ID           uint   `gorm:"primaryKey"      json:"id"`
	UserID       uint   `gorm:"index;not null"  json:"user_id"`
	FullName     string `gorm:"not null"        json:"full_name"`
	Phone        string `gorm:"not null"        json:"phone"`
	AddressLine1 string `gorm:"not null"        json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `gorm:"not null"        json:"city"`
	State        string `gorm:"not null"        json:"state"`
	PostalCode   string `gorm:"not null"        json:"postal_code"`
	Country      string `gorm:"not null"        json:"country"`
	IsDefault    bool   `gorm:"default:false"   json:"is_default"`
}

type Category struct {
	ID          uint      `gorm:"primaryKey"       json:"id"`
	Name        string    `gorm:"unique;not null"  json:"name"`
	Slug        string    `gorm:"unique;not null"  json:"slug"`
	Description string    `json:"description"`
	IsActive    bool      `gorm:"default:true"     json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Specifications mirrors the fixed attribute set of the catalog's
// specification sub-document.
type Specifications struct {
	Brand  string  `json:"brand,omitempty"`
	Model  string  `json:"model,omitempty"`
	Color  string  `json:"color,omitempty"`
	Size   string  `json:"size,omitempty"`
	Weight float64 `json:"weight,omitempty"`
}

type Product struct {
	ID             uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name           string         `gorm:"not null"                 json:"name"`
	Description    string         `gorm:"not null"                 json:"description"`
	Price          float64        `gorm:"not null;check:price >= 0" json:"price"`
	Stock          int            `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	CategoryID     uint           `gorm:"index"                    json:"category_id"`
	Images         []ProductImage `gorm:"constraint:OnDelete:CASCADE" json:"images,omitempty"`
	Specifications Specifications `gorm:"embedded;embeddedPrefix:spec_" json:"specifications"`
	IsActive       bool           `gorm:"default:true"             json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type ProductImage struct {
	ID        uint   `gorm:"primaryKey"     json:"id"`
	ProductID uint   `gorm:"index;not null" json:"product_id"`
	URL       string `gorm:"not null"       json:"url"`
}

// Cart is created lazily on the first add-item call and never expires.
type Cart struct {
	ID        uint       `gorm:"primaryKey"            json:"id"`
	UserID    uint       `gorm:"uniqueIndex;not null"  json:"user_id"`
	Items     []CartItem `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	Total     float64    `gorm:"-" json:"total"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (c *Cart) ComputeTotal() {
	c.Total = 0
	for _, it := range c.Items {
		c.Total += it.Price * float64(it.Quantity)
	}
}

// CartItem carries the product snapshot taken at add-time. Later product
// edits do not touch it.
type CartItem struct {
	ID        uint    `gorm:"primaryKey"                  json:"id"`
	CartID    uint    `gorm:"index;not null"              json:"cart_id"`
	ProductID uint    `gorm:"index;not null"              json:"product_id"`
	Name      string  `gorm:"not null"                    json:"name"`
	Price     float64 `gorm:"not null"                    json:"price"`
	Image     string  `json:"image"`
	Quantity  int     `gorm:"default:1;check:quantity>0"  json:"quantity"`
}

const (
	OrderStatusCreated   = "created"
	OrderStatusAttempted = "attempted"
	OrderStatusPaid      = "paid"

	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"

	ShippingStatusPending    = "pending"
	ShippingStatusProcessing = "processing"
	ShippingStatusShipped    = "shipped"
	ShippingStatusDelivered  = "delivered"
	ShippingStatusCancelled  = "cancelled"
	ShippingStatusRefunded   = "refunded"
	ShippingStatusFailed     = "failed"
)

type PaymentDetails struct {
	RazorpayOrderID   string     `gorm:"index"            json:"razorpay_order_id"`
	RazorpayPaymentID string     `json:"razorpay_payment_id"`
	RazorpaySignature string     `json:"razorpay_signature"`
	Status            string     `gorm:"default:pending"  json:"status"`
	Amount            float64    `json:"amount"`
	Currency          string     `gorm:"default:INR"      json:"currency"`
	Method            string     `json:"method"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
}

// ShippingAddress is the address snapshot frozen into the order.
type ShippingAddress struct {
	FullName     string `json:"full_name"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
}

type Order struct {
	ID              uint            `gorm:"primaryKey"      json:"id"`
	OrderNumber     string          `gorm:"unique;not null" json:"order_number"`
	UserID          uint            `gorm:"index;not null"  json:"user_id"`
	Items           []OrderItem     `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	Subtotal        float64         `gorm:"not null"        json:"subtotal"`
	Tax             float64         `json:"tax"`
	Shipping        float64         `json:"shipping"`
	Total           float64         `gorm:"not null"        json:"total"`
	Payment         PaymentDetails  `gorm:"embedded;embeddedPrefix:payment_" json:"payment"`
	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:ship_"    json:"shipping_address"`
	Status          string          `gorm:"not null;default:created" json:"status"`
	ShippingStatus  string          `gorm:"not null;default:pending" json:"shipping_status"`
	Notes           []OrderNote     `gorm:"constraint:OnDelete:CASCADE" json:"notes,omitempty"`
	TrackingNumber  string          `json:"tracking_number,omitempty"`
	Carrier         string          `json:"carrier,omitempty"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	CancelledBy     uint            `json:"cancelled_by,omitempty"`
	CancelReason    string          `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type OrderItem struct {
	ID        uint    `gorm:"primaryKey"     json:"id"`
	OrderID   uint    `gorm:"index;not null" json:"order_id"`
	ProductID uint    `gorm:"not null"       json:"product_id"`
	Name      string  `gorm:"not null"       json:"name"`
	Price     float64 `gorm:"not null"       json:"price"`
	Quantity  int     `gorm:"not null;check:quantity>0" json:"quantity"`
	Image     string  `json:"image"`
	LineTotal float64 `gorm:"not null"       json:"line_total"`
}

type OrderNote struct {
	ID        uint      `gorm:"primaryKey"     json:"id"`
	OrderID   uint      `gorm:"index;not null" json:"order_id"`
	Text      string    `gorm:"not null"       json:"text"`
	CreatedBy uint      `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}
