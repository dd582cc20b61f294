package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MemberRoleCustomer = "customer"
	MemberRoleAdmin    = "admin"
)

type Member struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	// PasswordHash is a bcrypt hash. It never leaves the process.
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID          int64           `json:"id"`
	CategoryID  *int64          `json:"category_id,omitempty"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ProductSummary is a catalog listing row with review statistics.
type ProductSummary struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	ImageURL     string          `json:"image_url,omitempty"`
	CategoryName string          `json:"category_name,omitempty"`
	AvgRating    decimal.Decimal `json:"avg_rating"`
	ReviewCount  int             `json:"review_count"`
}

type Order struct {
	ID              int64           `json:"id"`
	MemberID        int64           `json:"member_id"`
	OrderNumber     string          `json:"order_number"`
	Status          string          `json:"status"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	RecipientName   string          `json:"recipient_name"`
	RecipientPhone  string          `json:"recipient_phone"`
	ShippingAddress string          `json:"shipping_address"`
	CreatedAt       time.Time       `json:"created_at"`
	Items           []OrderLineItem `json:"items,omitempty"`
	Payment         *Payment        `json:"payment,omitempty"`
}

// OrderLineItem freezes the unit price the product had when the order
// committed.
type OrderLineItem struct {
	ID              int64           `json:"id"`
	OrderID         int64           `json:"order_id"`
	ProductID       int64           `json:"product_id"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (li OrderLineItem) Subtotal() decimal.Decimal {
	return li.PriceAtPurchase.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// PurchasedLine is one line of a member's order history together with the
// review left for it, if any.
type PurchasedLine struct {
	LineItemID      int64           `json:"line_item_id"`
	ProductID       int64           `json:"product_id"`
	ProductName     string          `json:"product_name"`
	ImageURL        string          `json:"image_url,omitempty"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
	ReviewID        *int64          `json:"review_id"`
	Rating          *int            `json:"rating"`
	Comment         *string         `json:"comment"`
}

func (l PurchasedLine) Reviewed() bool {
	return l.ReviewID != nil
}

type OrderHistoryEntry struct {
	Order
	Lines []PurchasedLine `json:"lines"`
}

type Payment struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"order_id"`
	Method        string          `json:"method"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	TransactionID string          `json:"transaction_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

type CartEntry struct {
	ID        int64     `json:"id"`
	MemberID  int64     `json:"member_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

// CartLine is a cart entry joined with the product's current catalog data.
// Price here is informational; orders always re-read it.
type CartLine struct {
	CartEntry
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"image_url,omitempty"`
}

type Review struct {
	ID           int64     `json:"id"`
	MemberID     int64     `json:"member_id"`
	ProductID    int64     `json:"product_id"`
	LineItemID   int64     `json:"line_item_id"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	ReviewerName string    `json:"reviewer_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

const (
	PaymentStatusSuccess = "success"
)
