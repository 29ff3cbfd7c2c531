package models

import (
	"strings"
	"time"
)

// DeliveryLeadTime is added to the creation time to estimate delivery.
const DeliveryLeadTime = 6 * 24 * time.Hour

type OrderStatus string

const (
	StatusPending    OrderStatus = "Pending"
	StatusProcessing OrderStatus = "Processing"
	StatusShipped    OrderStatus = "Shipped"
	StatusDelivered  OrderStatus = "Delivered"
	StatusCancelled  OrderStatus = "Cancelled"
)

var AllStatuses = []OrderStatus{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

// ParseStatus resolves a status name case-insensitively.
func ParseStatus(s string) (OrderStatus, bool) {
	s = strings.TrimSpace(s)
	for _, st := range AllStatuses {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type PricingPolicy string

const (
	PricingCatalog PricingPolicy = "catalog"
	PricingClient  PricingPolicy = "client"
)

// LineItem is a snapshot of a product taken at order time. It is never
// re-joined with the live catalog.
type LineItem struct {
	ProductID string  `bson:"productId" json:"productId"`
	Name      string  `bson:"name" json:"name"`
	Image     string  `bson:"image" json:"image"`
	Quantity  int     `bson:"quantity" json:"quantity"`
	UnitPrice float64 `bson:"unitPrice" json:"unitPrice"`
	Subtotal  float64 `bson:"subtotal" json:"subtotal"`
}

type ShippingAddress struct {
	Name    string `bson:"name" json:"name"`
	Address string `bson:"address" json:"address"`
	City    string `bson:"city" json:"city"`
	Zip     string `bson:"zip" json:"zip"`
}

func (s ShippingAddress) Complete() bool {
	for _, f := range []string{s.Name, s.Address, s.City, s.Zip} {
		if strings.TrimSpace(f) == "" {
			return false
		}
	}
	return true
}

type StatusChange struct {
	From OrderStatus `bson:"from" json:"from"`
	To   OrderStatus `bson:"to" json:"to"`
	By   string      `bson:"by" json:"by"`
	At   time.Time   `bson:"at" json:"at"`
}

type Order struct {
	ID                string          `bson:"_id" json:"id"`
	UserID            string          `bson:"userId" json:"userId"`
	Items             []LineItem      `bson:"items" json:"items"`
	TotalAmount       float64         `bson:"totalAmount" json:"totalAmount"`
	Shipping          ShippingAddress `bson:"shipping" json:"shipping"`
	Status            OrderStatus     `bson:"status" json:"status"`
	History           []StatusChange  `bson:"history" json:"history"`
	Pricing           PricingPolicy   `bson:"pricing" json:"pricing"`
	IdempotencyKey    string          `bson:"idempotencyKey,omitempty" json:"-"`
	CreatedAt         time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time       `bson:"updatedAt" json:"updatedAt"`
	EstimatedDelivery time.Time       `bson:"estimatedDelivery" json:"estimatedDelivery"`
}
