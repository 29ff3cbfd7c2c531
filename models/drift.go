package models

import "time"

type DriftStatus string

const (
	DriftOpen     DriftStatus = "open"
	DriftResolved DriftStatus = "resolved"
)

// StockDrift records stock that compensation failed to give back.
type StockDrift struct {
	ID        string      `bson:"_id" json:"id"`
	AttemptID string      `bson:"attemptId" json:"attemptId"`
	OrderID   string      `bson:"orderId,omitempty" json:"orderId,omitempty"`
	ProductID string      `bson:"productId" json:"productId"`
	Quantity  int         `bson:"quantity" json:"quantity"`
	Reason    string      `bson:"reason" json:"reason"`
	Attempts  int         `bson:"attempts" json:"attempts"`
	Status    DriftStatus `bson:"status" json:"status"`
	LastError string      `bson:"lastError" json:"lastError"`
	// Unconfirmed marks stock held for an order whose write was never
	// acknowledged. It goes back only once the order is known not to exist.
	Unconfirmed bool       `bson:"unconfirmed,omitempty" json:"unconfirmed,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
	ResolvedAt  *time.Time `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
}
