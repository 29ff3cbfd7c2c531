package models

import (
	"storefront/apperror"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID              string    `bson:"_id" json:"id"`
	Name            string    `bson:"name" json:"name"`
	Slug            string    `bson:"slug" json:"slug"`
	Description     string    `bson:"description" json:"description"`
	Category        string    `bson:"category" json:"category"`
	Image           string    `bson:"image" json:"image"`
	Price           float64   `bson:"price" json:"price"`
	ListPrice       float64   `bson:"mrp" json:"listPrice"`
	DiscountPercent float64   `bson:"discountPercent" json:"discountPercent"`
	AvailableStock  int       `bson:"availableStock" json:"availableStock"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time `bson:"updatedAt" json:"updatedAt"`
}

// DerivedPrice is the list price reduced by the discount percentage, in cents.
func DerivedPrice(listPrice, discountPercent float64) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	factor := hundred.Sub(decimal.NewFromFloat(discountPercent)).Div(hundred)
	return RoundCents(decimal.NewFromFloat(listPrice).Mul(factor))
}

// ApplyPricing fills Price from ListPrice and DiscountPercent when it is unset,
// and otherwise checks that the stored price agrees with them.
func (p *Product) ApplyPricing() error {
	if p.ListPrice <= 0 || p.DiscountPercent < 0 || p.DiscountPercent >= 100 {
		return apperror.ErrInvalidPrice
	}
	derived := DerivedPrice(p.ListPrice, p.DiscountPercent)
	if p.Price == 0 {
		p.Price = derived.InexactFloat64()
		return nil
	}
	if p.Price < 0 || !WithinTolerance(decimal.NewFromFloat(p.Price), derived) {
		return apperror.ErrInvalidPrice
	}
	return nil
}
