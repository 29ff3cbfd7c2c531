// Package checkout turns a submitted cart into a placed order: it validates
// the cart, reserves stock for every line and persists the order, or leaves
// stock exactly as it found it.
package checkout

import (
	"context"
	"math"
	"sort"
	"storefront/apperror"
	"storefront/inventory"
	"storefront/models"

	"github.com/shopspring/decimal"
)

// Catalog is the product lookup the validator needs.
type Catalog interface {
	FindProducts(ctx context.Context, ids []string) (map[string]*models.Product, error)
}

type ValidatedCart struct {
	Items []models.LineItem
	// Reservations holds one entry per product, quantities summed, sorted
	// by product id.
	Reservations []inventory.Reservation
	Total        decimal.Decimal
	Shipping     models.ShippingAddress
	Pricing      models.PricingPolicy
}

type Validator struct {
	catalog Catalog
	pricing models.PricingPolicy
}

func NewValidator(catalog Catalog, pricing models.PricingPolicy) *Validator {
	if pricing == "" {
		pricing = models.PricingCatalog
	}
	return &Validator{catalog: catalog, pricing: pricing}
}

// Validate checks the cart without changing anything. Checks run in a fixed
// order and the first failure is returned.
func (v *Validator) Validate(ctx context.Context, cart models.Cart) (*ValidatedCart, error) {
	if len(cart.Lines) == 0 {
		return nil, apperror.ErrEmptyCart
	}
	for _, line := range cart.Lines {
		if line.Qty <= 0 {
			return nil, apperror.InvalidQuantityFor(line.ProductID)
		}
	}
	for _, line := range cart.Lines {
		if line.Price <= 0 {
			return nil, apperror.InvalidPriceFor(line.ProductID)
		}
	}
	if !cart.Shipping.Complete() {
		return nil, apperror.ErrIncompleteShipping
	}

	ids := make([]string, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		ids = append(ids, line.ProductID)
	}
	products, err := v.catalog.FindProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, line := range cart.Lines {
		if _, ok := products[line.ProductID]; !ok {
			return nil, apperror.ProductNotFoundFor(line.ProductID)
		}
	}

	vc := &ValidatedCart{
		Items:    make([]models.LineItem, 0, len(cart.Lines)),
		Total:    decimal.Zero,
		Shipping: cart.Shipping,
		Pricing:  v.pricing,
	}
	merged := make(map[string]int, len(cart.Lines))
	for _, line := range cart.Lines {
		if merged[line.ProductID] > math.MaxInt-line.Qty {
			return nil, apperror.InvalidQuantityFor(line.ProductID)
		}
		merged[line.ProductID] += line.Qty

		p := products[line.ProductID]
		unit := line.Price
		if v.pricing == models.PricingCatalog {
			unit = p.Price
		}
		subtotal := models.LineSubtotal(unit, line.Qty)
		vc.Total = vc.Total.Add(subtotal)
		vc.Items = append(vc.Items, models.LineItem{
			ProductID: line.ProductID,
			Name:      firstNonBlank(p.Name, line.Name),
			Image:     firstNonBlank(p.Image, line.Image),
			Quantity:  line.Qty,
			UnitPrice: unit,
			Subtotal:  subtotal.InexactFloat64(),
		})
	}

	if !vc.Total.IsPositive() {
		return nil, apperror.ErrInvalidTotal
	}
	if cart.TotalAmount != nil && !models.WithinTolerance(decimal.NewFromFloat(*cart.TotalAmount), vc.Total) {
		return nil, apperror.ErrPriceMismatch
	}

	for id, qty := range merged {
		vc.Reservations = append(vc.Reservations, inventory.Reservation{ProductID: id, Quantity: qty})
	}
	sort.Slice(vc.Reservations, func(i, j int) bool {
		return vc.Reservations[i].ProductID < vc.Reservations[j].ProductID
	})
	return vc, nil
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
