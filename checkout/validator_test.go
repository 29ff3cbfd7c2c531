package checkout

import (
	"context"
	"math"
	"storefront/apperror"
	"storefront/models"
	"storefront/repository"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

var home = models.ShippingAddress{Name: "Ana", Address: "1 Main St", City: "Springfield", Zip: "12345"}

func catalog(t *testing.T, products ...models.Product) *repository.Memory {
	t.Helper()
	repo := repository.NewMemory()
	for i := range products {
		require.NoError(t, repo.InsertProduct(context.Background(), &products[i]))
	}
	return repo
}

func TestValidateCheckOrder(t *testing.T) {
	repo := catalog(t, models.Product{ID: "P1", Name: "Mug", Price: 100, AvailableStock: 5})
	v := NewValidator(repo, models.PricingCatalog)

	tests := []struct {
		name    string
		cart    models.Cart
		want    error
		product string
	}{
		{
			name: "empty cart wins over everything",
			cart: models.Cart{Shipping: models.ShippingAddress{}},
			want: apperror.ErrEmptyCart,
		},
		{
			name: "quantity before price and shipping",
			cart: models.Cart{Lines: []models.CartLine{
				{ProductID: "P1", Qty: 1, Price: 0},
				{ProductID: "P2", Qty: 0, Price: 5},
			}},
			want:    apperror.ErrInvalidQuantity,
			product: "P2",
		},
		{
			name:    "price before shipping",
			cart:    models.Cart{Lines: []models.CartLine{{ProductID: "P1", Qty: 1, Price: -3}}},
			want:    apperror.ErrInvalidPrice,
			product: "P1",
		},
		{
			name: "blank zip",
			cart: models.Cart{
				Lines:    []models.CartLine{{ProductID: "P1", Qty: 1, Price: 100}},
				Shipping: models.ShippingAddress{Name: "Ana", Address: "1 Main St", City: "Springfield", Zip: "  "},
			},
			want: apperror.ErrIncompleteShipping,
		},
		{
			name: "unknown product named",
			cart: models.Cart{
				Lines:    []models.CartLine{{ProductID: "P1", Qty: 1, Price: 100}, {ProductID: "ghost", Qty: 1, Price: 1}},
				Shipping: home,
			},
			want:    apperror.ErrProductNotFound,
			product: "ghost",
		},
		{
			name: "client total off by more than a cent",
			cart: models.Cart{
				Lines:       []models.CartLine{{ProductID: "P1", Qty: 2, Price: 100}},
				Shipping:    home,
				TotalAmount: ptr(199.98),
			},
			want: apperror.ErrPriceMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(context.Background(), tt.cart)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.product, apperror.ProductOf(err))
		})
	}
}

func TestValidateToleratesOneCent(t *testing.T) {
	repo := catalog(t, models.Product{ID: "P1", Price: 100})
	v := NewValidator(repo, models.PricingCatalog)

	vc, err := v.Validate(context.Background(), models.Cart{
		Lines:       []models.CartLine{{ProductID: "P1", Qty: 2, Price: 100}},
		Shipping:    home,
		TotalAmount: ptr(199.99),
	})
	require.NoError(t, err)
	assert.Equal(t, "200", vc.Total.String())
}

func TestValidateCatalogPricingIgnoresClientPrice(t *testing.T) {
	repo := catalog(t, models.Product{ID: "P1", Name: "Mug", Image: "mug.png", Price: 12.5})
	v := NewValidator(repo, models.PricingCatalog)

	vc, err := v.Validate(context.Background(), models.Cart{
		Lines:    []models.CartLine{{ProductID: "P1", Name: "stale", Qty: 2, Price: 0.01}},
		Shipping: home,
	})
	require.NoError(t, err)
	require.Len(t, vc.Items, 1)
	assert.Equal(t, 12.5, vc.Items[0].UnitPrice)
	assert.Equal(t, 25.0, vc.Items[0].Subtotal)
	assert.Equal(t, "Mug", vc.Items[0].Name)
	assert.Equal(t, "mug.png", vc.Items[0].Image)
	assert.Equal(t, models.PricingCatalog, vc.Pricing)

	_, err = v.Validate(context.Background(), models.Cart{
		Lines:       []models.CartLine{{ProductID: "P1", Qty: 2, Price: 0.01}},
		Shipping:    home,
		TotalAmount: ptr(0.02),
	})
	assert.ErrorIs(t, err, apperror.ErrPriceMismatch, "a total computed from stale client prices is rejected")
}

func TestValidateClientPricing(t *testing.T) {
	repo := catalog(t, models.Product{ID: "P1", Price: 12.5})
	v := NewValidator(repo, models.PricingClient)

	vc, err := v.Validate(context.Background(), models.Cart{
		Lines:       []models.CartLine{{ProductID: "P1", Name: "Mug from cart", Qty: 3, Price: 0.1}},
		Shipping:    home,
		TotalAmount: ptr(0.3),
	})
	require.NoError(t, err)
	assert.Equal(t, "0.3", vc.Total.String())
	assert.Equal(t, "Mug from cart", vc.Items[0].Name, "blank catalog fields fall back to the cart")
}

func TestValidateInvalidTotal(t *testing.T) {
	repo := catalog(t, models.Product{ID: "P1", Price: 0})
	v := NewValidator(repo, models.PricingCatalog)

	_, err := v.Validate(context.Background(), models.Cart{
		Lines:    []models.CartLine{{ProductID: "P1", Qty: 1, Price: 5}},
		Shipping: home,
	})
	assert.ErrorIs(t, err, apperror.ErrInvalidTotal)
}

func TestValidateMergesDuplicateLines(t *testing.T) {
	repo := catalog(t,
		models.Product{ID: "B", Price: 1},
		models.Product{ID: "A", Price: 2},
	)
	v := NewValidator(repo, models.PricingCatalog)

	vc, err := v.Validate(context.Background(), models.Cart{
		Lines: []models.CartLine{
			{ProductID: "B", Qty: 1, Price: 1},
			{ProductID: "A", Qty: 2, Price: 2},
			{ProductID: "B", Qty: 4, Price: 1},
		},
		Shipping: home,
	})
	require.NoError(t, err)
	assert.Len(t, vc.Items, 3, "line snapshots are kept as submitted")
	require.Len(t, vc.Reservations, 2)
	assert.Equal(t, "A", vc.Reservations[0].ProductID)
	assert.Equal(t, 2, vc.Reservations[0].Quantity)
	assert.Equal(t, "B", vc.Reservations[1].ProductID)
	assert.Equal(t, 5, vc.Reservations[1].Quantity)
	assert.Equal(t, "9", vc.Total.String())
}

func TestValidateRejectsQuantityOverflowAcrossLines(t *testing.T) {
	repo := catalog(t, models.Product{ID: "P1", Price: 100, AvailableStock: 1})
	v := NewValidator(repo, models.PricingCatalog)

	_, err := v.Validate(context.Background(), models.Cart{
		Lines: []models.CartLine{
			{ProductID: "P1", Qty: math.MaxInt64, Price: 100},
			{ProductID: "P1", Qty: math.MaxInt64, Price: 100},
			{ProductID: "P1", Qty: 3, Price: 100},
		},
		Shipping: home,
	})
	require.ErrorIs(t, err, apperror.ErrInvalidQuantity)
	assert.Equal(t, "P1", apperror.ProductOf(err))
}

func TestValidateAcceptsLargestMergedQuantity(t *testing.T) {
	repo := catalog(t, models.Product{ID: "P1", Price: 1})
	v := NewValidator(repo, models.PricingCatalog)

	vc, err := v.Validate(context.Background(), models.Cart{
		Lines: []models.CartLine{
			{ProductID: "P1", Qty: math.MaxInt - 1, Price: 1},
			{ProductID: "P1", Qty: 1, Price: 1},
		},
		Shipping: home,
	})
	require.NoError(t, err)
	require.Len(t, vc.Reservations, 1)
	assert.Equal(t, math.MaxInt, vc.Reservations[0].Quantity)
}
