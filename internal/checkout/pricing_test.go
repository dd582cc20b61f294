package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	products map[int64]models.Product
	err      error
	reads    []int64
}

func (f *fakeCatalog) LockProductForUpdate(_ context.Context, _ database.Querier, id int64) (*models.Product, error) {
	f.reads = append(f.reads, id)
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.products[id]
	if !ok {
		return nil, database.ErrProductNotFound
	}
	return &p, nil
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{products: map[int64]models.Product{
		1: {ID: 1, Name: "STRANDMON", Price: decimal.NewFromInt(249000), Stock: 10},
		2: {ID: 2, Name: "LACK", Price: decimal.RequireFromString("15000.50"), Stock: 50},
		3: {ID: 3, Name: "MALM", Price: decimal.NewFromInt(199000), Stock: 2},
	}}
}

func TestValidatorPricesFromCatalog(t *testing.T) {
	catalog := newFakeCatalog()
	v := NewValidator(catalog)

	quote, err := v.Validate(context.Background(), nil, []LineRequest{
		{ProductID: 2, Quantity: 2},
		{ProductID: 1, Quantity: 1},
	})
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("279001").Equal(quote.Total), "total %s", quote.Total)
	require.Len(t, quote.Lines, 2)
	assert.Equal(t, int64(2), quote.Lines[0].ProductID)
	assert.True(t, decimal.RequireFromString("15000.50").Equal(quote.Lines[0].UnitPrice))
	assert.Equal(t, "STRANDMON", quote.Lines[1].Name)
	assert.Equal(t, []int64{2, 1}, catalog.reads)
}

func TestValidatorRejections(t *testing.T) {
	tests := []struct {
		name          string
		items         []LineRequest
		wantKind      Kind
		wantSentinel  error
		wantMessage   string
		wantRemaining int
	}{
		{
			name:         "empty order",
			items:        nil,
			wantKind:     KindEmptyOrder,
			wantSentinel: ErrEmptyOrder,
			wantMessage:  "order has no items",
		},
		{
			name:          "missing product",
			items:         []LineRequest{{ProductID: 1, Quantity: 1}, {ProductID: 99, Quantity: 1}},
			wantKind:      KindProductNotFound,
			wantSentinel:  ErrProductNotFound,
			wantMessage:   "product 99 not found",
			wantRemaining: -1,
		},
		{
			name:          "zero quantity",
			items:         []LineRequest{{ProductID: 1, Quantity: 0}},
			wantKind:      KindInvalidRequest,
			wantSentinel:  ErrInvalidRequest,
			wantMessage:   "quantity for product 1 must be positive, got 0",
			wantRemaining: 0,
		},
		{
			name:          "negative quantity",
			items:         []LineRequest{{ProductID: 2, Quantity: -4}},
			wantKind:      KindInvalidRequest,
			wantSentinel:  ErrInvalidRequest,
			wantMessage:   "quantity for product 2 must be positive, got -4",
			wantRemaining: 0,
		},
		{
			name:          "quantity above stock",
			items:         []LineRequest{{ProductID: 3, Quantity: 5}},
			wantKind:      KindInsufficientStock,
			wantSentinel:  ErrInsufficientStock,
			wantMessage:   "insufficient stock for product 3 (MALM): requested 5, remaining 2",
			wantRemaining: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(newFakeCatalog())

			_, err := v.Validate(context.Background(), nil, tt.items)
			require.Error(t, err)

			var oerr *Error
			require.ErrorAs(t, err, &oerr)
			assert.Equal(t, tt.wantKind, oerr.Kind)
			assert.ErrorIs(t, err, tt.wantSentinel)
			assert.EqualError(t, err, tt.wantMessage)
			assert.Equal(t, tt.wantRemaining, oerr.Remaining)
		})
	}
}

func TestValidatorStopsAtFirstFailure(t *testing.T) {
	catalog := newFakeCatalog()
	v := NewValidator(catalog)

	_, err := v.Validate(context.Background(), nil, []LineRequest{
		{ProductID: 3, Quantity: 3},
		{ProductID: 1, Quantity: 1},
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, []int64{3}, catalog.reads)
}

func TestValidatorRejectsNonPositiveBeforeLocking(t *testing.T) {
	catalog := newFakeCatalog()
	v := NewValidator(catalog)

	_, err := v.Validate(context.Background(), nil, []LineRequest{{ProductID: 1, Quantity: -1}})
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, catalog.reads)
}

func TestValidatorExactStockIsAccepted(t *testing.T) {
	v := NewValidator(newFakeCatalog())

	quote, err := v.Validate(context.Background(), nil, []LineRequest{{ProductID: 3, Quantity: 2}})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(398000).Equal(quote.Total))
}

func TestValidatorWrapsStoreErrors(t *testing.T) {
	boom := errors.New("connection reset")
	catalog := newFakeCatalog()
	catalog.err = boom

	_, err := NewValidator(catalog).Validate(context.Background(), nil, []LineRequest{{ProductID: 1, Quantity: 1}})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, KindTransactionFailure, KindOf(err))
	assert.EqualError(t, asOrderError(err), "order could not be completed")
}
