package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
)

// LineRequest is one (product, quantity) pair of an order request.
type LineRequest struct {
	ProductID int64
	Quantity  int
}

// PricedLine is a validated line with the unit price read from the catalog.
type PricedLine struct {
	ProductID int64
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (l PricedLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Quote is the authoritative pricing of an order request.
type Quote struct {
	Total decimal.Decimal
	Lines []PricedLine
}

type ProductLocker interface {
	// LockProductForUpdate must read the committed row and hold a lock on it
	// until the surrounding transaction ends.
	LockProductForUpdate(ctx context.Context, q database.Querier, id int64) (*models.Product, error)
}

// Validator prices an order against current catalog data and checks stock.
// It never writes.
type Validator struct {
	products ProductLocker
}

func NewValidator(products ProductLocker) *Validator {
	return &Validator{products: products}
}

// Validate reads every product through q, in the order given, and returns the
// priced lines and their total. Client-side prices play no part. The first
// missing product or short line aborts validation.
func (v *Validator) Validate(ctx context.Context, q database.Querier, items []LineRequest) (Quote, error) {
	if len(items) == 0 {
		return Quote{}, emptyOrder()
	}

	quote := Quote{
		Total: decimal.Zero,
		Lines: make([]PricedLine, 0, len(items)),
	}

	for _, item := range items {
		if item.Quantity <= 0 {
			return Quote{}, invalidRequest("quantity for product %d must be positive, got %d", item.ProductID, item.Quantity)
		}
		product, err := v.products.LockProductForUpdate(ctx, q, item.ProductID)
		if err != nil {
			if errors.Is(err, database.ErrProductNotFound) {
				return Quote{}, productNotFound(item.ProductID)
			}
			return Quote{}, fmt.Errorf("validate product %d: %w", item.ProductID, err)
		}

		if item.Quantity > product.Stock {
			return Quote{}, insufficientStock(product.ID, product.Name, item.Quantity, product.Stock)
		}

		line := PricedLine{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
		}
		quote.Lines = append(quote.Lines, line)
		quote.Total = quote.Total.Add(line.Subtotal())
	}

	return quote, nil
}
