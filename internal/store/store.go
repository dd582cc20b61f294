package store

import (
	"context"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

// Postgres exposes the package functions the order transaction needs as
// methods, so callers can depend on an interface and substitute parts of it.
type Postgres struct{}

func (Postgres) MemberExists(ctx context.Context, q database.Querier, id int64) (bool, error) {
	return MemberExists(ctx, q, id)
}

func (Postgres) LockProductForUpdate(ctx context.Context, q database.Querier, id int64) (*models.Product, error) {
	return LockProductForUpdate(ctx, q, id)
}

func (Postgres) InsertOrder(ctx context.Context, q database.Querier, order *models.Order) error {
	return InsertOrder(ctx, q, order)
}

func (Postgres) InsertLineItem(ctx context.Context, q database.Querier, item *models.OrderLineItem) error {
	return InsertLineItem(ctx, q, item)
}

func (Postgres) DecrementStock(ctx context.Context, q database.Querier, productID int64, quantity int) error {
	return DecrementStock(ctx, q, productID, quantity)
}

func (Postgres) InsertPayment(ctx context.Context, q database.Querier, payment *models.Payment) error {
	return InsertPayment(ctx, q, payment)
}

func (Postgres) PurgeCart(ctx context.Context, q database.Querier, memberID int64, productIDs []int64) (int64, error) {
	return PurgeCart(ctx, q, memberID, productIDs)
}
