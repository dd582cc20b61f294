package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

// AddToCart puts quantity units of a product in the member's cart, adding to
// any quantity already there.
func AddToCart(ctx context.Context, q database.Querier, memberID, productID int64, quantity int) (*models.CartEntry, error) {
	entry := &models.CartEntry{}

	err := q.QueryRowContext(ctx,
		`INSERT INTO cart_entries (member_id, product_id, quantity, created_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (member_id, product_id)
		 DO UPDATE SET quantity = cart_entries.quantity + EXCLUDED.quantity
		 RETURNING id, member_id, product_id, quantity, created_at`,
		memberID, productID, quantity,
	).Scan(&entry.ID, &entry.MemberID, &entry.ProductID, &entry.Quantity, &entry.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			if pqErr.Constraint == "cart_entries_member_id_fkey" {
				return nil, database.ErrMemberNotFound
			}
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("add to cart: %w", err)
	}

	return entry, nil
}

func ListCart(ctx context.Context, q database.Querier, memberID int64) ([]models.CartLine, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT c.id, c.member_id, c.product_id, c.quantity, c.created_at,
		        p.name, p.price, p.image_url
		 FROM cart_entries c
		 JOIN products p ON p.id = c.product_id
		 WHERE c.member_id = $1
		 ORDER BY c.id`,
		memberID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	defer rows.Close()

	lines := []models.CartLine{}
	for rows.Next() {
		var l models.CartLine
		err := rows.Scan(
			&l.ID,
			&l.MemberID,
			&l.ProductID,
			&l.Quantity,
			&l.CreatedAt,
			&l.Name,
			&l.Price,
			&l.ImageURL,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, nil
}

func UpdateCartQuantity(ctx context.Context, q database.Querier, memberID, entryID int64, quantity int) error {
	result, err := q.ExecContext(ctx,
		`UPDATE cart_entries SET quantity = $1 WHERE id = $2 AND member_id = $3`,
		quantity, entryID, memberID)
	if err != nil {
		return fmt.Errorf("update cart entry: %w", err)
	}

	return expectOneRow(result, database.ErrCartEntryNotFound)
}

func DeleteCartEntry(ctx context.Context, q database.Querier, memberID, entryID int64) error {
	result, err := q.ExecContext(ctx,
		`DELETE FROM cart_entries WHERE id = $1 AND member_id = $2`,
		entryID, memberID)
	if err != nil {
		return fmt.Errorf("delete cart entry: %w", err)
	}

	return expectOneRow(result, database.ErrCartEntryNotFound)
}

// PurgeCart deletes the member's cart entries for exactly the given products.
// Entries for other products, and other members' entries, are left alone.
func PurgeCart(ctx context.Context, q database.Querier, memberID int64, productIDs []int64) (int64, error) {
	if len(productIDs) == 0 {
		return 0, nil
	}

	result, err := q.ExecContext(ctx,
		`DELETE FROM cart_entries WHERE member_id = $1 AND product_id = ANY($2)`,
		memberID, pq.Array(productIDs))
	if err != nil {
		return 0, fmt.Errorf("purge cart: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return n, nil
}

func expectOneRow(result interface{ RowsAffected() (int64, error) }, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}
