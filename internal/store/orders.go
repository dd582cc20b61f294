package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

// InsertOrder writes the order header and fills in its ID and CreatedAt.
func InsertOrder(ctx context.Context, q database.Querier, order *models.Order) error {
	err := q.QueryRowContext(ctx,
		`INSERT INTO orders (member_id, order_number, status, total_price,
		                     recipient_name, recipient_phone, shipping_address, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		 RETURNING id, created_at`,
		order.MemberID, order.OrderNumber, order.Status, order.TotalPrice,
		order.RecipientName, order.RecipientPhone, order.ShippingAddress,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	return nil
}

// InsertLineItem writes one order line and fills in its ID and CreatedAt.
func InsertLineItem(ctx context.Context, q database.Querier, item *models.OrderLineItem) error {
	err := q.QueryRowContext(ctx,
		`INSERT INTO order_line_items (order_id, product_id, quantity, price_at_purchase, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 RETURNING id, created_at`,
		item.OrderID, item.ProductID, item.Quantity, item.PriceAtPurchase,
	).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return fmt.Errorf("create order line item: %w", err)
	}

	return nil
}

// InsertPayment writes the payment record and fills in its ID and CreatedAt.
func InsertPayment(ctx context.Context, q database.Querier, payment *models.Payment) error {
	err := q.QueryRowContext(ctx,
		`INSERT INTO payments (order_id, method, amount, status, transaction_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 RETURNING id, created_at`,
		payment.OrderID, payment.Method, payment.Amount, payment.Status, payment.TransactionID,
	).Scan(&payment.ID, &payment.CreatedAt)
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}

	return nil
}

// GetOrder loads an order with its line items and payment.
func GetOrder(ctx context.Context, q database.Querier, id int64) (*models.Order, error) {
	order := &models.Order{}

	query := `
		SELECT id, member_id, order_number, status, total_price,
		       recipient_name, recipient_phone, shipping_address, created_at
		FROM orders
		WHERE id = $1`

	err := q.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.MemberID,
		&order.OrderNumber,
		&order.Status,
		&order.TotalPrice,
		&order.RecipientName,
		&order.RecipientPhone,
		&order.ShippingAddress,
		&order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := ListLineItems(ctx, q, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	payment, err := GetPaymentByOrder(ctx, q, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	order.Payment = payment

	return order, nil
}

func ListLineItems(ctx context.Context, q database.Querier, orderID int64) ([]models.OrderLineItem, error) {
	itemsQuery := `
		SELECT id, order_id, product_id, quantity, price_at_purchase, created_at
		FROM order_line_items
		WHERE order_id = $1
		ORDER BY id`

	rows, err := q.QueryContext(ctx, itemsQuery, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order line items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderLineItem
	for rows.Next() {
		var item models.OrderLineItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.PriceAtPurchase,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order line item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// GetPaymentByOrder returns sql.ErrNoRows (wrapped) when the order has no
// payment.
func GetPaymentByOrder(ctx context.Context, q database.Querier, orderID int64) (*models.Payment, error) {
	payment := &models.Payment{}

	err := q.QueryRowContext(ctx,
		`SELECT id, order_id, method, amount, status, transaction_id, created_at
		 FROM payments WHERE order_id = $1`,
		orderID).Scan(
		&payment.ID,
		&payment.OrderID,
		&payment.Method,
		&payment.Amount,
		&payment.Status,
		&payment.TransactionID,
		&payment.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}

	return payment, nil
}

// ListOrdersCursor pages through a member's order history newest first. Each
// order carries its purchased lines with product details and any review.
func ListOrdersCursor(ctx context.Context, q database.Querier, memberID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT id, member_id, order_number, status, total_price,
		       recipient_name, recipient_phone, shipping_address, created_at
		FROM orders
		WHERE member_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	rows, err := q.QueryContext(ctx, query, memberID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.OrderHistoryEntry{}
	for rows.Next() {
		var order models.OrderHistoryEntry
		err := rows.Scan(
			&order.ID,
			&order.MemberID,
			&order.OrderNumber,
			&order.Status,
			&order.TotalPrice,
			&order.RecipientName,
			&order.RecipientPhone,
			&order.ShippingAddress,
			&order.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	lines, err := listPurchasedLines(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
		if orders[i].Lines == nil {
			orders[i].Lines = []models.PurchasedLine{}
		}
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func listPurchasedLines(ctx context.Context, q database.Querier, orderIDs []int64) (map[int64][]models.PurchasedLine, error) {
	byOrder := make(map[int64][]models.PurchasedLine, len(orderIDs))
	if len(orderIDs) == 0 {
		return byOrder, nil
	}

	rows, err := q.QueryContext(ctx,
		`SELECT li.order_id, li.id, li.product_id, p.name, p.image_url,
		        li.quantity, li.price_at_purchase,
		        r.id, r.rating, r.comment
		 FROM order_line_items li
		 JOIN products p ON p.id = li.product_id
		 LEFT JOIN reviews r ON r.line_item_id = li.id
		 WHERE li.order_id = ANY($1)
		 ORDER BY li.order_id, li.id`,
		pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("list purchased lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID  int64
			l        models.PurchasedLine
			reviewID sql.NullInt64
			rating   sql.NullInt32
			comment  sql.NullString
		)
		err := rows.Scan(
			&orderID,
			&l.LineItemID,
			&l.ProductID,
			&l.ProductName,
			&l.ImageURL,
			&l.Quantity,
			&l.PriceAtPurchase,
			&reviewID,
			&rating,
			&comment,
		)
		if err != nil {
			return nil, fmt.Errorf("scan purchased line: %w", err)
		}
		if reviewID.Valid {
			r := int(rating.Int32)
			l.ReviewID = &reviewID.Int64
			l.Rating = &r
			l.Comment = &comment.String
		}
		byOrder[orderID] = append(byOrder[orderID], l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return byOrder, nil
}
