package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

type NewReview struct {
	MemberID  int64
	ProductID int64
	Rating    int
	Comment   string
}

// CreateReview attaches a review to the member's earliest unreviewed purchase
// of the product. Members who never bought the product get ErrNotPurchased.
func CreateReview(ctx context.Context, q database.Querier, nr NewReview) (*models.Review, error) {
	var lineItemID int64
	err := q.QueryRowContext(ctx,
		`SELECT li.id
		 FROM order_line_items li
		 JOIN orders o ON o.id = li.order_id
		 LEFT JOIN reviews r ON r.line_item_id = li.id
		 WHERE o.member_id = $1 AND li.product_id = $2
		 ORDER BY (r.id IS NOT NULL), li.id
		 LIMIT 1`,
		nr.MemberID, nr.ProductID).Scan(&lineItemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrNotPurchased
		}
		return nil, fmt.Errorf("find purchase: %w", err)
	}

	review := &models.Review{}
	err = q.QueryRowContext(ctx,
		`INSERT INTO reviews (member_id, product_id, line_item_id, rating, comment, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 RETURNING id, member_id, product_id, line_item_id, rating, comment, created_at`,
		nr.MemberID, nr.ProductID, lineItemID, nr.Rating, nr.Comment,
	).Scan(
		&review.ID,
		&review.MemberID,
		&review.ProductID,
		&review.LineItemID,
		&review.Rating,
		&review.Comment,
		&review.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, database.ErrAlreadyReviewed
		}
		return nil, fmt.Errorf("create review: %w", err)
	}

	return review, nil
}

func ListReviews(ctx context.Context, q database.Querier, productID int64) ([]models.Review, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT r.id, r.member_id, r.product_id, r.line_item_id, r.rating, r.comment,
		        m.name, r.created_at
		 FROM reviews r
		 JOIN members m ON m.id = r.member_id
		 WHERE r.product_id = $1
		 ORDER BY r.created_at DESC, r.id DESC`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []models.Review{}
	for rows.Next() {
		var r models.Review
		err := rows.Scan(
			&r.ID,
			&r.MemberID,
			&r.ProductID,
			&r.LineItemID,
			&r.Rating,
			&r.Comment,
			&r.ReviewerName,
			&r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return reviews, nil
}
