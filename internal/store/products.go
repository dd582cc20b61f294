package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
)

type NewProduct struct {
	CategoryID  *int64
	SKU         string
	Name        string
	Description string
	ImageURL    string
	Price       decimal.Decimal
	Stock       int
}

const productColumns = `id, category_id, sku, name, description, image_url, price, stock, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }, p *models.Product) error {
	var categoryID sql.NullInt64
	err := row.Scan(
		&p.ID,
		&categoryID,
		&p.SKU,
		&p.Name,
		&p.Description,
		&p.ImageURL,
		&p.Price,
		&p.Stock,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if categoryID.Valid {
		p.CategoryID = &categoryID.Int64
	}
	return nil
}

func CreateCategory(ctx context.Context, q database.Querier, name string) (*models.Category, error) {
	c := &models.Category{}
	err := q.QueryRowContext(ctx,
		`INSERT INTO categories (name) VALUES ($1) RETURNING id, name`,
		name).Scan(&c.ID, &c.Name)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, database.ErrCategoryExists
		}
		return nil, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func ListCategories(ctx context.Context, q database.Querier) ([]models.Category, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return categories, nil
}

func CreateProduct(ctx context.Context, q database.Querier, np NewProduct) (*models.Product, error) {
	product := &models.Product{}

	query := `
		INSERT INTO products (category_id, sku, name, description, image_url, price, stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING ` + productColumns

	row := q.QueryRowContext(ctx, query,
		np.CategoryID, np.SKU, np.Name, np.Description, np.ImageURL, np.Price, np.Stock)
	if err := scanProduct(row, product); err != nil {
		switch {
		case database.IsUniqueViolation(err):
			return nil, database.ErrProductExists
		case database.IsForeignKeyViolation(err):
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, q database.Querier, id int64) (*models.Product, error) {
	product := &models.Product{}

	row := q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if err := scanProduct(row, product); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// LockProductForUpdate reads the product's current price and stock and holds
// a row lock on it until q's transaction ends. q must be a *sql.Tx.
//
// Under READ COMMITTED a competing transaction blocks here until the holder
// commits or rolls back, and then observes the committed stock. Two
// concurrent orders can therefore never both validate against the same units.
func LockProductForUpdate(ctx context.Context, q database.Querier, id int64) (*models.Product, error) {
	product := &models.Product{}

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = $1
		FOR UPDATE`

	if err := scanProduct(q.QueryRowContext(ctx, query, id), product); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("lock product %d: %w", id, err)
	}

	return product, nil
}

// DecrementStock subtracts quantity relative to the stored value. It refuses
// to take stock below zero and reports ErrInsufficientStock instead.
func DecrementStock(ctx context.Context, q database.Querier, productID int64, quantity int) error {
	result, err := q.ExecContext(ctx,
		`UPDATE products
		 SET stock = stock - $1,
		     updated_at = NOW()
		 WHERE id = $2
		   AND stock >= $1`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrInsufficientStock
	}

	return nil
}

func Restock(ctx context.Context, q database.Querier, productID int64, quantity int) (*models.Product, error) {
	product := &models.Product{}

	query := `
		UPDATE products
		SET stock = stock + $1,
		    updated_at = NOW()
		WHERE id = $2
		RETURNING ` + productColumns

	if err := scanProduct(q.QueryRowContext(ctx, query, quantity, productID), product); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("restock product: %w", err)
	}

	return product, nil
}

// ListProducts pages through the catalog, optionally restricted to one
// category, with each product's review average and count.
func ListProducts(ctx context.Context, q database.Querier, categoryID *int64, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE $1::bigint IS NULL OR category_id = $1`,
		categoryID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT p.id, p.name, p.price, p.image_url,
		       COALESCE(c.name, ''),
		       COALESCE(ROUND(AVG(r.rating)::numeric, 2), 0),
		       COUNT(r.id)
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		LEFT JOIN reviews r ON r.product_id = p.id
		WHERE $1::bigint IS NULL OR p.category_id = $1
		GROUP BY p.id, c.name
		ORDER BY p.id
		LIMIT $2 OFFSET $3`

	rows, err := q.QueryContext(ctx, query, categoryID, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.ProductSummary{}
	for rows.Next() {
		var p models.ProductSummary
		err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Price,
			&p.ImageURL,
			&p.CategoryName,
			&p.AvgRating,
			&p.ReviewCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(products, total, page, pageSize), nil
}
