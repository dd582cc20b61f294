// Command seed loads the demo catalog. Rerunning it leaves existing rows alone.
//
//	go run ./scripts/seed
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/store"
	"github.com/shopspring/decimal"
)

type seedProduct struct {
	Category    string
	SKU         string
	Name        string
	Description string
	ImageURL    string
	Price       int64
	Stock       int
}

var seedCategories = []string{"거실가구", "침실가구", "주방가구"}

var seedProducts = []seedProduct{
	{
		Category:    "거실가구",
		SKU:         "STRANDMON-001",
		Name:        "STRANDMON 스트란드몬",
		Description: "편안한 윙체어, 노르드발라 다크그레이",
		ImageURL:    "https://www.ikea.com/kr/ko/images/products/strandmon-wing-chair-nordvalla-dark-grey__0325432_pe517964_s5.jpg",
		Price:       249000,
		Stock:       10,
	},
	{
		Category:    "거실가구",
		SKU:         "LACK-001",
		Name:        "LACK 라크",
		Description: "보조테이블, 화이트, 55x55 cm",
		ImageURL:    "https://www.ikea.com/kr/ko/images/products/lack-side-table-white__0088019_pe219430_s5.jpg",
		Price:       15000,
		Stock:       50,
	},
	{
		Category:    "침실가구",
		SKU:         "MALM-001",
		Name:        "MALM 말",
		Description: "높은침대프레임+수납상자2, 화이트/뤼뢰",
		ImageURL:    "https://www.ikea.com/kr/ko/images/products/malm-high-bed-frame-2-storage-boxes-white-luroey__0638608_pe699032_s5.jpg",
		Price:       199000,
		Stock:       20,
	},
	{
		Category:    "주방가구",
		SKU:         "RASKOG-001",
		Name:        "RASKOG",
		Description: "카트, 화이트, 35x45x78 cm",
		ImageURL:    "https://www.ikea.com/kr/ko/images/products/raskog-trolley-white__0102602_pe294698_s5.jpg",
		Price:       39900,
		Stock:       100,
	},
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logger.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	created, err := seed(context.Background(), db, logger)
	if err != nil {
		logger.Error("seed catalog", "error", err)
		os.Exit(1)
	}
	logger.Info("seed complete", "products_created", created)
}

func seed(ctx context.Context, q database.Querier, logger *slog.Logger) (int, error) {
	for _, name := range seedCategories {
		_, err := store.CreateCategory(ctx, q, name)
		if err != nil && !errors.Is(err, database.ErrCategoryExists) {
			return 0, err
		}
	}

	categories, err := store.ListCategories(ctx, q)
	if err != nil {
		return 0, err
	}
	ids := make(map[string]int64, len(categories))
	for _, c := range categories {
		ids[c.Name] = c.ID
	}

	created := 0
	for _, p := range seedProducts {
		categoryID, ok := ids[p.Category]
		if !ok {
			return created, fmt.Errorf("category %q missing after seeding", p.Category)
		}

		_, err := store.CreateProduct(ctx, q, store.NewProduct{
			CategoryID:  &categoryID,
			SKU:         p.SKU,
			Name:        p.Name,
			Description: p.Description,
			ImageURL:    p.ImageURL,
			Price:       decimal.NewFromInt(p.Price),
			Stock:       p.Stock,
		})
		switch {
		case errors.Is(err, database.ErrProductExists):
			logger.Info("product already present", "sku", p.SKU)
		case err != nil:
			return created, fmt.Errorf("seed product %s: %w", p.SKU, err)
		default:
			created++
		}
	}

	return created, nil
}
