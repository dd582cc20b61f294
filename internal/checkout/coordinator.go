package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/metrics"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Store is every read and write the order transaction performs. Each call
// receives the transaction it must run in.
type Store interface {
	ProductLocker
	MemberExists(ctx context.Context, q database.Querier, id int64) (bool, error)
	InsertOrder(ctx context.Context, q database.Querier, order *models.Order) error
	InsertLineItem(ctx context.Context, q database.Querier, item *models.OrderLineItem) error
	DecrementStock(ctx context.Context, q database.Querier, productID int64, quantity int) error
	InsertPayment(ctx context.Context, q database.Querier, payment *models.Payment) error
	PurgeCart(ctx context.Context, q database.Querier, memberID int64, productIDs []int64) (int64, error)
}

type PlaceOrderRequest struct {
	MemberID        int64
	RecipientName   string
	RecipientPhone  string
	ShippingAddress string
	PaymentMethod   string
	Items           []LineRequest
}

type Receipt struct {
	OrderID       int64
	OrderNumber   string
	MemberID      int64
	TotalPrice    decimal.Decimal
	TransactionID string
	Lines         []PricedLine
	CartPurged    int64
	PlacedAt      time.Time
}

// Coordinator places orders. It holds no per-order state and is safe for
// concurrent use; concurrent orders are serialized by row locks on products.
type Coordinator struct {
	pool      *database.Pool
	store     Store
	validator *Validator
	txOpts    database.TxOptions
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Coordinator)

// WithStore replaces the Postgres-backed store.
func WithStore(s Store) Option {
	return func(c *Coordinator) {
		c.store = s
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithMaxRetries sets how often a transaction that hit a deadlock or
// serialization failure is re-run.
func WithMaxRetries(n int) Option {
	return func(c *Coordinator) {
		c.txOpts.MaxRetries = n
	}
}

func NewCoordinator(pool *database.Pool, opts ...Option) *Coordinator {
	c := &Coordinator{
		pool:   pool,
		store:  store.Postgres{},
		txOpts: database.DefaultTxOptions(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.validator = NewValidator(c.store)
	return c
}

// PlaceOrder validates, prices and persists an order in one transaction on
// one dedicated connection: order header, line items with stock decrements,
// payment, and removal of the purchased products from the member's cart.
// Either all of it commits or none of it is visible. Errors are always *Error.
func (c *Coordinator) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Receipt, error) {
	start := time.Now()

	receipt, err := c.placeOrder(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		oerr := asOrderError(err)
		c.metrics.ObserveOrder(oerr.Kind.String(), elapsed)

		attrs := []any{
			"member_id", req.MemberID,
			"kind", oerr.Kind.String(),
			"duration", elapsed,
		}
		if oerr.Kind == KindTransactionFailure {
			c.logger.ErrorContext(ctx, "order failed", append(attrs, "error", err)...)
		} else {
			c.logger.WarnContext(ctx, "order rejected", append(attrs, "reason", oerr.Error())...)
		}
		return nil, oerr
	}

	c.metrics.ObserveOrder("success", elapsed)
	c.metrics.AddCartRowsPurged(receipt.CartPurged)
	c.logger.InfoContext(ctx, "order placed",
		"order_id", receipt.OrderID,
		"order_number", receipt.OrderNumber,
		"member_id", receipt.MemberID,
		"total_price", receipt.TotalPrice.String(),
		"lines", len(receipt.Lines),
		"duration", elapsed,
	)
	return receipt, nil
}

func (c *Coordinator) placeOrder(ctx context.Context, req PlaceOrderRequest) (*Receipt, error) {
	items, err := normalizeItems(req)
	if err != nil {
		return nil, err
	}

	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := conn.Release(); err != nil {
			c.logger.WarnContext(ctx, "release connection", "error", err)
		}
	}()

	var receipt *Receipt
	err = database.WithRetry(ctx, conn, c.txOpts, func(tx *sql.Tx) error {
		r, err := c.writeOrder(ctx, tx, req, items)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return receipt, nil
}

func (c *Coordinator) writeOrder(ctx context.Context, tx *sql.Tx, req PlaceOrderRequest, items []LineRequest) (*Receipt, error) {
	exists, err := c.store.MemberExists(ctx, tx, req.MemberID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, memberNotFound(req.MemberID)
	}

	quote, err := c.validator.Validate(ctx, tx, items)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	order := &models.Order{
		MemberID:        req.MemberID,
		OrderNumber:     newOrderNumber(now),
		Status:          models.OrderStatusPaid,
		TotalPrice:      quote.Total,
		RecipientName:   req.RecipientName,
		RecipientPhone:  req.RecipientPhone,
		ShippingAddress: req.ShippingAddress,
	}
	if err := c.store.InsertOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	for _, line := range quote.Lines {
		item := &models.OrderLineItem{
			OrderID:         order.ID,
			ProductID:       line.ProductID,
			Quantity:        line.Quantity,
			PriceAtPurchase: line.UnitPrice,
		}
		if err := c.store.InsertLineItem(ctx, tx, item); err != nil {
			return nil, err
		}

		if err := c.store.DecrementStock(ctx, tx, line.ProductID, line.Quantity); err != nil {
			if errors.Is(err, database.ErrInsufficientStock) {
				return nil, insufficientStock(line.ProductID, line.Name, line.Quantity, -1)
			}
			return nil, err
		}
	}

	payment := &models.Payment{
		OrderID:       order.ID,
		Method:        req.PaymentMethod,
		Amount:        quote.Total,
		Status:        models.PaymentStatusSuccess,
		TransactionID: newTransactionID(now),
	}
	if err := c.store.InsertPayment(ctx, tx, payment); err != nil {
		return nil, err
	}

	purchased := lo.Map(quote.Lines, func(l PricedLine, _ int) int64 { return l.ProductID })
	purged, err := c.store.PurgeCart(ctx, tx, req.MemberID, purchased)
	if err != nil {
		return nil, err
	}

	return &Receipt{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		MemberID:      order.MemberID,
		TotalPrice:    quote.Total,
		TransactionID: payment.TransactionID,
		Lines:         quote.Lines,
		CartPurged:    purged,
		PlacedAt:      order.CreatedAt,
	}, nil
}

// normalizeItems rejects malformed requests before any connection is taken
// and folds repeated products into one line, keeping first-seen order.
func normalizeItems(req PlaceOrderRequest) ([]LineRequest, error) {
	if len(req.Items) == 0 {
		return nil, emptyOrder()
	}
	if req.MemberID <= 0 {
		return nil, invalidRequest("member_id is required")
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		return nil, invalidRequest("payment_method is required")
	}

	quantities := make(map[int64]int, len(req.Items))
	for _, it := range req.Items {
		if it.ProductID <= 0 {
			return nil, invalidRequest("product_id must be positive, got %d", it.ProductID)
		}
		if it.Quantity <= 0 {
			return nil, invalidRequest("quantity for product %d must be positive, got %d", it.ProductID, it.Quantity)
		}
		if quantities[it.ProductID] > math.MaxInt-it.Quantity {
			return nil, invalidRequest("quantity for product %d is too large", it.ProductID)
		}
		quantities[it.ProductID] += it.Quantity
	}

	ids := lo.Uniq(lo.Map(req.Items, func(it LineRequest, _ int) int64 { return it.ProductID }))
	return lo.Map(ids, func(id int64, _ int) LineRequest {
		return LineRequest{ProductID: id, Quantity: quantities[id]}
	}), nil
}

func newOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%d-%04d", now.UnixNano(), rand.IntN(10000))
}

// newTransactionID stands in for a payment gateway reference. It is unique
// enough for one store but carries no collision guarantee.
func newTransactionID(now time.Time) string {
	return fmt.Sprintf("PG_%d%05d", now.UnixMilli(), rand.IntN(100000))
}
