package checkout_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/lib/pq"
	"github.com/safar/storefront/internal/checkout"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"github.com/safar/storefront/internal/testdb"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type CoordinatorSuite struct {
	suite.Suite
	pool *database.Pool
}

func TestCoordinatorSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) SetupSuite() {
	s.pool = testdb.Start(s.T(), 12)
}

func (s *CoordinatorSuite) SetupTest() {
	testdb.Reset(s.T(), s.pool.DB())
}

func (s *CoordinatorSuite) TearDownTest() {
	s.Equal(0, s.pool.Stats().InUse, "connections left checked out")
}

func (s *CoordinatorSuite) member() *models.Member {
	m, err := store.CreateMember(context.Background(), s.pool.DB(), store.NewMember{
		Email:   gofakeit.Email(),
		Name:    gofakeit.Name(),
		Phone:   gofakeit.Phone(),
		Address: gofakeit.Street(),
	})
	s.Require().NoError(err)
	return m
}

func (s *CoordinatorSuite) product(price int64, stock int) *models.Product {
	p, err := store.CreateProduct(context.Background(), s.pool.DB(), store.NewProduct{
		SKU:   gofakeit.UUID(),
		Name:  gofakeit.ProductName(),
		Price: decimal.NewFromInt(price),
		Stock: stock,
	})
	s.Require().NoError(err)
	return p
}

func (s *CoordinatorSuite) addToCart(memberID, productID int64, qty int) {
	_, err := store.AddToCart(context.Background(), s.pool.DB(), memberID, productID, qty)
	s.Require().NoError(err)
}

func (s *CoordinatorSuite) stock(productID int64) int {
	p, err := store.GetProduct(context.Background(), s.pool.DB(), productID)
	s.Require().NoError(err)
	return p.Stock
}

func (s *CoordinatorSuite) count(table string) int {
	var n int
	err := s.pool.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n)
	s.Require().NoError(err)
	return n
}

func (s *CoordinatorSuite) assertNothingWritten() {
	s.Zero(s.count("orders"), "orders")
	s.Zero(s.count("order_line_items"), "order_line_items")
	s.Zero(s.count("payments"), "payments")
}

func request(memberID int64, items ...checkout.LineRequest) checkout.PlaceOrderRequest {
	return checkout.PlaceOrderRequest{
		MemberID:        memberID,
		RecipientName:   gofakeit.Name(),
		RecipientPhone:  gofakeit.Phone(),
		ShippingAddress: gofakeit.Street(),
		PaymentMethod:   "card",
		Items:           items,
	}
}

func (s *CoordinatorSuite) TestPlaceOrderCommitsEverything() {
	ctx := context.Background()
	m := s.member()
	p := s.product(1000, 10)
	s.addToCart(m.ID, p.ID, 3)

	c := checkout.NewCoordinator(s.pool)
	receipt, err := c.PlaceOrder(ctx, request(m.ID, checkout.LineRequest{ProductID: p.ID, Quantity: 3}))
	s.Require().NoError(err)

	s.True(decimal.NewFromInt(3000).Equal(receipt.TotalPrice), "total %s", receipt.TotalPrice)
	s.Regexp(`^PG_\d+$`, receipt.TransactionID)
	s.Equal(int64(1), receipt.CartPurged)
	s.Equal(7, s.stock(p.ID))

	order, err := store.GetOrder(ctx, s.pool.DB(), receipt.OrderID)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusPaid, order.Status)
	s.Equal(receipt.OrderNumber, order.OrderNumber)

	want := []models.OrderLineItem{{
		OrderID:         receipt.OrderID,
		ProductID:       p.ID,
		Quantity:        3,
		PriceAtPurchase: decimal.NewFromInt(1000),
	}}
	diff := cmp.Diff(want, order.Items,
		cmpopts.IgnoreFields(models.OrderLineItem{}, "ID", "CreatedAt"),
		cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) }),
	)
	s.Empty(diff)

	s.Require().NotNil(order.Payment)
	s.True(decimal.NewFromInt(3000).Equal(order.Payment.Amount))
	s.Equal(models.PaymentStatusSuccess, order.Payment.Status)
	s.Equal(receipt.TransactionID, order.Payment.TransactionID)
	s.Equal("card", order.Payment.Method)

	cart, err := store.ListCart(ctx, s.pool.DB(), m.ID)
	s.Require().NoError(err)
	s.Empty(cart)
}

func (s *CoordinatorSuite) TestTotalSumsAllLines() {
	m := s.member()
	a := s.product(1000, 10)
	b := s.product(2500, 10)

	receipt, err := checkout.NewCoordinator(s.pool).PlaceOrder(context.Background(), request(m.ID,
		checkout.LineRequest{ProductID: a.ID, Quantity: 2},
		checkout.LineRequest{ProductID: b.ID, Quantity: 3},
	))
	s.Require().NoError(err)

	s.True(decimal.NewFromInt(9500).Equal(receipt.TotalPrice), "total %s", receipt.TotalPrice)
	s.Equal(8, s.stock(a.ID))
	s.Equal(7, s.stock(b.ID))
	s.Equal(2, s.count("order_line_items"))
}

func (s *CoordinatorSuite) TestInsufficientStockWritesNothing() {
	m := s.member()
	p := s.product(1000, 2)
	s.addToCart(m.ID, p.ID, 5)

	_, err := checkout.NewCoordinator(s.pool).PlaceOrder(context.Background(),
		request(m.ID, checkout.LineRequest{ProductID: p.ID, Quantity: 5}))
	s.Require().Error(err)

	var oerr *checkout.Error
	s.Require().ErrorAs(err, &oerr)
	s.Equal(checkout.KindInsufficientStock, oerr.Kind)
	s.Equal(2, oerr.Remaining)
	s.Contains(err.Error(), "remaining 2")

	s.assertNothingWritten()
	s.Equal(2, s.stock(p.ID))
	s.Equal(1, s.count("cart_entries"))
}

func (s *CoordinatorSuite) TestLaterLineFailureRollsBackEarlierLines() {
	m := s.member()
	plenty := s.product(1000, 10)
	scarce := s.product(500, 1)

	_, err := checkout.NewCoordinator(s.pool).PlaceOrder(context.Background(), request(m.ID,
		checkout.LineRequest{ProductID: plenty.ID, Quantity: 4},
		checkout.LineRequest{ProductID: scarce.ID, Quantity: 2},
	))
	s.Require().ErrorIs(err, checkout.ErrInsufficientStock)

	s.assertNothingWritten()
	s.Equal(10, s.stock(plenty.ID))
	s.Equal(1, s.stock(scarce.ID))
}

func (s *CoordinatorSuite) TestUnknownProduct() {
	m := s.member()
	p := s.product(1000, 10)

	_, err := checkout.NewCoordinator(s.pool).PlaceOrder(context.Background(), request(m.ID,
		checkout.LineRequest{ProductID: p.ID, Quantity: 1},
		checkout.LineRequest{ProductID: p.ID + 1000, Quantity: 1},
	))
	s.Require().ErrorIs(err, checkout.ErrProductNotFound)

	s.assertNothingWritten()
	s.Equal(10, s.stock(p.ID))
}

func (s *CoordinatorSuite) TestUnknownMember() {
	p := s.product(1000, 10)

	_, err := checkout.NewCoordinator(s.pool).PlaceOrder(context.Background(),
		request(424242, checkout.LineRequest{ProductID: p.ID, Quantity: 1}))
	s.Require().ErrorIs(err, checkout.ErrMemberNotFound)

	s.assertNothingWritten()
	s.Equal(10, s.stock(p.ID))
}

func (s *CoordinatorSuite) TestEmptyOrderNeverTouchesTheStore() {
	st := &countingStore{Store: store.Postgres{}}
	c := checkout.NewCoordinator(s.pool, checkout.WithStore(st))

	_, err := c.PlaceOrder(context.Background(), request(s.member().ID))
	s.Require().ErrorIs(err, checkout.ErrEmptyOrder)

	s.Zero(st.calls.Load())
	s.assertNothingWritten()
}

func (s *CoordinatorSuite) TestDuplicateLinesAreFolded() {
	m := s.member()
	p := s.product(1000, 10)

	receipt, err := checkout.NewCoordinator(s.pool).PlaceOrder(context.Background(), request(m.ID,
		checkout.LineRequest{ProductID: p.ID, Quantity: 2},
		checkout.LineRequest{ProductID: p.ID, Quantity: 3},
	))
	s.Require().NoError(err)

	s.Require().Len(receipt.Lines, 1)
	s.Equal(5, receipt.Lines[0].Quantity)
	s.True(decimal.NewFromInt(5000).Equal(receipt.TotalPrice))
	s.Equal(5, s.stock(p.ID))
	s.Equal(1, s.count("order_line_items"))
}

func (s *CoordinatorSuite) TestCartPurgeIsSelective() {
	ctx := context.Background()
	buyer := s.member()
	other := s.member()
	bought := s.product(1000, 10)
	kept := s.product(2000, 10)

	s.addToCart(buyer.ID, bought.ID, 1)
	s.addToCart(buyer.ID, kept.ID, 1)
	s.addToCart(other.ID, bought.ID, 2)

	_, err := checkout.NewCoordinator(s.pool).PlaceOrder(ctx,
		request(buyer.ID, checkout.LineRequest{ProductID: bought.ID, Quantity: 1}))
	s.Require().NoError(err)

	buyerCart, err := store.ListCart(ctx, s.pool.DB(), buyer.ID)
	s.Require().NoError(err)
	s.Require().Len(buyerCart, 1)
	s.Equal(kept.ID, buyerCart[0].ProductID)

	otherCart, err := store.ListCart(ctx, s.pool.DB(), other.ID)
	s.Require().NoError(err)
	s.Require().Len(otherCart, 1)
	s.Equal(bought.ID, otherCart[0].ProductID)
	s.Equal(2, otherCart[0].Quantity)
}

func (s *CoordinatorSuite) TestOrderWithoutCartEntries() {
	m := s.member()
	p := s.product(1000, 10)

	receipt, err := checkout.NewCoordinator(s.pool).PlaceOrder(context.Background(),
		request(m.ID, checkout.LineRequest{ProductID: p.ID, Quantity: 1}))
	s.Require().NoError(err)
	s.Zero(receipt.CartPurged)
}

func (s *CoordinatorSuite) TestPaymentFailureRollsBackEverything() {
	m := s.member()
	p := s.product(1000, 10)
	s.addToCart(m.ID, p.ID, 3)

	st := &failingStore{Store: store.Postgres{}, failPayment: errors.New("payment gateway unavailable")}
	c := checkout.NewCoordinator(s.pool, checkout.WithStore(st))

	_, err := c.PlaceOrder(context.Background(), request(m.ID, checkout.LineRequest{ProductID: p.ID, Quantity: 3}))
	s.Require().Error(err)
	s.Equal(checkout.KindTransactionFailure, checkout.KindOf(err))
	s.EqualError(err, "order could not be completed")
	s.ErrorIs(err, st.failPayment)

	s.assertNothingWritten()
	s.Equal(10, s.stock(p.ID))
	s.Equal(1, s.count("cart_entries"))
}

func (s *CoordinatorSuite) TestCartPurgeFailureRollsBackEverything() {
	m := s.member()
	p := s.product(1000, 10)
	s.addToCart(m.ID, p.ID, 1)

	st := &failingStore{Store: store.Postgres{}, failPurge: errors.New("lost connection")}
	c := checkout.NewCoordinator(s.pool, checkout.WithStore(st))

	_, err := c.PlaceOrder(context.Background(), request(m.ID, checkout.LineRequest{ProductID: p.ID, Quantity: 1}))
	s.Require().ErrorIs(err, checkout.ErrTransactionFailure)

	s.assertNothingWritten()
	s.Equal(10, s.stock(p.ID))
	s.Equal(1, s.count("cart_entries"))
}

func (s *CoordinatorSuite) TestDeadlockIsRetried() {
	m := s.member()
	p := s.product(1000, 10)

	st := &failingStore{Store: store.Postgres{}, deadlocks: 1}
	c := checkout.NewCoordinator(s.pool, checkout.WithStore(st))

	_, err := c.PlaceOrder(context.Background(), request(m.ID, checkout.LineRequest{ProductID: p.ID, Quantity: 2}))
	s.Require().NoError(err)

	s.Equal(1, s.count("orders"))
	s.Equal(1, s.count("payments"))
	s.Equal(8, s.stock(p.ID))
}

func (s *CoordinatorSuite) TestConnectionsAreReturnedAfterEveryOutcome() {
	m := s.member()
	p := s.product(1000, 1)
	c := checkout.NewCoordinator(s.pool)

	// More failures than the pool has connections; a leak would block the
	// final order forever.
	for range 20 {
		_, err := c.PlaceOrder(context.Background(), request(m.ID, checkout.LineRequest{ProductID: p.ID, Quantity: 5}))
		s.Require().ErrorIs(err, checkout.ErrInsufficientStock)
		s.Equal(0, s.pool.Stats().InUse)
	}

	_, err := c.PlaceOrder(context.Background(), request(m.ID, checkout.LineRequest{ProductID: p.ID, Quantity: 1}))
	s.Require().NoError(err)
	s.Equal(0, s.pool.Stats().InUse)
}

func (s *CoordinatorSuite) TestCanceledContext() {
	m := s.member()
	p := s.product(1000, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := checkout.NewCoordinator(s.pool).PlaceOrder(ctx, request(m.ID, checkout.LineRequest{ProductID: p.ID, Quantity: 1}))
	s.Require().ErrorIs(err, checkout.ErrTransactionFailure)
	s.ErrorIs(err, context.Canceled)

	s.assertNothingWritten()
	s.Equal(10, s.stock(p.ID))
}

func (s *CoordinatorSuite) TestConcurrentOrdersNeverOversell() {
	const (
		stock    = 10
		quantity = 3
		buyers   = 8
	)

	p := s.product(1000, stock)
	members := make([]*models.Member, buyers)
	for i := range members {
		members[i] = s.member()
	}

	c := checkout.NewCoordinator(s.pool)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
		unexpect  = make(chan error, buyers)
	)
	for _, m := range members {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.PlaceOrder(context.Background(), request(m.ID, checkout.LineRequest{ProductID: p.ID, Quantity: quantity}))
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, checkout.ErrInsufficientStock):
				rejected.Add(1)
			default:
				unexpect <- err
			}
		}()
	}
	wg.Wait()
	close(unexpect)

	for err := range unexpect {
		s.Failf("unexpected error", "%v", err)
	}

	s.Equal(int32(stock/quantity), succeeded.Load())
	s.Equal(int32(buyers-stock/quantity), rejected.Load())
	s.Equal(stock%quantity, s.stock(p.ID))
	s.Equal(stock/quantity, s.count("orders"))
	s.Equal(stock/quantity, s.count("payments"))
}

func (s *CoordinatorSuite) TestOpposingLockOrderIsResolvedByRetry() {
	a := s.product(1000, 100)
	b := s.product(2000, 100)
	buyers := []*models.Member{s.member(), s.member()}
	orders := [][]checkout.LineRequest{
		{{ProductID: a.ID, Quantity: 1}, {ProductID: b.ID, Quantity: 1}},
		{{ProductID: b.ID, Quantity: 1}, {ProductID: a.ID, Quantity: 1}},
	}

	c := checkout.NewCoordinator(s.pool, checkout.WithMaxRetries(10))

	const rounds = 5
	var wg sync.WaitGroup
	errs := make(chan error, 2*rounds)
	for i, m := range buyers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range rounds {
				if _, err := c.PlaceOrder(context.Background(), request(m.ID, orders[i]...)); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.Failf("unexpected error", "%v", err)
	}
	s.Equal(100-2*rounds, s.stock(a.ID))
	s.Equal(100-2*rounds, s.stock(b.ID))
	s.Equal(2*rounds, s.count("orders"))
}

type countingStore struct {
	checkout.Store
	calls atomic.Int32
}

func (c *countingStore) MemberExists(ctx context.Context, q database.Querier, id int64) (bool, error) {
	c.calls.Add(1)
	return c.Store.MemberExists(ctx, q, id)
}

func (c *countingStore) LockProductForUpdate(ctx context.Context, q database.Querier, id int64) (*models.Product, error) {
	c.calls.Add(1)
	return c.Store.LockProductForUpdate(ctx, q, id)
}

// failingStore injects faults into an otherwise real store.
type failingStore struct {
	checkout.Store
	failPayment error
	failPurge   error
	deadlocks   int
}

func (f *failingStore) InsertPayment(ctx context.Context, q database.Querier, payment *models.Payment) error {
	if f.deadlocks > 0 {
		f.deadlocks--
		return &pq.Error{Code: "40P01", Message: "deadlock detected"}
	}
	if f.failPayment != nil {
		return f.failPayment
	}
	return f.Store.InsertPayment(ctx, q, payment)
}

func (f *failingStore) PurgeCart(ctx context.Context, q database.Querier, memberID int64, productIDs []int64) (int64, error) {
	if f.failPurge != nil {
		return 0, f.failPurge
	}
	return f.Store.PurgeCart(ctx, q, memberID, productIDs)
}
