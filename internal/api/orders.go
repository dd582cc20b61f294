package api

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/safar/storefront/internal/checkout"
	"github.com/safar/storefront/internal/events"
	"github.com/safar/storefront/internal/store"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type placeOrderRequest struct {
	MemberID        int64             `json:"member_id"`
	RecipientName   string            `json:"recipient_name"`
	RecipientPhone  string            `json:"recipient_phone"`
	ShippingAddress string            `json:"shipping_address"`
	PaymentMethod   string            `json:"payment_method"`
	Items           []lineItemRequest `json:"items"`
}

type lineItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type placeOrderResponse struct {
	Message       string          `json:"message"`
	OrderID       int64           `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Currency      string          `json:"currency"`
	TransactionID string          `json:"transaction_id"`
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	receipt, err := s.orders.PlaceOrder(r.Context(), checkout.PlaceOrderRequest{
		MemberID:        req.MemberID,
		RecipientName:   req.RecipientName,
		RecipientPhone:  req.RecipientPhone,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Items: lo.Map(req.Items, func(it lineItemRequest, _ int) checkout.LineRequest {
			return checkout.LineRequest{ProductID: it.ProductID, Quantity: it.Quantity}
		}),
	})
	if err != nil {
		respondError(w, orderErrorStatus(err), err.Error())
		return
	}

	s.announce(r, receipt)

	respondJSON(w, http.StatusOK, placeOrderResponse{
		Message:       "order placed",
		OrderID:       receipt.OrderID,
		OrderNumber:   receipt.OrderNumber,
		TotalPrice:    receipt.TotalPrice,
		Currency:      s.currency,
		TransactionID: receipt.TransactionID,
	})
}

// announce runs after commit. The order stands whatever happens here.
func (s *Server) announce(r *http.Request, receipt *checkout.Receipt) {
	event := events.OrderPlaced{
		OrderID:       receipt.OrderID,
		OrderNumber:   receipt.OrderNumber,
		MemberID:      receipt.MemberID,
		TotalPrice:    receipt.TotalPrice,
		Currency:      s.currency,
		TransactionID: receipt.TransactionID,
		PlacedAt:      receipt.PlacedAt,
		Items: lo.Map(receipt.Lines, func(l checkout.PricedLine, _ int) events.OrderPlacedItem {
			return events.OrderPlacedItem{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
		}),
	}

	if err := s.events.PublishOrderPlaced(r.Context(), middleware.GetReqID(r.Context()), event); err != nil {
		s.logger.WarnContext(r.Context(), "publish order placed",
			"order_id", receipt.OrderID,
			"error", err,
		)
	}
}

// orderErrorStatus maps order failure kinds onto HTTP statuses. Stock and
// catalog problems are reported as 500 with the full message so clients can
// show the remaining quantity.
func orderErrorStatus(err error) int {
	switch checkout.KindOf(err) {
	case checkout.KindEmptyOrder, checkout.KindInvalidRequest:
		return http.StatusBadRequest
	case checkout.KindMemberNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// getOrder serves from the cache when possible. Cache failures degrade to a
// database read.
func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	ctx := r.Context()

	cached, hit, err := s.cache.GetOrder(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "read order cache", "order_id", id, "error", err)
	}
	if hit {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	order, err := store.GetOrder(ctx, s.db, id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}

	if err := s.cache.SetOrder(ctx, order); err != nil {
		s.logger.WarnContext(ctx, "write order cache", "order_id", id, "error", err)
	}
	respondJSON(w, http.StatusOK, order)
}

func (s *Server) listMemberOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid member id")
		return
	}

	limit := queryInt(r, "limit", 20, 100)

	page, err := store.ListOrdersCursor(r.Context(), s.db, id, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}
