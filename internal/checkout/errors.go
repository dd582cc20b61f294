package checkout

import (
	"errors"
	"fmt"
)

// Kind classifies why an order could not be placed.
type Kind int

const (
	KindTransactionFailure Kind = iota
	KindEmptyOrder
	KindInvalidRequest
	KindMemberNotFound
	KindProductNotFound
	KindInsufficientStock
)

func (k Kind) String() string {
	switch k {
	case KindEmptyOrder:
		return "EmptyOrder"
	case KindInvalidRequest:
		return "InvalidRequest"
	case KindMemberNotFound:
		return "MemberNotFound"
	case KindProductNotFound:
		return "ProductNotFound"
	case KindInsufficientStock:
		return "InsufficientStock"
	default:
		return "TransactionFailure"
	}
}

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrTransactionFailure = errors.New("order could not be completed")
	ErrEmptyOrder         = errors.New("order has no items")
	ErrInvalidRequest     = errors.New("invalid order request")
	ErrMemberNotFound     = errors.New("member not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
)

var sentinels = map[Kind]error{
	KindTransactionFailure: ErrTransactionFailure,
	KindEmptyOrder:         ErrEmptyOrder,
	KindInvalidRequest:     ErrInvalidRequest,
	KindMemberNotFound:     ErrMemberNotFound,
	KindProductNotFound:    ErrProductNotFound,
	KindInsufficientStock:  ErrInsufficientStock,
}

// Error is the single error type PlaceOrder returns.
type Error struct {
	Kind Kind

	// ProductID, Requested and Remaining describe the offending line for
	// KindProductNotFound and KindInsufficientStock. Remaining is -1 when the
	// stock level is unknown.
	ProductID int64
	Requested int
	Remaining int

	msg string
	err error
}

func (e *Error) Error() string {
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) Is(target error) bool {
	return target == sentinels[e.Kind]
}

// KindOf returns the Kind of err, or KindTransactionFailure for errors that
// did not come from this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransactionFailure
}

func emptyOrder() *Error {
	return &Error{Kind: KindEmptyOrder, msg: ErrEmptyOrder.Error()}
}

func invalidRequest(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidRequest, msg: fmt.Sprintf(format, args...)}
}

func memberNotFound(id int64) *Error {
	return &Error{Kind: KindMemberNotFound, msg: fmt.Sprintf("member %d not found", id)}
}

func productNotFound(id int64) *Error {
	return &Error{
		Kind:      KindProductNotFound,
		ProductID: id,
		Remaining: -1,
		msg:       fmt.Sprintf("product %d not found", id),
	}
}

func insufficientStock(id int64, name string, requested, remaining int) *Error {
	msg := fmt.Sprintf("insufficient stock for product %d (%s): requested %d, remaining %d", id, name, requested, remaining)
	if remaining < 0 {
		msg = fmt.Sprintf("insufficient stock for product %d: requested %d", id, requested)
	}
	return &Error{
		Kind:      KindInsufficientStock,
		ProductID: id,
		Requested: requested,
		Remaining: remaining,
		msg:       msg,
	}
}

func transactionFailure(err error) *Error {
	return &Error{Kind: KindTransactionFailure, msg: ErrTransactionFailure.Error(), err: err}
}

// asOrderError keeps the most specific error available and turns anything
// else into a TransactionFailure.
func asOrderError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return transactionFailure(err)
}
