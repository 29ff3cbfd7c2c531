// Package apperror holds the typed failures of the order placement flow.
//
// Every failure is an *Error carrying a stable Code. errors.Is compares codes,
// so an error naming a product (OutOfStockFor("P1")) still matches its
// sentinel (ErrOutOfStock).
package apperror

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeEmptyCart             Code = "EMPTY_CART"
	CodeInvalidQuantity       Code = "INVALID_QUANTITY"
	CodeInvalidPrice          Code = "INVALID_PRICE"
	CodeInvalidTotal          Code = "INVALID_TOTAL"
	CodeIncompleteShipping    Code = "INCOMPLETE_SHIPPING"
	CodePriceMismatch         Code = "PRICE_MISMATCH"
	CodeProductNotFound       Code = "PRODUCT_NOT_FOUND"
	CodeOutOfStock            Code = "OUT_OF_STOCK"
	CodeInvalidStatus         Code = "INVALID_STATUS"
	CodeOrderLocked           Code = "ORDER_LOCKED"
	CodeOrderNotFound         Code = "ORDER_NOT_FOUND"
	CodeStatusConflict        Code = "STATUS_CONFLICT"
	CodeReconciliationFailure Code = "RECONCILIATION_FAILURE"
	CodeNotAuthenticated      Code = "NOT_AUTHENTICATED"
	CodeNotAuthorized         Code = "NOT_AUTHORIZED"
	CodeIdempotencyInProgress Code = "IDEMPOTENCY_IN_PROGRESS"
	CodeInvalidRequest        Code = "INVALID_REQUEST"
)

type Error struct {
	Code      Code
	Message   string
	ProductID string
}

func (e *Error) Error() string {
	if e.ProductID != "" {
		return fmt.Sprintf("%s (product %s)", e.Message, e.ProductID)
	}
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrEmptyCart             = &Error{Code: CodeEmptyCart, Message: "cart is empty"}
	ErrInvalidQuantity       = &Error{Code: CodeInvalidQuantity, Message: "quantity must be a positive integer"}
	ErrInvalidPrice          = &Error{Code: CodeInvalidPrice, Message: "price must be a positive number"}
	ErrInvalidTotal          = &Error{Code: CodeInvalidTotal, Message: "order total must be positive"}
	ErrIncompleteShipping    = &Error{Code: CodeIncompleteShipping, Message: "shipping name, address, city and zip are required"}
	ErrPriceMismatch         = &Error{Code: CodePriceMismatch, Message: "cart total does not match catalog prices"}
	ErrProductNotFound       = &Error{Code: CodeProductNotFound, Message: "product not found"}
	ErrOutOfStock            = &Error{Code: CodeOutOfStock, Message: "not enough stock"}
	ErrInvalidStatus         = &Error{Code: CodeInvalidStatus, Message: "unknown order status"}
	ErrOrderLocked           = &Error{Code: CodeOrderLocked, Message: "order is in a terminal state"}
	ErrOrderNotFound         = &Error{Code: CodeOrderNotFound, Message: "order not found"}
	ErrStatusConflict        = &Error{Code: CodeStatusConflict, Message: "order status keeps changing, try again"}
	ErrReconciliationFailure = &Error{Code: CodeReconciliationFailure, Message: "stock reconciliation failed"}
	ErrNotAuthenticated      = &Error{Code: CodeNotAuthenticated, Message: "authentication required"}
	ErrNotAuthorized         = &Error{Code: CodeNotAuthorized, Message: "admin role required"}
	ErrIdempotencyInProgress = &Error{Code: CodeIdempotencyInProgress, Message: "a request with this idempotency key is still in progress"}
	ErrInvalidRequest        = &Error{Code: CodeInvalidRequest, Message: "invalid request body"}
)

func forProduct(base *Error, productID string) *Error {
	return &Error{Code: base.Code, Message: base.Message, ProductID: productID}
}

func OutOfStockFor(productID string) error      { return forProduct(ErrOutOfStock, productID) }
func ProductNotFoundFor(productID string) error { return forProduct(ErrProductNotFound, productID) }
func InvalidQuantityFor(productID string) error { return forProduct(ErrInvalidQuantity, productID) }
func InvalidPriceFor(productID string) error    { return forProduct(ErrInvalidPrice, productID) }

// InvalidTransition reports a rejected status change with both ends named.
func InvalidTransition(base *Error, from, to string) error {
	return &Error{Code: base.Code, Message: fmt.Sprintf("%s: cannot change status from %s to %s", base.Message, from, to)}
}

// CodeOf returns the code of the first *Error in err's tree, or "". A
// reconciliation failure outranks the cause it wraps.
func CodeOf(err error) Code {
	var rec *ReconciliationError
	if errors.As(err, &rec) {
		return CodeReconciliationFailure
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ProductOf returns the product named by the first *Error in err's tree.
func ProductOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.ProductID
	}
	return ""
}

// ReconciliationError is returned when compensation could not restore every
// reservation of a failed placement. It carries the original failure and
// matches both it and ErrReconciliationFailure.
type ReconciliationError struct {
	Cause   error
	Pending int
}

func (e *ReconciliationError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %d release(s) left as drift", ErrReconciliationFailure.Message, e.Pending)
	}
	return fmt.Sprintf("%s: %d release(s) left as drift after: %v", ErrReconciliationFailure.Message, e.Pending, e.Cause)
}

func (e *ReconciliationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrReconciliationFailure}
	}
	return []error{e.Cause, ErrReconciliationFailure}
}
