package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error represents an application error: an HTTP status, a stable machine-readable code and a
// client-facing message. Err holds the underlying cause and is never serialized.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// WithMessage returns a copy of e carrying message.
func (e *Error) WithMessage(message string) *Error {
	cp := *e
	cp.Message = message
	return &cp
}

// Wrap returns a copy of e with err attached as its cause.
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// New creates a new Error
func New(status int, code, message string, err error) *Error {
	return &Error{
		Status:  status,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error types
var (
	ErrValidation     = New(http.StatusBadRequest, "VALIDATION_ERROR", "Validation error", nil)
	ErrInvalidID      = New(http.StatusBadRequest, "INVALID_ID", "Invalid id", nil)
	ErrUnauthorized   = New(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	ErrForbidden      = New(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	ErrRateLimited    = New(http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests", nil)
	ErrInternalServer = New(http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
)

// Checkout validation error types
var (
	ErrCartEmpty            = New(http.StatusBadRequest, "CART_EMPTY", "Cart is empty", nil)
	ErrAddressRequired      = New(http.StatusBadRequest, "ADDRESS_REQUIRED", "Complete delivery address is required", nil)
	ErrInvalidTotal         = New(http.StatusBadRequest, "INVALID_TOTAL", "Total amount must be greater than zero", nil)
	ErrInvalidQuantity      = New(http.StatusBadRequest, "INVALID_QUANTITY", "Quantity must be greater than zero", nil)
	ErrInvalidPaymentMethod = New(http.StatusBadRequest, "INVALID_PAYMENT_METHOD", "Unsupported payment method", nil)
)

// Not-found error types
var (
	ErrProductNotFound  = New(http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found", nil)
	ErrProductsNotFound = New(http.StatusBadRequest, "PRODUCTS_NOT_FOUND", "One or more products not found", nil)
	ErrOrderNotFound    = New(http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found", nil)
	ErrSubOrderNotFound = New(http.StatusNotFound, "SUBORDER_NOT_FOUND", "Sub-order not found", nil)
)

// Inventory error types
var (
	ErrInsufficientStock     = New(http.StatusBadRequest, "INSUFFICIENT_STOCK", "Insufficient stock", nil)
	ErrConcurrentStockUpdate = New(http.StatusConflict, "CONCURRENT_STOCK_UPDATE", "Stock changed while placing the order, please retry", nil)
	ErrBatchNumberDuplicate  = New(http.StatusBadRequest, "BATCH_NUMBER_DUPLICATE", "Batch number already exists for this store and variant", nil)
	ErrInvalidExpiry         = New(http.StatusBadRequest, "INVALID_EXPIRY", "Expiry date must be after manufacturing date", nil)
	ErrMissingVariant        = New(http.StatusBadRequest, "MISSING_VARIANT", "Variant is required for fixed-price products", nil)
	ErrMissingDates          = New(http.StatusBadRequest, "MISSING_DATES", "Manufacturing and expiry dates are required for expiring products", nil)
	ErrMissingBatchNumber    = New(http.StatusBadRequest, "MISSING_BATCH_NUMBER", "Batch number is required", nil)
)

// Delivery error types
var (
	ErrSubOrderUnavailable  = New(http.StatusBadRequest, "SUBORDER_UNAVAILABLE", "Sub-order is no longer available", nil)
	ErrSubOrderUnauthorized = New(http.StatusForbidden, "SUBORDER_UNAUTHORIZED", "Sub-order is not assigned to you or is in the wrong state", nil)
	ErrOrderAccessDenied    = New(http.StatusForbidden, "ORDER_ACCESS_DENIED", "You are not allowed to view this order", nil)
	ErrLocationRequired     = New(http.StatusBadRequest, "LOCATION_REQUIRED", "Latitude and longitude are required", nil)
)

// Idempotency error types
var (
	ErrIdempotencyInProgress = New(http.StatusConflict, "IDEMPOTENCY_IN_PROGRESS", "A request with this idempotency key is already being processed", nil)
)

// From normalizes err to an *Error. Unknown errors become INTERNAL_ERROR with err as the cause.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer.Wrap(err)
}

// IsClientError reports whether err maps to a 4xx status.
func IsClientError(err error) bool {
	e := From(err)
	return e != nil && e.Status >= 400 && e.Status < 500
}

// Respond writes err as {"error": message, "code": code} and aborts the request.
// Internal errors are rendered with the generic message only.
func Respond(c *gin.Context, err error) {
	appErr := From(err)
	if appErr.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
		c.AbortWithStatusJSON(appErr.Status, gin.H{"error": ErrInternalServer.Message, "code": appErr.Code})
		return
	}
	c.AbortWithStatusJSON(appErr.Status, gin.H{"error": appErr.Message, "code": appErr.Code})
}

// ErrorMiddleware renders the last error attached to the gin context when the handler did not
// write a response itself.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			Respond(c, c.Errors.Last().Err)
		}
	}
}
