package market

import (
	"errors"
	"fmt"

	"farmmarket/native/catalog"
)

var (
	ErrNotFarmer         = catalog.ErrNotFarmer
	ErrInsufficientStock = catalog.ErrInsufficientStock

	ErrNotBuyer            = errors.New("market: caller is not the order's buyer")
	ErrNotAuthorized       = errors.New("market: caller is not a dispute party")
	ErrInsufficientPayment = errors.New("market: payment below total price")
	ErrInvalidOrder        = errors.New("market: invalid order")
	ErrDeadlineNotPassed   = errors.New("market: deadline not passed")
	ErrDeadlinePassed      = errors.New("market: deadline passed")
	ErrInvalidPercentage   = errors.New("market: percentages must sum to 100")
	ErrAlreadyResolved     = errors.New("market: dispute already resolved")

	ErrProductNotFound    = errors.New("market: product not found")
	ErrOrderNotFound      = fmt.Errorf("%w: order not found", ErrInvalidOrder)
	ErrDisputeNotFound    = errors.New("market: dispute not found")
	ErrAlreadyInitialized = errors.New("market: already initialized")
	ErrNotInitialized     = errors.New("market: not initialized")

	// ErrArithmeticOverflow is the panic value raised when an order total or
	// deadline does not fit its integer type. It is never returned.
	ErrArithmeticOverflow = errors.New("market: arithmetic overflow")

	errNilStore = errors.New("market engine: store not configured")
)
