package portfolio

import "errors"

var (
	// ErrDuplicatePosition is returned when opening a symbol that is already held
	ErrDuplicatePosition = errors.New("position already open")
	// ErrPositionNotFound is returned when modifying a symbol that is not held
	ErrPositionNotFound = errors.New("position not found")
	// ErrInvalidQuantity is returned for zero, negative or non-finite quantities
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrInvalidPrice is returned for zero, negative or non-finite prices
	ErrInvalidPrice = errors.New("invalid price")
	// ErrInvalidCommission is returned for negative or non-finite commissions
	ErrInvalidCommission = errors.New("invalid commission")
	// ErrInvalidSide is returned for sides other than BUY and SELL
	ErrInvalidSide = errors.New("invalid side")
	// ErrNoQuote is returned when the price source cannot mark a symbol
	ErrNoQuote = errors.New("no quote available")
)
