package engine

import "errors"

var (
	// ErrInvalidQuantity is returned when the requested quantity is not a
	// positive whole number of units.
	ErrInvalidQuantity = errors.New("engine: quantity must be a positive whole number")

	// ErrInvalidPrice is returned when the requested price is negative.
	ErrInvalidPrice = errors.New("engine: price must not be negative")

	// ErrInvalidSide is returned when the side is neither BUY nor SELL.
	ErrInvalidSide = errors.New("engine: side must be BUY or SELL")

	// ErrInsufficientHoldings is returned on a SELL when the account holds
	// no position in the instrument.
	ErrInsufficientHoldings = errors.New("engine: no holdings to sell")

	// ErrOverSell is returned on a SELL whose quantity exceeds the
	// account's current holding quantity.
	ErrOverSell = errors.New("engine: sell quantity exceeds held quantity")
)
