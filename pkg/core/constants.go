package core

import "errors"

// Errors
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidUser     = errors.New("invalid user id")
	ErrInvalidSymbol   = errors.New("invalid symbol")
	ErrInvalidSide     = errors.New("invalid side")
	ErrInvalidVolume   = errors.New("invalid volume")
	ErrSymbolMismatch  = errors.New("order symbol does not match book")
	ErrOrderExists     = errors.New("order exists")
	ErrOrderNotFound   = errors.New("order not found")
)

// Volume limits accepted for a single order
const (
	MinOrderVolume = 1
	MaxOrderVolume = 10000
)
