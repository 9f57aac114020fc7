package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can decide between rejecting, degrading, or retrying.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindDomain     ErrorKind = "domain"
	KindUpstream   ErrorKind = "upstream"
)

var (
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrInvalidQuantity      = errors.New("quantity must be positive")
	ErrInvalidSide          = errors.New("side must be buy or sell")
	ErrInvalidOrderType     = errors.New("type must be market or limit")
	ErrInvalidPrice         = errors.New("limit price must be positive")
	ErrInvalidSymbol        = errors.New("symbol required")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientPosition = errors.New("insufficient position")
	ErrNoPosition           = errors.New("no position")
	ErrPriceUnavailable     = errors.New("price unavailable")
	ErrNoRoutes             = errors.New("no available routes")
	ErrSymbolBusy           = errors.New("symbol has an order in flight")
)

// TradingError wraps a sentinel with its category and a stable code for transport layers.
type TradingError struct {
	Kind ErrorKind
	Code string
	Err  error
}

func (e *TradingError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return e.Err.Error()
}

func (e *TradingError) Unwrap() error { return e.Err }

// ValidationError builds a KindValidation error around err.
func ValidationError(code string, err error) *TradingError {
	return &TradingError{Kind: KindValidation, Code: code, Err: err}
}

// DomainError builds a KindDomain error around err.
func DomainError(code string, err error) *TradingError {
	return &TradingError{Kind: KindDomain, Code: code, Err: err}
}

// UpstreamError builds a KindUpstream error; cause is kept in the chain.
func UpstreamError(code string, cause error) *TradingError {
	return &TradingError{Kind: KindUpstream, Code: code, Err: fmt.Errorf("%w: %w", ErrPriceUnavailable, cause)}
}

// KindOf returns the category of err, or "" when err is not a TradingError.
func KindOf(err error) ErrorKind {
	var te *TradingError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}
