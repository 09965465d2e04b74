package models

import "errors"

// Errors surfaced to callers at the request boundary. Wrap with %w and test
// with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyResolved     = errors.New("market already resolved")
	ErrInvalidSide         = errors.New("side is not one of the market's answers")
	ErrInvalidAmount       = errors.New("amount must be greater than 0")
	ErrTradeTooSmall       = errors.New("trade too small to move the price")
	ErrInsufficientShares  = errors.New("insufficient shares")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUpstreamUnavailable = errors.New("resolution source unavailable")
	ErrInvalidMarket       = errors.New("invalid market definition")
	ErrInvalidRequest      = errors.New("invalid request")

	// ErrInvariant signals a bug: the operation is aborted and storage is
	// left untouched.
	ErrInvariant = errors.New("internal invariant violated")
)

// ErrorCode returns the stable API code for a known error, or "INTERNAL".
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrAlreadyResolved):
		return "ALREADY_RESOLVED"
	case errors.Is(err, ErrInvalidSide):
		return "INVALID_SIDE"
	case errors.Is(err, ErrInvalidAmount):
		return "INVALID_AMOUNT"
	case errors.Is(err, ErrTradeTooSmall):
		return "TRADE_TOO_SMALL"
	case errors.Is(err, ErrInsufficientShares):
		return "INSUFFICIENT_SHARES"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "UPSTREAM_UNAVAILABLE"
	case errors.Is(err, ErrInvalidMarket):
		return "INVALID_MARKET"
	case errors.Is(err, ErrInvalidRequest):
		return "INVALID_REQUEST"
	}
	return "INTERNAL"
}
