// Package apperr classifies the errors the sandbox can surface and maps them
// onto Kraken wire error strings.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of a business error.
type Kind int

const (
	KindInternal Kind = iota
	KindAuth
	KindValidation
	KindNotFound
	KindState
	KindMarketData
	KindInsufficientFunds
	KindRateLimit
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindState:
		return "state"
	case KindMarketData:
		return "market_data"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindRateLimit:
		return "rate_limit"
	default:
		return "internal"
	}
}

// Wire codes shared by several packages.
const (
	CodeInternal          = "EGeneral:Internal error"
	CodeInvalidArguments  = "EGeneral:Invalid arguments"
	CodeUnknownMethod     = "EGeneral:Unknown method"
	CodeInvalidKey        = "EAPI:Invalid key"
	CodeInvalidNonce      = "EAPI:Invalid nonce"
	CodeInvalidSignature  = "EAPI:Invalid signature"
	CodeRateLimit         = "EAPI:Rate limit exceeded"
	CodeUnknownPair       = "EQuery:Unknown asset pair"
	CodeUnknownAsset      = "EQuery:Unknown asset"
	CodeUnknownOrder      = "EOrder:Unknown order"
	CodeInsufficientFunds = "EOrder:Insufficient funds"
	CodeOrderMinimum      = "EOrder:Order minimum not met"
	CodeUnavailable       = "EService:Unavailable"
)

// Error is a classified error carrying the Kraken wire code.
type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same kind and code, so sentinel values
// can be compared with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Code == e.Code
}

func newError(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

func Auth(code string) *Error { return newError(KindAuth, code, nil) }

func Validation(code string, err error) *Error { return newError(KindValidation, code, err) }

func NotFound(code string) *Error { return newError(KindNotFound, code, nil) }

func State(code string) *Error { return newError(KindState, code, nil) }

func MarketData(err error) *Error { return newError(KindMarketData, CodeUnavailable, err) }

func InsufficientFunds(err error) *Error {
	return newError(KindInsufficientFunds, CodeInsufficientFunds, err)
}

func RateLimited() *Error { return newError(KindRateLimit, CodeRateLimit, nil) }

// InvalidArgument reports a missing or malformed request field.
func InvalidArgument(field string) *Error {
	return newError(KindValidation, CodeInvalidArguments+":"+field, nil)
}

// KindOf returns the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the wire code for err. Unclassified errors never leak their
// text onto the wire.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Code
	}
	return CodeInternal
}

// HTTPStatus maps an error kind to the response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindAuth:
		return http.StatusUnauthorized
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
