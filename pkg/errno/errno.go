package errno

import (
	"errors"
	"net/http"
)

// Category 错误分类，决定调用方应该如何处理 (修正请求 / 等待 / 换新签名)
type Category int

const (
	CategoryNone Category = iota
	CategoryValidation
	CategoryAuthorization
	CategoryTemporal
	CategoryStateConflict
	CategoryResource
	CategoryInternal
)

func (c Category) String() string {
	switch c {
	case CategoryValidation:
		return "validation"
	case CategoryAuthorization:
		return "authorization"
	case CategoryTemporal:
		return "temporal"
	case CategoryStateConflict:
		return "state_conflict"
	case CategoryResource:
		return "resource"
	case CategoryInternal:
		return "internal"
	default:
		return "none"
	}
}

// Errno defines the error code logic
type Errno struct {
	Code     int
	Message  string
	Category Category
}

func (e Errno) Error() string {
	return e.Message
}

// Is 按错误码匹配，WithMessage 之后的副本仍然 errors.Is 原始错误
func (e Errno) Is(target error) bool {
	var t Errno
	switch typed := target.(type) {
	case Errno:
		t = typed
	case *Errno:
		if typed == nil {
			return false
		}
		t = *typed
	default:
		return false
	}
	return e.Code == t.Code
}

// WithMessage 返回带具体信息的副本
func (e Errno) WithMessage(msg string) Errno {
	e.Message = e.Message + ": " + msg
	return e
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	var typed Errno
	if errors.As(err, &typed) {
		return typed.Code, err.Error()
	}
	var ptr *Errno
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code, err.Error()
	}
	return InternalServerError.Code, err.Error()
}

// CategoryOf 返回错误所属分类，未知错误归为 Internal
func CategoryOf(err error) Category {
	if err == nil {
		return CategoryNone
	}
	var typed Errno
	if errors.As(err, &typed) {
		return typed.Category
	}
	return CategoryInternal
}

// HTTPStatus 将错误分类映射为 HTTP 状态码
func HTTPStatus(err error) int {
	if errors.Is(err, ErrUnauthenticated) {
		return http.StatusUnauthorized
	}
	if errors.Is(err, ErrUnavailable) {
		return http.StatusServiceUnavailable
	}
	switch CategoryOf(err) {
	case CategoryNone:
		return http.StatusOK
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryAuthorization:
		return http.StatusForbidden
	case CategoryTemporal:
		return http.StatusUnprocessableEntity
	case CategoryStateConflict:
		return http.StatusConflict
	case CategoryResource:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error", Category: CategoryInternal}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct", Category: CategoryValidation}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error", Category: CategoryInternal}
	ErrUnavailable      = Errno{Code: 10005, Message: "Dependency unavailable", Category: CategoryInternal}
)

// Validation (20100+)
var (
	ErrLengthMismatch         = Errno{Code: 20101, Message: "declared length does not match payload length", Category: CategoryValidation}
	ErrMalformedPayload       = Errno{Code: 20102, Message: "malformed payload", Category: CategoryValidation}
	ErrInvalidAmount          = Errno{Code: 20103, Message: "amount must be greater than zero", Category: CategoryValidation}
	ErrRequestedAmountExceeds = Errno{Code: 20104, Message: "requested amount exceeds signed amount", Category: CategoryValidation}
	ErrInvalidFeeTable        = Errno{Code: 20105, Message: "invalid fee tier table", Category: CategoryValidation}
)

// Authorization (20200+)
var (
	ErrInvalidSignatureFormat = Errno{Code: 20201, Message: "invalid signature format", Category: CategoryAuthorization}
	ErrUnauthorizedMinter     = Errno{Code: 20202, Message: "signer is not allowed to mint in collection", Category: CategoryAuthorization}
	ErrSignerNotOwner         = Errno{Code: 20203, Message: "signer does not own the token units", Category: CategoryAuthorization}
	ErrUnauthenticated        = Errno{Code: 20204, Message: "missing or invalid credentials", Category: CategoryAuthorization}
	ErrSelfRental             = Errno{Code: 20205, Message: "lender cannot rent to itself", Category: CategoryAuthorization}
)

// Temporal (20300+)
var (
	ErrRequestExpired       = Errno{Code: 20301, Message: "request expired", Category: CategoryTemporal}
	ErrRentalExpirationPast = Errno{Code: 20302, Message: "rental expiration must be in the future", Category: CategoryTemporal}
	ErrRentalNotExpired     = Errno{Code: 20303, Message: "rental not expired", Category: CategoryTemporal}
)

// State conflict (20400+)
var (
	ErrReplayedRequest = Errno{Code: 20401, Message: "request already consumed", Category: CategoryStateConflict}
	ErrDuplicateRental = Errno{Code: 20402, Message: "active rental already exists", Category: CategoryStateConflict}
	ErrNoSuchRental    = Errno{Code: 20403, Message: "no such rental", Category: CategoryStateConflict}
	ErrAlreadySettled  = Errno{Code: 20404, Message: "rental already settled", Category: CategoryStateConflict}
	ErrAmountMismatch  = Errno{Code: 20405, Message: "reclaim amount differs from rented amount", Category: CategoryStateConflict}
	ErrLockBusy        = Errno{Code: 20406, Message: "resource is locked by another operation", Category: CategoryStateConflict}
)

// Resource (20500+)
var (
	ErrInsufficientPayment = Errno{Code: 20501, Message: "insufficient payment balance or allowance", Category: CategoryResource}
	ErrInsufficientBalance = Errno{Code: 20502, Message: "insufficient token balance", Category: CategoryResource}
	ErrUnknownPaymentAsset = Errno{Code: 20503, Message: "unknown payment asset", Category: CategoryResource}
)
