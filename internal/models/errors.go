package models

import "errors"

// Error taxonomy shared by every component. Call sites wrap these with
// fmt.Errorf("%w: ...") so callers can match with errors.Is.
var (
	ErrUnauthorized              = errors.New("unauthorized")
	ErrNotFound                  = errors.New("not found")
	ErrInvalidState              = errors.New("invalid state")
	ErrInsufficientFunds         = errors.New("insufficient funds")
	ErrInsufficientOfferQuantity = errors.New("insufficient offer quantity")
	ErrInvalidAsset              = errors.New("invalid asset")
	ErrTooEarly                  = errors.New("too early")
	ErrPolicyViolation           = errors.New("policy violation")
)

var rejections = []error{
	ErrUnauthorized, ErrNotFound, ErrInvalidState, ErrInsufficientFunds,
	ErrInsufficientOfferQuantity, ErrInvalidAsset, ErrTooEarly, ErrPolicyViolation,
}

// IsRejection reports whether err is a business rule refusal rather than an
// infrastructure failure. Retrying a rejected request gives the same answer.
func IsRejection(err error) bool {
	for _, r := range rejections {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}
