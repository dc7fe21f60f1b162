package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrSoldOut          = errors.New("sold out")
	ErrAlreadyRedeemed  = errors.New("voucher already redeemed")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnavailable      = errors.New("store unavailable")
	ErrInvalidSignature = errors.New("invalid callback signature")
	ErrExternalService  = errors.New("external service failure")
)
