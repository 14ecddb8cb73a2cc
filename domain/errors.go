package domain

import "errors"

var (
	ErrInsufficientStock        = errors.New("insufficient stock")
	ErrOverReturn               = errors.New("return quantity exceeds remaining returnable")
	ErrUnknownInvoiceOrMedicine = errors.New("no sale for invoice and medicine")
	ErrInvalidQuantityOrPrice   = errors.New("invalid quantity or price")
	ErrStorageUnavailable       = errors.New("storage unavailable")
	ErrMedicineNotFound         = errors.New("medicine not found")
	ErrInvalidFilter            = errors.New("invalid filter")
)
