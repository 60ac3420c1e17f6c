package order

import (
	"errors"

	"foodorder-be/internal/customization"
)

var (
	ErrEmptyOrder             = errors.New("order must not be empty")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidMealReference   = errors.New("invalid meal reference")
	ErrInvalidPaymentType     = errors.New("invalid payment type")
	ErrInvalidDeliveryMethod  = errors.New("invalid delivery method")
	ErrInvalidState           = errors.New("invalid order state")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrStateConflict          = errors.New("order state changed concurrently")
	ErrOrderNotFound          = errors.New("order not found")
)

var validationErrors = []error{
	ErrEmptyOrder,
	ErrInvalidQuantity,
	ErrInvalidMealReference,
	ErrInvalidPaymentType,
	ErrInvalidDeliveryMethod,
	ErrInvalidState,
	ErrInvalidStateTransition,
	customization.ErrInvalidSchema,
	customization.ErrUnknownGroupKind,
	customization.ErrSelectionLengthMismatch,
	customization.ErrDisabledItemSelected,
	customization.ErrRadioConstraintViolated,
}

// IsValidationError reports whether err is a caller-recoverable rejection
// of the request rather than a storage fault.
func IsValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// rejectionReason is the metrics label for a rejected request.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyOrder):
		return "empty_order"
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, ErrInvalidMealReference):
		return "invalid_meal_reference"
	case errors.Is(err, ErrInvalidPaymentType), errors.Is(err, ErrInvalidDeliveryMethod):
		return "invalid_request"
	case errors.Is(err, customization.ErrInvalidSchema), errors.Is(err, customization.ErrUnknownGroupKind):
		return "invalid_schema"
	case errors.Is(err, customization.ErrSelectionLengthMismatch):
		return "selection_length_mismatch"
	case errors.Is(err, customization.ErrDisabledItemSelected):
		return "disabled_item_selected"
	case errors.Is(err, customization.ErrRadioConstraintViolated):
		return "radio_constraint_violated"
	}
	return "storage"
}
