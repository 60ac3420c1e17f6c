package customization

import "errors"

var (
	ErrInvalidSchema           = errors.New("invalid customization schema")
	ErrUnknownGroupKind        = errors.New("unknown selection group kind")
	ErrSelectionLengthMismatch = errors.New("selection length does not match customization items")
	ErrDisabledItemSelected    = errors.New("disabled customization item selected")
	ErrRadioConstraintViolated = errors.New("radio group must have exactly one selected item")
)
