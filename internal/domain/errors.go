package domain

import "errors"

var (
	ErrInvalidID         = errors.New("invalid id")
	ErrInvalidTitle      = errors.New("invalid title")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidColor      = errors.New("invalid color")
	ErrInvalidRecurrence = errors.New("invalid recurrence rule")
	ErrInvalidInterval   = errors.New("invalid recurrence interval")
	ErrInvalidOrder      = errors.New("invalid order")
	ErrEmptyPatch        = errors.New("empty task patch")
	ErrInvalidPreference = errors.New("invalid preference")
)

// IsInvalid reports whether err is one of the input validation errors above.
func IsInvalid(err error) bool {
	for _, target := range []error{
		ErrInvalidID,
		ErrInvalidTitle,
		ErrInvalidDate,
		ErrInvalidColor,
		ErrInvalidRecurrence,
		ErrInvalidInterval,
		ErrInvalidOrder,
		ErrEmptyPatch,
		ErrInvalidPreference,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
