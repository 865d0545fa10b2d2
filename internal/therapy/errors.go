// Package therapy turns glucose patterns into suggested insulin-therapy adjustments
package therapy

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData is returned when the reading series is empty
	ErrNoData = errors.New("no glucose readings to analyze")
	// ErrInsufficientData is returned when there are fewer readings than the analysis window needs
	ErrInsufficientData = errors.New("insufficient glucose data")
	// ErrInvalidProfile is returned when a required profile segment list is missing or malformed
	ErrInvalidProfile = errors.New("invalid therapy profile")
)

// InsufficientDataError carries the sample counts behind ErrInsufficientData
type InsufficientDataError struct {
	Readings int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient glucose data: need at least %d readings, found %d", e.Required, e.Readings)
}

// Is reports whether target is ErrInsufficientData
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// InvalidProfileError names the profile field that could not be used
type InvalidProfileError struct {
	Field string
	Err   error
}

func (e *InvalidProfileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid therapy profile: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid therapy profile: %s has no segments", e.Field)
}

// Is reports whether target is ErrInvalidProfile
func (e *InvalidProfileError) Is(target error) bool {
	return target == ErrInvalidProfile
}

func (e *InvalidProfileError) Unwrap() error {
	return e.Err
}
