package translate

import (
	"errors"
	"fmt"
)

// ErrEmptyTranslation is returned when the provider answers without usable text.
var ErrEmptyTranslation = errors.New("no translation received")

// ProviderError describes a failed provider call. Status is the HTTP status
// code, or 0 when the request never got a response.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s API error: status %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s API error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
