package canteenadvisor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalidIntent is returned before retrieval when the intent is malformed.
	ErrInvalidIntent = errors.New("invalid intent")
	// ErrRetrievalUnavailable wraps failures of the similarity-search capability.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrGenerationUnavailable wraps failures of the text-generation capability.
	ErrGenerationUnavailable = errors.New("generation unavailable")
)

// validate is safe for concurrent use and caches struct metadata.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the intent's required and enumerated fields.
func (i UserIntent) Validate() error {
	if err := validate.Struct(i); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidIntent, describe(err))
	}
	return nil
}

// Validate checks a catalog item's identity and numeric fields.
func (f FoodItem) Validate() error {
	return validate.Struct(f)
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fe.Value()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		}
	}
	return strings.Join(parts, "; ")
}
