package recordstore

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/tiwaz/internal/apperr"
	"github.com/starford/tiwaz/internal/models"
)

// Validator checks a record's full field map before the store commits a
// create or update. Implementations never mutate the map.
type Validator interface {
	Validate(fields map[string]any) error
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(fields map[string]any) error

// Validate implements Validator.
func (f ValidatorFunc) Validate(fields map[string]any) error { return f(fields) }

// mapValidator wraps an ozzo map rule for one kind.
type mapValidator struct {
	kind models.Kind
	rule validation.MapRule
}

func (v mapValidator) Validate(fields map[string]any) error {
	return toValidationError(v.kind, validation.Validate(fields, v.rule))
}

// stringList accepts absent values, []string, and []any holding only strings.
var stringList = validation.By(func(value interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []string:
		return nil
	case []any:
		for _, e := range v {
			if _, ok := e.(string); !ok {
				return errors.New("must contain only strings")
			}
		}
		return nil
	default:
		return errors.New("must be a list of strings")
	}
})

// stringOnly accepts absent values and plain strings.
var stringOnly = validation.By(func(value interface{}) error {
	if value == nil {
		return nil
	}
	if _, ok := value.(string); !ok {
		return errors.New("must be a string")
	}
	return nil
})

// ratingRange accepts JSON numbers (float64) and Go ints in [1, 5].
var ratingRange = validation.By(func(value interface{}) error {
	var n float64
	switch v := value.(type) {
	case float64:
		n = v
	case int:
		n = float64(v)
	default:
		return errors.New("must be a number")
	}
	if n < 1 || n > 5 {
		return errors.New("must be between 1 and 5")
	}
	return nil
})

// DefaultValidators returns the kind→validator registry built at startup.
// Each validator allows extra keys so kinds stay open for ad hoc fields;
// only the invariant fields per kind are enforced.
func DefaultValidators() map[models.Kind]Validator {
	return map[models.Kind]Validator{
		models.KindClient: mapValidator{models.KindClient, validation.Map(
			validation.Key("name", validation.Required),
			validation.Key("contact", is.Email).Optional(),
		).AllowExtraKeys()},

		models.KindCaseFile: mapValidator{models.KindCaseFile, validation.Map(
			validation.Key("title", validation.Required),
			validation.Key("client", validation.Required),
			validation.Key("adverse_parties", stringList).Optional(),
			validation.Key("jurisdiction", stringOnly).Optional(),
		).AllowExtraKeys()},

		models.KindContract: mapValidator{models.KindContract, validation.Map(
			validation.Key("title", validation.Required),
			validation.Key("counterparty", validation.Required),
		).AllowExtraKeys()},

		models.KindNote: mapValidator{models.KindNote, validation.Map(
			validation.Key("text", validation.Required),
		).AllowExtraKeys()},

		// Feedback arrives from two flows: counsel ratings (carry a rating)
		// and collected training examples (carry data/label). Neither field
		// set is required, but a rating present must be in range.
		models.KindFeedback: mapValidator{models.KindFeedback, validation.Map(
			validation.Key("rating", ratingRange).Optional(),
			validation.Key("comments", validation.Length(0, 4000)).Optional(),
		).AllowExtraKeys()},

		models.KindGuideline: mapValidator{models.KindGuideline, validation.Map(
			validation.Key("reference", validation.Required),
			validation.Key("text", validation.Required),
		).AllowExtraKeys()},
	}
}

// toValidationError converts an ozzo validation result into the shared
// apperr.ValidationError shape, keyed by field name.
func toValidationError(kind models.Kind, err error) error {
	if err == nil {
		return nil
	}
	fields := make(map[string]string)
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for name, ferr := range verrs {
			fields[fmt.Sprint(name)] = ferr.Error()
		}
	} else {
		fields["fields"] = err.Error()
	}
	return &apperr.ValidationError{Kind: string(kind), Fields: fields}
}
