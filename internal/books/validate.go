package books

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	bherrors "github.com/lepinkainen/bookhound/internal/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateProfile checks a profile's fields and returns a ValidationError
// describing the first problem found.
func ValidateProfile(p Profile) error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return bherrors.NewValidationError(strings.TrimPrefix(fe.Namespace(), "Profile."), describe(fe))
		}
		return bherrors.NewValidationError("profile", err.Error())
	}
	if p.PriceCeiling.IsNegative() {
		return bherrors.NewValidationError("price_ceiling", "must not be negative")
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "uppercase":
		return "must be uppercase"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
