package serializers

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// NonFieldErrors is the key used for errors not tied to a single field.
const NonFieldErrors = "non_field_errors"

// RegisterValidators installs the custom rules and json field naming on
// gin's validator engine. Safe to call more than once.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v.RegisterValidation("notblank", validators.NotBlank)
}

// FieldErrors converts a binding error into per-field messages.
func FieldErrors(err error) map[string][]string {
	out := map[string][]string{}

	var verrs validator.ValidationErrors
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &verrs):
		for _, fe := range verrs {
			field := fe.Field()
			out[field] = append(out[field], message(fe))
		}
	case errors.As(err, &typeErr):
		if typeErr.Field == "" {
			out[NonFieldErrors] = append(out[NonFieldErrors],
				fmt.Sprintf("Invalid data. Expected a dictionary, but got %s.", jsonKind(typeErr.Value)))
			break
		}
		out[typeErr.Field] = append(out[typeErr.Field], fmt.Sprintf("Expected a %s.", typeErr.Type.Kind()))
	case errors.As(err, &syntaxErr):
		out[NonFieldErrors] = append(out[NonFieldErrors], "JSON parse error: "+syntaxErr.Error())
	default:
		out[NonFieldErrors] = append(out[NonFieldErrors], err.Error())
	}
	return out
}

// jsonKind names the offending JSON value the way API clients know it.
func jsonKind(value string) string {
	switch value {
	case "array":
		return "list"
	case "string", "number", "bool":
		return value
	default:
		return "a non-object value"
	}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "notblank":
		return "This field may not be blank."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	default:
		return fmt.Sprintf("Failed on the %q rule.", fe.Tag())
	}
}
