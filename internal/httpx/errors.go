package httpx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ErrorCode string

const ErrForbidden ErrorCode = "forbidden"

type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// Message renders the field error for display next to a form input.
func (f FieldError) Message() string {
	switch f.Rule {
	case "required":
		return fmt.Sprintf("%s is required", f.Field)
	case "max":
		return fmt.Sprintf("%s allows at most %s", f.Field, f.Param)
	case "min":
		return fmt.Sprintf("%s needs at least %s", f.Field, f.Param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", f.Field, f.Param)
	case "number", "numeric":
		return fmt.Sprintf("%s must be a whole number", f.Field)
	case "recordid":
		return fmt.Sprintf("%s must be a record id", f.Field)
	case "datetime":
		return fmt.Sprintf("%s must match %s", f.Field, f.Param)
	case "unique":
		return fmt.Sprintf("%s must not repeat values", f.Field)
	case "gt", "gte":
		return fmt.Sprintf("%s must be a positive number", f.Field)
	case "invalid":
		return f.Param
	default:
		return fmt.Sprintf("%s is invalid (%s)", f.Field, f.Rule)
	}
}

type ErrorResponse[T any] struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details T         `json:"details,omitempty"`
}

func ValidationDetails(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "", Rule: "invalid", Param: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, FieldError{
			Field: e.Field(),
			Rule:  e.Tag(),
			Param: e.Param(),
		})
	}
	return out
}

// FieldMessages indexes the display messages by field name; the first
// failing rule wins for each field. Element errors ("days[1]") are filed
// under their slice ("days").
func FieldMessages(fields []FieldError) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		name, _, _ := strings.Cut(f.Field, "[")
		if _, ok := out[name]; !ok {
			out[name] = f.Message()
		}
	}
	return out
}
