package serving

import (
	"encoding/json"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

var registerTagName sync.Once

// useJSONFieldNames makes validator report json tag names, so that
// FieldError.Field() matches the request body.
func useJSONFieldNames() {
	registerTagName.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// validationDetails converts a binding error into 422 detail entries.
func validationDetails(err error) []ErrorDetail {
	var (
		fieldErrs validator.ValidationErrors
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
	)
	switch {
	case errors.As(err, &fieldErrs):
		details := make([]ErrorDetail, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			d := ErrorDetail{
				Loc:  []any{"body", fe.Field()},
				Msg:  "field required",
				Type: "value_error.missing",
			}
			if fe.Tag() != "required" {
				d.Msg = "failed on " + fe.Tag() + " validation"
				d.Type = "value_error." + fe.Tag()
			}
			details = append(details, d)
		}
		return details

	case errors.As(err, &typeErr) && typeErr.Field == "":
		// the body itself is not an object, e.g. [] or 3
		return []ErrorDetail{{
			Loc:  []any{"body"},
			Msg:  "value is not a valid dict",
			Type: "type_error.dict",
		}}

	case errors.As(err, &typeErr):
		kind := "float"
		if strings.HasPrefix(typeErr.Type.Kind().String(), "int") {
			kind = "integer"
		}
		field := typeErr.Field
		if i := strings.LastIndex(field, "."); i >= 0 {
			field = field[i+1:]
		}
		return []ErrorDetail{{
			Loc:  []any{"body", field},
			Msg:  "value is not a valid " + kind,
			Type: "type_error." + kind,
		}}

	case errors.Is(err, io.EOF):
		return []ErrorDetail{{
			Loc:  []any{"body"},
			Msg:  "field required",
			Type: "value_error.missing",
		}}

	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		loc := []any{"body"}
		if syntaxErr != nil {
			loc = append(loc, syntaxErr.Offset)
		}
		return []ErrorDetail{{
			Loc:  loc,
			Msg:  "JSON decode error",
			Type: "value_error.jsondecode",
		}}
	}

	return []ErrorDetail{{
		Loc:  []any{"body"},
		Msg:  err.Error(),
		Type: "value_error",
	}}
}
