package preferences

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one rejected field using its JSON path, e.g.
// "recognition.confidenceThreshold".
type FieldError struct {
	Field string      `json:"field"`
	Rule  string      `json:"rule"`
	Param string      `json:"param,omitempty"`
	Value interface{} `json:"value"`
}

func (e FieldError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: failed %s=%s (got %v)", e.Field, e.Rule, e.Param, e.Value)
	}
	return fmt.Sprintf("%s: failed %s (got %v)", e.Field, e.Rule, e.Value)
}

// ValidationError is returned when an update is rejected. The store keeps its
// previous state in that case.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return "invalid preferences: " + strings.Join(msgs, "; ")
}

// Has reports whether the named field was rejected.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func NewValidator() *validator.Validate {
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

// Validate checks p against its documented ranges.
func Validate(v *validator.Validate, p Preferences) error {
	err := v.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		out.Fields = append(out.Fields, FieldError{
			Field: field,
			Rule:  fe.Tag(),
			Param: fe.Param(),
			Value: fe.Value(),
		})
	}
	return out
}
