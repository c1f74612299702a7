package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	playground "github.com/go-playground/validator/v10"
)

// fieldErrors maps a request field (by its json name) to the messages for
// every rule it failed.
type fieldErrors map[string][]string

type validator struct {
	inner *playground.Validate
}

func newValidator() *validator {
	v := playground.New(playground.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &validator{inner: v}
}

// check evaluates every field rule synchronously and returns nil when the
// request is valid.
func (v *validator) check(req interface{}) fieldErrors {
	err := v.inner.Struct(req)
	if err == nil {
		return nil
	}

	var verrs playground.ValidationErrors
	if !errors.As(err, &verrs) {
		return fieldErrors{"request": {"The request is invalid."}}
	}

	errs := make(fieldErrors, len(verrs))
	for _, fe := range verrs {
		errs[fe.Field()] = append(errs[fe.Field()], fieldMessage(fe))
	}
	return errs
}

func fieldMessage(fe playground.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", fe.Field())
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", fe.Field())
	case "len":
		return fmt.Sprintf("The %s must be %s digits.", fe.Field(), fe.Param())
	case "numeric":
		return fmt.Sprintf("The %s must contain only digits.", fe.Field())
	case "oneof":
		options := strings.Join(strings.Fields(fe.Param()), ", ")
		return fmt.Sprintf("The %s must be one of: %s.", fe.Field(), options)
	case "eqfield":
		return fmt.Sprintf("The %s must match the %s.", fe.Field(), strings.ToLower(fe.Param()))
	case "min":
		return fmt.Sprintf("The %s must not be empty.", fe.Field())
	default:
		return fmt.Sprintf("The %s field is invalid.", fe.Field())
	}
}
