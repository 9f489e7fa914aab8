package handler

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var phonePattern = regexp.MustCompile(`^0\d{9}$`)

// Validator plugs go-playground/validator into echo. Field names in errors
// follow the json tags.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return &Validator{v: v}
}

// Validate implements echo.Validator.
func (cv *Validator) Validate(i any) error {
	if err := cv.v.Struct(i); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

type validationError struct {
	msg     string
	details map[string]string
}

func (e *validationError) Error() string { return e.msg }

func formatValidationErrors(err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &validationError{msg: "validation failed"}
	}
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		details[fe.Field()] = validationMessage(fe)
	}
	return &validationError{msg: "validation failed", details: details}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "phone":
		return "must be 10 digits starting with 0"
	case "oneof":
		return "must be one of: " + fe.Param()
	}
	return "is invalid"
}

// bind decodes the body into dst and validates it.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return &validationError{msg: "invalid request body"}
	}
	return c.Validate(dst)
}
