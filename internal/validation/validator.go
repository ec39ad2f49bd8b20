package validation

import (
	"reflect"
	"regexp"

	"github.com/go-playground/validator/v10"
)

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New()

	phoneRegex := regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		return phoneRegex.MatchString(value)
	})

	yearRegex := regexp.MustCompile(`^(19|20)[0-9]{2}$`)
	v.RegisterValidation("modelyear", func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() == reflect.String {
			return yearRegex.MatchString(fl.Field().String())
		}
		year := fl.Field().Int()
		return year >= 1900 && year <= 2100
	})

	return &Validator{v: v}
}

func (v *Validator) Struct(s interface{}) error {
	return v.v.Struct(s)
}

func (v *Validator) ValidationErrors(err error) validator.ValidationErrors {
	if err == nil {
		return nil
	}
	if ve, ok := err.(validator.ValidationErrors); ok {
		return ve
	}
	return nil
}
