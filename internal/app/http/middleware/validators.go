package middleware

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"saas-billing/internal/domain/plans"
)

// RegisterValidators installs the billing tags on gin's binding engine:
// plan_slug (a known plan id) and billing_cycle (monthly or yearly).
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected binding validator engine")
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("plan_slug", func(fl validator.FieldLevel) bool {
		_, ok := plans.ParseID(fl.Field().String())
		return ok
	}); err != nil {
		return err
	}
	return v.RegisterValidation("billing_cycle", func(fl validator.FieldLevel) bool {
		_, ok := plans.ParseBillingCycle(fl.Field().String())
		return ok
	})
}

// BindingMessage renders a bind error for API clients.
func BindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Malformed request body"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "plan_slug":
		return fmt.Sprintf("%s must be one of free, starter, pro", fe.Field())
	case "billing_cycle":
		return fmt.Sprintf("%s must be monthly or yearly", fe.Field())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}
