package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Init configures Gin's validator: errors are keyed by JSON (or form) field
// name and the "pwd" alias enforces the password length floor.
// Call once before the router serves requests.
func Init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(fieldName)
	v.RegisterAlias("pwd", "min=8,max=128")
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return fl.Field().Kind() != reflect.String || strings.TrimSpace(fl.Field().String()) != ""
	})
}

func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

// ToDetails turns a binding error into field -> message pairs for the
// error section of the response envelope.
func ToDetails(err error) map[string]string {
	if err == nil {
		return nil
	}
	var (
		se    *json.SyntaxError
		ute   *json.UnmarshalTypeError
		verrs validator.ValidationErrors
	)
	switch {
	case errors.Is(err, io.EOF):
		return map[string]string{"payload": "request body is empty"}
	case errors.As(err, &se):
		return map[string]string{"payload": "invalid json"}
	case errors.As(err, &ute):
		return map[string]string{ute.Field: "has the wrong type"}
	case errors.As(err, &verrs):
		out := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			out[fe.Field()] = message(fe)
		}
		return out
	}
	return map[string]string{"payload": "invalid payload"}
}

var fixedMessages = map[string]string{
	"required": "is required",
	"notblank": "must not be blank",
	"email":    "must be a valid email",
	"url":      "must be a valid URL",
	"uuid":     "must be a valid UUID",
	"pwd":      "must be between 8 and 128 characters",
}

func message(fe validator.FieldError) string {
	if m, ok := fixedMessages[fe.Tag()]; ok {
		return m
	}
	p := fe.Param()
	unit := " characters long"
	if fe.Kind() != reflect.String {
		unit = ""
	}
	switch fe.Tag() {
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(p), ", ")
	case "len":
		return "must be exactly " + p + unit
	case "min":
		return "must be at least " + p + unit
	case "max":
		return "must be at most " + p + unit
	}
	if p != "" {
		return fmt.Sprintf("failed %q (%s)", fe.Tag(), p)
	}
	return fmt.Sprintf("failed %q", fe.Tag())
}
