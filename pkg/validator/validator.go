// Package validator turns go-playground validation failures into field
// messages suitable for API responses.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// FieldError is one rejected request field, named by its JSON key.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var messages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email",
	"uuid":     "must be a valid UUID",
	"oneof":    "must be one of: %s",
	"min":      "must be at least %s characters long",
	"max":      "must not exceed %s characters",
}

var setupOnce sync.Once

// Setup makes gin's binding validator report JSON field names.
func Setup() {
	setupOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(jsonName)
		}
	})
}

func jsonName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}

// Translate returns the field errors carried by err, or false when err is
// not a validation failure.
func Translate(err error) ([]FieldError, bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, false
	}
	out := make([]FieldError, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, FieldError{Field: e.Field(), Message: message(e)})
	}
	return out, true
}

func message(e validator.FieldError) string {
	tmpl, ok := messages[e.Tag()]
	if !ok {
		return fmt.Sprintf("failed on %s", e.Tag())
	}
	if strings.Contains(tmpl, "%s") {
		return fmt.Sprintf(tmpl, e.Param())
	}
	return tmpl
}
