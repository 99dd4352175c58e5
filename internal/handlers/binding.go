package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/kosarica/catalog-service/internal/apperror"
	"github.com/kosarica/catalog-service/internal/catalog"
)

var registerValidation sync.Once

// setupValidator makes validation errors name fields by their json or form
// key and adds the entityid rule (a UUID in any case).
func setupValidator() {
	registerValidation.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, key := range []string{"json", "form"} {
				if name, _, _ := strings.Cut(f.Tag.Get(key), ","); name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
		_ = v.RegisterValidation("entityid", func(fl validator.FieldLevel) bool {
			return catalog.ValidEntityID(fl.Field().String())
		})
	})
}

// bindJSON binds a request body. A malformed body or a member of the wrong
// type is a client error; a missing or empty required member is a
// validation error. Type errors win because decoding runs before validation.
func bindJSON(c *gin.Context, obj any) error {
	setupValidator()
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &verrs):
		name := verrs[0].Field()
		return apperror.Validation(fmt.Sprintf("Field '%s' is required.", name)).With("field", name)
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return apperror.Client(fmt.Sprintf("Field '%s' must be a %s.", typeErr.Field, typeErr.Type.Kind())).
			With("field", typeErr.Field)
	default:
		return apperror.Client("Request body must be a JSON object.")
	}
}

// bindQuery binds query parameters. A value that fails to parse or validate
// is reported as a client error with the message registered for its
// parameter in messages.
func bindQuery(c *gin.Context, obj any, messages map[string]string) error {
	setupValidator()
	err := c.ShouldBindQuery(obj)
	if err == nil {
		return nil
	}

	var param string
	var verrs validator.ValidationErrors
	var numErr *strconv.NumError
	switch {
	case errors.As(err, &verrs):
		param = verrs[0].Field()
	case errors.As(err, &numErr):
		for name := range messages {
			if c.Query(name) == numErr.Num {
				param = name
				break
			}
		}
	}
	msg, ok := messages[param]
	if !ok {
		return apperror.Client("Query parameters are invalid.")
	}
	return apperror.Client(msg).With(param, c.Query(param))
}
