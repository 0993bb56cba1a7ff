package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/geocoder89/accounts/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

var (
	registerOnce sync.Once
	registerErr  error
)

// RegisterValidators teaches gin's validator the extra rules used by request
// structs and makes field errors report JSON names. Safe to call repeatedly.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("gin validator engine is not go-playground/validator")
			return
		}

		v.RegisterTagNameFunc(jsonTagName)

		if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
			registerErr = err
			return
		}

		registerErr = v.RegisterValidation("bcryptmax", fitsBcrypt)
	})

	return registerErr
}

// fitsBcrypt counts bytes, not runes: bcrypt refuses anything past 72.
func fitsBcrypt(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= security.MaxPasswordBytes
}

func jsonTagName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return sf.Name
	}
	return name
}

func BindJSON(ctx *gin.Context, out interface{}) bool {
	if err := RegisterValidators(); err != nil {
		_ = ctx.Error(err)
		RespondInternal(ctx, "Could not validate request")
		return false
	}

	err := ctx.ShouldBindJSON(out)
	if err == nil {
		return true
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		RespondError(ctx, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body is too large.", nil)
		return false
	}

	RespondBadRequest(ctx, "Invalid request body", parseBindError(err))

	return false
}

func parseBindError(err error) interface{} {
	// validator errors (struct bind tags)
	var validationErrors validator.ValidationErrors

	if errors.As(err, &validationErrors) {
		fields := make([]FieldError, 0, len(validationErrors))

		for _, fe := range validationErrors {
			rule := fe.Tag()
			param := fe.Param()

			fields = append(fields, FieldError{
				Field:   fieldPath(fe),
				Rule:    rule,
				Param:   param,
				Message: validationMessage(rule, param, fe.Kind()),
			})
		}
		return gin.H{"fields": fields}
	}

	if errors.Is(err, io.EOF) {
		return gin.H{"json": "empty_body"}
	}

	// in the event of bad json
	var syntaxError *json.SyntaxError

	if errors.As(err, &syntaxError) || errors.Is(err, io.ErrUnexpectedEOF) {
		return gin.H{"json": "invalid_json_syntax"}
	}

	// in the event of a type mismatch
	var typeError *json.UnmarshalTypeError

	if errors.As(err, &typeError) {
		field := strings.TrimSpace(typeError.Field)

		return gin.H{
			"json":  "invalid_json_type",
			"field": field,
			"fields": []FieldError{
				{
					Field:   field,
					Rule:    "type",
					Message: fmt.Sprintf("must be of type %s", typeError.Type.String()),
				},
			},
		}
	}

	// final fallback if the error could not be deciphered
	return gin.H{"reason": err.Error()}
}

// fieldPath drops the root struct name from the namespace, e.g.
// "CreateUserRequest.email" becomes "email".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()

	if _, rest, found := strings.Cut(ns, "."); found && rest != "" {
		return rest
	}

	return fe.Field()
}

func validationMessage(rule, param string, kind reflect.Kind) string {
	unit := ""
	if kind == reflect.String {
		unit = " characters"
	}

	switch rule {
	case "required":
		return "This field is required."
	case "notblank":
		return "This field may not be blank."
	case "email":
		return "Enter a valid email address."
	case "min":
		return "Ensure this field has at least " + param + unit + "."
	case "max":
		return "Ensure this field has no more than " + param + unit + "."
	case "bcryptmax":
		return "Ensure this field has no more than " + strconv.Itoa(security.MaxPasswordBytes) + " bytes."
	case "oneof":
		return "Must be one of " + strings.ReplaceAll(param, " ", ", ") + "."
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
