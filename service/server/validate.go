package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxRequestBodySize = 1 << 20 // 1MB

var (
	// 32-byte transaction hash, hex encoded
	hashRegex = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
	// ed25519 public key strkey: 'G' followed by 55 base32 characters
	accountRegex = regexp.MustCompile(`^G[A-Z2-7]{55}$`)
)

// newValidator returns a validator that reports JSON field names and knows
// the Stellar identifier formats.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	v.RegisterValidation("stellar_hash", func(fl validator.FieldLevel) bool {
		return hashRegex.MatchString(fl.Field().String())
	})
	v.RegisterValidation("stellar_account", func(fl validator.FieldLevel) bool {
		return accountRegex.MatchString(fl.Field().String())
	})

	return v
}

// validationMessage turns validator errors into one readable sentence.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "stellar_hash":
			msgs = append(msgs, field+" must be a 64-character hex transaction hash")
		case "stellar_account":
			msgs = append(msgs, field+" must be a 56-character Stellar account ID starting with G")
		case "min", "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "max", "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", ")))
		case "url", "http_url":
			msgs = append(msgs, field+" must be a valid URL")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

// decodeJSON reads a size-limited JSON body into dst and validates it.
// It writes the 400 response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, CodeBadRequest, "request body too large: maximum size is 1MB", http.StatusBadRequest)
			return false
		}
		writeError(w, CodeBadRequest, "invalid request body: must be valid JSON", http.StatusBadRequest)
		return false
	}

	if err := v.Struct(dst); err != nil {
		writeError(w, CodeBadRequest, validationMessage(err), http.StatusBadRequest)
		return false
	}
	return true
}

// validateVar checks a single value, such as a path parameter, and writes
// the 400 response on failure.
func validateVar(w http.ResponseWriter, v *validator.Validate, field, value, tag string) bool {
	if value == "" {
		writeError(w, CodeBadRequest, field+" is required", http.StatusBadRequest)
		return false
	}
	if err := v.Var(value, tag); err != nil {
		// Var errors carry no field name, so the message starts with a space
		writeError(w, CodeBadRequest, field+validationMessage(err), http.StatusBadRequest)
		return false
	}
	return true
}
