package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxRequestBodySize = 1 << 20 // 1MB

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

// errBodyTooLarge is returned by decodeBody after it has answered 413.
var errBodyTooLarge = errors.New("request body too large")

// decodeRequest reads a JSON body into dst and validates it. On failure it
// writes the error response and returns false.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeBody(w, r, dst); err != nil {
		if !errors.Is(err, errBodyTooLarge) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		}
		return false
	}
	return validateRequest(w, dst)
}

// decodeBody reads a JSON body into dst. An oversized body is answered
// with 413 here; other decode errors are left to the caller.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "request body too large")
			return errBodyTooLarge
		}
		return err
	}
	return nil
}

func validateRequest(w http.ResponseWriter, dst any) bool {
	if err := validate.Struct(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, name+" is required")
		case "required_without":
			msgs = append(msgs, fmt.Sprintf("%s or %s is required", name, strings.ToLower(fe.Param())))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s exceeds %s characters", name, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", name, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
