// Package respond holds the JSON plumbing shared by the HTTP handlers:
// request decoding and validation, response encoding and error mapping.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/notcool100/financial-management-system/internal/journal"
	"github.com/notcool100/financial-management-system/internal/loan"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names rather than Go ones.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})

	return v
}

// FieldError is one failed validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned by Decode for malformed or invalid bodies.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Invalid builds a ValidationError for checks done outside the validator.
func Invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Decode reads a JSON body into dst and validates its struct tags.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return Invalid("invalid request body: %v", err)
	}

	return Validate(dst)
}

func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Invalid("invalid request: %v", err)
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Message: message(fe)})
	}

	return &ValidationError{Message: "request validation failed", Fields: fields}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a UUID"
	case "numeric":
		return "must be numeric"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "datetime":
		return "must be a date formatted as " + fe.Param()
	}

	return "is invalid"
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

type errorBody struct {
	Error  string       `json:"error"`
	Fields []FieldError `json:"fields,omitempty"`
}

// Error maps err onto an HTTP status and writes it as {"error": "..."}.
// Unrecognised errors are logged and reported as a bare 500.
func Error(w http.ResponseWriter, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		JSON(w, http.StatusBadRequest, errorBody{Error: verr.Message, Fields: verr.Fields})
		return
	}

	status := Status(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		JSON(w, status, errorBody{Error: "internal error"})

		return
	}

	JSON(w, status, errorBody{Error: err.Error()})
}

var statusByErr = []struct {
	err    error
	status int
}{
	{loan.ErrInvalidLoanParameters, http.StatusBadRequest},
	{loan.ErrInvalidPayment, http.StatusBadRequest},
	{loan.ErrInsufficientPaymentAmount, http.StatusBadRequest},
	{journal.ErrUnbalancedEntry, http.StatusBadRequest},
	{journal.ErrInvalidEntry, http.StatusBadRequest},
	{journal.ErrInvalidAccount, http.StatusBadRequest},

	{loan.ErrNotFound, http.StatusNotFound},
	{loan.ErrInstallmentNotFound, http.StatusNotFound},
	{journal.ErrAccountNotFound, http.StatusNotFound},
	{journal.ErrEntryNotFound, http.StatusNotFound},

	{loan.ErrInvalidStateTransition, http.StatusConflict},
	{loan.ErrInstallmentAlreadyPaid, http.StatusConflict},
	{journal.ErrAlreadyPosted, http.StatusConflict},
	{journal.ErrDuplicateAccountCode, http.StatusConflict},
	{journal.ErrAccountInactive, http.StatusConflict},
}

// Status returns the HTTP status for a domain error. Persistence failures and
// unknown errors are 500.
func Status(err error) int {
	if errors.Is(err, loan.ErrPersistence) || errors.Is(err, journal.ErrPersistence) {
		return http.StatusInternalServerError
	}

	for _, m := range statusByErr {
		if errors.Is(err, m.err) {
			return m.status
		}
	}

	return http.StatusInternalServerError
}

// Money renders a decimal with exactly two fraction digits, as a JSON string.
type Money decimal.Decimal

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(decimal.Decimal(m).StringFixed(2))
}

// ParseDecimal parses an optional decimal field; "" yields zero.
func ParseDecimal(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ValidationError{
			Message: "request validation failed",
			Fields:  []FieldError{{Field: field, Message: "must be numeric"}},
		}
	}

	return d, nil
}
