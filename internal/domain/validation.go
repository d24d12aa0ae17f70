package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type Reason string

const (
	ReasonMissing      Reason = "missing"
	ReasonWrongType    Reason = "wrong_type"
	ReasonInvalidEmail Reason = "invalid_email"
	ReasonTooLong      Reason = "too_long"
	ReasonNotPositive  Reason = "not_positive"
	ReasonTooPrecise   Reason = "too_precise"
	ReasonOutOfRange   Reason = "out_of_range"
	ReasonInvalid      Reason = "invalid"
)

type FieldError struct {
	Field   string `json:"field"`
	Reason  Reason `json:"reason"`
	Message string `json:"message"`
}

// ValidationError lists every field of a DealInput that failed validation.
type ValidationError struct {
	Fields []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "invalid deal input: " + strings.Join(parts, "; ")
}

// HasField reports whether field failed validation.
func (e *ValidationError) HasField(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Amounts are stored as NUMERIC(12,2).
const (
	amountScale         = 2
	amountIntegerDigits = 10
	// longest JSON number accepted for an amount, zero padding included
	maxAmountLiteral = 32
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// ValidateDealInput checks in against the deal rules and returns a
// *ValidationError naming every violated field, or nil.
func ValidateDealInput(in DealInput) error {
	out := &ValidationError{}

	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("failed to validate deal input: %w", err)
		}
		for _, fe := range verrs {
			out.Fields = append(out.Fields, toFieldError(fe))
		}
	}

	if in.Amount != nil {
		if fe := validateAmount(*in.Amount); fe != nil {
			out.Fields = append(out.Fields, *fe)
		}
	}

	if len(out.Fields) == 0 {
		return nil
	}
	return out
}

func toFieldError(fe validator.FieldError) FieldError {
	field := fe.Field()

	switch fe.Tag() {
	case "required":
		return FieldError{Field: field, Reason: ReasonMissing, Message: "is required"}
	case "email":
		return FieldError{Field: field, Reason: ReasonInvalidEmail, Message: "must be a valid email address"}
	case "max":
		return FieldError{Field: field, Reason: ReasonTooLong, Message: fmt.Sprintf("must be at most %s characters", fe.Param())}
	default:
		return FieldError{Field: field, Reason: ReasonInvalid, Message: fmt.Sprintf("failed %q check", fe.Tag())}
	}
}

// validateAmount works on the coefficient and exponent only. Converting or
// comparing decimals rescales them, which costs 10^|exponent|.
func validateAmount(d decimal.Decimal) *FieldError {
	if d.Sign() <= 0 {
		return &FieldError{Field: "amount", Reason: ReasonNotPositive, Message: "must be greater than zero"}
	}

	digits := d.Coefficient().String()
	significant := strings.TrimRight(digits, "0")
	exp := int64(d.Exponent()) + int64(len(digits)-len(significant))

	if exp < -amountScale {
		return &FieldError{
			Field:   "amount",
			Reason:  ReasonTooPrecise,
			Message: fmt.Sprintf("must have at most %d decimal places", amountScale),
		}
	}
	if int64(len(significant))+exp > amountIntegerDigits {
		return &FieldError{
			Field:   "amount",
			Reason:  ReasonOutOfRange,
			Message: fmt.Sprintf("must be less than 1e%d", amountIntegerDigits),
		}
	}
	return nil
}

// dealInputWire is the accepted JSON shape. Every field is kept raw so that
// each value of the wrong type is reported as its own field error.
type dealInputWire struct {
	Name   json.RawMessage `json:"name"`
	Email  json.RawMessage `json:"email"`
	Amount json.RawMessage `json:"amount"`
}

// DecodeDealInput parses a JSON payload into a validated DealInput. Unknown
// keys, including id and createdAt, are ignored.
func DecodeDealInput(raw []byte) (DealInput, error) {
	var wire dealInputWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return DealInput{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	var in DealInput
	var fields []FieldError
	wrongType := make(map[string]bool)

	if name, err := parseString(wire.Name); err != nil {
		wrongType["name"] = true
		fields = append(fields, FieldError{Field: "name", Reason: ReasonWrongType, Message: "must be a string"})
	} else {
		in.Name = name
	}

	if email, err := parseString(wire.Email); err != nil {
		wrongType["email"] = true
		fields = append(fields, FieldError{Field: "email", Reason: ReasonWrongType, Message: "must be a string"})
	} else {
		in.Email = email
	}

	amount, ok, err := parseAmount(wire.Amount)
	switch {
	case errors.Is(err, errAmountLiteralTooLong):
		wrongType["amount"] = true
		fields = append(fields, FieldError{
			Field:   "amount",
			Reason:  ReasonOutOfRange,
			Message: fmt.Sprintf("must be written in at most %d characters", maxAmountLiteral),
		})
	case err != nil:
		wrongType["amount"] = true
		fields = append(fields, FieldError{Field: "amount", Reason: ReasonWrongType, Message: "must be a number"})
	case ok:
		in.Amount = &amount
	}

	if err := ValidateDealInput(in); err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			return DealInput{}, err
		}
		for _, f := range verr.Fields {
			// a field with the wrong type is reported once
			if wrongType[f.Field] {
				continue
			}
			fields = append(fields, f)
		}
	}

	if len(fields) > 0 {
		return DealInput{}, &ValidationError{Fields: fields}
	}
	return in, nil
}

// parseString reads a JSON string. Absent and null values read as "".
func parseString(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", nil
	}
	if !strings.HasPrefix(trimmed, `"`) {
		return "", fmt.Errorf("not a string")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return s, nil
}

var errAmountLiteralTooLong = errors.New("amount literal too long")

// parseAmount reads a JSON number. Absent and null amounts report ok=false.
func parseAmount(raw json.RawMessage) (decimal.Decimal, bool, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return decimal.Decimal{}, false, nil
	}
	if c := trimmed[0]; c != '-' && (c < '0' || c > '9') {
		return decimal.Decimal{}, false, fmt.Errorf("amount is not a number")
	}
	if len(trimmed) > maxAmountLiteral {
		return decimal.Decimal{}, false, errAmountLiteralTooLong
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, false, err
	}
	return d, true, nil
}
