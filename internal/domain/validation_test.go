package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func requireValidationError(t *testing.T, err error) *ValidationError {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
	return verr
}

func reasons(verr *ValidationError) map[string]Reason {
	out := make(map[string]Reason, len(verr.Fields))
	for _, f := range verr.Fields {
		out[f.Field] = f.Reason
	}
	return out
}

func TestValidateDealInput(t *testing.T) {
	tests := []struct {
		name  string
		input DealInput
		want  map[string]Reason
	}{
		{
			name:  "valid without amount",
			input: DealInput{Name: "Ada", Email: "ada@x.com"},
		},
		{
			name:  "valid with amount",
			input: DealInput{Name: "Ada", Email: "ada@x.com", Amount: amount("1200.50")},
		},
		{
			name:  "empty name and invalid email are both reported",
			input: DealInput{Name: "", Email: "not-an-email"},
			want:  map[string]Reason{"name": ReasonMissing, "email": ReasonInvalidEmail},
		},
		{
			name:  "missing email",
			input: DealInput{Name: "Ada"},
			want:  map[string]Reason{"email": ReasonMissing},
		},
		{
			name:  "zero amount",
			input: DealInput{Name: "Ada", Email: "ada@x.com", Amount: amount("0")},
			want:  map[string]Reason{"amount": ReasonNotPositive},
		},
		{
			name:  "largest storable amount",
			input: DealInput{Name: "Ada", Email: "ada@x.com", Amount: amount("9999999999.99")},
		},
		{
			name:  "smallest storable amount",
			input: DealInput{Name: "Ada", Email: "ada@x.com", Amount: amount("0.01")},
		},
		{
			name:  "trailing zeros do not count as decimal places",
			input: DealInput{Name: "Ada", Email: "ada@x.com", Amount: amount("12.5000")},
		},
		{
			name:  "amount too large for the store",
			input: DealInput{Name: "Ada", Email: "ada@x.com", Amount: amount("10000000000")},
			want:  map[string]Reason{"amount": ReasonOutOfRange},
		},
		{
			name:  "amount below a cent",
			input: DealInput{Name: "Ada", Email: "ada@x.com", Amount: amount("0.001")},
			want:  map[string]Reason{"amount": ReasonTooPrecise},
		},
		{
			name:  "amount with three decimal places",
			input: DealInput{Name: "Ada", Email: "ada@x.com", Amount: amount("1.234")},
			want:  map[string]Reason{"amount": ReasonTooPrecise},
		},
		{
			name:  "amount that would round up past the column",
			input: DealInput{Name: "Ada", Email: "ada@x.com", Amount: amount("9999999999.999")},
			want:  map[string]Reason{"amount": ReasonTooPrecise},
		},
		{
			name:  "negative amount",
			input: DealInput{Name: "Ada", Email: "ada@x.com", Amount: amount("-3")},
			want:  map[string]Reason{"amount": ReasonNotPositive},
		},
		{
			name:  "name too long",
			input: DealInput{Name: strings.Repeat("a", 256), Email: "ada@x.com"},
			want:  map[string]Reason{"name": ReasonTooLong},
		},
		{
			name:  "everything wrong",
			input: DealInput{Amount: amount("-1")},
			want:  map[string]Reason{"name": ReasonMissing, "email": ReasonMissing, "amount": ReasonNotPositive},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDealInput(tt.input)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}

			verr := requireValidationError(t, err)
			assert.Equal(t, tt.want, reasons(verr))
			assert.Len(t, verr.Fields, len(tt.want))
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	err := ValidateDealInput(DealInput{Name: "", Email: "not-an-email"})
	verr := requireValidationError(t, err)

	assert.Contains(t, verr.Error(), "name: is required")
	assert.Contains(t, verr.Error(), "email: must be a valid email address")
	assert.True(t, verr.HasField("name"))
	assert.False(t, verr.HasField("amount"))
}

func TestDecodeDealInput(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		in, err := DecodeDealInput([]byte(`{"name":"Ada","email":"ada@x.com","amount":99.95}`))
		require.NoError(t, err)

		assert.Equal(t, "Ada", in.Name)
		assert.Equal(t, "ada@x.com", in.Email)
		require.NotNil(t, in.Amount)
		assert.True(t, in.Amount.Equal(decimal.RequireFromString("99.95")))
	})

	t.Run("null amount is absent", func(t *testing.T) {
		in, err := DecodeDealInput([]byte(`{"name":"Ada","email":"ada@x.com","amount":null}`))
		require.NoError(t, err)
		assert.Nil(t, in.Amount)
	})

	t.Run("system fields are ignored", func(t *testing.T) {
		in, err := DecodeDealInput([]byte(`{"id":42,"createdAt":"2020-01-01T00:00:00Z","name":"Ada","email":"ada@x.com"}`))
		require.NoError(t, err)
		assert.Equal(t, DealInput{Name: "Ada", Email: "ada@x.com"}, in)
	})

	t.Run("validation completeness", func(t *testing.T) {
		_, err := DecodeDealInput([]byte(`{"name":"","email":"not-an-email"}`))
		verr := requireValidationError(t, err)
		assert.Equal(t, map[string]Reason{"name": ReasonMissing, "email": ReasonInvalidEmail}, reasons(verr))
	})

	t.Run("wrong type on name", func(t *testing.T) {
		_, err := DecodeDealInput([]byte(`{"name":12,"email":"bad"}`))
		verr := requireValidationError(t, err)
		assert.Equal(t, map[string]Reason{"name": ReasonWrongType, "email": ReasonInvalidEmail}, reasons(verr))
	})

	t.Run("every wrong-typed field is reported", func(t *testing.T) {
		_, err := DecodeDealInput([]byte(`{"name":1,"email":2,"amount":"3"}`))
		verr := requireValidationError(t, err)
		assert.Equal(t, map[string]Reason{"name": ReasonWrongType, "email": ReasonWrongType, "amount": ReasonWrongType}, reasons(verr))
		assert.Len(t, verr.Fields, 3)
	})

	t.Run("null name is missing", func(t *testing.T) {
		_, err := DecodeDealInput([]byte(`{"name":null,"email":"ada@x.com"}`))
		verr := requireValidationError(t, err)
		assert.Equal(t, map[string]Reason{"name": ReasonMissing}, reasons(verr))
	})

	t.Run("extreme exponents are rejected quickly", func(t *testing.T) {
		tests := map[string]Reason{
			`1e-99999999`: ReasonTooPrecise,
			`1e99999999`:  ReasonOutOfRange,
			`-1e99999999`: ReasonNotPositive,
			`0e-99999999`: ReasonNotPositive,
		}
		for raw, want := range tests {
			done := make(chan error, 1)
			go func() {
				_, err := DecodeDealInput([]byte(`{"name":"Ada","email":"ada@x.com","amount":` + raw + `}`))
				done <- err
			}()

			select {
			case err := <-done:
				verr := requireValidationError(t, err)
				assert.Equal(t, map[string]Reason{"amount": want}, reasons(verr), raw)
			case <-time.After(2 * time.Second):
				t.Fatalf("decoding amount %s did not return", raw)
			}
		}
	})

	t.Run("overlong amount literal", func(t *testing.T) {
		raw := "1." + strings.Repeat("0", 64)
		_, err := DecodeDealInput([]byte(`{"name":"Ada","email":"ada@x.com","amount":` + raw + `}`))
		verr := requireValidationError(t, err)
		assert.Equal(t, map[string]Reason{"amount": ReasonOutOfRange}, reasons(verr))
	})

	t.Run("amount must be a number", func(t *testing.T) {
		for _, raw := range []string{`"12"`, `true`, `{}`, `[1]`} {
			_, err := DecodeDealInput([]byte(`{"name":"Ada","email":"ada@x.com","amount":` + raw + `}`))
			verr := requireValidationError(t, err)
			assert.Equal(t, map[string]Reason{"amount": ReasonWrongType}, reasons(verr), raw)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		for _, raw := range []string{`{"name":`, `[]`, `"deal"`} {
			_, err := DecodeDealInput([]byte(raw))
			assert.ErrorIs(t, err, ErrMalformedInput, raw)
		}
	})
}
