package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	limits := DefaultLimits()

	tests := []struct {
		name      string
		raw       string
		want      string
		wantField string
	}{
		{name: "plain amount", raw: "29.99", want: "29.99"},
		{name: "integer normalized to two places", raw: "10", want: "10"},
		{name: "half rounds up", raw: "1.005", want: "1.01"},
		{name: "below half rounds down", raw: "1.004", want: "1"},
		{name: "three places rounds", raw: "69.985", want: "69.99"},
		{name: "zero allowed", raw: "0", want: "0"},
		{name: "at bound", raw: "9999999999.99", want: "9999999999.99"},
		{name: "negative rejected", raw: "-0.01", wantField: "amount"},
		{name: "over bound rejected", raw: "10000000000.00", wantField: "amount"},
		{name: "NaN rejected", raw: "NaN", wantField: "amount"},
		{name: "infinity rejected", raw: "Inf", wantField: "amount"},
		{name: "garbage rejected", raw: "12,50", wantField: "amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := limits.Parse("amount", tt.raw)
			if tt.wantField != "" {
				var vErr *ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, tt.wantField, vErr.Field)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got),
				"got %s, want %s", got, tt.want)
		})
	}
}

func TestNormalize_FieldIdentityPreserved(t *testing.T) {
	limits := DefaultLimits()

	// Each financial field must carry its own name into the error, never a
	// generic label.
	for _, field := range []string{"tax_amount", "shipping_amount", "discount_amount"} {
		_, err := limits.Normalize(field, decimal.NewFromInt(-1))
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, field, vErr.Field)
	}
}

func TestArithmeticBounds(t *testing.T) {
	limits := DefaultLimits()
	nearMax := decimal.RequireFromString("9999999999.00")

	t.Run("add within bound", func(t *testing.T) {
		sum, err := limits.Add("total_amount", decimal.NewFromInt(1), decimal.NewFromInt(2))
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(3).Equal(sum))
	})

	t.Run("add overflow", func(t *testing.T) {
		_, err := limits.Add("total_amount", nearMax, decimal.NewFromInt(2))
		var oErr *OverflowError
		require.ErrorAs(t, err, &oErr)
		assert.Equal(t, "total_amount", oErr.Field)
	})

	t.Run("sub floors at zero", func(t *testing.T) {
		_, err := limits.Sub("total_amount", decimal.NewFromInt(5), decimal.NewFromInt(6))
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "total_amount", vErr.Field)
	})

	t.Run("mul rounds to two places", func(t *testing.T) {
		got, err := limits.MulInt("total_price", decimal.RequireFromString("3.333"), 3)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("10.00").Equal(got), "got %s", got)
	})

	t.Run("mul overflow", func(t *testing.T) {
		_, err := limits.MulInt("total_price", nearMax, 100)
		var oErr *OverflowError
		require.ErrorAs(t, err, &oErr)
	})
}

func TestCheckQuantity(t *testing.T) {
	limits := DefaultLimits()

	require.NoError(t, limits.CheckQuantity("quantity", 1))
	require.NoError(t, limits.CheckQuantity("quantity", 10000))

	for _, q := range []int{0, -1, 10001} {
		err := limits.CheckQuantity("quantity", q)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr, "quantity %d", q)
		assert.Equal(t, "quantity", vErr.Field)
	}
}

func TestCustomLimits(t *testing.T) {
	limits := Limits{
		MaxAmount:   decimal.NewFromInt(100),
		MaxQuantity: 5,
	}

	_, err := limits.Parse("amount", "100.01")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	require.Error(t, limits.CheckQuantity("quantity", 6))
	require.NoError(t, limits.CheckQuantity("quantity", 5))
}
