package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/types"
)

func TestDefaultStockRule(t *testing.T) {
	rules, err := NewRuleSet("", "")
	require.NoError(t, err)

	low := entity.StockAccount{
		Quantity:    types.MustQuantity("2"),
		MinQuantity: types.MustQuantity("5"),
	}
	flagged, err := rules.FlagStock(low)
	require.NoError(t, err)
	assert.True(t, flagged)

	// A zero threshold disables the flag regardless of quantity.
	unthresholded := entity.StockAccount{
		Quantity: types.MustQuantity("-3"),
	}
	flagged, err = rules.FlagStock(unthresholded)
	require.NoError(t, err)
	assert.False(t, flagged)
}

func TestDefaultCashRule(t *testing.T) {
	rules, err := NewRuleSet("", "")
	require.NoError(t, err)

	overdrawn := entity.CashAccount{Balance: types.MustMoney("-0.01"), Active: true}
	flagged, err := rules.FlagCash(overdrawn)
	require.NoError(t, err)
	assert.True(t, flagged)

	solvent := entity.CashAccount{Balance: types.MustMoney("100"), Active: true}
	flagged, err = rules.FlagCash(solvent)
	require.NoError(t, err)
	assert.False(t, flagged)
}

func TestCustomRules(t *testing.T) {
	rules, err := NewRuleSet("quantity * average_cost > 1000.0", "balance < 50.0 && active")
	require.NoError(t, err)

	pricey := entity.StockAccount{
		Quantity:    types.MustQuantity("100"),
		AverageCost: types.MustMoney("20"),
	}
	flagged, err := rules.FlagStock(pricey)
	require.NoError(t, err)
	assert.True(t, flagged)

	inactive := entity.CashAccount{Balance: types.MustMoney("10"), Active: false}
	flagged, err = rules.FlagCash(inactive)
	require.NoError(t, err)
	assert.False(t, flagged)
}

func TestInvalidRules(t *testing.T) {
	_, err := NewRuleSet("quantity <", "")
	assert.Error(t, err)

	_, err = NewRuleSet("quantity + 1.0", "")
	assert.Error(t, err, "non-bool rules are rejected at compile time")
}
