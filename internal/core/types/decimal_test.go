package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveAverage(t *testing.T) {
	tests := []struct {
		name       string
		totalValue string
		quantity   string
		want       string
	}{
		{"exact division", "60", "20", "3"},
		{"single lot", "20", "10", "2"},
		{"non-terminating division rounds", "11", "7", "1.5714285714285714"},
		{"zero quantity clamps to zero", "20", "0", "0"},
		{"negative quantity clamps to zero", "20", "-5", "0"},
		{"negative value clamps to zero", "-14", "2", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveAverage(MustMoney(tt.totalValue), MustQuantity(tt.quantity))
			want := MustMoney(tt.want)
			assert.True(t, got.Sub(want).Abs().LessThan(MustMoney("0.0000000001")),
				"got %s, want %s", got, want)
		})
	}
}

func TestDeriveAverageIsStableUnderValueRoundTrip(t *testing.T) {
	// Adding and removing the same exact value leaves the division, and
	// therefore the derived average, identical.
	value := MustMoney("3")
	quantity := MustQuantity("3")
	before := DeriveAverage(value, quantity)

	blendedValue := value.Add(MustQuantity("4").Mul(MustMoney("2.00")))
	blendedQty := quantity.Add(MustQuantity("4"))
	blended := DeriveAverage(blendedValue, blendedQty)
	assert.True(t, blended.Equal(MustMoney("11").Div(MustMoney("7"))))

	restoredValue := blendedValue.Sub(MustQuantity("4").Mul(MustMoney("2.00")))
	restoredQty := blendedQty.Sub(MustQuantity("4"))
	after := DeriveAverage(restoredValue, restoredQty)
	assert.True(t, after.Equal(before), "got %s, want %s", after, before)
}
