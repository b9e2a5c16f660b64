package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/invoice-cli/internal/model"
)

func TestExtractUnitInfo(t *testing.T) {
	tests := []struct {
		name         string
		description  string
		caseQuantity float64
		totalAmount  float64
		wantUnit     model.Unit
		wantPerCase  float64
		wantTotal    float64
		wantPrice    float64
	}{
		{
			name:         "average weight marker",
			description:  "110#AVGBBRIMP",
			caseQuantity: 1,
			totalAmount:  25,
			wantUnit:     model.UnitPound,
			wantPerCase:  10,
			wantTotal:    10,
			wantPrice:    2.5,
		},
		{
			name:         "average weight marker multiple cases",
			description:  "50#AVG BEEF",
			caseQuantity: 2,
			totalAmount:  40,
			wantUnit:     model.UnitPound,
			wantPerCase:  5,
			wantTotal:    10,
			wantPrice:    4,
		},
		{
			name:         "avcab four piece case",
			description:  "2.5AVCAB RIBEYE",
			caseQuantity: 2,
			totalAmount:  100,
			wantUnit:     model.UnitPound,
			wantPerCase:  10,
			wantTotal:    10,
			wantPrice:    10,
		},
		{
			name:         "avg decimal four piece case",
			description:  "3.14AVG LOIN",
			caseQuantity: 1,
			totalAmount:  62.8,
			wantUnit:     model.UnitPound,
			wantPerCase:  12.56,
			wantTotal:    12.56,
			wantPrice:    5,
		},
		{
			name:         "pack and unit size digits",
			description:  "25 LB FLOUR",
			caseQuantity: 2,
			totalAmount:  30,
			wantUnit:     model.UnitPound,
			wantPerCase:  5,
			wantTotal:    10,
			wantPrice:    3,
		},
		{
			name:         "pack rule zero total falls through to direct weight",
			description:  "102 LB ICE",
			caseQuantity: 1,
			totalAmount:  51,
			wantUnit:     model.UnitPound,
			wantPerCase:  102,
			wantTotal:    102,
			wantPrice:    0.5,
		},
		{
			name:         "direct single digit weight",
			description:  "5 LB BUTTER",
			caseQuantity: 3,
			totalAmount:  45,
			wantUnit:     model.UnitPound,
			wantPerCase:  5,
			wantTotal:    15,
			wantPrice:    3,
		},
		{
			name:         "anomalous 42.5 marker",
			description:  "42.5 LB PORK",
			caseQuantity: 1,
			totalAmount:  20,
			wantUnit:     model.UnitPound,
			wantPerCase:  10,
			wantTotal:    10,
			wantPrice:    2,
		},
		{
			name:         "lbport suffix",
			description:  "12.5LBPORT",
			caseQuantity: 2,
			totalAmount:  50,
			wantUnit:     model.UnitPound,
			wantPerCase:  12.5,
			wantTotal:    25,
			wantPrice:    2,
		},
		{
			name:         "ounce suffix",
			description:  "12 OZ BAG",
			caseQuantity: 5,
			totalAmount:  50,
			wantUnit:     model.UnitOunce,
			wantPerCase:  12,
			wantTotal:    60,
			wantPrice:    50.0 / 60.0,
		},
		{
			name:         "gallon suffix",
			description:  "1 GAL MILK",
			caseQuantity: 4,
			totalAmount:  16,
			wantUnit:     model.UnitGallon,
			wantPerCase:  1,
			wantTotal:    4,
			wantPrice:    4,
		},
		{
			name:         "count suffix",
			description:  "24 CT EGGS",
			caseQuantity: 2,
			totalAmount:  12,
			wantUnit:     model.UnitCount,
			wantPerCase:  24,
			wantTotal:    48,
			wantPrice:    0.25,
		},
		{
			name:         "case fallback",
			description:  "BANANAS FRESH",
			caseQuantity: 2,
			totalAmount:  40,
			wantUnit:     model.UnitCase,
			wantPerCase:  1,
			wantTotal:    2,
			wantPrice:    20,
		},
		{
			name:         "lowercase unit suffix",
			description:  "16 oz cup",
			caseQuantity: 1,
			totalAmount:  8,
			wantUnit:     model.UnitOunce,
			wantPerCase:  16,
			wantTotal:    16,
			wantPrice:    0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := ExtractUnitInfo(tt.description, tt.caseQuantity, tt.totalAmount)
			assert.True(t, ok)
			assert.Equal(t, tt.wantUnit, info.Unit)
			assert.InDelta(t, tt.wantPerCase, info.UnitsPerCase, 1e-9)
			assert.InDelta(t, tt.wantTotal, info.TotalUnits, 1e-9)
			assert.InDelta(t, tt.wantPrice, info.PricePerUnit, 1e-9)
		})
	}
}

func TestExtractUnitInfo_NoInferencePossible(t *testing.T) {
	// Zero amount defeats every rule's acceptance check and the fallback.
	_, ok := ExtractUnitInfo("110#AVGBBRIMP", 1, 0)
	assert.False(t, ok)

	// Zero quantity with no unit pattern leaves nothing to price.
	_, ok = ExtractUnitInfo("MISC CHARGE", 0, 10)
	assert.False(t, ok)
}

func TestExtractUnitInfo_FailedAcceptanceFallsThrough(t *testing.T) {
	// "102 LB" matches the pack rule first, but 1*0 units is unacceptable,
	// so the direct-weight rule takes it instead.
	info, ok := ExtractUnitInfo("102 LB", 2, 102)
	assert.True(t, ok)
	assert.Equal(t, model.UnitPound, info.Unit)
	assert.InDelta(t, 204, info.TotalUnits, 1e-9)
	assert.InDelta(t, 0.5, info.PricePerUnit, 1e-9)
}

func TestExtractUnitInfo_SpecialRulesPrecedeSimple(t *testing.T) {
	// A description carrying both an AVG marker and an OZ suffix resolves
	// through the vendor rule.
	info, ok := ExtractUnitInfo("110#AVG 16 OZ", 1, 25)
	assert.True(t, ok)
	assert.Equal(t, model.UnitPound, info.Unit)
	assert.InDelta(t, 10, info.TotalUnits, 1e-9)
}
