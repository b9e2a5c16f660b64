// Package extraction turns raw document-analysis output into canonical,
// unit-normalized invoice records.
package extraction

import (
	"regexp"
	"strconv"

	"github.com/sells-group/invoice-cli/internal/model"
)

// Vendor descriptions encode pack and unit size as abbreviated free text
// ("110#AVGBBRIMP", "42.5 LB", "12 OZ BAG"). The engine tries known
// vendor-specific markers first, then generic unit suffixes, and always
// leaves the case fallback so ingestion can proceed when unit semantics
// are unrecoverable.

var (
	avgWeightRe = regexp.MustCompile(`(?i)(\d+)#AVG`)
	avgFourRe   = regexp.MustCompile(`(?i)(\d+\.\d+)AV(?:CAB|G)`)
	packLbRe    = regexp.MustCompile(`(?i)(\d)(\d)\d?\s*LB`)
	weightLbRe  = regexp.MustCompile(`(?i)(\d+\.?\d*)\s*LB(?:PORT)?`)

	ozRe  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*OZ`)
	galRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*GAL`)
	ctRe  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*CT`)
)

// averageCaseWeight is the fixed delivered weight for "#AVG" marked items,
// regardless of the digits in the description.
const averageCaseWeight = 10

// specialRule pairs a vendor-format pattern with its transform. Rules are
// evaluated in order; a match whose computed result fails the acceptance
// check falls through to the next rule.
type specialRule struct {
	re    *regexp.Regexp
	apply func(match []string, caseQuantity float64) model.UnitInfo
}

var specialRules = []specialRule{
	// "<N>#AVG...": average-weight case marker, fixed 10 LB total.
	{
		re: avgWeightRe,
		apply: func(match []string, caseQuantity float64) model.UnitInfo {
			return model.UnitInfo{
				Unit:         model.UnitPound,
				UnitsPerCase: averageCaseWeight / caseQuantity,
				TotalUnits:   averageCaseWeight,
			}
		},
	},
	// "<N.NN>AVCAB" / "<N.NN>AVG": average case of 4 pieces. The whole
	// case is one unit-bearing entity, so units-per-case is not divided
	// by the billed case quantity.
	{
		re: avgFourRe,
		apply: func(match []string, caseQuantity float64) model.UnitInfo {
			size := parseFloat(match[1])
			total := size * 4
			return model.UnitInfo{
				Unit:         model.UnitPound,
				UnitsPerCase: total,
				TotalUnits:   total,
			}
		},
	},
	// "102 LB": two adjacent digits before LB read as (packSize, unitSize).
	{
		re: packLbRe,
		apply: func(match []string, caseQuantity float64) model.UnitInfo {
			packSize := parseFloat(match[1])
			unitSize := parseFloat(match[2])
			total := packSize * unitSize
			return model.UnitInfo{
				Unit:         model.UnitPound,
				UnitsPerCase: total / caseQuantity,
				TotalUnits:   total,
			}
		},
	},
	// "<W> LB" / "<W>LBPORT": decimal weight before LB. The exact value
	// 42.5 is an anomalous 4-pack-of-2.5 marker (10 LB total); anything
	// else is a direct per-case weight.
	{
		re: weightLbRe,
		apply: func(match []string, caseQuantity float64) model.UnitInfo {
			weight := parseFloat(match[1])
			if weight == 42.5 {
				return model.UnitInfo{
					Unit:         model.UnitPound,
					UnitsPerCase: averageCaseWeight / caseQuantity,
					TotalUnits:   averageCaseWeight,
				}
			}
			return model.UnitInfo{
				Unit:         model.UnitPound,
				UnitsPerCase: weight,
				TotalUnits:   weight * caseQuantity,
			}
		},
	},
}

// simpleRule is a generic decimal-quantity-before-unit-suffix pattern.
type simpleRule struct {
	re   *regexp.Regexp
	unit model.Unit
}

var simpleRules = []simpleRule{
	{re: ozRe, unit: model.UnitOunce},
	{re: galRe, unit: model.UnitGallon},
	{re: ctRe, unit: model.UnitCount},
}

// ExtractUnitInfo infers the measurement unit, units per case, total units
// delivered, and price per unit from a vendor line-item description. The
// second return value is false when no inference is possible (no pattern
// matched and the case fallback is unavailable); the caller must then use
// neutral defaults rather than inventing a unit cost.
func ExtractUnitInfo(description string, caseQuantity, totalAmount float64) (model.UnitInfo, bool) {
	for _, rule := range specialRules {
		match := rule.re.FindStringSubmatch(description)
		if match == nil {
			continue
		}
		info := rule.apply(match, caseQuantity)
		if totalAmount > 0 && info.TotalUnits > 0 {
			info.PricePerUnit = totalAmount / info.TotalUnits
			return info, true
		}
	}

	for _, rule := range simpleRules {
		match := rule.re.FindStringSubmatch(description)
		if match == nil {
			continue
		}
		quantity := parseFloat(match[1])
		if quantity > 0 && totalAmount > 0 {
			total := quantity * caseQuantity
			return model.UnitInfo{
				Unit:         rule.unit,
				UnitsPerCase: quantity,
				TotalUnits:   total,
				PricePerUnit: totalAmount / total,
			}, true
		}
	}

	// Case fallback: price the case itself when no unit info is present.
	if totalAmount > 0 && caseQuantity > 0 {
		return model.UnitInfo{
			Unit:         model.UnitCase,
			UnitsPerCase: 1,
			TotalUnits:   caseQuantity,
			PricePerUnit: totalAmount / caseQuantity,
		}, true
	}

	return model.UnitInfo{}, false
}

// parseFloat converts a regex capture to float64. Captures are guaranteed
// numeric by the patterns above.
func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
