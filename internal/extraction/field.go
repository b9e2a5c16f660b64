package extraction

import (
	"regexp"

	"github.com/sells-group/invoice-cli/pkg/docintel"
)

// The extraction service is inconsistent about field shapes across model
// versions: the same logical field may arrive as a typed value, a composite
// amount-with-currency, or a bare content string. These accessors absorb
// every shape it is known to produce and default to the zero value.

var leadingNumberRe = regexp.MustCompile(`\d+\.?\d*`)

// stringValue returns the best available textual value of a field.
func stringValue(f docintel.Field) string {
	if f.ValueString != "" {
		return f.ValueString
	}
	if f.ValueDate != "" {
		return f.ValueDate
	}
	return f.Content
}

// numberValue returns the numeric value of a field, falling back to the
// first number embedded in its content string ("$12.50/cs" -> 12.50).
func numberValue(f docintel.Field) float64 {
	if f.ValueNumber != nil {
		return *f.ValueNumber
	}
	if f.ValueCurrency != nil {
		return f.ValueCurrency.Amount
	}
	if m := leadingNumberRe.FindString(f.Content); m != "" {
		return parseFloat(m)
	}
	return 0
}

// amountValue returns the monetary amount of a field, preferring the
// composite currency shape.
func amountValue(f docintel.Field) float64 {
	if f.ValueCurrency != nil {
		return f.ValueCurrency.Amount
	}
	return numberValue(f)
}

// addressValue returns the street address of a structured address field,
// or its raw content.
func addressValue(f docintel.Field) string {
	if f.ValueAddress != nil {
		return f.ValueAddress.StreetAddress
	}
	return f.Content
}
