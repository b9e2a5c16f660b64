package docintel

// OperationStatus is the state of an asynchronous analyze operation.
type OperationStatus string

const (
	StatusNotStarted OperationStatus = "notStarted"
	StatusRunning    OperationStatus = "running"
	StatusSucceeded  OperationStatus = "succeeded"
	StatusFailed     OperationStatus = "failed"
)

// AnalyzeOperation is the response from GET /analyzeResults/{id}.
type AnalyzeOperation struct {
	Status OperationStatus `json:"status"`
	Error  *OperationError `json:"error,omitempty"`
	Result *AnalyzeResult  `json:"analyzeResult,omitempty"`
}

// OperationError is the service-reported failure for an analyze operation.
type OperationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AnalyzeResult is the structured extraction produced by the service for
// one submitted document. The schema is externally versioned; consumers
// treat it as read-only.
type AnalyzeResult struct {
	ModelID   string     `json:"modelId,omitempty"`
	Documents []Document `json:"documents"`
}

// Document is one analyzed document with its named fields.
type Document struct {
	DocType    string           `json:"docType,omitempty"`
	Fields     map[string]Field `json:"fields"`
	Confidence float64          `json:"confidence,omitempty"`
}

// Field is a single extracted value. Depending on the field and the service
// version, the payload arrives as a typed value (ValueNumber, ValueCurrency,
// ...), a plain Content string, a repeated group (Values), or a composite
// (Properties). Normalization absorbs all of these shapes.
type Field struct {
	Type          string           `json:"type,omitempty"`
	Content       string           `json:"content,omitempty"`
	ValueString   string           `json:"valueString,omitempty"`
	ValueNumber   *float64         `json:"valueNumber,omitempty"`
	ValueDate     string           `json:"valueDate,omitempty"`
	ValueCurrency *CurrencyValue   `json:"valueCurrency,omitempty"`
	ValueAddress  *AddressValue    `json:"valueAddress,omitempty"`
	Values        []Field          `json:"values,omitempty"`
	Properties    map[string]Field `json:"properties,omitempty"`
}

// CurrencyValue is an amount with its currency annotation.
type CurrencyValue struct {
	Amount float64 `json:"amount"`
	Symbol string  `json:"currencySymbol,omitempty"`
	Code   string  `json:"currencyCode,omitempty"`
}

// AddressValue is a structured postal address.
type AddressValue struct {
	StreetAddress string `json:"streetAddress,omitempty"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"`
	PostalCode    string `json:"postalCode,omitempty"`
}
