package model

import "time"

// Unit is the controlled vocabulary for inferred measurement units.
type Unit string

const (
	UnitPound  Unit = "LB"
	UnitOunce  Unit = "OZ"
	UnitGallon Unit = "GAL"
	UnitCount  Unit = "CT"

	// UnitCase is the fallback when no unit information can be inferred
	// from the vendor description. Downstream costing flags CS lines for
	// manual review.
	UnitCase Unit = "CS"
)

// UnitInfo is the output of the unit inference engine for one line item.
type UnitInfo struct {
	Unit         Unit    `json:"unit"`
	UnitsPerCase float64 `json:"units_per_case"`
	TotalUnits   float64 `json:"total_units"`
	PricePerUnit float64 `json:"price_per_unit"`
}

// ParsedItem is one normalized invoice line item. PricePerUnit is always
// derived by the inference engine, never read from the extraction result.
type ParsedItem struct {
	Description  string  `json:"description"`
	ProductCode  string  `json:"product_code,omitempty"`
	CaseQuantity float64 `json:"case_quantity"`
	Unit         Unit    `json:"unit"`
	UnitsPerCase float64 `json:"units_per_case"`
	TotalUnits   float64 `json:"total_units"`
	PricePerUnit float64 `json:"price_per_unit"`
	CasePrice    float64 `json:"case_price"`
	Amount       float64 `json:"amount"`
}

// Vendor identifies the invoice issuer.
type Vendor struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// ParsedInvoice is the canonical form of one extracted vendor invoice.
// It is built once per ingestion attempt and never mutated afterwards.
type ParsedInvoice struct {
	InvoiceNumber string       `json:"invoice_number"`
	Date          string       `json:"date,omitempty"`
	Vendor        Vendor       `json:"vendor"`
	PurchaseOrder string       `json:"purchase_order,omitempty"`
	Items         []ParsedItem `json:"items"`
	Subtotal      float64      `json:"subtotal"`
}

// InvoiceStatus tracks the persistence lifecycle of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusProcessed InvoiceStatus = "processed"
	InvoiceStatusError     InvoiceStatus = "error"
)

// Invoice is the persisted record for one ingested vendor invoice.
// (RestaurantID, InvoiceNumber) is unique.
type Invoice struct {
	ID            string        `json:"id"`
	RestaurantID  string        `json:"restaurant_id"`
	InvoiceNumber string        `json:"invoice_number"`
	Date          string        `json:"date,omitempty"`
	Vendor        Vendor        `json:"vendor"`
	PurchaseOrder string        `json:"purchase_order,omitempty"`
	Items         []InvoiceItem `json:"items"`
	Subtotal      float64       `json:"subtotal"`
	Status        InvoiceStatus `json:"status"`
	ProcessedBy   string        `json:"processed_by,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// InvoiceItem is one persisted invoice line, carrying the inventory item it
// was mapped to or created for.
type InvoiceItem struct {
	ID              string  `json:"id"`
	Position        int     `json:"position"`
	Description     string  `json:"description"`
	ProductCode     string  `json:"product_code,omitempty"`
	CaseQuantity    float64 `json:"case_quantity"`
	Unit            Unit    `json:"unit"`
	UnitsPerCase    float64 `json:"units_per_case"`
	TotalUnits      float64 `json:"total_units"`
	PricePerUnit    float64 `json:"price_per_unit"`
	CasePrice       float64 `json:"case_price"`
	Amount          float64 `json:"amount"`
	InventoryItemID string  `json:"inventory_item_id"`
}

// InventoryItem is one catalog item per restaurant.
// (RestaurantID, Name) is unique.
type InventoryItem struct {
	ID           string    `json:"id"`
	RestaurantID string    `json:"restaurant_id"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	Unit         Unit      `json:"unit"`
	Vendor       string    `json:"vendor,omitempty"`
	ProductCode  string    `json:"product_code,omitempty"`
	PackSize     float64   `json:"pack_size"`
	CurrentPrice float64   `json:"current_price"`
	CreatedAt    time.Time `json:"created_at"`
}

// PriceSource identifies where a price-history entry came from.
type PriceSource string

const (
	PriceSourceInvoice PriceSource = "invoice"
	PriceSourceManual  PriceSource = "manual"
)

// PriceEntry is one observation in an inventory item's price history.
type PriceEntry struct {
	ID              string      `json:"id"`
	InventoryItemID string      `json:"inventory_item_id"`
	Price           float64     `json:"price"`
	Unit            Unit        `json:"unit"`
	Source          PriceSource `json:"source"`
	InvoiceID       string      `json:"invoice_id,omitempty"`
	RecordedAt      time.Time   `json:"recorded_at"`
}

// ItemOutcome describes how one invoice line was mapped to inventory.
type ItemOutcome struct {
	Position    int    `json:"position"`
	Description string `json:"description"`
	InventoryID string `json:"inventory_id"`
	Created     bool   `json:"created"`
}

// IngestResult is the success report for one ingestion.
type IngestResult struct {
	InvoiceID     string        `json:"invoice_id"`
	InvoiceNumber string        `json:"invoice_number"`
	Items         []ItemOutcome `json:"items"`
	CreatedCount  int           `json:"created_count"`
	LinkedCount   int           `json:"linked_count"`
}
