// Package store persists invoices and inventory items, keyed by restaurant.
package store

import (
	"context"

	"github.com/sells-group/invoice-cli/internal/model"
)

// InvoiceFilter specifies criteria for listing invoices.
type InvoiceFilter struct {
	Status model.InvoiceStatus `json:"status,omitempty"`
	Limit  int                 `json:"limit,omitempty"`
	Offset int                 `json:"offset,omitempty"`
}

// Ingest bundles everything one ingestion writes. SaveIngest commits it as
// a single transaction: an invoice and its newly created inventory items
// become visible together or not at all.
type Ingest struct {
	Invoice *model.Invoice

	// NewItems are inventory items created for this invoice. If a
	// concurrent ingestion won the (restaurant_id, name) race, the store
	// resolves to the surviving row and rewrites the item ID here and in
	// every invoice item and price entry that references it.
	NewItems []*model.InventoryItem

	// Prices are the price-history entries sourced from this invoice,
	// for both created and linked inventory items.
	Prices []*model.PriceEntry
}

// Store defines the persistence interface for invoice ingestion.
type Store interface {
	// Invoices
	FindInvoiceByNumber(ctx context.Context, restaurantID, invoiceNumber string) (*model.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*model.Invoice, error)
	ListInvoices(ctx context.Context, restaurantID string, filter InvoiceFilter) ([]model.Invoice, error)

	// Inventory
	FindInventoryItemByName(ctx context.Context, restaurantID, name string) (*model.InventoryItem, error)
	ListPriceHistory(ctx context.Context, inventoryItemID string) ([]model.PriceEntry, error)

	// SaveIngest atomically persists an ingestion. A unique-constraint
	// violation on (restaurant_id, invoice_number) surfaces as an
	// IngestError of kind duplicate_invoice_number; any other uniqueness
	// conflict surfaces as kind persistence_conflict. On error nothing
	// is persisted.
	SaveIngest(ctx context.Context, ing *Ingest) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
