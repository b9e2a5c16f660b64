// Package ingest orchestrates one invoice ingestion: normalize the
// extraction result, validate it, resolve line items against the inventory
// catalog, and persist everything in a single transaction.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-cli/internal/extraction"
	"github.com/sells-group/invoice-cli/internal/model"
	"github.com/sells-group/invoice-cli/internal/store"
	"github.com/sells-group/invoice-cli/internal/validate"
	"github.com/sells-group/invoice-cli/pkg/docintel"
)

// importedCategory marks inventory items seeded from an invoice rather than
// entered by hand, so the catalog UI can surface them for review.
const importedCategory = "Imported from Invoice"

// Pipeline runs ingestions against a Store.
type Pipeline struct {
	store store.Store
	log   *zap.Logger
	now   func() time.Time
}

func New(st store.Store) *Pipeline {
	return &Pipeline{
		store: st,
		log:   zap.L().Named("ingest"),
		now:   time.Now,
	}
}

// Run ingests a raw extraction result for one restaurant. userID is recorded
// as the processing actor. On success the invoice, any inventory items it
// created, and its price-history entries are all committed together.
func (p *Pipeline) Run(ctx context.Context, result *docintel.AnalyzeResult, restaurantID, userID string) (*model.IngestResult, error) {
	parsed, err := extraction.ParseInvoice(result)
	if err != nil {
		return nil, err
	}
	return p.RunParsed(ctx, parsed, restaurantID, userID)
}

// RunParsed ingests an already-normalized invoice.
func (p *Pipeline) RunParsed(ctx context.Context, inv *model.ParsedInvoice, restaurantID, userID string) (*model.IngestResult, error) {
	if err := validate.Invoice(ctx, p.store, inv, restaurantID); err != nil {
		return nil, err
	}

	now := p.now().UTC()
	ing, outcomes, err := p.resolve(ctx, inv, restaurantID, userID, now)
	if err != nil {
		return nil, err
	}

	if err := p.store.SaveIngest(ctx, ing); err != nil {
		return nil, err
	}

	result := &model.IngestResult{
		InvoiceID:     ing.Invoice.ID,
		InvoiceNumber: inv.InvoiceNumber,
		Items:         outcomes,
	}
	for _, o := range outcomes {
		if o.Created {
			result.CreatedCount++
		} else {
			result.LinkedCount++
		}
	}

	p.log.Info("invoice ingested",
		zap.String("invoice_id", result.InvoiceID),
		zap.String("invoice_number", result.InvoiceNumber),
		zap.String("restaurant_id", restaurantID),
		zap.Int("items_created", result.CreatedCount),
		zap.Int("items_linked", result.LinkedCount),
	)
	return result, nil
}

// resolve maps each line item to an inventory item, creating catalog entries
// for descriptions the restaurant has never seen. Any lookup failure aborts
// the whole ingestion; partial resolution never reaches the store.
func (p *Pipeline) resolve(ctx context.Context, inv *model.ParsedInvoice, restaurantID, userID string, now time.Time) (*store.Ingest, []model.ItemOutcome, error) {
	invoice := &model.Invoice{
		ID:            uuid.New().String(),
		RestaurantID:  restaurantID,
		InvoiceNumber: inv.InvoiceNumber,
		Date:          inv.Date,
		Vendor:        inv.Vendor,
		PurchaseOrder: inv.PurchaseOrder,
		Subtotal:      inv.Subtotal,
		Status:        model.InvoiceStatusProcessed,
		ProcessedBy:   userID,
		CreatedAt:     now,
	}

	var newItems []*model.InventoryItem
	var prices []*model.PriceEntry
	outcomes := make([]model.ItemOutcome, 0, len(inv.Items))

	// Two lines with the same description resolve to one catalog entry.
	pending := make(map[string]*model.InventoryItem)

	for i, item := range inv.Items {
		inventoryID := ""
		created := false

		if cached, ok := pending[item.Description]; ok {
			inventoryID = cached.ID
			created = true
		} else {
			existing, err := p.store.FindInventoryItemByName(ctx, restaurantID, item.Description)
			if err != nil {
				return nil, nil, model.NewItemError(model.ErrResolutionFailed, item.Description, "inventory lookup: %v", err)
			}
			if existing != nil {
				inventoryID = existing.ID
			} else {
				newItem := &model.InventoryItem{
					ID:           uuid.New().String(),
					RestaurantID: restaurantID,
					Name:         item.Description,
					Category:     importedCategory,
					Unit:         item.Unit,
					Vendor:       inv.Vendor.Name,
					ProductCode:  item.ProductCode,
					PackSize:     item.UnitsPerCase,
					CurrentPrice: item.PricePerUnit,
					CreatedAt:    now,
				}
				newItems = append(newItems, newItem)
				pending[item.Description] = newItem
				inventoryID = newItem.ID
				created = true
			}
		}

		invoice.Items = append(invoice.Items, model.InvoiceItem{
			ID:              uuid.New().String(),
			Position:        i,
			Description:     item.Description,
			ProductCode:     item.ProductCode,
			CaseQuantity:    item.CaseQuantity,
			Unit:            item.Unit,
			UnitsPerCase:    item.UnitsPerCase,
			TotalUnits:      item.TotalUnits,
			PricePerUnit:    item.PricePerUnit,
			CasePrice:       item.CasePrice,
			Amount:          item.Amount,
			InventoryItemID: inventoryID,
		})

		// Price history records every observation, for created and linked
		// items alike.
		prices = append(prices, &model.PriceEntry{
			ID:              uuid.New().String(),
			InventoryItemID: inventoryID,
			Price:           item.PricePerUnit,
			Unit:            item.Unit,
			Source:          model.PriceSourceInvoice,
			InvoiceID:       invoice.ID,
			RecordedAt:      now,
		})

		outcomes = append(outcomes, model.ItemOutcome{
			Position:    i,
			Description: item.Description,
			InventoryID: inventoryID,
			Created:     created,
		})
	}

	return &store.Ingest{Invoice: invoice, NewItems: newItems, Prices: prices}, outcomes, nil
}
