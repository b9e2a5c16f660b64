package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-cli/internal/model"
	"github.com/sells-group/invoice-cli/internal/store"
)

func newTestPipeline(t *testing.T) (*Pipeline, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return New(st), st
}

func parsedInvoice(number string, items ...model.ParsedItem) *model.ParsedInvoice {
	return &model.ParsedInvoice{
		InvoiceNumber: number,
		Date:          "2026-08-01",
		Vendor:        model.Vendor{Name: "Acme Produce", Address: "1 Market St"},
		Items:         items,
		Subtotal:      115,
	}
}

func avgWeightItem() model.ParsedItem {
	return model.ParsedItem{
		Description:  "110#AVGBBRIMP",
		CaseQuantity: 1,
		Unit:         model.UnitPound,
		UnitsPerCase: 10,
		TotalUnits:   10,
		PricePerUnit: 2.5,
		CasePrice:    25,
		Amount:       25,
	}
}

func fallbackItem() model.ParsedItem {
	return model.ParsedItem{
		Description:  "BANANAS FRESH",
		CaseQuantity: 2,
		Unit:         model.UnitCase,
		UnitsPerCase: 1,
		TotalUnits:   2,
		PricePerUnit: 20,
		CasePrice:    20,
		Amount:       40,
	}
}

func TestPipeline_RunParsed_CreatesInventoryAndHistory(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	result, err := p.RunParsed(ctx, parsedInvoice("INV-100", avgWeightItem(), fallbackItem()), "rest-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "INV-100", result.InvoiceNumber)
	assert.Equal(t, 2, result.CreatedCount)
	assert.Equal(t, 0, result.LinkedCount)
	require.Len(t, result.Items, 2)
	assert.True(t, result.Items[0].Created)

	inv, err := st.GetInvoice(ctx, result.InvoiceID)
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, model.InvoiceStatusProcessed, inv.Status)
	assert.Equal(t, "user-1", inv.ProcessedBy)
	require.Len(t, inv.Items, 2)

	item, err := st.FindInventoryItemByName(ctx, "rest-1", "110#AVGBBRIMP")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "Imported from Invoice", item.Category)
	assert.Equal(t, model.UnitPound, item.Unit)
	assert.Equal(t, "Acme Produce", item.Vendor)
	assert.InDelta(t, 10, item.PackSize, 1e-9)
	assert.InDelta(t, 2.5, item.CurrentPrice, 1e-9)

	history, err := st.ListPriceHistory(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.PriceSourceInvoice, history[0].Source)
	assert.InDelta(t, 2.5, history[0].Price, 1e-9)
}

func TestPipeline_RunParsed_LinksExistingItems(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	first, err := p.RunParsed(ctx, parsedInvoice("INV-1", avgWeightItem()), "rest-1", "user-1")
	require.NoError(t, err)

	second, err := p.RunParsed(ctx, parsedInvoice("INV-2", avgWeightItem()), "rest-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, second.CreatedCount)
	assert.Equal(t, 1, second.LinkedCount)
	assert.Equal(t, first.Items[0].InventoryID, second.Items[0].InventoryID)

	// Linked items still get a price observation.
	history, err := st.ListPriceHistory(ctx, first.Items[0].InventoryID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestPipeline_RunParsed_DuplicateDescriptionsShareOneItem(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	result, err := p.RunParsed(ctx, parsedInvoice("INV-1", avgWeightItem(), avgWeightItem()), "rest-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.CreatedCount)
	assert.Equal(t, result.Items[0].InventoryID, result.Items[1].InventoryID)

	item, err := st.FindInventoryItemByName(ctx, "rest-1", "110#AVGBBRIMP")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, result.Items[0].InventoryID, item.ID)
}

func TestPipeline_RunParsed_RejectsDuplicateInvoiceNumber(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.RunParsed(ctx, parsedInvoice("INV-1", avgWeightItem()), "rest-1", "user-1")
	require.NoError(t, err)

	_, err = p.RunParsed(ctx, parsedInvoice("INV-1", fallbackItem()), "rest-1", "user-1")
	require.Error(t, err)
	assert.Equal(t, model.ErrDuplicateInvoiceNumber, model.KindOf(err))
}

func TestPipeline_RunParsed_SameNumberDifferentRestaurant(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.RunParsed(ctx, parsedInvoice("INV-1", avgWeightItem()), "rest-1", "user-1")
	require.NoError(t, err)

	_, err = p.RunParsed(ctx, parsedInvoice("INV-1", avgWeightItem()), "rest-2", "user-1")
	require.NoError(t, err)
}

func TestPipeline_RunParsed_ValidationErrors(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.RunParsed(ctx, parsedInvoice(""), "rest-1", "user-1")
	require.Error(t, err)
	assert.Equal(t, model.ErrMissingInvoiceNumber, model.KindOf(err))

	_, err = p.RunParsed(ctx, parsedInvoice("INV-9"), "rest-1", "user-1")
	require.Error(t, err)
	assert.Equal(t, model.ErrEmptyInvoice, model.KindOf(err))

	bad := avgWeightItem()
	bad.Description = ""
	_, err = p.RunParsed(ctx, parsedInvoice("INV-9", bad), "rest-1", "user-1")
	require.Error(t, err)
	assert.Equal(t, model.ErrInvalidLineItem, model.KindOf(err))
}

// failingLookupStore wraps the SQLite store and fails inventory lookups.
type failingLookupStore struct {
	*store.SQLiteStore
}

func (f *failingLookupStore) FindInventoryItemByName(ctx context.Context, restaurantID, name string) (*model.InventoryItem, error) {
	return nil, eris.New("connection reset")
}

func TestPipeline_RunParsed_AbortsOnResolutionFailure(t *testing.T) {
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	p := New(&failingLookupStore{SQLiteStore: st})
	ctx := context.Background()

	_, err = p.RunParsed(ctx, parsedInvoice("INV-1", avgWeightItem()), "rest-1", "user-1")
	require.Error(t, err)
	assert.Equal(t, model.ErrResolutionFailed, model.KindOf(err))

	// Nothing may persist after an aborted resolution.
	invoices, err := st.ListInvoices(ctx, "rest-1", store.InvoiceFilter{})
	require.NoError(t, err)
	assert.Empty(t, invoices)
}

func TestPipeline_RunParsed_StampsProcessingTime(t *testing.T) {
	p, st := newTestPipeline(t)
	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	result, err := p.RunParsed(context.Background(), parsedInvoice("INV-1", avgWeightItem()), "rest-1", "user-1")
	require.NoError(t, err)

	inv, err := st.GetInvoice(context.Background(), result.InvoiceID)
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.True(t, inv.CreatedAt.Equal(fixed))
}
