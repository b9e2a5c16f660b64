package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-cli/internal/store"
)

var exportLimit int

var exportCmd = &cobra.Command{
	Use:   "export <output.xlsx>",
	Short: "Export a cost report workbook",
	Long:  "Writes ingested invoices, their unit-normalized line items, and per-item price history to an XLSX workbook.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		restaurantID, _, err := ingestIdentity()
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		return exportWorkbook(ctx, st, restaurantID, args[0], exportLimit)
	},
}

func init() {
	exportCmd.Flags().StringVar(&ingestRestaurant, "restaurant", "", "restaurant ID (default from config)")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 1000, "max invoices to export")
	rootCmd.AddCommand(exportCmd)
}

func exportWorkbook(ctx context.Context, st store.Store, restaurantID, path string, limit int) error {
	invoices, err := st.ListInvoices(ctx, restaurantID, store.InvoiceFilter{Limit: limit})
	if err != nil {
		return err
	}

	file := xlsx.NewFile()

	invSheet, err := file.AddSheet("Invoices")
	if err != nil {
		return eris.Wrap(err, "export: add invoices sheet")
	}
	writeHeader(invSheet, "Invoice Number", "Date", "Vendor", "PO", "Subtotal", "Status", "Processed By")

	itemSheet, err := file.AddSheet("Line Items")
	if err != nil {
		return eris.Wrap(err, "export: add line items sheet")
	}
	writeHeader(itemSheet, "Invoice Number", "Description", "Product Code", "Cases", "Unit",
		"Units/Case", "Total Units", "Price/Unit", "Case Price", "Amount")

	historySheet, err := file.AddSheet("Price History")
	if err != nil {
		return eris.Wrap(err, "export: add price history sheet")
	}
	writeHeader(historySheet, "Item", "Price", "Unit", "Source", "Invoice", "Recorded At")

	seen := map[string]bool{}
	for _, header := range invoices {
		inv, err := st.GetInvoice(ctx, header.ID)
		if err != nil {
			return err
		}
		if inv == nil {
			continue
		}

		row := invSheet.AddRow()
		row.AddCell().Value = inv.InvoiceNumber
		row.AddCell().Value = inv.Date
		row.AddCell().Value = inv.Vendor.Name
		row.AddCell().Value = inv.PurchaseOrder
		row.AddCell().SetFloat(inv.Subtotal)
		row.AddCell().Value = string(inv.Status)
		row.AddCell().Value = inv.ProcessedBy

		for _, item := range inv.Items {
			r := itemSheet.AddRow()
			r.AddCell().Value = inv.InvoiceNumber
			r.AddCell().Value = item.Description
			r.AddCell().Value = item.ProductCode
			r.AddCell().SetFloat(item.CaseQuantity)
			r.AddCell().Value = string(item.Unit)
			r.AddCell().SetFloat(item.UnitsPerCase)
			r.AddCell().SetFloat(item.TotalUnits)
			r.AddCell().SetFloat(item.PricePerUnit)
			r.AddCell().SetFloat(item.CasePrice)
			r.AddCell().SetFloat(item.Amount)

			if !seen[item.InventoryItemID] {
				seen[item.InventoryItemID] = true
				if err := writeHistory(ctx, st, historySheet, item.Description, item.InventoryItemID); err != nil {
					return err
				}
			}
		}
	}

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}

	zap.L().Info("cost report written",
		zap.String("path", path),
		zap.Int("invoices", len(invoices)),
	)
	return nil
}

func writeHistory(ctx context.Context, st store.Store, sheet *xlsx.Sheet, name, inventoryItemID string) error {
	entries, err := st.ListPriceHistory(ctx, inventoryItemID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		row := sheet.AddRow()
		row.AddCell().Value = name
		row.AddCell().SetFloat(e.Price)
		row.AddCell().Value = string(e.Unit)
		row.AddCell().Value = string(e.Source)
		row.AddCell().Value = e.InvoiceID
		row.AddCell().Value = e.RecordedAt.Format("2006-01-02 15:04:05")
	}
	return nil
}

func writeHeader(sheet *xlsx.Sheet, titles ...string) {
	row := sheet.AddRow()
	for _, title := range titles {
		row.AddCell().Value = title
	}
}
