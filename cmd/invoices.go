package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/invoice-cli/internal/model"
	"github.com/sells-group/invoice-cli/internal/store"
)

var (
	invoicesStatus string
	invoicesLimit  int
	invoicesOffset int
	invoicesJSON   bool
)

var invoicesCmd = &cobra.Command{
	Use:   "invoices",
	Short: "List ingested invoices",
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

		invoices, err := st.ListInvoices(ctx, restaurantID, store.InvoiceFilter{
			Status: model.InvoiceStatus(invoicesStatus),
			Limit:  invoicesLimit,
			Offset: invoicesOffset,
		})
		if err != nil {
			return err
		}

		if invoicesJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(invoices)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNUMBER\tDATE\tVENDOR\tSUBTOTAL\tSTATUS")
		for _, inv := range invoices {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
				inv.ID, inv.InvoiceNumber, inv.Date, inv.Vendor.Name, inv.Subtotal, inv.Status)
		}
		return w.Flush()
	},
}

var invoiceShowCmd = &cobra.Command{
	Use:   "show <invoice-id>",
	Short: "Show one invoice with its line items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		inv, err := st.GetInvoice(ctx, args[0])
		if err != nil {
			return err
		}
		if inv == nil {
			return eris.Errorf("invoice %s not found", args[0])
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(inv)
	},
}

func init() {
	invoicesCmd.Flags().StringVar(&ingestRestaurant, "restaurant", "", "restaurant ID (default from config)")
	invoicesCmd.Flags().StringVar(&invoicesStatus, "status", "", "filter by status (pending, processed, error)")
	invoicesCmd.Flags().IntVar(&invoicesLimit, "limit", 50, "max invoices to list")
	invoicesCmd.Flags().IntVar(&invoicesOffset, "offset", 0, "listing offset")
	invoicesCmd.Flags().BoolVar(&invoicesJSON, "json", false, "output JSON")
	invoicesCmd.AddCommand(invoiceShowCmd)
	rootCmd.AddCommand(invoicesCmd)
}
