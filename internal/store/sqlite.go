package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/invoice-cli/internal/model"
)

// SQLiteStore implements Store on an embedded SQLite database. It mirrors
// the Postgres semantics, including the ID-remap behavior of SaveIngest.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path. Use ":memory:" for an
// ephemeral database in tests.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// The sqlite driver serializes access per connection; a single
	// connection avoids SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS invoices (
	id             TEXT PRIMARY KEY,
	restaurant_id  TEXT NOT NULL,
	invoice_number TEXT NOT NULL,
	invoice_date   TEXT NOT NULL DEFAULT '',
	vendor_name    TEXT NOT NULL DEFAULT '',
	vendor_address TEXT NOT NULL DEFAULT '',
	purchase_order TEXT NOT NULL DEFAULT '',
	subtotal       REAL NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'pending',
	processed_by   TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL DEFAULT '',
	UNIQUE (restaurant_id, invoice_number)
);

CREATE TABLE IF NOT EXISTS inventory_items (
	id            TEXT PRIMARY KEY,
	restaurant_id TEXT NOT NULL,
	name          TEXT NOT NULL,
	category      TEXT NOT NULL DEFAULT '',
	unit          TEXT NOT NULL DEFAULT 'CS',
	vendor        TEXT NOT NULL DEFAULT '',
	product_code  TEXT NOT NULL DEFAULT '',
	pack_size     REAL NOT NULL DEFAULT 0,
	current_price REAL NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL DEFAULT '',
	UNIQUE (restaurant_id, name)
);

CREATE TABLE IF NOT EXISTS invoice_items (
	id                TEXT PRIMARY KEY,
	invoice_id        TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
	position          INTEGER NOT NULL,
	description       TEXT NOT NULL,
	product_code      TEXT NOT NULL DEFAULT '',
	case_quantity     REAL NOT NULL DEFAULT 0,
	unit              TEXT NOT NULL DEFAULT 'CS',
	units_per_case    REAL NOT NULL DEFAULT 0,
	total_units       REAL NOT NULL DEFAULT 0,
	price_per_unit    REAL NOT NULL DEFAULT 0,
	case_price        REAL NOT NULL DEFAULT 0,
	amount            REAL NOT NULL DEFAULT 0,
	inventory_item_id TEXT NOT NULL REFERENCES inventory_items(id)
);

CREATE TABLE IF NOT EXISTS price_history (
	id                TEXT PRIMARY KEY,
	inventory_item_id TEXT NOT NULL REFERENCES inventory_items(id) ON DELETE CASCADE,
	price             REAL NOT NULL,
	unit              TEXT NOT NULL DEFAULT 'CS',
	source            TEXT NOT NULL,
	invoice_id        TEXT NOT NULL DEFAULT '',
	recorded_at       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_invoices_restaurant ON invoices(restaurant_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice ON invoice_items(invoice_id);
CREATE INDEX IF NOT EXISTS idx_inventory_items_restaurant ON inventory_items(restaurant_id);
CREATE INDEX IF NOT EXISTS idx_price_history_item ON price_history(inventory_item_id, recorded_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return eris.Wrap(s.db.Close(), "sqlite: close")
}

func (s *SQLiteStore) FindInvoiceByNumber(ctx context.Context, restaurantID, invoiceNumber string) (*model.Invoice, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE restaurant_id = ? AND invoice_number = ?`,
		restaurantID, invoiceNumber,
	)
	inv, err := scanSQLiteInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: find invoice %s", invoiceNumber)
	}
	return inv, nil
}

func (s *SQLiteStore) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`,
		id,
	)
	inv, err := scanSQLiteInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get invoice %s", id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, position, description, product_code, case_quantity, unit, units_per_case, total_units, price_per_unit, case_price, amount, inventory_item_id
		 FROM invoice_items WHERE invoice_id = ? ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get invoice items %s", id)
	}
	defer rows.Close()

	for rows.Next() {
		var it model.InvoiceItem
		if err := rows.Scan(&it.ID, &it.Position, &it.Description, &it.ProductCode, &it.CaseQuantity, &it.Unit,
			&it.UnitsPerCase, &it.TotalUnits, &it.PricePerUnit, &it.CasePrice, &it.Amount, &it.InventoryItemID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan invoice item")
		}
		inv.Items = append(inv.Items, it)
	}
	return inv, eris.Wrap(rows.Err(), "sqlite: get invoice items iterate")
}

func (s *SQLiteStore) ListInvoices(ctx context.Context, restaurantID string, filter InvoiceFilter) ([]model.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE restaurant_id = ?`
	args := []any{restaurantID}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list invoices")
	}
	defer rows.Close()

	var invoices []model.Invoice
	for rows.Next() {
		inv, err := scanSQLiteInvoice(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan invoice")
		}
		invoices = append(invoices, *inv)
	}
	return invoices, eris.Wrap(rows.Err(), "sqlite: list invoices iterate")
}

func (s *SQLiteStore) FindInventoryItemByName(ctx context.Context, restaurantID, name string) (*model.InventoryItem, error) {
	var it model.InventoryItem
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, restaurant_id, name, category, unit, vendor, product_code, pack_size, current_price, created_at
		 FROM inventory_items WHERE restaurant_id = ? AND name = ?`,
		restaurantID, name,
	).Scan(&it.ID, &it.RestaurantID, &it.Name, &it.Category, &it.Unit, &it.Vendor, &it.ProductCode, &it.PackSize, &it.CurrentPrice, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: find inventory item %s", name)
	}
	it.CreatedAt = parseSQLiteTime(createdAt)
	return &it, nil
}

func (s *SQLiteStore) ListPriceHistory(ctx context.Context, inventoryItemID string) ([]model.PriceEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, inventory_item_id, price, unit, source, invoice_id, recorded_at
		 FROM price_history WHERE inventory_item_id = ? ORDER BY recorded_at DESC`,
		inventoryItemID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list price history")
	}
	defer rows.Close()

	var entries []model.PriceEntry
	for rows.Next() {
		var e model.PriceEntry
		var recordedAt string
		if err := rows.Scan(&e.ID, &e.InventoryItemID, &e.Price, &e.Unit, &e.Source, &e.InvoiceID, &recordedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan price entry")
		}
		e.RecordedAt = parseSQLiteTime(recordedAt)
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list price history iterate")
}

func (s *SQLiteStore) SaveIngest(ctx context.Context, ing *Ingest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin ingest tx")
	}
	defer tx.Rollback()

	remap := make(map[string]string)
	for _, item := range ing.NewItems {
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		var survivorID string
		err := tx.QueryRowContext(ctx,
			`INSERT INTO inventory_items (id, restaurant_id, name, category, unit, vendor, product_code, pack_size, current_price, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (restaurant_id, name) DO UPDATE SET name = excluded.name
			 RETURNING id`,
			item.ID, item.RestaurantID, item.Name, item.Category, string(item.Unit),
			item.Vendor, item.ProductCode, item.PackSize, item.CurrentPrice, formatSQLiteTime(item.CreatedAt),
		).Scan(&survivorID)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert inventory item %s", item.Name)
		}
		if survivorID != item.ID {
			remap[item.ID] = survivorID
			item.ID = survivorID
		}
	}
	applyRemap(ing, remap)

	inv := ing.Invoice
	_, err = tx.ExecContext(ctx,
		`INSERT INTO invoices (id, restaurant_id, invoice_number, invoice_date, vendor_name, vendor_address, purchase_order, subtotal, status, processed_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.RestaurantID, inv.InvoiceNumber, inv.Date, inv.Vendor.Name, inv.Vendor.Address,
		inv.PurchaseOrder, inv.Subtotal, string(inv.Status), inv.ProcessedBy, formatSQLiteTime(inv.CreatedAt),
	)
	if err != nil {
		return mapSQLiteConflict(err, inv.InvoiceNumber)
	}

	for _, it := range inv.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO invoice_items (id, invoice_id, position, description, product_code, case_quantity, unit, units_per_case, total_units, price_per_unit, case_price, amount, inventory_item_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID, inv.ID, it.Position, it.Description, it.ProductCode, it.CaseQuantity, string(it.Unit),
			it.UnitsPerCase, it.TotalUnits, it.PricePerUnit, it.CasePrice, it.Amount, it.InventoryItemID,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert invoice item %s", it.Description)
		}
	}

	for _, p := range ing.Prices {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO price_history (id, inventory_item_id, price, unit, source, invoice_id, recorded_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.InventoryItemID, p.Price, string(p.Unit), string(p.Source), p.InvoiceID, formatSQLiteTime(p.RecordedAt),
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert price entry")
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit ingest")
}

// mapSQLiteConflict translates SQLite unique violations the same way the
// Postgres store does. modernc.org/sqlite exposes the violated constraint
// only through the error text.
func mapSQLiteConflict(err error, invoiceNumber string) error {
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		if strings.Contains(msg, "invoices.") {
			return model.NewIngestError(model.ErrDuplicateInvoiceNumber, "invoice number %s already exists", invoiceNumber)
		}
		return model.NewIngestError(model.ErrPersistenceConflict, "concurrent write conflict: %s", msg)
	}
	return eris.Wrap(err, "sqlite: save ingest")
}

func formatSQLiteTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseSQLiteTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func scanSQLiteInvoice(r row) (*model.Invoice, error) {
	var inv model.Invoice
	var createdAt string
	if err := r.Scan(&inv.ID, &inv.RestaurantID, &inv.InvoiceNumber, &inv.Date, &inv.Vendor.Name, &inv.Vendor.Address,
		&inv.PurchaseOrder, &inv.Subtotal, &inv.Status, &inv.ProcessedBy, &createdAt); err != nil {
		return nil, err
	}
	inv.CreatedAt = parseSQLiteTime(createdAt)
	return &inv, nil
}
