package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-cli/internal/db"
	"github.com/sells-group/invoice-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const invoiceNumberConstraint = "invoices_restaurant_number_key"

const postgresMigration = `
CREATE TABLE IF NOT EXISTS invoices (
	id             TEXT PRIMARY KEY,
	restaurant_id  TEXT NOT NULL,
	invoice_number TEXT NOT NULL,
	invoice_date   TEXT NOT NULL DEFAULT '',
	vendor_name    TEXT NOT NULL DEFAULT '',
	vendor_address TEXT NOT NULL DEFAULT '',
	purchase_order TEXT NOT NULL DEFAULT '',
	subtotal       DOUBLE PRECISION NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'pending',
	processed_by   TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT invoices_restaurant_number_key UNIQUE (restaurant_id, invoice_number)
);

CREATE TABLE IF NOT EXISTS inventory_items (
	id            TEXT PRIMARY KEY,
	restaurant_id TEXT NOT NULL,
	name          TEXT NOT NULL,
	category      TEXT NOT NULL DEFAULT '',
	unit          TEXT NOT NULL DEFAULT 'CS',
	vendor        TEXT NOT NULL DEFAULT '',
	product_code  TEXT NOT NULL DEFAULT '',
	pack_size     DOUBLE PRECISION NOT NULL DEFAULT 0,
	current_price DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT inventory_items_restaurant_name_key UNIQUE (restaurant_id, name)
);

CREATE TABLE IF NOT EXISTS invoice_items (
	id                TEXT PRIMARY KEY,
	invoice_id        TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
	position          INTEGER NOT NULL,
	description       TEXT NOT NULL,
	product_code      TEXT NOT NULL DEFAULT '',
	case_quantity     DOUBLE PRECISION NOT NULL DEFAULT 0,
	unit              TEXT NOT NULL DEFAULT 'CS',
	units_per_case    DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_units       DOUBLE PRECISION NOT NULL DEFAULT 0,
	price_per_unit    DOUBLE PRECISION NOT NULL DEFAULT 0,
	case_price        DOUBLE PRECISION NOT NULL DEFAULT 0,
	amount            DOUBLE PRECISION NOT NULL DEFAULT 0,
	inventory_item_id TEXT NOT NULL REFERENCES inventory_items(id)
);

CREATE TABLE IF NOT EXISTS price_history (
	id                TEXT PRIMARY KEY,
	inventory_item_id TEXT NOT NULL REFERENCES inventory_items(id) ON DELETE CASCADE,
	price             DOUBLE PRECISION NOT NULL,
	unit              TEXT NOT NULL DEFAULT 'CS',
	source            TEXT NOT NULL,
	invoice_id        TEXT NOT NULL DEFAULT '',
	recorded_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_invoices_restaurant ON invoices(restaurant_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice ON invoice_items(invoice_id);
CREATE INDEX IF NOT EXISTS idx_inventory_items_restaurant ON inventory_items(restaurant_id);
CREATE INDEX IF NOT EXISTS idx_price_history_item ON price_history(inventory_item_id, recorded_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const invoiceColumns = `id, restaurant_id, invoice_number, invoice_date, vendor_name, vendor_address, purchase_order, subtotal, status, processed_by, created_at`

func (s *PostgresStore) FindInvoiceByNumber(ctx context.Context, restaurantID, invoiceNumber string) (*model.Invoice, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE restaurant_id = $1 AND invoice_number = $2`,
		restaurantID, invoiceNumber,
	)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: find invoice %s", invoiceNumber)
	}
	return inv, nil
}

func (s *PostgresStore) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`,
		id,
	)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get invoice %s", id)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, position, description, product_code, case_quantity, unit, units_per_case, total_units, price_per_unit, case_price, amount, inventory_item_id
		 FROM invoice_items WHERE invoice_id = $1 ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get invoice items %s", id)
	}
	defer rows.Close()

	for rows.Next() {
		var it model.InvoiceItem
		if err := rows.Scan(&it.ID, &it.Position, &it.Description, &it.ProductCode, &it.CaseQuantity, &it.Unit,
			&it.UnitsPerCase, &it.TotalUnits, &it.PricePerUnit, &it.CasePrice, &it.Amount, &it.InventoryItemID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan invoice item")
		}
		inv.Items = append(inv.Items, it)
	}
	return inv, eris.Wrap(rows.Err(), "postgres: get invoice items iterate")
}

func (s *PostgresStore) ListInvoices(ctx context.Context, restaurantID string, filter InvoiceFilter) ([]model.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE restaurant_id = $1`
	args := []any{restaurantID}
	argIdx := 2

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list invoices")
	}
	defer rows.Close()

	var invoices []model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan invoice")
		}
		invoices = append(invoices, *inv)
	}
	return invoices, eris.Wrap(rows.Err(), "postgres: list invoices iterate")
}

func (s *PostgresStore) FindInventoryItemByName(ctx context.Context, restaurantID, name string) (*model.InventoryItem, error) {
	var it model.InventoryItem
	err := s.pool.QueryRow(ctx,
		`SELECT id, restaurant_id, name, category, unit, vendor, product_code, pack_size, current_price, created_at
		 FROM inventory_items WHERE restaurant_id = $1 AND name = $2`,
		restaurantID, name,
	).Scan(&it.ID, &it.RestaurantID, &it.Name, &it.Category, &it.Unit, &it.Vendor, &it.ProductCode, &it.PackSize, &it.CurrentPrice, &it.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: find inventory item %s", name)
	}
	return &it, nil
}

func (s *PostgresStore) ListPriceHistory(ctx context.Context, inventoryItemID string) ([]model.PriceEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, inventory_item_id, price, unit, source, invoice_id, recorded_at
		 FROM price_history WHERE inventory_item_id = $1 ORDER BY recorded_at DESC`,
		inventoryItemID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list price history")
	}
	defer rows.Close()

	var entries []model.PriceEntry
	for rows.Next() {
		var e model.PriceEntry
		if err := rows.Scan(&e.ID, &e.InventoryItemID, &e.Price, &e.Unit, &e.Source, &e.InvoiceID, &e.RecordedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan price entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list price history iterate")
}

func (s *PostgresStore) SaveIngest(ctx context.Context, ing *Ingest) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin ingest tx")
	}
	defer tx.Rollback(ctx)

	// Create new inventory items first. A concurrent ingestion may have
	// created the same (restaurant_id, name) since resolution; the upsert
	// resolves to the surviving row and we rewrite references to it.
	remap := make(map[string]string)
	for _, item := range ing.NewItems {
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		var survivorID string
		err := tx.QueryRow(ctx,
			`INSERT INTO inventory_items (id, restaurant_id, name, category, unit, vendor, product_code, pack_size, current_price, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (restaurant_id, name) DO UPDATE SET name = EXCLUDED.name
			 RETURNING id`,
			item.ID, item.RestaurantID, item.Name, item.Category, string(item.Unit),
			item.Vendor, item.ProductCode, item.PackSize, item.CurrentPrice, item.CreatedAt,
		).Scan(&survivorID)
		if err != nil {
			return eris.Wrapf(err, "postgres: upsert inventory item %s", item.Name)
		}
		if survivorID != item.ID {
			remap[item.ID] = survivorID
			item.ID = survivorID
		}
	}
	applyRemap(ing, remap)

	inv := ing.Invoice
	_, err = tx.Exec(ctx,
		`INSERT INTO invoices (id, restaurant_id, invoice_number, invoice_date, vendor_name, vendor_address, purchase_order, subtotal, status, processed_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		inv.ID, inv.RestaurantID, inv.InvoiceNumber, inv.Date, inv.Vendor.Name, inv.Vendor.Address,
		inv.PurchaseOrder, inv.Subtotal, string(inv.Status), inv.ProcessedBy, inv.CreatedAt,
	)
	if err != nil {
		return mapPostgresConflict(err, inv.InvoiceNumber)
	}

	for _, it := range inv.Items {
		_, err = tx.Exec(ctx,
			`INSERT INTO invoice_items (id, invoice_id, position, description, product_code, case_quantity, unit, units_per_case, total_units, price_per_unit, case_price, amount, inventory_item_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			it.ID, inv.ID, it.Position, it.Description, it.ProductCode, it.CaseQuantity, string(it.Unit),
			it.UnitsPerCase, it.TotalUnits, it.PricePerUnit, it.CasePrice, it.Amount, it.InventoryItemID,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert invoice item %s", it.Description)
		}
	}

	for _, p := range ing.Prices {
		_, err = tx.Exec(ctx,
			`INSERT INTO price_history (id, inventory_item_id, price, unit, source, invoice_id, recorded_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			p.ID, p.InventoryItemID, p.Price, string(p.Unit), string(p.Source), p.InvoiceID, p.RecordedAt,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: insert price entry")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPostgresConflict(err, inv.InvoiceNumber)
	}
	return nil
}

// mapPostgresConflict translates a unique-constraint violation into the
// structured duplicate/conflict error the pipeline understands.
func mapPostgresConflict(err error, invoiceNumber string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if pgErr.ConstraintName == invoiceNumberConstraint {
			return model.NewIngestError(model.ErrDuplicateInvoiceNumber, "invoice number %s already exists", invoiceNumber)
		}
		return model.NewIngestError(model.ErrPersistenceConflict, "concurrent write conflict: %s", pgErr.ConstraintName)
	}
	return eris.Wrap(err, "postgres: save ingest")
}

// applyRemap rewrites inventory references after a name-race resolution.
func applyRemap(ing *Ingest, remap map[string]string) {
	if len(remap) == 0 {
		return
	}
	for i := range ing.Invoice.Items {
		if id, ok := remap[ing.Invoice.Items[i].InventoryItemID]; ok {
			ing.Invoice.Items[i].InventoryItemID = id
		}
	}
	for _, p := range ing.Prices {
		if id, ok := remap[p.InventoryItemID]; ok {
			p.InventoryItemID = id
		}
	}
}

// row abstracts pgx.Row and pgx.Rows for shared scanning.
type row interface {
	Scan(dest ...any) error
}

func scanInvoice(r row) (*model.Invoice, error) {
	var inv model.Invoice
	var createdAt time.Time
	if err := r.Scan(&inv.ID, &inv.RestaurantID, &inv.InvoiceNumber, &inv.Date, &inv.Vendor.Name, &inv.Vendor.Address,
		&inv.PurchaseOrder, &inv.Subtotal, &inv.Status, &inv.ProcessedBy, &createdAt); err != nil {
		return nil, err
	}
	inv.CreatedAt = createdAt
	return &inv, nil
}
