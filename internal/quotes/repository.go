package quotes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/constructa/propostas/internal/freight"
	"github.com/constructa/propostas/internal/numbering"
	"github.com/constructa/propostas/internal/platform/db"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	NextNumber(ctx context.Context, year int) (string, error)
	VendorActive(ctx context.Context, vendorID int64) (bool, error)
	Get(ctx context.Context, id int64) (*Quote, error)
	List(ctx context.Context, filters ListFilters) ([]Quote, int, error)
	Create(ctx context.Context, q Quote) (int64, error)
	Update(ctx context.Context, q Quote) error
	UpdateTotals(ctx context.Context, id int64, totals Totals) error
	ReplaceItems(ctx context.Context, quoteID int64, items []Item) error
	UpdateStatus(ctx context.Context, id int64, from, to Status) error
	// CloseProposals supersedes the quote's open proposals so their links
	// stop accepting answers.
	CloseProposals(ctx context.Context, quoteID int64) (int64, error)
	Delete(ctx context.Context, id int64) error
	SaveFreight(ctx context.Context, fr Freight) error
	DeleteFreight(ctx context.Context, quoteID int64) error
}

type repository struct {
	db   db.DBTX
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) NextNumber(ctx context.Context, year int) (string, error) {
	return numbering.Next(ctx, r.db, numbering.QuoteCode, year)
}

func (r *repository) VendorActive(ctx context.Context, vendorID int64) (bool, error) {
	var active bool
	err := r.db.QueryRow(ctx, `SELECT is_active FROM users WHERE id = $1`, vendorID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return active, err
}

const quoteColumns = `q.id, q.number, q.vendor_id, u.full_name, u.email, u.salesperson_code,
	q.client_name, q.client_email, q.client_phone, q.client_document, q.delivery_city, q.delivery_state,
	q.status, q.valid_until, q.payment_terms, q.notes, q.discount_percent,
	q.subtotal, q.discount_amount, q.freight_amount, q.total_amount, q.total_weight_kg, q.total_pallets,
	q.created_at, q.updated_at`

const quoteFrom = ` FROM quotes q JOIN users u ON u.id = q.vendor_id`

func scanQuote(row pgx.Row) (Quote, error) {
	var q Quote
	var status string
	err := row.Scan(&q.ID, &q.Number, &q.VendorID, &q.VendorName, &q.VendorEmail, &q.VendorCode,
		&q.ClientName, &q.ClientEmail, &q.ClientPhone, &q.ClientDocument, &q.DeliveryCity, &q.DeliveryState,
		&status, &q.ValidUntil, &q.PaymentTerms, &q.Notes, &q.DiscountPercent,
		&q.Subtotal, &q.DiscountAmount, &q.FreightAmount, &q.TotalAmount, &q.TotalWeightKg, &q.TotalPallets,
		&q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Quote{}, ErrNotFound
	}
	q.Status = Status(status)
	return q, err
}

func (r *repository) Get(ctx context.Context, id int64) (*Quote, error) {
	q, err := scanQuote(r.db.QueryRow(ctx, `SELECT `+quoteColumns+quoteFrom+` WHERE q.id = $1`, id))
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `SELECT i.id, i.quote_id, i.product_id, p.code, i.description, i.unit, i.quantity,
		i.unit_price, i.discount_percent, i.line_total, i.weight_kg, i.pallets, i.position
		FROM quote_items i JOIN products p ON p.id = i.product_id
		WHERE i.quote_id = $1 ORDER BY i.position, i.id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.QuoteID, &it.ProductID, &it.ProductCode, &it.Description, &it.Unit, &it.Quantity,
			&it.UnitPrice, &it.DiscountPercent, &it.LineTotal, &it.WeightKg, &it.Pallets, &it.Position); err != nil {
			return nil, err
		}
		q.Items = append(q.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fr, err := r.getFreight(ctx, id)
	if err != nil {
		return nil, err
	}
	q.Freight = fr
	return &q, nil
}

func (r *repository) getFreight(ctx context.Context, quoteID int64) (*Freight, error) {
	var fr Freight
	var modality string
	var vehicleName *string
	err := r.db.QueryRow(ctx, `SELECT f.quote_id, f.modality, f.vehicle_type_id, v.name, f.city, f.state,
		f.total_weight_kg, f.total_pallets, f.trips, f.price_per_trip, f.total, f.manual
		FROM quote_freights f LEFT JOIN vehicle_types v ON v.id = f.vehicle_type_id
		WHERE f.quote_id = $1`, quoteID).Scan(&fr.QuoteID, &modality, &fr.VehicleTypeID, &vehicleName, &fr.City, &fr.State,
		&fr.TotalWeightKg, &fr.TotalPallets, &fr.Trips, &fr.PricePerTrip, &fr.Total, &fr.Manual)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	fr.Modality = freight.Modality(modality)
	if vehicleName != nil {
		fr.VehicleName = *vehicleName
	}
	return &fr, nil
}

func (r *repository) List(ctx context.Context, f ListFilters) ([]Quote, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if f.Status != "" {
		conditions = append(conditions, fmt.Sprintf("q.status = $%d", argPos))
		args = append(args, string(f.Status))
		argPos++
	}
	if f.VendorID > 0 {
		conditions = append(conditions, fmt.Sprintf("q.vendor_id = $%d", argPos))
		args = append(args, f.VendorID)
		argPos++
	}
	if f.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(q.client_name ILIKE $%d OR q.number ILIKE $%d OR q.client_document ILIKE $%d)", argPos, argPos, argPos))
		args = append(args, "%"+f.Search+"%")
		argPos++
	}
	if f.From != nil {
		conditions = append(conditions, fmt.Sprintf("q.created_at >= $%d", argPos))
		args = append(args, *f.From)
		argPos++
	}
	if f.To != nil {
		conditions = append(conditions, fmt.Sprintf("q.created_at < $%d", argPos))
		args = append(args, *f.To)
		argPos++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*)`+quoteFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	query := `SELECT ` + quoteColumns + quoteFrom + where +
		fmt.Sprintf(" ORDER BY q.created_at DESC, q.id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, q)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, q Quote) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO quotes (number, vendor_id, client_name, client_email, client_phone, client_document,
		delivery_city, delivery_state, status, valid_until, payment_terms, notes, discount_percent,
		subtotal, discount_amount, freight_amount, total_amount, total_weight_kg, total_pallets)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id`,
		q.Number, q.VendorID, q.ClientName, q.ClientEmail, q.ClientPhone, q.ClientDocument,
		q.DeliveryCity, q.DeliveryState, string(q.Status), q.ValidUntil, q.PaymentTerms, q.Notes, q.DiscountPercent,
		q.Subtotal, q.DiscountAmount, q.FreightAmount, q.TotalAmount, q.TotalWeightKg, q.TotalPallets,
	).Scan(&id)
	if err != nil && db.IsForeignKeyViolation(err) {
		return 0, ErrVendor
	}
	return id, err
}

func (r *repository) Update(ctx context.Context, q Quote) error {
	tag, err := r.db.Exec(ctx, `UPDATE quotes SET vendor_id = $2, client_name = $3, client_email = $4, client_phone = $5,
		client_document = $6, delivery_city = $7, delivery_state = $8, valid_until = $9, payment_terms = $10, notes = $11,
		discount_percent = $12, subtotal = $13, discount_amount = $14, freight_amount = $15, total_amount = $16,
		total_weight_kg = $17, total_pallets = $18, updated_at = NOW()
		WHERE id = $1`,
		q.ID, q.VendorID, q.ClientName, q.ClientEmail, q.ClientPhone,
		q.ClientDocument, q.DeliveryCity, q.DeliveryState, q.ValidUntil, q.PaymentTerms, q.Notes,
		q.DiscountPercent, q.Subtotal, q.DiscountAmount, q.FreightAmount, q.TotalAmount,
		q.TotalWeightKg, q.TotalPallets)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) UpdateTotals(ctx context.Context, id int64, t Totals) error {
	tag, err := r.db.Exec(ctx, `UPDATE quotes SET subtotal = $2, discount_amount = $3, freight_amount = $4, total_amount = $5,
		total_weight_kg = $6, total_pallets = $7, updated_at = NOW() WHERE id = $1`,
		id, t.Subtotal, t.DiscountAmount, t.FreightAmount, t.TotalAmount, t.TotalWeightKg, t.TotalPallets)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) ReplaceItems(ctx context.Context, quoteID int64, items []Item) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM quote_items WHERE quote_id = $1`, quoteID); err != nil {
		return err
	}
	for _, it := range items {
		if _, err := r.db.Exec(ctx, `INSERT INTO quote_items (quote_id, product_id, description, unit, quantity, unit_price,
			discount_percent, line_total, weight_kg, pallets, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			quoteID, it.ProductID, it.Description, it.Unit, it.Quantity, it.UnitPrice,
			it.DiscountPercent, it.LineTotal, it.WeightKg, it.Pallets, it.Position); err != nil {
			return fmt.Errorf("insert quote item %d: %w", it.Position, err)
		}
	}
	return nil
}

// UpdateStatus moves a quote from one status to another. A quote whose
// status already changed reports ErrInvalidStatus.
func (r *repository) UpdateStatus(ctx context.Context, id int64, from, to Status) error {
	tag, err := r.db.Exec(ctx, `UPDATE quotes SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: quote %d is no longer %s", ErrInvalidStatus, id, from)
	}
	return nil
}

func (r *repository) CloseProposals(ctx context.Context, quoteID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE proposals SET status = 'superseded', updated_at = NOW()
		WHERE quote_id = $1 AND status = 'sent'`, quoteID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM quotes WHERE id = $1 AND status = 'draft'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotEditable
	}
	return nil
}

func (r *repository) SaveFreight(ctx context.Context, fr Freight) error {
	_, err := r.db.Exec(ctx, `INSERT INTO quote_freights (quote_id, modality, vehicle_type_id, city, state,
		total_weight_kg, total_pallets, trips, price_per_trip, total, manual)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (quote_id) DO UPDATE SET modality = EXCLUDED.modality, vehicle_type_id = EXCLUDED.vehicle_type_id,
			city = EXCLUDED.city, state = EXCLUDED.state, total_weight_kg = EXCLUDED.total_weight_kg,
			total_pallets = EXCLUDED.total_pallets, trips = EXCLUDED.trips, price_per_trip = EXCLUDED.price_per_trip,
			total = EXCLUDED.total, manual = EXCLUDED.manual`,
		fr.QuoteID, string(fr.Modality), fr.VehicleTypeID, fr.City, fr.State,
		fr.TotalWeightKg, fr.TotalPallets, fr.Trips, fr.PricePerTrip, fr.Total, fr.Manual)
	return err
}

func (r *repository) DeleteFreight(ctx context.Context, quoteID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM quote_freights WHERE quote_id = $1`, quoteID)
	return err
}
