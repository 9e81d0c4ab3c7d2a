package dashboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/constructa/propostas/internal/platform/db"
	"github.com/constructa/propostas/internal/quotes"
)

type Repository interface {
	StatusCounts(ctx context.Context, f Filters) ([]StatusCount, error)
	Monthly(ctx context.Context, f Filters) ([]MonthPoint, error)
	VendorRanking(ctx context.Context, f Filters, limit int) ([]VendorRank, error)
	TopProducts(ctx context.Context, f Filters, limit int) ([]ProductRank, error)
}

type repository struct {
	db db.DBTX
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

// where builds the shared quote filter. Dates apply to created_at in
// local time; To is exclusive.
func where(f Filters) (string, []any) {
	clauses := []string{"1=1"}
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(cond, len(args)))
	}
	if f.VendorID > 0 {
		add("q.vendor_id = $%d", f.VendorID)
	}
	if f.From != nil {
		add("q.created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("q.created_at < $%d", *f.To)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *repository) StatusCounts(ctx context.Context, f Filters) ([]StatusCount, error) {
	cond, args := where(f)
	rows, err := r.db.Query(ctx, `SELECT q.status, COUNT(*), COALESCE(SUM(q.total_amount), 0)::float8
		FROM quotes q`+cond+` GROUP BY q.status`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatusCount
	for rows.Next() {
		var sc StatusCount
		var status string
		if err := rows.Scan(&status, &sc.Count, &sc.Total); err != nil {
			return nil, err
		}
		sc.Status = quotes.Status(status)
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (r *repository) Monthly(ctx context.Context, f Filters) ([]MonthPoint, error) {
	cond, args := where(f)
	rows, err := r.db.Query(ctx, `SELECT to_char(date_trunc('month', q.created_at AT TIME ZONE 'America/Sao_Paulo'), 'YYYY-MM') AS month,
			COUNT(*),
			COUNT(*) FILTER (WHERE q.status = 'accepted'),
			COALESCE(SUM(q.total_amount), 0)::float8,
			COALESCE(SUM(q.total_amount) FILTER (WHERE q.status = 'accepted'), 0)::float8
		FROM quotes q`+cond+`
		GROUP BY month ORDER BY month`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MonthPoint
	for rows.Next() {
		var m MonthPoint
		if err := rows.Scan(&m.Month, &m.Quotes, &m.Accepted, &m.Total, &m.AcceptedTotal); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *repository) VendorRanking(ctx context.Context, f Filters, limit int) ([]VendorRank, error) {
	cond, args := where(f)
	args = append(args, limit)
	rows, err := r.db.Query(ctx, fmt.Sprintf(`SELECT q.vendor_id, u.full_name,
			COUNT(*),
			COUNT(*) FILTER (WHERE q.status = 'accepted'),
			COUNT(*) FILTER (WHERE q.status IN ('accepted', 'rejected', 'expired')),
			COALESCE(SUM(q.total_amount) FILTER (WHERE q.status = 'accepted'), 0)::float8 AS accepted_total
		FROM quotes q JOIN users u ON u.id = q.vendor_id%s
		GROUP BY q.vendor_id, u.full_name
		ORDER BY accepted_total DESC, COUNT(*) DESC, q.vendor_id
		LIMIT $%d`, cond, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []VendorRank
	for rows.Next() {
		var v VendorRank
		if err := rows.Scan(&v.VendorID, &v.Name, &v.Quotes, &v.Accepted, &v.Closed, &v.AcceptedTotal); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *repository) TopProducts(ctx context.Context, f Filters, limit int) ([]ProductRank, error) {
	cond, args := where(f)
	args = append(args, limit)
	rows, err := r.db.Query(ctx, fmt.Sprintf(`SELECT p.id, p.code, p.name,
			COALESCE(SUM(i.quantity), 0)::float8, COALESCE(SUM(i.line_total), 0)::float8 AS total
		FROM quote_items i
		JOIN quotes q ON q.id = i.quote_id
		JOIN products p ON p.id = i.product_id%s AND q.status <> 'cancelled'
		GROUP BY p.id, p.code, p.name
		ORDER BY total DESC, p.id
		LIMIT $%d`, cond, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ProductRank
	for rows.Next() {
		var p ProductRank
		if err := rows.Scan(&p.ProductID, &p.Code, &p.Name, &p.Quantity, &p.Total); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
