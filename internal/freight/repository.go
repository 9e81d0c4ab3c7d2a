package freight

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/constructa/propostas/internal/platform/db"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	ListVehicles(ctx context.Context, activeOnly bool) ([]VehicleType, error)
	GetVehicle(ctx context.Context, id int64) (VehicleType, error)
	CreateVehicle(ctx context.Context, v VehicleType) (VehicleType, error)
	UpdateVehicle(ctx context.Context, v VehicleType) error
	DeactivateVehicle(ctx context.Context, id int64) error
	UpsertVehicle(ctx context.Context, v VehicleType) (VehicleType, error)

	ListRates(ctx context.Context, filters RateFilters) ([]Rate, int, error)
	GetRate(ctx context.Context, id int64) (Rate, error)
	// CandidateRates returns active rates for a state, vehicle and modality;
	// city matching happens in the service.
	CandidateRates(ctx context.Context, state string, vehicleTypeID int64, modality Modality) ([]Rate, error)
	CreateRate(ctx context.Context, rate Rate) (Rate, error)
	UpdateRate(ctx context.Context, rate Rate) error
	DeactivateRate(ctx context.Context, id int64) error
	UpsertRate(ctx context.Context, rate Rate) (inserted bool, err error)
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

const vehicleColumns = `id, name, capacity_kg, pallet_capacity, is_active`

func scanVehicle(row pgx.Row) (VehicleType, error) {
	var v VehicleType
	err := row.Scan(&v.ID, &v.Name, &v.CapacityKg, &v.PalletCapacity, &v.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return VehicleType{}, ErrVehicleNotFound
	}
	return v, err
}

func (r *repository) ListVehicles(ctx context.Context, activeOnly bool) ([]VehicleType, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicle_types`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY capacity_kg, name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []VehicleType
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *repository) GetVehicle(ctx context.Context, id int64) (VehicleType, error) {
	return scanVehicle(r.db.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicle_types WHERE id = $1`, id))
}

func (r *repository) CreateVehicle(ctx context.Context, v VehicleType) (VehicleType, error) {
	created, err := scanVehicle(r.db.QueryRow(ctx, `INSERT INTO vehicle_types (name, capacity_kg, pallet_capacity, is_active)
		VALUES ($1, $2, $3, $4) RETURNING `+vehicleColumns, v.Name, v.CapacityKg, v.PalletCapacity, v.IsActive))
	if err != nil && db.IsUniqueViolation(err) {
		return VehicleType{}, ErrDuplicateVehicle
	}
	return created, err
}

func (r *repository) UpdateVehicle(ctx context.Context, v VehicleType) error {
	tag, err := r.db.Exec(ctx, `UPDATE vehicle_types SET name = $2, capacity_kg = $3, pallet_capacity = $4, is_active = $5 WHERE id = $1`,
		v.ID, v.Name, v.CapacityKg, v.PalletCapacity, v.IsActive)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateVehicle
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVehicleNotFound
	}
	return nil
}

func (r *repository) DeactivateVehicle(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE vehicle_types SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVehicleNotFound
	}
	return nil
}

func (r *repository) UpsertVehicle(ctx context.Context, v VehicleType) (VehicleType, error) {
	return scanVehicle(r.db.QueryRow(ctx, `INSERT INTO vehicle_types (name, capacity_kg, pallet_capacity, is_active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (name) DO UPDATE SET capacity_kg = EXCLUDED.capacity_kg, pallet_capacity = EXCLUDED.pallet_capacity, is_active = TRUE
		RETURNING `+vehicleColumns, v.Name, v.CapacityKg, v.PalletCapacity))
}

const rateColumns = `r.id, r.city, r.state, r.vehicle_type_id, v.name, r.modality, r.price_per_trip, r.is_active, r.created_at, r.updated_at`

const rateFrom = ` FROM freight_rates r JOIN vehicle_types v ON v.id = r.vehicle_type_id`

func scanRate(row pgx.Row) (Rate, error) {
	var rt Rate
	var modality string
	err := row.Scan(&rt.ID, &rt.City, &rt.State, &rt.VehicleTypeID, &rt.VehicleName, &modality,
		&rt.PricePerTrip, &rt.IsActive, &rt.CreatedAt, &rt.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rate{}, ErrRateNotFound
	}
	rt.Modality = Modality(modality)
	return rt, err
}

func (r *repository) ListRates(ctx context.Context, filters RateFilters) ([]Rate, int, error) {
	var conditions []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conditions = append(conditions, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if filters.City != "" {
		add("r.city ILIKE ?", "%"+filters.City+"%")
	}
	if filters.State != "" {
		add("r.state = ?", strings.ToUpper(filters.State))
	}
	if filters.VehicleTypeID > 0 {
		add("r.vehicle_type_id = ?", filters.VehicleTypeID)
	}
	if filters.Modality != "" {
		add("r.modality = ?", string(filters.Modality))
	}
	if filters.ActiveOnly {
		conditions = append(conditions, "r.is_active")
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*)`+rateFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)
	query := `SELECT ` + rateColumns + rateFrom + where + ` ORDER BY r.state, r.city, v.capacity_kg` +
		` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Rate
	for rows.Next() {
		rt, err := scanRate(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rt)
	}
	return out, total, rows.Err()
}

func (r *repository) GetRate(ctx context.Context, id int64) (Rate, error) {
	return scanRate(r.db.QueryRow(ctx, `SELECT `+rateColumns+rateFrom+` WHERE r.id = $1`, id))
}

func (r *repository) CandidateRates(ctx context.Context, state string, vehicleTypeID int64, modality Modality) ([]Rate, error) {
	rows, err := r.db.Query(ctx, `SELECT `+rateColumns+rateFrom+`
		WHERE r.is_active AND r.state = $1 AND r.vehicle_type_id = $2 AND r.modality = $3`,
		state, vehicleTypeID, string(modality))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Rate
	for rows.Next() {
		rt, err := scanRate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

func (r *repository) CreateRate(ctx context.Context, rt Rate) (Rate, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO freight_rates (city, state, vehicle_type_id, modality, price_per_trip, is_active)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		rt.City, rt.State, rt.VehicleTypeID, string(rt.Modality), rt.PricePerTrip, rt.IsActive).Scan(&id)
	if err != nil {
		switch {
		case db.IsUniqueViolation(err):
			return Rate{}, ErrDuplicateRate
		case db.IsForeignKeyViolation(err):
			return Rate{}, ErrVehicleNotFound
		}
		return Rate{}, err
	}
	return r.GetRate(ctx, id)
}

func (r *repository) UpdateRate(ctx context.Context, rt Rate) error {
	tag, err := r.db.Exec(ctx, `UPDATE freight_rates SET city = $2, state = $3, vehicle_type_id = $4, modality = $5,
		price_per_trip = $6, is_active = $7, updated_at = NOW() WHERE id = $1`,
		rt.ID, rt.City, rt.State, rt.VehicleTypeID, string(rt.Modality), rt.PricePerTrip, rt.IsActive)
	if err != nil {
		switch {
		case db.IsUniqueViolation(err):
			return ErrDuplicateRate
		case db.IsForeignKeyViolation(err):
			return ErrVehicleNotFound
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRateNotFound
	}
	return nil
}

func (r *repository) DeactivateRate(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE freight_rates SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRateNotFound
	}
	return nil
}

func (r *repository) UpsertRate(ctx context.Context, rt Rate) (bool, error) {
	var inserted bool
	err := r.db.QueryRow(ctx, `INSERT INTO freight_rates (city, state, vehicle_type_id, modality, price_per_trip, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (city, state, vehicle_type_id, modality)
		DO UPDATE SET price_per_trip = EXCLUDED.price_per_trip, is_active = TRUE, updated_at = NOW()
		RETURNING (xmax = 0)`,
		rt.City, rt.State, rt.VehicleTypeID, string(rt.Modality), rt.PricePerTrip).Scan(&inserted)
	return inserted, err
}
