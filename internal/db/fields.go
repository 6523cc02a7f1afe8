package db

import (
	"context"
	"database/sql"
	"fmt"

	"farm-market/internal/models"
)

type fieldDBImplementation struct {
	db *sql.DB
}

func NewFieldDB(dbConn *sql.DB) FieldDB {
	return &fieldDBImplementation{db: dbConn}
}

const fieldColumns = "id, farm_id, name, area_acres, crop, price_coins, rent_coins_per_day, available, created_at, updated_at"

func scanField(row interface{ Scan(...any) error }) (models.Field, error) {
	var f models.Field
	err := row.Scan(&f.ID, &f.FarmID, &f.Name, &f.AreaAcres, &f.Crop, &f.PriceCoins, &f.RentCoinsPerDay,
		&f.Available, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

func (d *fieldDBImplementation) CreateField(ctx context.Context, f *models.Field) error {
	err := d.db.QueryRowContext(ctx, `
INSERT INTO fields (farm_id, name, area_acres, crop, price_coins, rent_coins_per_day, available)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at, updated_at`,
		f.FarmID, f.Name, f.AreaAcres, f.Crop, f.PriceCoins, f.RentCoinsPerDay, f.Available,
	).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return wrapErr(err, "create field on farm %d", f.FarmID)
	}
	return nil
}

func (d *fieldDBImplementation) GetField(ctx context.Context, id int64) (models.Field, error) {
	f, err := scanField(d.db.QueryRowContext(ctx, "SELECT "+fieldColumns+" FROM fields WHERE id = $1", id))
	if err != nil {
		return models.Field{}, wrapErr(err, "get field %d", id)
	}
	return f, nil
}

func (d *fieldDBImplementation) GetFieldForUpdate(ctx context.Context, tx *sql.Tx, id int64) (models.Field, error) {
	f, err := scanField(tx.QueryRowContext(ctx, "SELECT "+fieldColumns+" FROM fields WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return models.Field{}, wrapErr(err, "get field %d for update", id)
	}
	return f, nil
}

// GetFieldOwner returns the user owning the farm the field belongs to.
func (d *fieldDBImplementation) GetFieldOwner(ctx context.Context, fieldID int64) (int64, error) {
	var ownerID int64
	err := d.db.QueryRowContext(ctx,
		"SELECT f.owner_id FROM fields fl JOIN farms f ON f.id = fl.farm_id WHERE fl.id = $1", fieldID).Scan(&ownerID)
	if err != nil {
		return 0, wrapErr(err, "get owner of field %d", fieldID)
	}
	return ownerID, nil
}

func (d *fieldDBImplementation) ListFields(ctx context.Context, farmID int64) ([]models.Field, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT "+fieldColumns+" FROM fields WHERE farm_id = $1 ORDER BY id", farmID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fields: %w", err)
	}
	defer rows.Close()

	fields := []models.Field{}
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

func (d *fieldDBImplementation) UpdateField(ctx context.Context, f *models.Field) error {
	err := d.db.QueryRowContext(ctx, `
UPDATE fields
SET name = $1, area_acres = $2, crop = $3, price_coins = $4, rent_coins_per_day = $5, available = $6, updated_at = now()
WHERE id = $7 RETURNING updated_at`,
		f.Name, f.AreaAcres, f.Crop, f.PriceCoins, f.RentCoinsPerDay, f.Available, f.ID,
	).Scan(&f.UpdatedAt)
	if err != nil {
		return wrapErr(err, "update field %d", f.ID)
	}
	return nil
}

func (d *fieldDBImplementation) DeleteField(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, "DELETE FROM fields WHERE id = $1", id)
	if err != nil {
		return wrapErr(err, "delete field %d", id)
	}
	return checkAffected(res, "delete field %d", id)
}
