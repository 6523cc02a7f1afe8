package db

import (
	"context"
	"database/sql"
	"fmt"

	"farm-market/internal/models"
)

type farmDBImplementation struct {
	db *sql.DB
}

func NewFarmDB(dbConn *sql.DB) FarmDB {
	return &farmDBImplementation{db: dbConn}
}

const farmColumns = "id, owner_id, name, location, description, created_at, updated_at"

func scanFarm(row interface{ Scan(...any) error }) (models.Farm, error) {
	var f models.Farm
	err := row.Scan(&f.ID, &f.OwnerID, &f.Name, &f.Location, &f.Description, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

func (d *farmDBImplementation) CreateFarm(ctx context.Context, f *models.Farm) error {
	err := d.db.QueryRowContext(ctx, `
INSERT INTO farms (owner_id, name, location, description)
VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`,
		f.OwnerID, f.Name, f.Location, f.Description,
	).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return wrapErr(err, "create farm")
	}
	return nil
}

func (d *farmDBImplementation) GetFarm(ctx context.Context, id int64) (models.Farm, error) {
	f, err := scanFarm(d.db.QueryRowContext(ctx, "SELECT "+farmColumns+" FROM farms WHERE id = $1", id))
	if err != nil {
		return models.Farm{}, wrapErr(err, "get farm %d", id)
	}
	return f, nil
}

func (d *farmDBImplementation) ListFarms(ctx context.Context, f FarmFilter) ([]models.Farm, error) {
	page := normalizePage(f.Page)
	var (
		rows *sql.Rows
		err  error
	)
	if f.OwnerID != nil {
		rows, err = d.db.QueryContext(ctx,
			"SELECT "+farmColumns+" FROM farms WHERE owner_id = $1 ORDER BY id LIMIT $2 OFFSET $3",
			*f.OwnerID, page.Limit, page.Offset)
	} else {
		rows, err = d.db.QueryContext(ctx,
			"SELECT "+farmColumns+" FROM farms ORDER BY id LIMIT $1 OFFSET $2", page.Limit, page.Offset)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query farms: %w", err)
	}
	defer rows.Close()

	farms := []models.Farm{}
	for rows.Next() {
		farm, err := scanFarm(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan farm: %w", err)
		}
		farms = append(farms, farm)
	}
	return farms, rows.Err()
}

func (d *farmDBImplementation) UpdateFarm(ctx context.Context, f *models.Farm) error {
	err := d.db.QueryRowContext(ctx, `
UPDATE farms SET name = $1, location = $2, description = $3, updated_at = now()
WHERE id = $4 RETURNING updated_at`,
		f.Name, f.Location, f.Description, f.ID,
	).Scan(&f.UpdatedAt)
	if err != nil {
		return wrapErr(err, "update farm %d", f.ID)
	}
	return nil
}

func (d *farmDBImplementation) DeleteFarm(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, "DELETE FROM farms WHERE id = $1", id)
	if err != nil {
		return wrapErr(err, "delete farm %d", id)
	}
	return checkAffected(res, "delete farm %d", id)
}
