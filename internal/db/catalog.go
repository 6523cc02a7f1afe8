package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"farm-market/internal/models"
)

type catalogDBImplementation struct {
	db *sql.DB
}

func NewCatalogDB(dbConn *sql.DB) CatalogDB {
	return &catalogDBImplementation{db: dbConn}
}

func (c *catalogDBImplementation) ListPackages(ctx context.Context) ([]models.CoinPackage, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT id, name, coins, price, currency, active FROM coin_packages WHERE active ORDER BY coins")
	if err != nil {
		return nil, fmt.Errorf("failed to query coin packages: %w", err)
	}
	defer rows.Close()

	pkgs := []models.CoinPackage{}
	for rows.Next() {
		var p models.CoinPackage
		if err := rows.Scan(&p.ID, &p.Name, &p.Coins, &p.Price, &p.Currency, &p.Active); err != nil {
			return nil, fmt.Errorf("failed to scan coin package: %w", err)
		}
		pkgs = append(pkgs, p)
	}
	return pkgs, rows.Err()
}

func (c *catalogDBImplementation) GetPackage(ctx context.Context, id int64) (models.CoinPackage, error) {
	var p models.CoinPackage
	err := c.db.QueryRowContext(ctx,
		"SELECT id, name, coins, price, currency, active FROM coin_packages WHERE id = $1", id).
		Scan(&p.ID, &p.Name, &p.Coins, &p.Price, &p.Currency, &p.Active)
	if err != nil {
		return models.CoinPackage{}, wrapErr(err, "get coin package %d", id)
	}
	return p, nil
}

func (c *catalogDBImplementation) ListCurrencies(ctx context.Context) ([]models.Currency, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT code, name, coin_rate, active FROM currencies WHERE active ORDER BY code")
	if err != nil {
		return nil, fmt.Errorf("failed to query currencies: %w", err)
	}
	defer rows.Close()

	out := []models.Currency{}
	for rows.Next() {
		var cur models.Currency
		if err := rows.Scan(&cur.Code, &cur.Name, &cur.CoinRate, &cur.Active); err != nil {
			return nil, fmt.Errorf("failed to scan currency: %w", err)
		}
		out = append(out, cur)
	}
	return out, rows.Err()
}

func (c *catalogDBImplementation) GetCurrency(ctx context.Context, code string) (models.Currency, error) {
	var cur models.Currency
	err := c.db.QueryRowContext(ctx, "SELECT code, name, coin_rate, active FROM currencies WHERE code = $1",
		strings.ToLower(code)).Scan(&cur.Code, &cur.Name, &cur.CoinRate, &cur.Active)
	if err != nil {
		return models.Currency{}, wrapErr(err, "get currency %q", code)
	}
	return cur, nil
}
