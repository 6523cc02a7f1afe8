package db

import (
	"context"
	"database/sql"
	"strings"

	"farm-market/internal/models"
)

type userDBImplementation struct {
	db *sql.DB
}

func NewUserDB(dbConn *sql.DB) UserDB {
	return &userDBImplementation{db: dbConn}
}

const userColumns = "id, email, password_hash, name, role, coins, locked_coins, created_at"

func scanUser(row interface{ Scan(...any) error }) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.Coins, &u.LockedCoins, &u.CreatedAt)
	return u, err
}

func (a *userDBImplementation) CreateUser(ctx context.Context, u *models.User) error {
	err := a.db.QueryRowContext(ctx,
		"INSERT INTO users (email, password_hash, name, role) VALUES ($1, $2, $3, $4) RETURNING id, created_at",
		strings.ToLower(u.Email), u.PasswordHash, u.Name, u.Role,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return wrapErr(err, "create user %q", u.Email)
	}
	return nil
}

func (a *userDBImplementation) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	u, err := scanUser(a.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1", strings.ToLower(email)))
	if err != nil {
		return models.User{}, wrapErr(err, "get user by email %q", email)
	}
	return u, nil
}

func (a *userDBImplementation) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	u, err := scanUser(a.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		return models.User{}, wrapErr(err, "get user %d", id)
	}
	return u, nil
}
