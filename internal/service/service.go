package service

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"farm-market/internal/db"
	"farm-market/internal/models"
	"farm-market/pkg"

	"go.uber.org/zap"
)

var (
	ErrNotEnoughCoins     = errors.New("not enough coins")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPaymentProvider    = errors.New("payment provider error")
)

// Actor is the authenticated caller of a service method.
type Actor struct {
	UserID int64
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// fromDB translates storage sentinels into service sentinels.
func fromDB(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, db.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, db.ErrDuplicate), errors.Is(err, db.ErrReferenced):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func rollback(tx *sql.Tx, log pkg.Logger) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Error("failed to rollback transaction", zap.Error(err))
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
