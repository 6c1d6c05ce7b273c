package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"train-station/internal/apperr"
	"train-station/internal/database"
	"train-station/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// CreateUser inserts a user; a taken email is reported as a field error.
func (d *DB) CreateUser(ctx context.Context, u *models.User) error {
	_, err := d.Bun.NewInsert().Model(u).Exec(ctx)
	if database.IsUniqueViolation(err) {
		return apperr.Field("email", apperr.ErrInvalid, "user with this email already exists")
	}
	return err
}

func (d *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := d.Bun.NewSelect().Model(&u).Where("usr.id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (d *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := d.Bun.NewSelect().Model(&u).Where("LOWER(usr.email) = LOWER(?)", email).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", email, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (d *DB) UpdateUser(ctx context.Context, u *models.User) error {
	_, err := d.Bun.NewUpdate().
		Model(u).
		Column("email", "password_hash", "first_name", "last_name").
		WherePK().
		Exec(ctx)
	if database.IsUniqueViolation(err) {
		return apperr.Field("email", apperr.ErrInvalid, "user with this email already exists")
	}
	return err
}
