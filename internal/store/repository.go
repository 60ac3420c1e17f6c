package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"foodorder-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	OwnerID(ctx context.Context, storeID uint) (uint, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// OwnerID returns the user that manages the store.
func (r *repository) OwnerID(ctx context.Context, storeID uint) (uint, error) {
	var owner uint
	err := r.db.QueryRowContext(ctx,
		`SELECT owner_id FROM stores WHERE id = $1`, storeID,
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrStoreNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("db: failed to load store owner",
			zap.Uint("store_id", storeID),
			zap.Error(err),
		)
		return 0, fmt.Errorf("get store owner: %w", err)
	}
	return owner, nil
}
