package user

import (
	"context"
	"database/sql"
	"fmt"

	"foodorder-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	HasPrivilege(ctx context.Context, userID uint, privilege Privilege) (bool, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) HasPrivilege(ctx context.Context, userID uint, privilege Privilege) (bool, error) {
	if !privilege.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownPrivilege, privilege)
	}

	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_privileges
			WHERE user_id = $1 AND privilege = $2
		)
	`, userID, privilege).Scan(&exists)
	if err != nil {
		logger.FromCtx(ctx).Error("db: failed to check privilege",
			zap.Uint("user_id", userID),
			zap.String("privilege", string(privilege)),
			zap.Error(err),
		)
		return false, fmt.Errorf("check privilege: %w", err)
	}
	return exists, nil
}
