package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/kxw147-gmail/token-pricing-system/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// GetByUsername returns the user with the given username, or (nil, nil)
// when no such user exists.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `
		SELECT id, username, hashed_password, is_active
		FROM users
		WHERE username = $1
	`

	var user model.User
	err := r.db.GetContext(ctx, &user, query, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user by username",
			zap.Error(err),
			zap.String("username", username))
		return nil, err
	}

	return &user, nil
}

// Create stores a new user with the given password hash and returns it.
func (r *UserRepository) Create(ctx context.Context, username, hashedPassword string) (*model.User, error) {
	query := `
		INSERT INTO users (username, hashed_password, is_active)
		VALUES ($1, $2, TRUE)
		RETURNING id, username, hashed_password, is_active
	`

	var user model.User
	err := r.db.GetContext(ctx, &user, query, username, hashedPassword)
	if err != nil {
		r.logger.Error("Failed to create user",
			zap.Error(err),
			zap.String("username", username))
		return nil, err
	}

	return &user, nil
}
