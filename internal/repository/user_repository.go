package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	apperrors "userhub/internal/errors"
	"userhub/internal/model"
)

// UserRepository defines persistence operations for user records.
// Lookups return (nil, nil) when no record matches.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	Update(ctx context.Context, id string, patch model.UserPatch) (*model.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) (*model.User, error) {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, &apperrors.StorageError{Op: "create user", Err: err}
	}
	return user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := r.first(r.db.WithContext(ctx), "email = ?", email)
	if err != nil {
		return nil, &apperrors.StorageError{Op: "find user by email", Err: err}
	}
	return user, nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := r.first(r.db.WithContext(ctx), "id = ?", id)
	if err != nil {
		return nil, &apperrors.StorageError{Op: "find user by id", Err: err}
	}
	return user, nil
}

// Update applies the non-nil fields of patch and returns the refreshed record.
func (r *userRepository) Update(ctx context.Context, id string, patch model.UserPatch) (*model.User, error) {
	var updated *model.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := r.first(tx, "id = ?", id)
		if err != nil || current == nil {
			return err
		}

		cols := patch.Columns()
		if len(cols) == 0 {
			updated = current
			return nil
		}
		if err := tx.Model(current).Updates(cols).Error; err != nil {
			return err
		}

		updated, err = r.first(tx, "id = ?", id)
		return err
	})
	if err != nil {
		return nil, &apperrors.StorageError{Op: "update user", Err: err}
	}
	return updated, nil
}

func (r *userRepository) first(db *gorm.DB, query string, arg any) (*model.User, error) {
	var user model.User
	if err := db.Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}
