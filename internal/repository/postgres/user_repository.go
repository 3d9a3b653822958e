package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(ctx, "lower(email) = lower(?) AND deleted_at IS NULL", email)
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.first(ctx, "id = ? AND deleted_at IS NULL", id)
}

func (r *UserRepository) UpdateLoginState(ctx context.Context, id uuid.UUID, failedCount int, lockedUntil, lastLoginAt *time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"failed_login_count": failedCount,
			"locked_until":       lockedUntil,
			"last_login_at":      lastLoginAt,
		}).Error
	if err != nil {
		return fmt.Errorf("updating login state for %s: %w", id, err)
	}
	return nil
}

// ListActiveByRole returns active users holding role, ordered by first name.
func (r *UserRepository) ListActiveByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	var users []*domain.User
	err := r.db.WithContext(ctx).
		Where("role = ? AND is_active = ? AND deleted_at IS NULL", role, true).
		Order("first_name ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("listing %s users: %w", role, err)
	}
	return users, nil
}

func (r *UserRepository) first(ctx context.Context, where string, arg any) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).Where(where, arg).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}
