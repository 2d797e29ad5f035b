package users

import (
	"context"

	"github.com/avdeev/usersvc/internal/server/models"
)

// Repository is the persistent user store. Implementations return
// common.ErrorNotFound for missing rows and common.ErrorAlreadyExists when
// the email uniqueness constraint is violated.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Update(ctx context.Context, user *models.User) (*models.User, error)
	Delete(ctx context.Context, id string) error
	ExistsByID(ctx context.Context, id string) (bool, error)
}
