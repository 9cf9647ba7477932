package services

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/paulexconde/surveydesk/internal/models"
	"github.com/paulexconde/surveydesk/internal/pkg/store"
)

// Users are provisioned outside the API; this service only reads them.
type UserService interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

type userServiceImpl struct {
	users store.Datastorer[models.User]
}

func NewUserService(db *sqlx.DB) UserService {
	return &userServiceImpl{users: store.NewDataStore[models.User](db, "users")}
}

func (s *userServiceImpl) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.users.Select(ctx, `SELECT id, username FROM users ORDER BY id`)
}

func (s *userServiceImpl) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.users.Get(ctx, `SELECT id, username FROM users WHERE id = ?`, id)
}
