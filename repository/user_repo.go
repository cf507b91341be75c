package repository

import (
	"context"

	"github.com/driftline/driftline/models"
	"github.com/driftline/driftline/store"
)

// UserRepository reads user documents owned by the identity provider.
type UserRepository struct {
	store store.Client
}

func NewUserRepository(c store.Client) *UserRepository {
	return &UserRepository{store: c}
}

func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.store.Get(ctx, id, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
