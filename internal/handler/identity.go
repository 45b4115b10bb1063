package handler

import (
	"context"
	"errors"

	"github.com/vgc-community/board-backend/internal/model"
	"github.com/vgc-community/board-backend/internal/repository"
	"gorm.io/gorm"
)

var errNoProfile = errors.New("no registered profile")

// resolveUser maps the authenticated firebase uid to the user record that
// participates in conversations. Identity is always resolved fresh per
// request; nothing is cached across requests.
func resolveUser(ctx context.Context, users repository.UserRepository, uid string) (*model.User, error) {
	if uid == "" {
		return nil, errNoProfile
	}
	u, err := users.FindByFirebaseUID(ctx, uid)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errNoProfile
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
