package services

import (
	"context"
	"database/sql"
	"errors"

	"timebank/internal/apperr"
	"timebank/internal/domain"
	"timebank/internal/repos"
)

// ProfileService serves the read side of reputation.
type ProfileService struct {
	Store *repos.Store
}

func NewProfileService(store *repos.Store) *ProfileService {
	return &ProfileService{Store: store}
}

func (s *ProfileService) Get(ctx context.Context, userID int64) (*domain.User, error) {
	u, err := s.Store.Users.ByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user", userID)
	}
	return u, err
}

func (s *ProfileService) Feedback(ctx context.Context, providerID int64) ([]domain.Feedback, error) {
	if _, err := s.Get(ctx, providerID); err != nil {
		return nil, err
	}
	return s.Store.Feedback.ForProvider(ctx, providerID)
}

func (s *ProfileService) Transactions(ctx context.Context, userID int64) ([]domain.Transaction, error) {
	return s.Store.Transactions.ForUser(ctx, userID)
}
