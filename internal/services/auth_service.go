package services

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"timebank/internal/domain"
	"timebank/internal/repos"
)

var ErrBadCreds = errors.New("invalid username or password")

type AuthService struct {
	Users *repos.UserRepo
}

func NewAuthService(users *repos.UserRepo) *AuthService {
	return &AuthService{Users: users}
}

// Login checks the password and binds the session id to the user.
func (s *AuthService) Login(ctx context.Context, sid, login, password string) (*domain.User, error) {
	u, err := s.Authenticate(ctx, login, password)
	if err != nil {
		return nil, err
	}
	if err := s.Users.BindSession(ctx, sid, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate checks credentials without touching any session.
func (s *AuthService) Authenticate(ctx context.Context, login, password string) (*domain.User, error) {
	u, err := s.Users.ByLogin(ctx, login)
	if err != nil {
		return nil, ErrBadCreds
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return nil, ErrBadCreds
	}
	return u, nil
}

func (s *AuthService) Logout(ctx context.Context, sid string) error {
	return s.Users.UnbindSession(ctx, sid)
}

func (s *AuthService) CurrentUser(ctx context.Context, sid string) (*domain.User, error) {
	return s.Users.SessionUser(ctx, sid)
}
