package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwalitptl/messaging-api/internal/model"
	"github.com/jwalitptl/messaging-api/internal/repository"
	"github.com/jwalitptl/messaging-api/pkg/auth"
	apperrors "github.com/jwalitptl/messaging-api/pkg/errors"
	"github.com/jwalitptl/messaging-api/pkg/security"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	users  repository.UserRepository
	jwtSvc auth.JWTService
	hasher security.PasswordHasher
}

func NewService(users repository.UserRepository, jwtSvc auth.JWTService, hasher security.PasswordHasher) *Service {
	return &Service{
		users:  users,
		jwtSvc: jwtSvc,
		hasher: hasher,
	}
}

// Login exchanges credentials for an access token. Unknown users and wrong
// passwords fail the same way.
func (s *Service) Login(ctx context.Context, req model.LoginRequest) (*model.TokenResponse, error) {
	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized(ErrInvalidCredentials)
		}
		return nil, apperrors.Internal(err)
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, apperrors.Unauthorized(ErrInvalidCredentials)
	}

	token, err := s.jwtSvc.GenerateAccessToken(user)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to generate token: %w", err))
	}

	return &model.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.jwtSvc.TTL().Seconds()),
	}, nil
}

// Authenticate resolves a bearer token to the actor it speaks for.
func (s *Service) Authenticate(token string) (model.Actor, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return model.Actor{}, apperrors.Unauthorized(err)
	}
	return claims.Actor(), nil
}
