package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/messaging-api/internal/model"
	"github.com/jwalitptl/messaging-api/internal/repository/memory"
	"github.com/jwalitptl/messaging-api/pkg/auth"
	apperrors "github.com/jwalitptl/messaging-api/pkg/errors"
	"github.com/jwalitptl/messaging-api/pkg/security"
)

func newService(t *testing.T) (*Service, *model.User) {
	t.Helper()
	store := memory.NewStore()
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("password123")
	require.NoError(t, err)

	u := &model.User{Base: model.Base{ID: uuid.New()}, Username: "alice", Role: model.RoleAdmin, PasswordHash: hash}
	require.NoError(t, store.Users().Create(context.Background(), u))

	jwtSvc, err := auth.NewJWTService("secret", "messaging-api", time.Hour)
	require.NoError(t, err)
	return NewService(store.Users(), jwtSvc, hasher), u
}

func TestLoginIssuesToken(t *testing.T) {
	svc, u := newService(t)

	tok, err := svc.Login(context.Background(), model.LoginRequest{Username: "Alice", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), tok.ExpiresIn)

	a, err := svc.Authenticate(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, model.Actor{ID: u.ID, Role: model.RoleAdmin}, a)
}

func TestLoginFailuresLookAlike(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, wrongPass := svc.Login(ctx, model.LoginRequest{Username: "alice", Password: "password999"})
	_, unknown := svc.Login(ctx, model.LoginRequest{Username: "mallory", Password: "password123"})

	assert.True(t, apperrors.Is(wrongPass, apperrors.ErrUnauthorized))
	assert.True(t, apperrors.Is(unknown, apperrors.ErrUnauthorized))
	assert.Equal(t, wrongPass.Error(), unknown.Error())
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Authenticate("not-a-token")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}
