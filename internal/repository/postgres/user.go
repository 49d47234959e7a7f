package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/messaging-api/internal/model"
)

type userRepository struct {
	BaseRepository
}

const userColumns = `id, username, email, role, password_hash, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.Role,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return err
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.get(ctx, "user", &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(username) = LOWER($1)`
	if err := r.get(ctx, "user", &user, query, username); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users SET
			username = $1,
			email = $2,
			role = $3,
			password_hash = $4,
			updated_at = $5
		WHERE id = $6
	`
	return r.execOne(ctx, "user", query,
		user.Username,
		user.Email,
		user.Role,
		user.PasswordHash,
		user.UpdatedAt,
		user.ID,
	)
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, "user", `DELETE FROM users WHERE id = $1`, id)
}
