package postgres

import (
	"context"
	"testing"

	"github.com/Togather-Foundation/campus-events/internal/domain/users"
	"github.com/stretchr/testify/require"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t)
	repo, err := NewRepository(pool)
	require.NoError(t, err)
	usersRepo := repo.Users()

	created, err := usersRepo.Create(ctx, users.CreateParams{FullName: "Ada", Email: "ada@example.edu", PasswordHash: "hash"})
	require.NoError(t, err)
	require.False(t, created.IsAdmin)

	_, err = usersRepo.Create(ctx, users.CreateParams{FullName: "Imposter", Email: "ADA@example.edu", PasswordHash: "hash"})
	require.ErrorIs(t, err, users.ErrEmailTaken)

	byEmail, err := usersRepo.GetByEmail(ctx, "Ada@Example.edu")
	require.NoError(t, err)
	require.Equal(t, created.ID, byEmail.ID)

	require.NoError(t, usersRepo.SetAdmin(ctx, created.ID, true))
	byID, err := usersRepo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, byID.IsAdmin)

	_, err = usersRepo.GetByID(ctx, "not-a-uuid")
	require.ErrorIs(t, err, users.ErrNotFound)
	_, err = usersRepo.GetByEmail(ctx, "nobody@example.edu")
	require.ErrorIs(t, err, users.ErrNotFound)
}
