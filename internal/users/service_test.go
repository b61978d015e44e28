package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/northcraft/cabinetry-backend/internal/testdb"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
)

func TestRepositoryCreateAndFindByEmail(t *testing.T) {
	repo := NewRepository(testdb.Open(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, CreateUserDTO{Email: " Casey@Example.com ", PasswordHash: "h", FirstName: "Casey"})
	require.NoError(t, err)
	require.Equal(t, "casey@example.com", created.Email)
	require.Equal(t, enums.UserRoleCustomer, created.Role)
	require.True(t, created.IsActive)

	found, err := repo.FindByEmail(ctx, "CASEY@example.com")
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)

	_, err = repo.Create(ctx, CreateUserDTO{Email: "casey@example.com", PasswordHash: "h", FirstName: "Other"})
	require.Error(t, err)
}

func TestServiceUpdateProfile(t *testing.T) {
	repo := NewRepository(testdb.Open(t))
	ctx := context.Background()
	phone := "0400 000 000"
	user, err := repo.Create(ctx, CreateUserDTO{Email: "a@example.com", PasswordHash: "h", FirstName: "A", Phone: &phone})
	require.NoError(t, err)

	svc, err := NewService(repo)
	require.NoError(t, err)

	first := " Alex "
	empty := ""
	dto, err := svc.UpdateProfile(ctx, user.ID, UpdateProfileInput{FirstName: &first, Phone: &empty})
	require.NoError(t, err)
	require.Equal(t, "Alex", dto.FirstName)
	require.Nil(t, dto.Phone)

	blank := "  "
	_, err = svc.UpdateProfile(ctx, user.ID, UpdateProfileInput{FirstName: &blank})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.Me(ctx, uuid.New())
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}
