//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursewise/videokb/internal/domain"
	"github.com/coursewise/videokb/internal/testutil"
)

func TestOwnerRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewOwnerRepository(pool)
	owner := insertOwner(ctx, t, repo)

	retrieved, err := repo.GetByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.Name, retrieved.Name)

	byName, err := repo.GetByName(ctx, owner.Name)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, byName.ID)
}

func TestOwnerRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewOwnerRepository(pool)

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrOwnerNotFound)
}

func TestOwnerRepository_List(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewOwnerRepository(pool)
	insertOwner(ctx, t, repo)
	insertOwner(ctx, t, repo)

	owners, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, owners, 2)
}
