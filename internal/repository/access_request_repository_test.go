package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmsv-2726/federated-socmed/internal/model"
)

func TestAccessRequestReusesPending(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccessRequestRepository(db)
	ctx := context.Background()

	first, created, err := repo.CreatePending(ctx, "srv1/user/1", "secret")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := repo.CreatePending(ctx, "srv1/user/1", "secret")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	require.NoError(t, repo.Decide(ctx, first.ID, model.AccessRejected, "srv1/user/admin"))
	assert.ErrorIs(t, repo.Decide(ctx, first.ID, model.AccessApproved, "srv1/user/admin"), ErrStateChanged)

	// 被拒后可以重新申请
	third, created, err := repo.CreatePending(ctx, "srv1/user/1", "secret")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, third.ID)

	pending, err := repo.ListByChannel(ctx, "secret", model.AccessPending, 0, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, third.ID, pending[0].ID)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
