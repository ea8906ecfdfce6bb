package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmsv-2726/federated-socmed/internal/model"
)

func TestPrivateChannelAccess(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	root := e.admin(t, "root")
	alice := e.local(t, "alice")
	ch := e.channel(t, root, "Secret", model.VisibilityPrivate)
	assert.Equal(t, "secret", ch.Name)
	assert.Equal(t, "srv1/channel/secret", ch.FederatedID)

	assert.ErrorIs(t, e.channelSvc.Join(ctx, alice, "secret"), ErrApprovalRequired)

	canRead, err := e.channelSvc.CanRead(ctx, alice, "secret")
	require.NoError(t, err)
	assert.False(t, canRead)
	canPost, err := e.channelSvc.CanPost(ctx, alice, "secret")
	require.NoError(t, err)
	assert.False(t, canPost)

	// 管理员不需要成员身份
	canRead, err = e.channelSvc.CanRead(ctx, root, "secret")
	require.NoError(t, err)
	assert.True(t, canRead)
	canPost, err = e.channelSvc.CanPost(ctx, root, "SECRET")
	require.NoError(t, err)
	assert.True(t, canPost)

	// 匿名读者
	canRead, err = e.channelSvc.CanRead(ctx, "", "secret")
	require.NoError(t, err)
	assert.False(t, canRead)
}

func TestRequestAccessApprove(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	root := e.admin(t, "root")
	alice := e.local(t, "alice")
	e.channel(t, root, "secret", model.VisibilityPrivate)

	req, err := e.channelSvc.RequestAccess(ctx, alice, "secret")
	require.NoError(t, err)
	assert.Equal(t, model.AccessPending, req.Status)

	again, err := e.channelSvc.RequestAccess(ctx, alice, "secret")
	require.NoError(t, err)
	assert.Equal(t, req.ID, again.ID)

	// 申请不改变计数
	assert.Equal(t, FollowCounts{}, e.counts(t, "srv1/channel/secret"))

	_, err = e.channelSvc.ApproveRequest(ctx, alice, req.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	pending, err := e.channelSvc.ListRequests(ctx, root, "secret", model.AccessPending, 1, 20)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	approved, err := e.channelSvc.ApproveRequest(ctx, root, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AccessApproved, approved.Status)
	assert.Equal(t, root, approved.DecidedBy)

	assert.Equal(t, FollowCounts{Followers: 1}, e.counts(t, "srv1/channel/secret"))
	canPost, err := e.channelSvc.CanPost(ctx, alice, "secret")
	require.NoError(t, err)
	assert.True(t, canPost)

	_, err = e.channelSvc.ApproveRequest(ctx, root, req.ID)
	assert.ErrorIs(t, err, ErrRequestClosed)
	_, err = e.channelSvc.RequestAccess(ctx, alice, "secret")
	assert.ErrorIs(t, err, ErrAlreadyFollowing)

	require.NoError(t, e.channelSvc.Leave(ctx, alice, "secret"))
	assert.Equal(t, FollowCounts{}, e.counts(t, "srv1/channel/secret"))
}

func TestRequestAccessReject(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	root := e.admin(t, "root")
	alice := e.local(t, "alice")
	e.channel(t, root, "secret", model.VisibilityPrivate)

	req, err := e.channelSvc.RequestAccess(ctx, alice, "secret")
	require.NoError(t, err)
	rejected, err := e.channelSvc.RejectRequest(ctx, root, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AccessRejected, rejected.Status)

	member, err := e.relations.IsFollowing(ctx, alice, "srv1/channel/secret")
	require.NoError(t, err)
	assert.False(t, member)

	_, err = e.channelSvc.RejectRequest(ctx, root, req.ID)
	assert.ErrorIs(t, err, ErrRequestClosed)
	_, err = e.channelSvc.RejectRequest(ctx, root, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPublicAndReadOnlyChannels(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	root := e.admin(t, "root")
	alice := e.local(t, "alice")
	e.channel(t, root, "golang", model.VisibilityPublic)
	e.channel(t, root, "news", model.VisibilityReadOnly)

	tests := []struct {
		channel  string
		user     string
		joined   bool
		wantRead bool
		wantPost bool
	}{
		{"golang", alice, false, true, false},
		{"golang", alice, true, true, true},
		{"news", alice, false, true, false},
		{"news", alice, true, true, false},
		{"news", root, false, true, true},
	}
	for _, tt := range tests {
		if tt.joined {
			err := e.channelSvc.Join(ctx, tt.user, tt.channel)
			if err != nil {
				require.ErrorIs(t, err, ErrAlreadyFollowing)
			}
		}
		canRead, err := e.channelSvc.CanRead(ctx, tt.user, tt.channel)
		require.NoError(t, err)
		assert.Equal(t, tt.wantRead, canRead, "%s read %s joined=%v", tt.user, tt.channel, tt.joined)
		canPost, err := e.channelSvc.CanPost(ctx, tt.user, tt.channel)
		require.NoError(t, err)
		assert.Equal(t, tt.wantPost, canPost, "%s post %s joined=%v", tt.user, tt.channel, tt.joined)
	}

	_, err := e.channelSvc.RequestAccess(ctx, alice, "golang")
	assert.ErrorIs(t, err, ErrNoApprovalNeeded)
	assert.ErrorIs(t, e.channelSvc.Join(ctx, alice, "missing"), ErrNotFound)
}

func TestCreateChannelValidation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	root := e.admin(t, "root")
	alice := e.local(t, "alice")

	_, err := e.channelSvc.CreateChannel(ctx, alice, CreateChannelInput{Name: "x"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = e.channelSvc.CreateChannel(ctx, root, CreateChannelInput{Name: "bad/name"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.channelSvc.CreateChannel(ctx, root, CreateChannelInput{Name: "ok", Visibility: "secretive"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	ch, err := e.channelSvc.CreateChannel(ctx, root, CreateChannelInput{Name: "ok"})
	require.NoError(t, err)
	assert.Equal(t, model.VisibilityPublic, ch.Visibility)
	_, err = e.channelSvc.CreateChannel(ctx, root, CreateChannelInput{Name: "OK"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	list, err := e.channelSvc.ListChannels(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
