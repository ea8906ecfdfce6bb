package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmsv-2726/federated-socmed/internal/model"
)

func TestLikeAndShare(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	author := e.local(t, "a")
	fan := e.local(t, "b")
	p, err := e.postSvc.CreatePost(ctx, author, CreatePostInput{Description: "hi"})
	require.NoError(t, err)

	st, err := e.interact.React(ctx, fan, p.FederatedID, model.ReactionLike)
	require.NoError(t, err)
	assert.EqualValues(t, 1, st.Likes)
	_, err = e.interact.React(ctx, fan, p.ID, model.ReactionLike)
	assert.ErrorIs(t, err, ErrAlreadyReacted)
	st, err = e.interact.React(ctx, author, p.ID, model.ReactionLike)
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.Likes)
	st, err = e.interact.React(ctx, fan, p.ID, model.ReactionShare)
	require.NoError(t, err)
	assert.EqualValues(t, 1, st.Shares)

	st, err = e.interact.Unreact(ctx, fan, p.ID, model.ReactionLike)
	require.NoError(t, err)
	assert.EqualValues(t, 1, st.Likes)
	_, err = e.interact.Unreact(ctx, fan, p.ID, model.ReactionLike)
	assert.ErrorIs(t, err, ErrNotReacted)

	_, err = e.interact.React(ctx, fan, p.ID, "clap")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.interact.React(ctx, "", p.ID, model.ReactionLike)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = e.interact.React(ctx, "srv1/user/ghost", p.ID, model.ReactionLike)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = e.interact.React(ctx, fan, "missing", model.ReactionLike)
	assert.ErrorIs(t, err, ErrNotFound)

	// 互动不改动帖子本身
	got, err := e.postSvc.GetPost(ctx, fan, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Description, got.Description)
	assert.Equal(t, p.FederatedID, got.FederatedID)
	assert.EqualValues(t, 1, got.Stats.Likes)
	assert.EqualValues(t, 1, got.Stats.Shares)
}

func TestComments(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	author := e.local(t, "a")
	fan := e.local(t, "b")
	p, err := e.postSvc.CreatePost(ctx, author, CreatePostInput{Description: "hi"})
	require.NoError(t, err)

	c, err := e.interact.Comment(ctx, fan, p.ID, "  nice  ")
	require.NoError(t, err)
	assert.Equal(t, "nice", c.Body)
	_, err = e.interact.Comment(ctx, fan, p.ID, " ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.interact.Comment(ctx, fan, p.ID, strings.Repeat("x", maxCommentLen+1))
	assert.ErrorIs(t, err, ErrInvalidInput)

	list, err := e.interact.ListComments(ctx, "", p.FederatedID, 1, 20)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, fan, list[0].AuthorID)

	got, err := e.postSvc.GetPost(ctx, fan, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.Stats.Comments)
}

func TestInteractionsFollowChannelReadGate(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	root := e.admin(t, "root")
	outsider := e.local(t, "out")
	e.channel(t, root, "secret", model.VisibilityPrivate)
	p, err := e.postSvc.CreatePost(ctx, root, CreatePostInput{Description: "classified", ChannelName: "secret"})
	require.NoError(t, err)

	_, err = e.interact.React(ctx, outsider, p.ID, model.ReactionLike)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = e.interact.Comment(ctx, outsider, p.ID, "let me in")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = e.interact.ListComments(ctx, outsider, p.ID, 1, 20)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = e.interact.React(ctx, root, p.ID, model.ReactionLike)
	assert.NoError(t, err)
}
