package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kmsv-2726/federated-socmed/internal/identity"
	"github.com/kmsv-2726/federated-socmed/internal/model"
	"github.com/kmsv-2726/federated-socmed/internal/repository"
)

const testServer = "srv1"

type testEnv struct {
	db       *gorm.DB
	users    repository.UserRepository
	follows  repository.FollowRepository
	channels repository.ChannelRepository
	requests repository.AccessRequestRepository
	posts    repository.PostRepository
	reports  repository.ReportRepository
	inter    repository.InteractionRepository

	userSvc    UserService
	relations  RelationshipService
	channelSvc ChannelService
	postSvc    PostService
	moderation ModerationService
	interact   InteractionService
	minter     *identity.Minter
}

type wakeCounter struct{ n int }

func (w *wakeCounter) Wake() { w.n++ }

func newTestEnv(t testing.TB) *testEnv {
	return newTestEnvWith(t, nil, nil)
}

func newTestEnvWith(t testing.TB, index FollowerIndex, waker Waker) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(model.All()...))
	t.Cleanup(func() { _ = sqlDB.Close() })

	e := &testEnv{
		db:       db,
		users:    repository.NewUserRepository(db),
		follows:  repository.NewFollowRepository(db),
		channels: repository.NewChannelRepository(db),
		requests: repository.NewAccessRequestRepository(db),
		posts:    repository.NewPostRepository(db),
		reports:  repository.NewReportRepository(db),
		inter:    repository.NewInteractionRepository(db),
		minter:   identity.NewMinter(nil),
	}
	e.userSvc = NewUserService(e.users, testServer)
	e.relations = NewRelationshipService(e.follows, e.users, e.channels, index, nil, nil)
	e.channelSvc = NewChannelService(e.channels, e.users, e.follows, e.requests, e.relations, testServer, nil)
	e.postSvc = NewPostService(e.posts, e.users, e.follows, e.channelSvc, e.minter, waker, testServer, nil)
	e.moderation = NewModerationService(e.reports, e.users, nil)
	e.interact = NewInteractionService(e.inter, e.postSvc, e.posts, e.users)
	return e
}

// local 注册本节点用户，返回联邦 id
func (e *testEnv) local(t testing.TB, localID string) string {
	t.Helper()
	u, err := e.userSvc.Register(context.Background(), RegisterInput{LocalID: localID, DisplayName: localID})
	require.NoError(t, err)
	return u.FederatedID
}

func (e *testEnv) admin(t testing.TB, localID string) string {
	t.Helper()
	u, err := e.userSvc.Register(context.Background(), RegisterInput{LocalID: localID, Admin: true})
	require.NoError(t, err)
	return u.FederatedID
}

func (e *testEnv) remote(t testing.TB, federatedID string) string {
	t.Helper()
	u, err := e.userSvc.UpsertRemote(context.Background(), federatedID, "")
	require.NoError(t, err)
	return u.FederatedID
}

func (e *testEnv) channel(t testing.TB, adminID, name string, vis model.Visibility) *model.Channel {
	t.Helper()
	ch, err := e.channelSvc.CreateChannel(context.Background(), adminID, CreateChannelInput{Name: name, Visibility: vis})
	require.NoError(t, err)
	return ch
}

func (e *testEnv) counts(t testing.TB, id string) FollowCounts {
	t.Helper()
	c, err := e.relations.Counts(context.Background(), id)
	require.NoError(t, err)
	return c
}
