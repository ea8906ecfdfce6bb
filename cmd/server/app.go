package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kmsv-2726/federated-socmed/config"
	"github.com/kmsv-2726/federated-socmed/internal/cache"
	"github.com/kmsv-2726/federated-socmed/internal/identity"
	"github.com/kmsv-2726/federated-socmed/internal/metrics"
	"github.com/kmsv-2726/federated-socmed/internal/repository"
	"github.com/kmsv-2726/federated-socmed/internal/service"
	pkgcache "github.com/kmsv-2726/federated-socmed/pkg/cache"
	"github.com/kmsv-2726/federated-socmed/pkg/database"
	"github.com/kmsv-2726/federated-socmed/pkg/logger"
)

// app 进程内的全部依赖
type app struct {
	cfg     *config.Config
	db      *gorm.DB
	rdb     *redis.Client
	metrics *metrics.Metrics

	posts repository.PostRepository

	replicator *service.IndexReplicator
	worker     *service.DeliveryWorker

	users      service.UserService
	relations  service.RelationshipService
	channels   service.ChannelService
	postSvc    service.PostService
	moderation service.ModerationService
	inbox      service.InboxService

	interactions service.InteractionService
}

// loadConfig 读配置并初始化全局 logger
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

// newApp 组装仓储与服务。withWorkers=false 时不创建投递 worker 与缓存，供一次性管理命令使用
func newApp(ctx context.Context, cfg *config.Config, withWorkers bool) (*app, error) {
	db, err := database.InitDB(cfg)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &app{cfg: cfg, db: db, metrics: metrics.New(reg)}

	userRepo := repository.NewUserRepository(db)
	followRepo := repository.NewFollowRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	requestRepo := repository.NewAccessRequestRepository(db)
	reportRepo := repository.NewReportRepository(db)
	a.posts = repository.NewPostRepository(db)

	var index service.FollowerIndex
	if withWorkers {
		a.rdb, err = pkgcache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		if a.rdb != nil {
			index = cache.NewFollowerIndex(a.rdb, cfg.Redis.IndexTTL)
			a.replicator = service.NewIndexReplicator(index, cfg.Federation.ReplicatorSize, a.metrics)
			logger.Info("follower index enabled", zap.String("redis", cfg.Redis.Addr))
		}

		notifier := service.NewHTTPNotifier(nil, cfg.Federation.ServerName,
			cfg.Federation.InboxScheme, cfg.Federation.InboxPath,
			cfg.Federation.PerServerRPS, cfg.Federation.RequestTimeout, cfg.Federation.PeerKeys)
		a.worker = service.NewDeliveryWorker(a.posts, notifier, cfg.Federation, a.metrics)
	}

	minter := identity.NewMinter(nil)
	server := cfg.Federation.ServerName

	a.users = service.NewUserService(userRepo, server)
	a.relations = service.NewRelationshipService(followRepo, userRepo, channelRepo, index, a.replicator, a.metrics)
	a.channels = service.NewChannelService(channelRepo, userRepo, followRepo, requestRepo, a.relations, server, a.metrics)
	var waker service.Waker
	if a.worker != nil {
		waker = a.worker
	}
	a.postSvc = service.NewPostService(a.posts, userRepo, followRepo, a.channels, minter, waker, server, a.metrics)
	a.moderation = service.NewModerationService(reportRepo, userRepo, a.metrics)
	a.inbox = service.NewInboxService(a.posts, userRepo, minter, server, service.InboxAuth{
		Keys:    cfg.Federation.PeerKeys,
		Require: cfg.Federation.RequireSignature,
	})
	a.interactions = service.NewInteractionService(repository.NewInteractionRepository(db), a.postSvc, a.posts, userRepo)
	return a, nil
}

func (a *app) close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if err := database.Close(a.db); err != nil {
		logger.Warn("close database", zap.Error(err))
	}
}
