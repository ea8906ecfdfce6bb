// Package api HTTP 入口：路由、中间件装配
package api

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/kmsv-2726/federated-socmed/config"
	_ "github.com/kmsv-2726/federated-socmed/docs"
	"github.com/kmsv-2726/federated-socmed/internal/api/handler"
	"github.com/kmsv-2726/federated-socmed/internal/api/middleware"
	"github.com/kmsv-2726/federated-socmed/internal/metrics"
	"github.com/kmsv-2726/federated-socmed/internal/model"
	"github.com/kmsv-2726/federated-socmed/pkg/auth"
)

// NewRouter 组装路由。
// 联邦 ID 含 '/'，路径参数里需 URL 编码（srv1%2Fuser%2F1），因此打开 UseRawPath。
func NewRouter(cfg *config.Config, h *handler.Handler, jwt *auth.Manager, m *metrics.Metrics) (*gin.Engine, error) {
	if err := handler.RegisterValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.UseRawPath = true
	r.UnescapePathValues = true
	r.Use(middleware.Recovery()...)
	r.Use(middleware.Logger())
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/federation"})))

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}
	if cfg.Server.EnableSwagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.POST(cfg.Federation.InboxPath, h.Inbox)

	limit := func(c *gin.Context) { c.Next() }
	if cfg.RateLimit.Enabled {
		limit = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst).Middleware()
	}
	optional := middleware.Auth(jwt, false)
	required := middleware.Auth(jwt, true)

	v1 := r.Group("/api/v1")

	// 匿名可读
	read := v1.Group("", optional, limit)
	{
		read.GET("/users/:federatedId", h.GetUser)
		read.GET("/users/:federatedId/followers", h.ListFollowers)
		read.GET("/users/:federatedId/following", h.ListFollowing)
		read.GET("/users/:federatedId/channels", h.ListFollowedChannels)
		read.GET("/users/:federatedId/posts", h.ListUserPosts)

		read.GET("/channels", h.ListChannels)
		read.GET("/channels/:name", h.GetChannel)
		read.GET("/channels/:name/posts", h.ListChannelPosts)

		read.GET("/posts/timeline/local", h.LocalTimeline)
		read.GET("/posts/:id", h.GetPost)
		read.GET("/posts/:id/comments", h.ListComments)
	}

	// 需要登录
	authed := v1.Group("", required, limit)
	{
		authed.GET("/me", h.Me)

		authed.POST("/users/:federatedId/follow", h.Follow)
		authed.DELETE("/users/:federatedId/follow", h.Unfollow)
		authed.GET("/users/:federatedId/follow/status", h.FollowStatus)

		authed.POST("/channels", h.CreateChannel)
		authed.POST("/channels/:name/join", h.JoinChannel)
		authed.POST("/channels/:name/leave", h.LeaveChannel)
		authed.POST("/channels/:name/request-access", h.RequestAccess)
		authed.GET("/channels/:name/requests", h.ListAccessRequests)
		authed.POST("/channels/requests/:id/approve", h.ApproveAccessRequest)
		authed.POST("/channels/requests/:id/reject", h.RejectAccessRequest)

		authed.POST("/posts", h.CreatePost)
		authed.GET("/posts/timeline/home", h.HomeTimeline)
		authed.DELETE("/posts/:id", h.DeletePost)
		authed.POST("/posts/:id/requeue", h.RequeuePost)
		authed.POST("/posts/:id/like", h.React(model.ReactionLike))
		authed.DELETE("/posts/:id/like", h.Unreact(model.ReactionLike))
		authed.POST("/posts/:id/share", h.React(model.ReactionShare))
		authed.DELETE("/posts/:id/share", h.Unreact(model.ReactionShare))
		authed.POST("/posts/:id/comments", h.Comment)

		authed.POST("/reports", h.FileReport)
		authed.GET("/reports", h.ListReports)
		authed.GET("/reports/:id", h.GetReport)
		authed.PUT("/reports/:id/status", h.UpdateReportStatus)
	}
	return r, nil
}
