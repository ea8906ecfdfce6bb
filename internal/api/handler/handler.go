package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kmsv-2726/federated-socmed/internal/api/middleware"
	"github.com/kmsv-2726/federated-socmed/internal/service"
)

// Handler 聚合所有 HTTP 处理器依赖的服务
type Handler struct {
	userService       service.UserService
	relService        service.RelationshipService
	channelService    service.ChannelService
	postService       service.PostService
	moderationService service.ModerationService
	inboxService      service.InboxService
	interactions      service.InteractionService
}

func NewHandler(
	userService service.UserService,
	relService service.RelationshipService,
	channelService service.ChannelService,
	postService service.PostService,
	moderationService service.ModerationService,
	inboxService service.InboxService,
	interactions service.InteractionService,
) *Handler {
	return &Handler{
		userService:       userService,
		relService:        relService,
		channelService:    channelService,
		postService:       postService,
		moderationService: moderationService,
		inboxService:      inboxService,
		interactions:      interactions,
	}
}

// Page 分页响应
type Page struct {
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	List     interface{} `json:"list"`
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func actor(c *gin.Context) string { return middleware.Actor(c) }
