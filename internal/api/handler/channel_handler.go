package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kmsv-2726/federated-socmed/internal/model"
	"github.com/kmsv-2726/federated-socmed/internal/service"
	"github.com/kmsv-2726/federated-socmed/pkg/response"
)

type createChannelRequest struct {
	Name        string  `json:"name" binding:"required,max=64"`
	Visibility  string  `json:"visibility" binding:"omitempty,visibility"`
	Description string  `json:"description" binding:"max=2000"`
	Image       *string `json:"image" binding:"omitempty,url"`
}

// ChannelView 频道详情，附带当前用户的读写权限
type ChannelView struct {
	*model.Channel
	CanRead bool `json:"can_read"`
	CanPost bool `json:"can_post"`
}

// CreateChannel 创建频道（管理员）
// @Summary 创建频道
// @Tags 频道
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createChannelRequest true "频道信息"
// @Success 201 {object} response.Response{data=model.Channel}
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/channels [post]
func (h *Handler) CreateChannel(c *gin.Context) {
	var req createChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ch, err := h.channelService.CreateChannel(c.Request.Context(), actor(c), service.CreateChannelInput{
		Name:        req.Name,
		Visibility:  model.Visibility(req.Visibility),
		Description: req.Description,
		Image:       req.Image,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ch)
}

// ListChannels 频道列表
// @Summary 频道列表
// @Tags 频道
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=Page}
// @Router /api/v1/channels [get]
func (h *Handler) ListChannels(c *gin.Context) {
	page, pageSize := pageParams(c)
	list, err := h.channelService.ListChannels(c.Request.Context(), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, Page{Page: page, PageSize: pageSize, List: list})
}

// GetChannel 频道详情
// @Summary 频道详情
// @Tags 频道
// @Param name path string true "频道名"
// @Success 200 {object} response.Response{data=ChannelView}
// @Failure 404 {object} response.Response
// @Router /api/v1/channels/{name} [get]
func (h *Handler) GetChannel(c *gin.Context) {
	ctx := c.Request.Context()
	name := c.Param("name")
	ch, err := h.channelService.GetChannel(ctx, name)
	if err != nil {
		response.Error(c, err)
		return
	}
	canRead, err := h.channelService.CanRead(ctx, actor(c), name)
	if err != nil {
		response.Error(c, err)
		return
	}
	view := ChannelView{Channel: ch, CanRead: canRead}
	if actor(c) != "" {
		if view.CanPost, err = h.channelService.CanPost(ctx, actor(c), name); err != nil {
			response.Error(c, err)
			return
		}
	}
	response.Success(c, view)
}

// JoinChannel 加入频道（私有频道需先申请）
// @Summary 加入频道
// @Tags 频道
// @Security BearerAuth
// @Param name path string true "频道名"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/channels/{name}/join [post]
func (h *Handler) JoinChannel(c *gin.Context) {
	if err := h.channelService.Join(c.Request.Context(), actor(c), c.Param("name")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// LeaveChannel 退出频道
// @Summary 退出频道
// @Tags 频道
// @Security BearerAuth
// @Param name path string true "频道名"
// @Success 200 {object} response.Response
// @Router /api/v1/channels/{name}/leave [post]
func (h *Handler) LeaveChannel(c *gin.Context) {
	if err := h.channelService.Leave(c.Request.Context(), actor(c), c.Param("name")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// RequestAccess 申请加入私有频道
// @Summary 申请加入私有频道
// @Tags 频道
// @Security BearerAuth
// @Param name path string true "频道名"
// @Success 201 {object} response.Response{data=model.ChannelAccessRequest}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/channels/{name}/request-access [post]
func (h *Handler) RequestAccess(c *gin.Context) {
	req, err := h.channelService.RequestAccess(c.Request.Context(), actor(c), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, req)
}

// ListAccessRequests 频道的加入申请（管理员）
// @Summary 加入申请列表
// @Tags 频道
// @Security BearerAuth
// @Param name path string true "频道名"
// @Param status query string false "pending/approved/rejected" default(pending)
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=Page}
// @Router /api/v1/channels/{name}/requests [get]
func (h *Handler) ListAccessRequests(c *gin.Context) {
	page, pageSize := pageParams(c)
	status := model.AccessRequestStatus(c.DefaultQuery("status", string(model.AccessPending)))
	list, err := h.channelService.ListRequests(c.Request.Context(), actor(c), c.Param("name"), status, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, Page{Page: page, PageSize: pageSize, List: list})
}

// ApproveAccessRequest 批准申请（管理员），申请人随即成为成员
// @Summary 批准加入申请
// @Tags 频道
// @Security BearerAuth
// @Param id path string true "申请 ID"
// @Success 200 {object} response.Response{data=model.ChannelAccessRequest}
// @Failure 409 {object} response.Response
// @Router /api/v1/channels/requests/{id}/approve [post]
func (h *Handler) ApproveAccessRequest(c *gin.Context) {
	req, err := h.channelService.ApproveRequest(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, req)
}

// RejectAccessRequest 拒绝申请（管理员）
// @Summary 拒绝加入申请
// @Tags 频道
// @Security BearerAuth
// @Param id path string true "申请 ID"
// @Success 200 {object} response.Response{data=model.ChannelAccessRequest}
// @Router /api/v1/channels/requests/{id}/reject [post]
func (h *Handler) RejectAccessRequest(c *gin.Context) {
	req, err := h.channelService.RejectRequest(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, req)
}
