package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kmsv-2726/federated-socmed/internal/model"
	"github.com/kmsv-2726/federated-socmed/internal/service"
	"github.com/kmsv-2726/federated-socmed/pkg/response"
)

type createPostRequest struct {
	Description string  `json:"description" binding:"max=5000"`
	Image       *string `json:"image" binding:"omitempty,url"`
	Kind        string  `json:"kind" binding:"omitempty,oneof=user channel"`
	ChannelName string  `json:"channel_name" binding:"max=64"`
}

// CreatePost 发帖；有远端粉丝时进入联邦投递队列，接口不等待投递结果
// @Summary 发帖
// @Tags 帖子
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createPostRequest true "帖子内容"
// @Success 201 {object} response.Response{data=model.Post}
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /api/v1/posts [post]
func (h *Handler) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	post, err := h.postService.CreatePost(c.Request.Context(), actor(c), service.CreatePostInput{
		Description: req.Description,
		Image:       req.Image,
		Kind:        model.PostKind(req.Kind),
		ChannelName: req.ChannelName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, post)
}

// GetPost 帖子详情
// @Summary 帖子详情
// @Tags 帖子
// @Param id path string true "行 ID 或联邦 ID（URL 编码）"
// @Success 200 {object} response.Response{data=model.Post}
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id} [get]
func (h *Handler) GetPost(c *gin.Context) {
	post, err := h.postService.GetPost(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, post)
}

// LocalTimeline 本节点时间线
// @Summary 本节点时间线
// @Tags 帖子
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=Page}
// @Router /api/v1/posts/timeline/local [get]
func (h *Handler) LocalTimeline(c *gin.Context) {
	page, pageSize := pageParams(c)
	list, err := h.postService.ListLocalTimeline(c.Request.Context(), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, Page{Page: page, PageSize: pageSize, List: list})
}

// HomeTimeline 首页时间线：自己、关注的人和已加入频道
// @Summary 首页时间线
// @Tags 帖子
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=Page}
// @Router /api/v1/posts/timeline/home [get]
func (h *Handler) HomeTimeline(c *gin.Context) {
	page, pageSize := pageParams(c)
	list, err := h.postService.ListHomeTimeline(c.Request.Context(), actor(c), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, Page{Page: page, PageSize: pageSize, List: list})
}

// ListUserPosts 用户的个人帖子
// @Summary 用户帖子
// @Tags 帖子
// @Param federatedId path string true "用户联邦 ID（URL 编码）"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=Page}
// @Router /api/v1/users/{federatedId}/posts [get]
func (h *Handler) ListUserPosts(c *gin.Context) {
	page, pageSize := pageParams(c)
	list, err := h.postService.ListUserPosts(c.Request.Context(), c.Param("federatedId"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, Page{Page: page, PageSize: pageSize, List: list})
}

// ListChannelPosts 频道帖子（私有频道需成员身份）
// @Summary 频道帖子
// @Tags 帖子
// @Param name path string true "频道名"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=Page}
// @Failure 403 {object} response.Response
// @Router /api/v1/channels/{name}/posts [get]
func (h *Handler) ListChannelPosts(c *gin.Context) {
	page, pageSize := pageParams(c)
	list, err := h.postService.ListChannelPosts(c.Request.Context(), actor(c), c.Param("name"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, Page{Page: page, PageSize: pageSize, List: list})
}

// DeletePost 删除帖子（作者或管理员）
// @Summary 删除帖子
// @Tags 帖子
// @Security BearerAuth
// @Param id path string true "行 ID 或联邦 ID（URL 编码）"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id} [delete]
func (h *Handler) DeletePost(c *gin.Context) {
	if err := h.postService.DeletePost(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// RequeuePost 把 failed 帖子重新放回投递队列（管理员）
// @Summary 重新投递
// @Tags 帖子
// @Security BearerAuth
// @Param id path string true "行 ID 或联邦 ID（URL 编码）"
// @Success 200 {object} response.Response{data=model.Post}
// @Failure 409 {object} response.Response
// @Router /api/v1/posts/{id}/requeue [post]
func (h *Handler) RequeuePost(c *gin.Context) {
	post, err := h.postService.Requeue(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, post)
}
