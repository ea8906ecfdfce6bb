package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kmsv-2726/federated-socmed/pkg/response"
)

// Follow 关注用户
// @Summary 关注用户
// @Tags 关系链
// @Produce json
// @Security BearerAuth
// @Param federatedId path string true "被关注用户的联邦 ID（URL 编码）"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/users/{federatedId}/follow [post]
func (h *Handler) Follow(c *gin.Context) {
	if err := h.relService.Follow(c.Request.Context(), actor(c), c.Param("federatedId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Unfollow 取消关注
// @Summary 取消关注
// @Tags 关系链
// @Produce json
// @Security BearerAuth
// @Param federatedId path string true "被关注用户的联邦 ID（URL 编码）"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/users/{federatedId}/follow [delete]
func (h *Handler) Unfollow(c *gin.Context) {
	if err := h.relService.Unfollow(c.Request.Context(), actor(c), c.Param("federatedId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// FollowStatus 当前用户是否关注了目标
// @Summary 关注状态
// @Tags 关系链
// @Produce json
// @Security BearerAuth
// @Param federatedId path string true "联邦 ID（URL 编码）"
// @Success 200 {object} response.Response{data=map[string]bool}
// @Router /api/v1/users/{federatedId}/follow/status [get]
func (h *Handler) FollowStatus(c *gin.Context) {
	ok, err := h.relService.IsFollowing(c.Request.Context(), actor(c), c.Param("federatedId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"following": ok})
}

// ListFollowers 粉丝列表（用户或频道）
// @Summary 粉丝列表
// @Tags 关系链
// @Param federatedId path string true "联邦 ID（URL 编码）"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=Page}
// @Router /api/v1/users/{federatedId}/followers [get]
func (h *Handler) ListFollowers(c *gin.Context) {
	page, pageSize := pageParams(c)
	list, err := h.relService.ListFollowers(c.Request.Context(), c.Param("federatedId"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, Page{Page: page, PageSize: pageSize, List: list})
}

// ListFollowing 关注列表
// @Summary 关注列表
// @Tags 关系链
// @Param federatedId path string true "用户联邦 ID（URL 编码）"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=Page}
// @Router /api/v1/users/{federatedId}/following [get]
func (h *Handler) ListFollowing(c *gin.Context) {
	page, pageSize := pageParams(c)
	list, err := h.relService.ListFollowing(c.Request.Context(), c.Param("federatedId"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, Page{Page: page, PageSize: pageSize, List: list})
}

// ListFollowedChannels 用户加入的频道
// @Summary 已加入的频道
// @Tags 关系链
// @Param federatedId path string true "用户联邦 ID（URL 编码）"
// @Success 200 {object} response.Response{data=Page}
// @Router /api/v1/users/{federatedId}/channels [get]
func (h *Handler) ListFollowedChannels(c *gin.Context) {
	page, pageSize := pageParams(c)
	list, err := h.relService.ListFollowedChannels(c.Request.Context(), c.Param("federatedId"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, Page{Page: page, PageSize: pageSize, List: list})
}
