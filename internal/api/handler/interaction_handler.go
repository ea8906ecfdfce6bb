package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kmsv-2726/federated-socmed/internal/model"
	"github.com/kmsv-2726/federated-socmed/pkg/response"
)

type commentRequest struct {
	Body string `json:"body" binding:"required,max=2000"`
}

// React 点赞或转发；kind 由路由决定
// @Summary 点赞 / 转发
// @Tags 互动
// @Security BearerAuth
// @Param id path string true "行 ID 或联邦 ID（URL 编码）"
// @Success 200 {object} response.Response{data=model.PostStats}
// @Failure 409 {object} response.Response
// @Router /api/v1/posts/{id}/like [post]
// @Router /api/v1/posts/{id}/share [post]
func (h *Handler) React(kind model.ReactionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := h.interactions.React(c.Request.Context(), actor(c), c.Param("id"), kind)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, stats)
	}
}

// Unreact 取消点赞或转发
// @Summary 取消点赞 / 转发
// @Tags 互动
// @Security BearerAuth
// @Param id path string true "行 ID 或联邦 ID（URL 编码）"
// @Success 200 {object} response.Response{data=model.PostStats}
// @Failure 409 {object} response.Response
// @Router /api/v1/posts/{id}/like [delete]
// @Router /api/v1/posts/{id}/share [delete]
func (h *Handler) Unreact(kind model.ReactionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := h.interactions.Unreact(c.Request.Context(), actor(c), c.Param("id"), kind)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, stats)
	}
}

// Comment 发表评论
// @Summary 评论
// @Tags 互动
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "行 ID 或联邦 ID（URL 编码）"
// @Param request body commentRequest true "评论内容"
// @Success 201 {object} response.Response{data=model.PostComment}
// @Router /api/v1/posts/{id}/comments [post]
func (h *Handler) Comment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	comment, err := h.interactions.Comment(c.Request.Context(), actor(c), c.Param("id"), req.Body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// ListComments 评论列表
// @Summary 评论列表
// @Tags 互动
// @Param id path string true "行 ID 或联邦 ID（URL 编码）"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=Page}
// @Router /api/v1/posts/{id}/comments [get]
func (h *Handler) ListComments(c *gin.Context) {
	page, pageSize := pageParams(c)
	list, err := h.interactions.ListComments(c.Request.Context(), actor(c), c.Param("id"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, Page{Page: page, PageSize: pageSize, List: list})
}
