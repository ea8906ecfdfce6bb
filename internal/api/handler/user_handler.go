package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kmsv-2726/federated-socmed/internal/model"
	"github.com/kmsv-2726/federated-socmed/internal/service"
	"github.com/kmsv-2726/federated-socmed/pkg/response"
)

// Profile 用户资料与计数
type Profile struct {
	*model.User
	Counts service.FollowCounts `json:"counts"`
}

// GetUser 用户资料
// @Summary 用户资料
// @Tags 用户
// @Produce json
// @Param federatedId path string true "用户联邦 ID（URL 编码）"
// @Success 200 {object} response.Response{data=Profile}
// @Failure 404 {object} response.Response
// @Router /api/v1/users/{federatedId} [get]
func (h *Handler) GetUser(c *gin.Context) {
	u, err := h.userService.GetProfile(c.Request.Context(), c.Param("federatedId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, Profile{User: u, Counts: service.FollowCounts{Followers: u.FollowersCount, Following: u.FollowingCount}})
}

// Me 当前登录用户
// @Summary 当前用户
// @Tags 用户
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=Profile}
// @Router /api/v1/me [get]
func (h *Handler) Me(c *gin.Context) {
	u, err := h.userService.GetProfile(c.Request.Context(), actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, Profile{User: u, Counts: service.FollowCounts{Followers: u.FollowersCount, Following: u.FollowingCount}})
}
