package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kmsv-2726/federated-socmed/internal/model"
	"github.com/kmsv-2726/federated-socmed/pkg/response"
)

type fileReportRequest struct {
	TargetType string `json:"target_type" binding:"required"`
	TargetID   string `json:"target_id" binding:"required,fedid"`
	Reason     string `json:"reason" binding:"required,max=2000"`
}

type reportStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=resolved dismissed"`
}

// FileReport 举报帖子/用户/频道
// @Summary 举报
// @Tags 审核
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body fileReportRequest true "举报内容"
// @Success 201 {object} response.Response{data=model.Report}
// @Failure 400 {object} response.Response
// @Router /api/v1/reports [post]
func (h *Handler) FileReport(c *gin.Context) {
	var req fileReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	rep, err := h.moderationService.FileReport(c.Request.Context(), actor(c),
		model.ReportTarget(req.TargetType), req.TargetID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rep)
}

// ListReports 举报列表（管理员）
// @Summary 举报列表
// @Tags 审核
// @Security BearerAuth
// @Param status query string false "pending/resolved/dismissed"
// @Param limit query int false "数量上限" default(100)
// @Success 200 {object} response.Response{data=[]model.Report}
// @Failure 403 {object} response.Response
// @Router /api/v1/reports [get]
func (h *Handler) ListReports(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	list, err := h.moderationService.ListReports(c.Request.Context(), actor(c),
		model.ReportStatus(c.Query("status")), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

// GetReport 举报详情（管理员）
// @Summary 举报详情
// @Tags 审核
// @Security BearerAuth
// @Param id path string true "举报 ID"
// @Success 200 {object} response.Response{data=model.Report}
// @Router /api/v1/reports/{id} [get]
func (h *Handler) GetReport(c *gin.Context) {
	rep, err := h.moderationService.GetReport(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rep)
}

// UpdateReportStatus 结案：resolved 或 dismissed（管理员）
// @Summary 处理举报
// @Tags 审核
// @Accept json
// @Security BearerAuth
// @Param id path string true "举报 ID"
// @Param request body reportStatusRequest true "目标状态"
// @Success 200 {object} response.Response{data=model.Report}
// @Failure 409 {object} response.Response
// @Router /api/v1/reports/{id}/status [put]
func (h *Handler) UpdateReportStatus(c *gin.Context) {
	var req reportStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	var (
		rep *model.Report
		err error
	)
	if model.ReportStatus(req.Status) == model.ReportResolved {
		rep, err = h.moderationService.Resolve(c.Request.Context(), actor(c), c.Param("id"))
	} else {
		rep, err = h.moderationService.Dismiss(c.Request.Context(), actor(c), c.Param("id"))
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rep)
}
