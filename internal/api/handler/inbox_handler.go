package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kmsv-2726/federated-socmed/internal/federation"
	"github.com/kmsv-2726/federated-socmed/internal/service"
	"github.com/kmsv-2726/federated-socmed/pkg/response"
)

const maxEnvelopeBytes = 1 << 20

// Inbox 接收其它节点推送的帖子。重复投递返回 200，首次落库返回 201，
// 两者对发送方都算确认。
// @Summary 联邦收件箱
// @Tags 联邦
// @Accept application/cbor
// @Produce json
// @Param Digest header string true "blake2b-256=<base64>"
// @Param X-Federation-Origin header string true "发送方节点名"
// @Param X-Federation-Signature header string false "blake2b-256-mac=<base64>，配置了共享密钥的节点必填"
// @Success 200 {object} response.Response
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /federation/inbox [post]
func (h *Handler) Inbox(c *gin.Context) {
	origin := c.GetHeader(federation.OriginHeader)
	digest := c.GetHeader(federation.DigestHeader)
	if origin == "" || digest == "" {
		response.BadRequest(c, "missing federation headers")
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEnvelopeBytes+1))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if len(body) > maxEnvelopeBytes {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
			response.Response{Code: "TOO_LARGE", Message: "envelope too large"})
		return
	}
	post, created, err := h.inboxService.Receive(c.Request.Context(), service.InboundDelivery{
		Origin:    origin,
		Body:      body,
		Digest:    digest,
		Signature: c.GetHeader(federation.SignatureHeader),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	if created {
		response.Created(c, gin.H{"federated_id": post.FederatedID})
		return
	}
	response.Success(c, gin.H{"federated_id": post.FederatedID})
}
