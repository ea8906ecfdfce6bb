package service

import (
	"errors"

	"github.com/kmsv-2726/federated-socmed/internal/repository"
	"github.com/kmsv-2726/federated-socmed/pkg/errcode"
)

// 业务错误。identity.ErrMalformedIdentifier 同属校验类，直接透传
var (
	ErrSelfFollow       = errcode.New(errcode.Validation, "SELF_FOLLOW", "cannot follow or unfollow yourself")
	ErrInvalidTarget    = errcode.New(errcode.Validation, "INVALID_TARGET", "invalid target")
	ErrInvalidPostKind  = errcode.New(errcode.Validation, "INVALID_POST_KIND", "a post is either a user post or a channel post")
	ErrChannelRequired  = errcode.New(errcode.Validation, "CHANNEL_REQUIRED", "channel posts need a channel name")
	ErrInvalidInput     = errcode.New(errcode.Validation, "INVALID_INPUT", "invalid input")
	ErrNoApprovalNeeded = errcode.New(errcode.Validation, "NO_APPROVAL_NEEDED", "channel can be joined directly")

	ErrAlreadyFollowing = errcode.New(errcode.Conflict, "ALREADY_FOLLOWING", "already following")
	ErrNotFollowing     = errcode.New(errcode.Conflict, "NOT_FOLLOWING", "not following")
	ErrAlreadyClosed    = errcode.New(errcode.Conflict, "ALREADY_CLOSED", "report is already closed")
	ErrRequestClosed    = errcode.New(errcode.Conflict, "REQUEST_CLOSED", "access request is already decided")
	ErrAlreadyExists    = errcode.New(errcode.Conflict, "ALREADY_EXISTS", "already exists")
	ErrNotRequeueable   = errcode.New(errcode.Conflict, "NOT_REQUEUEABLE", "only failed posts can be requeued")
	ErrAlreadyReacted   = errcode.New(errcode.Conflict, "ALREADY_REACTED", "already reacted")
	ErrNotReacted       = errcode.New(errcode.Conflict, "NOT_REACTED", "no such reaction")

	ErrForbidden        = errcode.New(errcode.Forbidden, "FORBIDDEN", "forbidden")
	ErrApprovalRequired = errcode.New(errcode.Forbidden, "APPROVAL_REQUIRED", "private channel requires approval")

	ErrNotFound = errcode.New(errcode.NotFound, "NOT_FOUND", "not found")
)

// translate 把仓储层的低层错误映射为业务错误，其余原样返回
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrEdgeExists):
		return ErrAlreadyFollowing
	case errors.Is(err, repository.ErrEdgeNotFound):
		return ErrNotFollowing
	case errors.Is(err, repository.ErrReactionExists):
		return ErrAlreadyReacted
	case errors.Is(err, repository.ErrReactionNotFound):
		return ErrNotReacted
	case errors.Is(err, repository.ErrDuplicate):
		return ErrAlreadyExists
	}
	return err
}

func pageOffset(page, pageSize int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return (page - 1) * pageSize, pageSize
}
