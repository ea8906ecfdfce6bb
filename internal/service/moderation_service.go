package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/kmsv-2726/federated-socmed/internal/identity"
	"github.com/kmsv-2726/federated-socmed/internal/metrics"
	"github.com/kmsv-2726/federated-socmed/internal/model"
	"github.com/kmsv-2726/federated-socmed/internal/repository"
	"github.com/kmsv-2726/federated-socmed/pkg/logger"
)

const defaultReportLimit = 100

// ModerationService 举报队列：pending -> resolved | dismissed，终态不可再变
type ModerationService interface {
	FileReport(ctx context.Context, reporterID string, targetType model.ReportTarget, targetID, reason string) (*model.Report, error)
	Resolve(ctx context.Context, actorID, reportID string) (*model.Report, error)
	Dismiss(ctx context.Context, actorID, reportID string) (*model.Report, error)
	GetReport(ctx context.Context, actorID, reportID string) (*model.Report, error)
	ListReports(ctx context.Context, actorID string, status model.ReportStatus, limit int) ([]*model.Report, error)
}

type moderationService struct {
	reportRepo repository.ReportRepository
	userRepo   repository.UserRepository
	metrics    *metrics.Metrics
}

func NewModerationService(reportRepo repository.ReportRepository, userRepo repository.UserRepository, m *metrics.Metrics) ModerationService {
	return &moderationService{reportRepo: reportRepo, userRepo: userRepo, metrics: m}
}

// reportKinds 举报类型对应的标识符类型
var reportKinds = map[model.ReportTarget]identity.Kind{
	model.ReportTargetPost:    identity.KindPost,
	model.ReportTargetUser:    identity.KindUser,
	model.ReportTargetChannel: identity.KindChannel,
}

func (s *moderationService) FileReport(ctx context.Context, reporterID string, targetType model.ReportTarget, targetID, reason string) (*model.Report, error) {
	if !targetType.Valid() {
		return nil, ErrInvalidTarget
	}
	if _, err := identity.ParseKind(reporterID, identity.KindUser); err != nil {
		return nil, err
	}
	id, err := identity.Parse(targetID)
	if err != nil {
		return nil, err
	}
	if id.Kind != reportKinds[targetType] {
		return nil, ErrInvalidTarget
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrInvalidInput
	}

	rep := &model.Report{
		TargetType: targetType,
		ReportedID: targetID,
		ReporterID: reporterID,
		Reason:     reason,
	}
	if err := s.reportRepo.Create(ctx, rep); err != nil {
		return nil, err
	}
	s.metrics.ObserveReport(string(model.ReportPending))
	logger.Info("report filed",
		zap.String("report", rep.ID),
		zap.String("target_type", string(targetType)),
		zap.String("target", targetID))
	return rep, nil
}

func (s *moderationService) Resolve(ctx context.Context, actorID, reportID string) (*model.Report, error) {
	return s.close(ctx, actorID, reportID, model.ReportResolved)
}

func (s *moderationService) Dismiss(ctx context.Context, actorID, reportID string) (*model.Report, error) {
	return s.close(ctx, actorID, reportID, model.ReportDismissed)
}

func (s *moderationService) close(ctx context.Context, actorID, reportID string, to model.ReportStatus) (*model.Report, error) {
	if err := requireAdmin(ctx, s.userRepo, actorID); err != nil {
		return nil, err
	}
	if !model.ReportPending.CanTransition(to) {
		return nil, ErrInvalidInput
	}
	err := s.reportRepo.Close(ctx, reportID, to, actorID)
	switch {
	case errors.Is(err, repository.ErrStateChanged):
		return nil, ErrAlreadyClosed
	case err != nil:
		return nil, translate(err)
	}
	s.metrics.ObserveReport(string(to))
	logger.Info("report closed", zap.String("report", reportID), zap.String("status", string(to)), zap.String("by", actorID))
	rep, err := s.reportRepo.Get(ctx, reportID)
	if err != nil {
		return nil, translate(err)
	}
	return rep, nil
}

func (s *moderationService) GetReport(ctx context.Context, actorID, reportID string) (*model.Report, error) {
	if err := requireAdmin(ctx, s.userRepo, actorID); err != nil {
		return nil, err
	}
	rep, err := s.reportRepo.Get(ctx, reportID)
	if err != nil {
		return nil, translate(err)
	}
	return rep, nil
}

func (s *moderationService) ListReports(ctx context.Context, actorID string, status model.ReportStatus, limit int) ([]*model.Report, error) {
	if err := requireAdmin(ctx, s.userRepo, actorID); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, ErrInvalidInput
	}
	if limit <= 0 || limit > defaultReportLimit {
		limit = defaultReportLimit
	}
	return s.reportRepo.List(ctx, status, limit)
}
