package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kmsv-2726/federated-socmed/internal/model"
)

type ReportRepository interface {
	Create(ctx context.Context, report *model.Report) error
	Get(ctx context.Context, id string) (*model.Report, error)
	List(ctx context.Context, status model.ReportStatus, limit int) ([]*model.Report, error)
	// Close pending -> to；记录不存在返回 ErrNotFound，已关闭返回 ErrStateChanged
	Close(ctx context.Context, id string, to model.ReportStatus, closedBy string) error
}

type reportRepository struct{ db *gorm.DB }

func NewReportRepository(db *gorm.DB) ReportRepository { return &reportRepository{db: db} }

func (r *reportRepository) Create(ctx context.Context, report *model.Report) error {
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	report.Status = model.ReportPending
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *reportRepository) Get(ctx context.Context, id string) (*model.Report, error) {
	var rep model.Report
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rep).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *reportRepository) List(ctx context.Context, status model.ReportStatus, limit int) ([]*model.Report, error) {
	var res []*model.Report
	q := r.db.WithContext(ctx)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("created_at DESC").Limit(limit).Find(&res).Error
	return res, err
}

func (r *reportRepository) Close(ctx context.Context, id string, to model.ReportStatus, closedBy string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Report{}).
			Where("id = ? AND status = ?", id, model.ReportPending).
			Updates(map[string]any{"status": to, "closed_by": closedBy, "closed_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			return nil
		}
		var cnt int64
		if err := tx.Model(&model.Report{}).Where("id = ?", id).Count(&cnt).Error; err != nil {
			return err
		}
		if cnt == 0 {
			return ErrNotFound
		}
		return ErrStateChanged
	})
}
