package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kmsv-2726/federated-socmed/internal/model"
)

var (
	ErrReactionExists   = errors.New("reaction already exists")
	ErrReactionNotFound = errors.New("reaction not found")
)

// InteractionRepository 点赞 / 转发 / 评论。
// 互动行与 post_stats 计数在同一事务内变更，计数用 SQL 内自增。
type InteractionRepository interface {
	React(ctx context.Context, postID, userID string, kind model.ReactionKind) error
	Unreact(ctx context.Context, postID, userID string, kind model.ReactionKind) error
	HasReacted(ctx context.Context, postID, userID string, kind model.ReactionKind) (bool, error)
	AddComment(ctx context.Context, c *model.PostComment) error
	ListComments(ctx context.Context, postID string, offset, limit int) ([]*model.PostComment, error)
}

type interactionRepository struct{ db *gorm.DB }

func NewInteractionRepository(db *gorm.DB) InteractionRepository {
	return &interactionRepository{db: db}
}

func (r *interactionRepository) React(ctx context.Context, postID, userID string, kind model.ReactionKind) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := &model.PostReaction{ID: uuid.New().String(), PostID: postID, UserID: userID, Kind: kind}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return ErrReactionExists
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrReactionExists
		}
		return bumpStats(tx, postID, kind.Column(), +1)
	})
}

func (r *interactionRepository) Unreact(ctx context.Context, postID, userID string, kind model.ReactionKind) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("post_id = ? AND user_id = ? AND kind = ?", postID, userID, kind).
			Delete(&model.PostReaction{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrReactionNotFound
		}
		return bumpStats(tx, postID, kind.Column(), -1)
	})
}

func (r *interactionRepository) HasReacted(ctx context.Context, postID, userID string, kind model.ReactionKind) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&model.PostReaction{}).
		Where("post_id = ? AND user_id = ? AND kind = ?", postID, userID, kind).
		Count(&cnt).Error
	return cnt > 0, err
}

func (r *interactionRepository) AddComment(ctx context.Context, c *model.PostComment) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		return bumpStats(tx, c.PostID, "comments", +1)
	})
}

func (r *interactionRepository) ListComments(ctx context.Context, postID string, offset, limit int) ([]*model.PostComment, error) {
	var res []*model.PostComment
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at, id").
		Offset(offset).Limit(limit).
		Find(&res).Error
	return res, err
}

// bumpStats 计数行不存在时先补一行再原地增减，减到 0 为止
func bumpStats(tx *gorm.DB, postID, column string, delta int) error {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.PostStats{PostID: postID}).Error; err != nil {
		return err
	}
	var expr clause.Expr
	if delta > 0 {
		expr = gorm.Expr(column + " + 1")
	} else {
		expr = gorm.Expr("CASE WHEN " + column + " > 0 THEN " + column + " - 1 ELSE 0 END")
	}
	return tx.Model(&model.PostStats{}).Where("post_id = ?", postID).UpdateColumn(column, expr).Error
}
