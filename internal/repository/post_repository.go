package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kmsv-2726/federated-socmed/internal/model"
)

// PostRepository 帖子与联邦 outbox。
// 帖子行、outbox 行与 local->queued 迁移在同一事务内落地；
// 投递 worker 通过租约（claimed_until）认领帖子，确认按节点逐条落库。
type PostRepository interface {
	Create(ctx context.Context, post *model.Post, targets []string) error
	Get(ctx context.Context, id string) (*model.Post, error)
	GetByFederatedID(ctx context.Context, federatedID string) (*model.Post, error)
	ListByAuthor(ctx context.Context, authorID string, offset, limit int) ([]*model.Post, error)
	ListByChannel(ctx context.Context, originServer, channelName string, offset, limit int) ([]*model.Post, error)
	ListLocal(ctx context.Context, originServer string, offset, limit int) ([]*model.Post, error)
	ListHome(ctx context.Context, userID, originServer string, offset, limit int) ([]*model.Post, error)
	LatestFederatedID(ctx context.Context, authorID string) (string, error)
	// Delete 连同 outbox 与互动数据一起删除
	Delete(ctx context.Context, postID string) error

	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*model.Post, error)
	PendingServers(ctx context.Context, postID string) ([]string, error)
	Ack(ctx context.Context, postID, server string) (bool, error)
	RecordFailure(ctx context.Context, postID, server, reason string) error
	Reschedule(ctx context.Context, postID string, attempts int, next time.Time, lastError string) error
	Transition(ctx context.Context, postID string, from, to model.FederationStatus, fields map[string]any) error
}

type postRepository struct{ db *gorm.DB }

func NewPostRepository(db *gorm.DB) PostRepository { return &postRepository{db: db} }

// Create 写入帖子（local）；targets 非空时同事务写 outbox 并迁移为 queued
func (r *postRepository) Create(ctx context.Context, post *model.Post, targets []string) error {
	if post.ID == "" {
		post.ID = uuid.New().String()
	}
	post.FederationStatus = model.FederationLocal
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(post).Error; err != nil {
			return err
		}
		if len(targets) == 0 {
			return nil
		}
		rows := make([]model.Delivery, 0, len(targets))
		for _, s := range targets {
			rows = append(rows, model.Delivery{ID: uuid.New().String(), PostID: post.ID, Server: s})
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
			return err
		}
		now := time.Now()
		if err := transition(tx, post.ID, model.FederationLocal, model.FederationQueued,
			map[string]any{"next_attempt_at": now}); err != nil {
			return err
		}
		post.FederationStatus = model.FederationQueued
		post.NextAttemptAt = &now
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}
	post.FederatedTo = []string{}
	return nil
}

func (r *postRepository) Get(ctx context.Context, id string) (*model.Post, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *postRepository) GetByFederatedID(ctx context.Context, federatedID string) (*model.Post, error) {
	return r.first(ctx, "federated_id = ?", federatedID)
}

func (r *postRepository) first(ctx context.Context, query string, arg string) (*model.Post, error) {
	var p model.Post
	err := r.db.WithContext(ctx).Where(query, arg).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, []*model.Post{&p}); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID string, offset, limit int) ([]*model.Post, error) {
	return r.list(ctx, r.db.Where("author_id = ? AND kind = ?", authorID, model.PostKindUser), offset, limit)
}

// ListByChannel 频道名只在所属节点内唯一，需带上 originServer
func (r *postRepository) ListByChannel(ctx context.Context, originServer, channelName string, offset, limit int) ([]*model.Post, error) {
	return r.list(ctx, r.db.Where("origin_server = ? AND kind = ? AND channel_name = ?",
		originServer, model.PostKindChannel, channelName), offset, limit)
}

// ListLocal 本节点产生的个人帖子（local 时间线）
func (r *postRepository) ListLocal(ctx context.Context, originServer string, offset, limit int) ([]*model.Post, error) {
	return r.list(ctx, r.db.Where("origin_server = ? AND kind = ?", originServer, model.PostKindUser), offset, limit)
}

// ListHome 首页时间线：自己与关注用户的个人帖子，加上已关注（已加入）频道里的帖子
func (r *postRepository) ListHome(ctx context.Context, userID, originServer string, offset, limit int) ([]*model.Post, error) {
	followed := r.db.Model(&model.Follow{}).Select("following_id").Where("follower_id = ?", userID)
	channels := r.db.Model(&model.Channel{}).
		Select("channels.name").
		Joins("JOIN follows ON follows.following_id = channels.federated_id").
		Where("follows.follower_id = ?", userID)
	q := r.db.Where(
		r.db.Where("kind = ? AND (author_id = ? OR author_id IN (?))", model.PostKindUser, userID, followed).
			Or("kind = ? AND origin_server = ? AND channel_name IN (?)", model.PostKindChannel, originServer, channels),
	)
	return r.list(ctx, q, offset, limit)
}

func (r *postRepository) Delete(ctx context.Context, postID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{&model.Delivery{}, &model.PostReaction{}, &model.PostComment{}, &model.PostStats{}} {
			if err := tx.Where("post_id = ?", postID).Delete(m).Error; err != nil {
				return err
			}
		}
		res := tx.Where("id = ?", postID).Delete(&model.Post{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// LatestFederatedID 作者已落库的最大帖子 id。
// local part 是十进制毫秒序号，先比长度再比字典序即为数值序
func (r *postRepository) LatestFederatedID(ctx context.Context, authorID string) (string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("author_id = ?", authorID).
		Order("LENGTH(federated_id) DESC, federated_id DESC").
		Limit(1).
		Pluck("federated_id", &ids).Error
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", ErrNotFound
	}
	return ids[0], nil
}

func (r *postRepository) list(ctx context.Context, q *gorm.DB, offset, limit int) ([]*model.Post, error) {
	var res []*model.Post
	if err := q.WithContext(ctx).Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&res).Error; err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// hydrate 填充派生字段：已确认节点与互动计数
func (r *postRepository) hydrate(ctx context.Context, posts []*model.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]string, len(posts))
	byID := make(map[string]*model.Post, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
		byID[p.ID] = p
		p.FederatedTo = []string{}
		p.Stats = model.PostStats{}
	}
	var acked []model.Delivery
	if err := r.db.WithContext(ctx).
		Where("post_id IN ? AND acked_at IS NOT NULL", ids).
		Order("acked_at, server").
		Find(&acked).Error; err != nil {
		return err
	}
	for _, d := range acked {
		p := byID[d.PostID]
		p.FederatedTo = append(p.FederatedTo, d.Server)
	}
	var stats []model.PostStats
	if err := r.db.WithContext(ctx).Where("post_id IN ?", ids).Find(&stats).Error; err != nil {
		return err
	}
	for _, st := range stats {
		byID[st.PostID].Stats = st
	}
	return nil
}

// ClaimDue 认领到期的 queued 帖子。
// 先查候选，再逐条条件更新 claimed_until，只有更新成功的才归当前 worker；
// 这样在 sqlite 上也成立（不依赖 FOR UPDATE SKIP LOCKED）。
func (r *postRepository) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*model.Post, error) {
	var candidates []*model.Post
	err := r.db.WithContext(ctx).
		Where("federation_status = ? AND next_attempt_at <= ?", model.FederationQueued, now).
		Where("(claimed_until IS NULL OR claimed_until < ?)", now).
		Order("next_attempt_at").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	until := now.Add(lease)
	claimed := make([]*model.Post, 0, len(candidates))
	for _, p := range candidates {
		res := r.db.WithContext(ctx).
			Model(&model.Post{}).
			Where("id = ? AND federation_status = ?", p.ID, model.FederationQueued).
			Where("(claimed_until IS NULL OR claimed_until < ?)", now).
			UpdateColumn("claimed_until", until)
		if res.Error != nil {
			return claimed, res.Error
		}
		if res.RowsAffected == 1 {
			p.ClaimedUntil = &until
			claimed = append(claimed, p)
		}
	}
	if err := r.hydrate(ctx, claimed); err != nil {
		return nil, err
	}
	return claimed, nil
}

// PendingServers 尚未确认的目标节点
func (r *postRepository) PendingServers(ctx context.Context, postID string) ([]string, error) {
	var servers []string
	err := r.db.WithContext(ctx).
		Model(&model.Delivery{}).
		Where("post_id = ? AND acked_at IS NULL", postID).
		Order("server").
		Pluck("server", &servers).Error
	return servers, err
}

// Ack 记录节点确认；已确认过的节点返回 false，不会重复写入
func (r *postRepository) Ack(ctx context.Context, postID, server string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Delivery{}).
		Where("post_id = ? AND server = ? AND acked_at IS NULL", postID, server).
		Updates(map[string]any{"acked_at": time.Now(), "attempts": gorm.Expr("attempts + 1"), "last_error": ""})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *postRepository) RecordFailure(ctx context.Context, postID, server, reason string) error {
	return r.db.WithContext(ctx).
		Model(&model.Delivery{}).
		Where("post_id = ? AND server = ? AND acked_at IS NULL", postID, server).
		Updates(map[string]any{"attempts": gorm.Expr("attempts + 1"), "last_error": reason}).Error
}

// Reschedule 本轮未全部确认且预算未用完：保持 queued，记录轮次并释放租约
func (r *postRepository) Reschedule(ctx context.Context, postID string, attempts int, next time.Time, lastError string) error {
	res := r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("id = ? AND federation_status = ?", postID, model.FederationQueued).
		Updates(map[string]any{
			"attempts":        attempts,
			"next_attempt_at": next,
			"last_error":      lastError,
			"claimed_until":   nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStateChanged
	}
	return nil
}

// Transition 带状态前置条件的迁移，同时释放租约
func (r *postRepository) Transition(ctx context.Context, postID string, from, to model.FederationStatus, fields map[string]any) error {
	return transition(r.db.WithContext(ctx), postID, from, to, fields)
}

func transition(db *gorm.DB, postID string, from, to model.FederationStatus, fields map[string]any) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("illegal federation transition %s -> %s", from, to)
	}
	updates := map[string]any{"federation_status": to, "claimed_until": nil}
	for k, v := range fields {
		updates[k] = v
	}
	res := db.Model(&model.Post{}).
		Where("id = ? AND federation_status = ?", postID, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStateChanged
	}
	return nil
}
