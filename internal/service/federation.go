package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kmsv-2726/federated-socmed/config"
	"github.com/kmsv-2726/federated-socmed/internal/metrics"
	"github.com/kmsv-2726/federated-socmed/internal/model"
	"github.com/kmsv-2726/federated-socmed/internal/repository"
	"github.com/kmsv-2726/federated-socmed/pkg/logger"
)

const jitterFactor = 0.2

// DeliveryWorker 轮询到期的 queued 帖子并向未确认的节点投递。
//
// 每一轮：认领（租约）-> 对每个未确认节点调用一次 Notifier -> 逐条落确认。
// 全部确认则 delivered；轮次用尽则 failed；否则按指数退避重新排期。
// 确认按节点单独持久化，进程中途退出只会让租约过期后重来，已确认节点不会被重复通知。
type DeliveryWorker struct {
	posts    repository.PostRepository
	notifier Notifier
	cfg      config.FederationConfig
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	now      func() time.Time

	wake chan struct{}
}

func NewDeliveryWorker(posts repository.PostRepository, notifier Notifier, cfg config.FederationConfig, m *metrics.Metrics) *DeliveryWorker {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.ClaimLimit <= 0 {
		cfg.ClaimLimit = 64
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Lease <= 0 {
		cfg.Lease = time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 2 * time.Second
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = cfg.BaseBackoff
	}
	return &DeliveryWorker{
		posts:    posts,
		notifier: notifier,
		cfg:      cfg,
		metrics:  m,
		tracer:   otel.Tracer("github.com/kmsv-2726/federated-socmed/federation"),
		now:      time.Now,
		wake:     make(chan struct{}, 1),
	}
}

// Wake 有新帖子入队时提前触发一次轮询
func (w *DeliveryWorker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Start 启动 worker，返回停止函数。停止会取消进行中的投递，等待 worker 退出或 ctx 截止
func (w *DeliveryWorker) Start() func(context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(runCtx)
		}()
	}
	return func(ctx context.Context) error {
		cancel()
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *DeliveryWorker) loop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.wake:
		}
		if _, err := w.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
			logger.Error("federation round failed", zap.Error(err))
		}
	}
}

// ProcessOnce 认领一批到期帖子并各跑一轮投递，返回处理的帖子数
func (w *DeliveryWorker) ProcessOnce(ctx context.Context) (int, error) {
	batch, err := w.posts.ClaimDue(ctx, w.now(), w.cfg.Lease, w.cfg.ClaimLimit)
	if err != nil {
		return 0, fmt.Errorf("claim due posts: %w", err)
	}
	for _, p := range batch {
		if err := w.deliver(ctx, p); err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			logger.Warn("delivery round aborted", zap.String("post", p.FederatedID), zap.Error(err))
		}
	}
	return len(batch), nil
}

func (w *DeliveryWorker) deliver(ctx context.Context, post *model.Post) error {
	ctx, span := w.tracer.Start(ctx, "federation.deliver", trace.WithAttributes(
		attribute.String("post.federated_id", post.FederatedID),
		attribute.Int("post.attempts", post.Attempts),
	))
	defer span.End()

	pending, err := w.posts.PendingServers(ctx, post.ID)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("federation.pending", len(pending)))

	var lastErr error
	for _, server := range pending {
		if err := w.notify(ctx, post, server); err != nil {
			if ctx.Err() != nil {
				// 关停：不记失败，租约过期后由其他 worker 接手
				return ctx.Err()
			}
			lastErr = err
			if rerr := w.posts.RecordFailure(ctx, post.ID, server, err.Error()); rerr != nil {
				logger.Warn("record delivery failure", zap.String("post", post.FederatedID), zap.String("server", server), zap.Error(rerr))
			}
			continue
		}
		if _, err := w.posts.Ack(ctx, post.ID, server); err != nil {
			return err
		}
	}

	remaining, err := w.posts.PendingServers(ctx, post.ID)
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		return w.finish(ctx, post, model.FederationDelivered, nil)
	}

	attempts := post.Attempts + 1
	reason := ""
	if lastErr != nil {
		reason = lastErr.Error()
		span.RecordError(lastErr)
	}
	if attempts >= w.cfg.MaxAttempts {
		span.SetStatus(codes.Error, "delivery budget exhausted")
		return w.finish(ctx, post, model.FederationFailed, map[string]any{
			"attempts":   attempts,
			"last_error": reason,
		})
	}
	next := w.now().Add(w.backoff(attempts))
	err = w.posts.Reschedule(ctx, post.ID, attempts, next, reason)
	if errors.Is(err, repository.ErrStateChanged) {
		return nil
	}
	if err == nil {
		logger.Debug("delivery rescheduled",
			zap.String("post", post.FederatedID),
			zap.Int("attempts", attempts),
			zap.Strings("remaining", remaining),
			zap.Time("next", next))
	}
	return err
}

func (w *DeliveryWorker) notify(ctx context.Context, post *model.Post, server string) error {
	start := time.Now()
	nctx := ctx
	if w.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		nctx, cancel = context.WithTimeout(ctx, w.cfg.RequestTimeout)
		defer cancel()
	}
	err := w.notifier.Notify(nctx, post, server)
	w.metrics.ObserveDelivery(time.Since(start), err)
	return err
}

func (w *DeliveryWorker) finish(ctx context.Context, post *model.Post, to model.FederationStatus, fields map[string]any) error {
	err := w.posts.Transition(ctx, post.ID, model.FederationQueued, to, fields)
	if errors.Is(err, repository.ErrStateChanged) {
		return nil
	}
	if err != nil {
		return err
	}
	w.metrics.ObserveTransition(string(to))
	if to == model.FederationFailed {
		logger.Warn("post federation failed", zap.String("post", post.FederatedID), zap.Any("detail", fields))
	} else {
		logger.Info("post federated", zap.String("post", post.FederatedID))
	}
	return nil
}

// backoff base * 2^(attempt-1)，封顶 MaxBackoff，±20% 抖动
func (w *DeliveryWorker) backoff(attempt int) time.Duration {
	d := float64(w.cfg.BaseBackoff) * math.Pow(2, float64(attempt-1))
	if d > float64(w.cfg.MaxBackoff) {
		d = float64(w.cfg.MaxBackoff)
	}
	d += d * jitterFactor * (2*rand.Float64() - 1)
	if d <= 0 {
		d = float64(w.cfg.BaseBackoff)
	}
	return time.Duration(d)
}
