package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kmsv-2726/federated-socmed/internal/metrics"
	"github.com/kmsv-2726/federated-socmed/pkg/logger"
)

type invalidateJob struct {
	targetID string
	enqAt    time.Time
}

// IndexReplicator 重试失败的关注者索引失效。
// 只做 DEL，任意顺序执行结果一致；队列满时丢弃并依赖索引 TTL 兜底。
type IndexReplicator struct {
	index   FollowerIndex
	ch      chan invalidateJob
	metrics *metrics.Metrics
}

func NewIndexReplicator(index FollowerIndex, queueSize int, m *metrics.Metrics) *IndexReplicator {
	if queueSize <= 0 {
		queueSize = 10000
	}
	return &IndexReplicator{index: index, ch: make(chan invalidateJob, queueSize), metrics: m}
}

// Start 启动 workers 个消费者，返回停止函数；停止时在 ctx 截止前尽量排空队列
func (r *IndexReplicator) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 4
	}
	stopCh := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case job := <-r.ch:
					r.handle(job)
				case <-stopCh:
					return
				}
			}
		}()
	}
	return func(ctx context.Context) error {
		close(stopCh)
		wg.Wait()
		for {
			select {
			case job := <-r.ch:
				r.handle(job)
			case <-ctx.Done():
				return ctx.Err()
			default:
				return nil
			}
		}
	}
}

func (r *IndexReplicator) handle(job invalidateJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.index.Invalidate(ctx, job.targetID); err != nil {
		logger.Warn("follower index invalidate failed", zap.String("target", job.targetID), zap.Error(err))
	}
	r.metrics.ObserveReplicatorLag(time.Since(job.enqAt))
	r.metrics.SetReplicatorQueue(len(r.ch))
}

// Enqueue 非阻塞入队
func (r *IndexReplicator) Enqueue(targetID string) {
	select {
	case r.ch <- invalidateJob{targetID: targetID, enqAt: time.Now()}:
		r.metrics.SetReplicatorQueue(len(r.ch))
	default:
		r.metrics.IncReplicatorDropped()
		logger.Warn("replicator queue full, drop invalidate", zap.String("target", targetID))
	}
}

// QueueLen 返回当前队列长度（采样值）
func (r *IndexReplicator) QueueLen() int { return len(r.ch) }
