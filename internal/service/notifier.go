package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kmsv-2726/federated-socmed/internal/federation"
	"github.com/kmsv-2726/federated-socmed/internal/model"
)

// Notifier 向单个远端节点投递帖子；返回 nil 即为该节点确认
type Notifier interface {
	Notify(ctx context.Context, post *model.Post, server string) error
}

// HTTPNotifier POST <scheme>://<server><path>，正文为 CBOR 信封。
// 每个目标节点一个令牌桶，避免单个慢节点被本节点打满。
type HTTPNotifier struct {
	client *http.Client
	scheme string
	path   string
	origin string
	rps    rate.Limit
	burst  int
	keys   map[string]string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPNotifier client 为 nil 时使用 timeout 构造默认客户端；rps<=0 表示不限速。
// keys 中有目标节点的密钥时附带签名头
func NewHTTPNotifier(client *http.Client, origin, scheme, path string, rps float64, timeout time.Duration, keys map[string]string) *HTTPNotifier {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if scheme == "" {
		scheme = "https"
	}
	if path == "" {
		path = "/federation/inbox"
	}
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	return &HTTPNotifier{
		client:   client,
		scheme:   scheme,
		path:     path,
		origin:   origin,
		rps:      limit,
		burst:    burst,
		keys:     keys,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (n *HTTPNotifier) limiter(server string) *rate.Limiter {
	n.mu.Lock()
	defer n.mu.Unlock()
	l, ok := n.limiters[server]
	if !ok {
		l = rate.NewLimiter(n.rps, n.burst)
		n.limiters[server] = l
	}
	return l
}

// InboxURL 目标节点的收件地址
func (n *HTTPNotifier) InboxURL(server string) string {
	return n.scheme + "://" + server + n.path
}

func (n *HTTPNotifier) Notify(ctx context.Context, post *model.Post, server string) error {
	if err := n.limiter(server).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit %s: %w", server, err)
	}
	body, digest, err := federation.Marshal(federation.FromPost(post))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.InboxURL(server), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", federation.ContentType)
	req.Header.Set(federation.DigestHeader, digest)
	req.Header.Set(federation.OriginHeader, n.origin)
	if key, ok := n.keys[server]; ok {
		sig, err := federation.Sign([]byte(key), n.origin, body)
		if err != nil {
			return err
		}
		req.Header.Set(federation.SignatureHeader, sig)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver to %s: %w", server, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("deliver to %s: unexpected status %d", server, resp.StatusCode)
	}
	return nil
}
