package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmsv-2726/federated-socmed/config"
	"github.com/kmsv-2726/federated-socmed/internal/federation"
	"github.com/kmsv-2726/federated-socmed/internal/model"
)

// fakeNotifier 按节点返回预设结果，并记录每次调用
type fakeNotifier struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls map[string]int
}

func newFakeNotifier(failing ...string) *fakeNotifier {
	n := &fakeNotifier{fail: map[string]bool{}, calls: map[string]int{}}
	for _, s := range failing {
		n.fail[s] = true
	}
	return n
}

func (n *fakeNotifier) Notify(_ context.Context, _ *model.Post, server string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls[server]++
	if n.fail[server] {
		return errors.New("connection refused")
	}
	return nil
}

func (n *fakeNotifier) setFail(server string, fail bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fail[server] = fail
}

func (n *fakeNotifier) count(server string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[server]
}

type workerFixture struct {
	e      *testEnv
	worker *DeliveryWorker
	clock  time.Time
}

func newWorkerFixture(t *testing.T, n Notifier, maxAttempts int) *workerFixture {
	e := newTestEnv(t)
	w := NewDeliveryWorker(e.posts, n, config.FederationConfig{
		Workers:     1,
		ClaimLimit:  10,
		Lease:       time.Minute,
		MaxAttempts: maxAttempts,
		BaseBackoff: time.Second,
		MaxBackoff:  time.Minute,
	}, nil)
	f := &workerFixture{e: e, worker: w, clock: time.Now().Add(time.Second)}
	w.now = func() time.Time { return f.clock }
	return f
}

// round 把时钟拨过所有退避再跑一轮
func (f *workerFixture) round(t *testing.T) int {
	t.Helper()
	n, err := f.worker.ProcessOnce(context.Background())
	require.NoError(t, err)
	f.clock = f.clock.Add(time.Hour)
	return n
}

func (f *workerFixture) queuedPost(t *testing.T, remotes ...string) *model.Post {
	t.Helper()
	ctx := context.Background()
	author := f.e.local(t, "author")
	for _, r := range remotes {
		require.NoError(t, f.e.relations.Follow(ctx, f.e.remote(t, r), author))
	}
	p, err := f.e.postSvc.CreatePost(ctx, author, CreatePostInput{Description: "federate me"})
	require.NoError(t, err)
	require.Equal(t, model.FederationQueued, p.FederationStatus)
	return p
}

func (f *workerFixture) reload(t *testing.T, id string) *model.Post {
	t.Helper()
	p, err := f.e.posts.Get(context.Background(), id)
	require.NoError(t, err)
	return p
}

func TestDeliveryAllAcked(t *testing.T) {
	n := newFakeNotifier()
	f := newWorkerFixture(t, n, 3)
	p := f.queuedPost(t, "srv2/user/a", "srv3/user/b")

	assert.Equal(t, 1, f.round(t))
	got := f.reload(t, p.ID)
	assert.Equal(t, model.FederationDelivered, got.FederationStatus)
	assert.Equal(t, []string{"srv2", "srv3"}, sorted(got.FederatedTo))

	// delivered 不再被认领
	assert.Equal(t, 0, f.round(t))
	assert.Equal(t, 1, n.count("srv2"))
}

func TestDeliveryPartialRetriesOnlyRemaining(t *testing.T) {
	n := newFakeNotifier("srv3")
	f := newWorkerFixture(t, n, 5)
	p := f.queuedPost(t, "srv2/user/a", "srv3/user/b")

	f.round(t)
	got := f.reload(t, p.ID)
	assert.Equal(t, model.FederationQueued, got.FederationStatus)
	assert.Equal(t, []string{"srv2"}, got.FederatedTo)
	assert.Equal(t, 1, got.Attempts)
	assert.Contains(t, got.LastError, "connection refused")

	n.setFail("srv3", false)
	f.round(t)
	got = f.reload(t, p.ID)
	assert.Equal(t, model.FederationDelivered, got.FederationStatus)
	assert.Equal(t, []string{"srv2", "srv3"}, sorted(got.FederatedTo))

	// 已确认的 srv2 没有被再次通知
	assert.Equal(t, 1, n.count("srv2"))
	assert.Equal(t, 2, n.count("srv3"))
}

func TestDeliveryBudgetExhausted(t *testing.T) {
	n := newFakeNotifier("srv2")
	f := newWorkerFixture(t, n, 3)
	p := f.queuedPost(t, "srv2/user/a")

	for i := 0; i < 5; i++ {
		f.round(t)
	}
	got := f.reload(t, p.ID)
	assert.Equal(t, model.FederationFailed, got.FederationStatus)
	assert.Equal(t, 3, got.Attempts)
	assert.Empty(t, got.FederatedTo)
	assert.Equal(t, 3, n.count("srv2"))
}

func TestDeliveryNotDueIsSkipped(t *testing.T) {
	n := newFakeNotifier("srv2")
	f := newWorkerFixture(t, n, 5)
	f.queuedPost(t, "srv2/user/a")

	_, err := f.worker.ProcessOnce(context.Background())
	require.NoError(t, err)
	// 退避期内同一时刻再跑：不应认领
	cnt, err := f.worker.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, cnt)
	assert.Equal(t, 1, n.count("srv2"))
}

func TestBackoffBounded(t *testing.T) {
	w := NewDeliveryWorker(nil, nil, config.FederationConfig{BaseBackoff: time.Second, MaxBackoff: 10 * time.Second}, nil)
	for attempt := 1; attempt < 20; attempt++ {
		d := w.backoff(attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 12*time.Second)
	}
	first := w.backoff(1)
	assert.GreaterOrEqual(t, first, 800*time.Millisecond)
	assert.LessOrEqual(t, first, 1200*time.Millisecond)
}

func TestWorkerStartStop(t *testing.T) {
	n := newFakeNotifier()
	e := newTestEnv(t)
	w := NewDeliveryWorker(e.posts, n, config.FederationConfig{Workers: 2, PollInterval: 10 * time.Millisecond, MaxAttempts: 3}, nil)
	stop := w.Start()

	author := e.local(t, "author")
	ctx := context.Background()
	require.NoError(t, e.relations.Follow(ctx, e.remote(t, "srv2/user/a"), author))
	p, err := NewPostService(e.posts, e.users, e.follows, e.channelSvc, e.minter, w, testServer, nil).
		CreatePost(ctx, author, CreatePostInput{Description: "async"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		got, err := e.posts.Get(ctx, p.ID)
		return err == nil && got.FederationStatus == model.FederationDelivered
	}, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	assert.NoError(t, stop(stopCtx))
}

func TestHTTPNotifier(t *testing.T) {
	var (
		mu   sync.Mutex
		envs []federation.Envelope
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/federation/inbox", r.URL.Path)
		assert.Equal(t, federation.ContentType, r.Header.Get("Content-Type"))
		assert.Equal(t, "srv1", r.Header.Get(federation.OriginHeader))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.NoError(t, federation.VerifySignature([]byte("k"), "srv1", body, r.Header.Get(federation.SignatureHeader)))
		env, err := federation.Unmarshal(body, r.Header.Get(federation.DigestHeader))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		envs = append(envs, env)
		mu.Unlock()
		if env.Description == "reject me" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	n := NewHTTPNotifier(srv.Client(), "srv1", "http", "", 100, time.Second, map[string]string{host: "k"})
	assert.Equal(t, srv.URL+"/federation/inbox", n.InboxURL(host))

	post := &model.Post{
		FederatedID:  "srv1/user/1/post/1",
		AuthorID:     "srv1/user/1",
		Description:  "hello",
		OriginServer: "srv1",
		Kind:         model.PostKindUser,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, n.Notify(context.Background(), post, host))

	post.Description = "reject me"
	assert.Error(t, n.Notify(context.Background(), post, host))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, envs, 2)
	assert.Equal(t, "srv1/user/1/post/1", envs[0].FederatedID)
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
