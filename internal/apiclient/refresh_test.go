package apiclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"club-client/config"
	"club-client/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSender 模拟后端：刷新成功前所有业务请求返回 401
type fakeSender struct {
	mu    sync.Mutex
	calls map[string]int

	refreshGate   chan struct{} // 非空时刷新调用阻塞到关闭
	refreshStatus int
	authorized    atomic.Bool
	stuck         map[string]bool // 刷新后仍返回 401 的路径
	refreshCalls  atomic.Int64
}

func newFakeSender() *fakeSender {
	return &fakeSender{calls: make(map[string]int), refreshStatus: http.StatusOK, stuck: make(map[string]bool)}
}

func (f *fakeSender) Send(ctx context.Context, pr *PendingRequest) (*Response, error) {
	f.mu.Lock()
	f.calls[pr.Path]++
	f.mu.Unlock()

	if pr.Path == "/auth/refresh" {
		f.refreshCalls.Add(1)
		if f.refreshGate != nil {
			<-f.refreshGate
		}
		if f.refreshStatus != http.StatusOK {
			return nil, &HTTPError{StatusCode: f.refreshStatus, Method: pr.Method, Path: pr.Path, Detail: "refresh token expired"}
		}
		f.authorized.Store(true)
		return &Response{StatusCode: http.StatusOK}, nil
	}

	if !f.authorized.Load() || f.stuck[pr.Path] {
		return nil, &HTTPError{StatusCode: http.StatusUnauthorized, Method: pr.Method, Path: pr.Path}
	}
	return &Response{StatusCode: http.StatusOK, Body: []byte(fmt.Sprintf(`{"path":%q}`, pr.Path))}, nil
}

func (f *fakeSender) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

// fakeNavigator 记录跳转
type fakeNavigator struct {
	mu      sync.Mutex
	current string
	gotos   []string
}

func (n *fakeNavigator) CurrentPath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *fakeNavigator) GoTo(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.gotos = append(n.gotos, path)
	n.current = path
}

func (n *fakeNavigator) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.gotos)
}

func defaultSessionConfig() config.SessionConfig {
	return config.Default().Session
}

func newTestCoordinator(sender Sender, nav Navigator) *Coordinator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCoordinator(sender, nav, defaultSessionConfig(), logger)
}

func queueLen(c *Coordinator) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

type outcome struct {
	path string
	resp *Response
	err  error
}

// runConcurrent 并发发出请求，等到除发起者外的请求都进入队列后放行刷新
func runConcurrent(t *testing.T, c *Coordinator, sender *fakeSender, paths ...string) []outcome {
	t.Helper()

	results := make([]outcome, len(paths))
	var wg sync.WaitGroup
	for i, p := range paths {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			resp, err := c.Execute(context.Background(), NewPendingRequest(http.MethodGet, p, nil, nil, nil))
			results[i] = outcome{path: p, resp: resp, err: err}
		}(i, p)
	}

	require.Eventually(t, func() bool { return queueLen(c) == len(paths)-1 }, 2*time.Second, time.Millisecond)
	close(sender.refreshGate)
	wg.Wait()
	return results
}

func TestCoordinator_ScenarioA_SingleFlightRefresh(t *testing.T) {
	sender := newFakeSender()
	sender.refreshGate = make(chan struct{})
	nav := &fakeNavigator{current: "/clubs/1"}
	c := newTestCoordinator(sender, nav)

	results := runConcurrent(t, c, sender, "/clubs", "/members", "/seasons")

	assert.Equal(t, int64(1), sender.refreshCalls.Load(), "exactly one refresh call")
	for _, r := range results {
		require.NoError(t, r.err, r.path)
		assert.Equal(t, http.StatusOK, r.resp.StatusCode)
		assert.JSONEq(t, fmt.Sprintf(`{"path":%q}`, r.path), string(r.resp.Body))
		assert.Equal(t, 2, sender.callCount(r.path), "original + one replay for %s", r.path)
	}
	assert.Zero(t, nav.count())

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Waves)
	assert.Equal(t, int64(1), stats.Succeeded)
	assert.Equal(t, int64(2), stats.Queued)
	assert.Equal(t, int64(3), stats.Replayed)
	assert.False(t, c.Refreshing())
	assert.Zero(t, queueLen(c))
}

func TestCoordinator_ScenarioB_RefreshFailureRejectsAllWaiters(t *testing.T) {
	sender := newFakeSender()
	sender.refreshGate = make(chan struct{})
	sender.refreshStatus = http.StatusUnauthorized
	nav := &fakeNavigator{current: "/clubs/1"}
	c := newTestCoordinator(sender, nav)

	results := runConcurrent(t, c, sender, "/clubs", "/members", "/seasons")

	assert.Equal(t, int64(1), sender.refreshCalls.Load())

	var first *RefreshError
	for _, r := range results {
		require.Error(t, r.err)
		var refreshErr *RefreshError
		require.ErrorAs(t, r.err, &refreshErr)
		if first == nil {
			first = refreshErr
		}
		assert.Same(t, first, refreshErr, "all callers see the same refresh error")
		assert.Equal(t, http.StatusUnauthorized, StatusCode(r.err))
		assert.ErrorIs(t, r.err, ErrNotAuthenticated)
		assert.Equal(t, 1, sender.callCount(r.path), "no replay after failed refresh")
	}

	assert.Equal(t, 1, nav.count(), "navigation invoked once")
	assert.Equal(t, []string{"/"}, nav.gotos)
	assert.Equal(t, int64(1), c.Stats().Failed)
	assert.Equal(t, int64(1), c.Stats().Redirects)
}

func TestCoordinator_ScenarioC_ExemptPathNeverRefreshes(t *testing.T) {
	sender := newFakeSender()
	nav := &fakeNavigator{current: "/clubs"}
	c := newTestCoordinator(sender, nav)

	_, err := c.Execute(context.Background(), NewPendingRequest(http.MethodGet, "/auth/check", nil, nil, nil))

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Zero(t, sender.refreshCalls.Load())
	assert.Zero(t, nav.count())
}

func TestCoordinator_ScenarioD_ReplayUnauthorizedRedirects(t *testing.T) {
	sender := newFakeSender()
	sender.stuck["/clubs"] = true
	nav := &fakeNavigator{current: "/clubs"}
	c := newTestCoordinator(sender, nav)

	_, err := c.Execute(context.Background(), NewPendingRequest(http.MethodGet, "/clubs", nil, nil, nil))

	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.Equal(t, int64(1), sender.refreshCalls.Load(), "no second refresh attempt")
	assert.Equal(t, 2, sender.callCount("/clubs"))
	assert.Equal(t, 1, nav.count())
}

func TestCoordinator_RetriedRequestIsNotQueued(t *testing.T) {
	sender := newFakeSender()
	nav := &fakeNavigator{current: "/members"}
	c := newTestCoordinator(sender, nav)

	pr := NewPendingRequest(http.MethodGet, "/members", nil, nil, nil)
	pr.Retried = true

	_, err := c.Execute(context.Background(), pr)
	require.Error(t, err)
	assert.Zero(t, sender.refreshCalls.Load())
	assert.Zero(t, c.Stats().Queued)
	assert.Equal(t, 1, nav.count())
}

func TestCoordinator_RefreshEndpointUnauthorizedDoesNotNest(t *testing.T) {
	sender := newFakeSender()
	sender.refreshStatus = http.StatusUnauthorized
	c := newTestCoordinator(sender, &fakeNavigator{current: "/clubs"})

	_, err := c.Execute(context.Background(), NewPendingRequest(http.MethodPost, "/auth/refresh", nil, nil, nil))
	require.Error(t, err)
	assert.Equal(t, int64(1), sender.refreshCalls.Load(), "only the direct call, no nested refresh")
	assert.Zero(t, c.Stats().Waves)
}

func TestCoordinator_WaitersQueuedInArrivalOrder(t *testing.T) {
	sender := newFakeSender()
	sender.refreshGate = make(chan struct{})
	sender.refreshStatus = http.StatusInternalServerError
	c := newTestCoordinator(sender, nil)

	initiatorDone := make(chan error, 1)
	go func() {
		_, err := c.Execute(context.Background(), NewPendingRequest(http.MethodGet, "/clubs", nil, nil, nil))
		initiatorDone <- err
	}()
	require.Eventually(t, c.Refreshing, 2*time.Second, time.Millisecond)

	// 依次入队，每个等待者入队后立即取消，让它的结果留在通道里供检查
	var arrival []chan error
	for i, p := range []string{"/members", "/seasons", "/rankings"} {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func(p string) {
			_, err := c.Execute(ctx, NewPendingRequest(http.MethodGet, p, nil, nil, nil))
			done <- err
		}(p)

		require.Eventually(t, func() bool { return queueLen(c) == i+1 }, 2*time.Second, time.Millisecond)
		c.mu.Lock()
		arrival = append(arrival, c.waiters[i])
		c.mu.Unlock()

		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	}

	c.mu.Lock()
	snapshot := append([]chan error(nil), c.waiters...)
	c.mu.Unlock()
	assert.Equal(t, arrival, snapshot, "queue keeps arrival order")

	close(sender.refreshGate)
	initiatorErr := <-initiatorDone

	var refreshErr *RefreshError
	require.ErrorAs(t, initiatorErr, &refreshErr)
	for i, ch := range arrival {
		select {
		case got := <-ch:
			assert.Same(t, refreshErr, got, "waiter %d settled with the wave's error", i)
		default:
			t.Fatalf("waiter %d was not settled", i)
		}
	}

	// 已取消的等待者不会被重放
	assert.Equal(t, 1, sender.callCount("/members"))
	assert.Equal(t, 1, sender.callCount("/seasons"))
	assert.Equal(t, 1, sender.callCount("/rankings"))
}

func TestCoordinator_LiveWaitersDrainedInArrivalOrder(t *testing.T) {
	sender := newFakeSender()
	sender.refreshGate = make(chan struct{})
	c := newTestCoordinator(sender, nil)

	var mu sync.Mutex
	var drained []chan error
	c.settled = func(w chan error) {
		mu.Lock()
		drained = append(drained, w)
		mu.Unlock()
	}

	paths := []string{"/clubs", "/members", "/seasons", "/rankings"}
	results := make(chan outcome, len(paths))
	start := func(p string) {
		go func() {
			resp, err := c.Execute(context.Background(), NewPendingRequest(http.MethodGet, p, nil, nil, nil))
			results <- outcome{path: p, resp: resp, err: err}
		}()
	}

	start(paths[0])
	require.Eventually(t, c.Refreshing, 2*time.Second, time.Millisecond)

	var arrival []chan error
	for i, p := range paths[1:] {
		start(p)
		require.Eventually(t, func() bool { return queueLen(c) == i+1 }, 2*time.Second, time.Millisecond)
		c.mu.Lock()
		arrival = append(arrival, c.waiters[i])
		c.mu.Unlock()
	}

	close(sender.refreshGate)
	for range paths {
		o := <-results
		require.NoError(t, o.err, o.path)
		assert.Equal(t, http.StatusOK, o.resp.StatusCode, o.path)
	}

	mu.Lock()
	assert.Equal(t, arrival, drained, "live waiters are settled in arrival order")
	mu.Unlock()
	for _, p := range paths {
		assert.Equal(t, 2, sender.callCount(p), "%s sent once and replayed once", p)
	}
	assert.Equal(t, int64(1), sender.refreshCalls.Load())
}

func TestCoordinator_RedirectSuppressedOnLandingAndAuthPages(t *testing.T) {
	for _, current := range []string{"/", "/auth/", "/auth/?next=x", "/auth", "/auth/login", "/auth/callback?code=x"} {
		t.Run(current, func(t *testing.T) {
			sender := newFakeSender()
			sender.refreshStatus = http.StatusUnauthorized
			nav := &fakeNavigator{current: current}
			c := newTestCoordinator(sender, nav)

			_, err := c.Execute(context.Background(), NewPendingRequest(http.MethodGet, "/clubs", nil, nil, nil))
			require.Error(t, err)
			assert.Equal(t, int64(1), sender.refreshCalls.Load())
			assert.Zero(t, nav.count())
		})
	}
}

func TestCoordinator_NewWaveAfterSettle(t *testing.T) {
	sender := newFakeSender()
	sender.refreshStatus = http.StatusUnauthorized
	c := newTestCoordinator(sender, nil)

	for i := 0; i < 2; i++ {
		_, err := c.Execute(context.Background(), NewPendingRequest(http.MethodGet, "/clubs", nil, nil, nil))
		require.Error(t, err)
	}
	assert.Equal(t, int64(2), sender.refreshCalls.Load(), "each failure wave refreshes once")
	assert.False(t, c.Refreshing())
}

func TestCoordinator_RefreshSurvivesInitiatorCancellation(t *testing.T) {
	sender := newFakeSender()
	sender.refreshGate = make(chan struct{})
	c := newTestCoordinator(sender, nil)

	ctx, cancel := context.WithCancel(context.Background())
	initiatorDone := make(chan error, 1)
	go func() {
		_, err := c.Execute(ctx, NewPendingRequest(http.MethodGet, "/clubs", nil, nil, nil))
		initiatorDone <- err
	}()
	require.Eventually(t, c.Refreshing, 2*time.Second, time.Millisecond)

	waiterDone := make(chan outcome, 1)
	go func() {
		resp, err := c.Execute(context.Background(), NewPendingRequest(http.MethodGet, "/members", nil, nil, nil))
		waiterDone <- outcome{resp: resp, err: err}
	}()
	require.Eventually(t, func() bool { return queueLen(c) == 1 }, 2*time.Second, time.Millisecond)

	cancel()
	close(sender.refreshGate)

	w := <-waiterDone
	require.NoError(t, w.err)
	assert.Equal(t, http.StatusOK, w.resp.StatusCode)
	<-initiatorDone
}

func TestCoordinator_CancelledWaiterIsNotReplayed(t *testing.T) {
	sender := newFakeSender()
	sender.refreshGate = make(chan struct{})
	c := newTestCoordinator(sender, nil)

	initiatorDone := make(chan error, 1)
	go func() {
		_, err := c.Execute(context.Background(), NewPendingRequest(http.MethodGet, "/clubs", nil, nil, nil))
		initiatorDone <- err
	}()
	require.Eventually(t, c.Refreshing, 2*time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	waiterDone := make(chan error, 1)
	go func() {
		_, err := c.Execute(ctx, NewPendingRequest(http.MethodGet, "/seasons", nil, nil, nil))
		waiterDone <- err
	}()
	require.Eventually(t, func() bool { return queueLen(c) == 1 }, 2*time.Second, time.Millisecond)

	cancel()
	require.ErrorIs(t, <-waiterDone, context.Canceled)
	assert.Equal(t, 1, queueLen(c), "cancelled waiter keeps its slot until the drain")

	close(sender.refreshGate)
	require.NoError(t, <-initiatorDone)
	assert.Equal(t, 0, queueLen(c))
	assert.Equal(t, 1, sender.callCount("/seasons"), "no replay for the cancelled waiter")
}

func TestCoordinator_NonUnauthorizedErrorsPropagate(t *testing.T) {
	statuses := []int{http.StatusForbidden, http.StatusNotFound, http.StatusInternalServerError, http.StatusTeapot}
	for _, status := range statuses {
		t.Run(http.StatusText(status), func(t *testing.T) {
			want := &HTTPError{StatusCode: status, Method: "GET", Path: "/clubs"}
			sender := SenderFunc(func(ctx context.Context, pr *PendingRequest) (*Response, error) { return nil, want })
			c := newTestCoordinator(sender, &fakeNavigator{current: "/clubs"})

			_, err := c.Execute(context.Background(), NewPendingRequest(http.MethodGet, "/clubs", nil, nil, nil))
			assert.Same(t, want, err)
			assert.Zero(t, c.Stats().Waves)
		})
	}

	transportErr := errors.New("connection refused")
	c := newTestCoordinator(SenderFunc(func(ctx context.Context, pr *PendingRequest) (*Response, error) {
		return nil, transportErr
	}), nil)
	_, err := c.Execute(context.Background(), NewPendingRequest(http.MethodGet, "/clubs", nil, nil, nil))
	assert.Same(t, transportErr, err)
}

func TestSessionRules_ExactExemptMatching(t *testing.T) {
	rules := newSessionRules(defaultSessionConfig())

	assert.True(t, rules.isExempt("/auth/check"))
	assert.True(t, rules.isExempt("/auth/check/"))
	assert.True(t, rules.isExempt("/auth/me?fields=all"))
	assert.True(t, rules.isExempt("auth/login"))
	assert.False(t, rules.isExempt("/auth/checkout"))
	assert.False(t, rules.isExempt("/clubs/auth/me"))
	assert.False(t, rules.isExempt("/auth/logout"))
}

func TestSessionRules_AuthPrefixesMatchWholeSegments(t *testing.T) {
	defaults := newSessionRules(defaultSessionConfig())
	assert.False(t, defaults.shouldRedirect("/auth/"))
	assert.False(t, defaults.shouldRedirect("/auth/?next=/clubs"))
	assert.False(t, defaults.shouldRedirect("/auth/verify#code"))
	assert.True(t, defaults.shouldRedirect("/authors"))
	assert.True(t, defaults.shouldRedirect("/clubs/auth"))

	cfg := defaultSessionConfig()
	cfg.AuthPathPrefixes = []string{"/auth", "", "sso/"}
	rules := newSessionRules(cfg)
	assert.Equal(t, []string{"/auth/", "/sso/"}, rules.authPrefixes)
	assert.False(t, rules.shouldRedirect("/auth"))
	assert.False(t, rules.shouldRedirect("/auth/login"))
	assert.False(t, rules.shouldRedirect("/sso/callback"))
	assert.True(t, rules.shouldRedirect("/authors"))
	assert.True(t, rules.shouldRedirect("/ssologin"))
}

func TestCoordinator_SetEventBusWhileServing(t *testing.T) {
	sender := newFakeSender()
	sender.refreshStatus = http.StatusUnauthorized
	c := newTestCoordinator(sender, &fakeNavigator{current: "/clubs"})

	bus := events.NewEventBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, bus.Start())
	defer bus.Stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			c.SetEventBus(bus)
			c.SetEventBus(nil)
		}
		c.SetEventBus(bus)
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_, err := c.Execute(context.Background(), NewPendingRequest(http.MethodGet, "/clubs", nil, nil, nil))
			assert.Error(t, err)
		}
	}()
	wg.Wait()

	assert.Equal(t, int64(50), c.Stats().Waves)
	assert.Equal(t, int64(50), c.Stats().Failed)
}

func TestSessionRules_RefreshPathAlwaysExempt(t *testing.T) {
	rules := newSessionRules(config.SessionConfig{RefreshPath: "/session/rotate"})
	assert.True(t, rules.isExempt("/session/rotate"))
	assert.Equal(t, "/", rules.loginPath)
}

func TestCoordinator_UpdateSessionConfig(t *testing.T) {
	sender := newFakeSender()
	c := newTestCoordinator(sender, nil)

	cfg := defaultSessionConfig()
	cfg.ExemptPaths = append(cfg.ExemptPaths, "/clubs")
	c.UpdateSessionConfig(cfg)

	_, err := c.Execute(context.Background(), NewPendingRequest(http.MethodGet, "/clubs", nil, nil, nil))
	require.Error(t, err)
	assert.Zero(t, sender.refreshCalls.Load())
}

func TestNavigatorFunc(t *testing.T) {
	var got string
	sender := newFakeSender()
	sender.refreshStatus = http.StatusUnauthorized
	c := newTestCoordinator(sender, NavigatorFunc(func(path string) { got = path }))

	_, err := c.Execute(context.Background(), NewPendingRequest(http.MethodGet, "/clubs", nil, nil, nil))
	require.Error(t, err)
	assert.Equal(t, "/", got)
}
