package apiclient

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"club-client/config"
	"club-client/internal/events"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cookieBackend 轮换 access_token cookie 的最小后端
type cookieBackend struct {
	mu           sync.Mutex
	validToken   string
	refreshCalls atomic.Int64
	uploads      atomic.Int64
}

func (b *cookieBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		b.refreshCalls.Add(1)
		if c, err := r.Cookie("refresh_token"); err != nil || c.Value != "r1" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"detail":"Refresh token이 없습니다"}`)
			return
		}
		b.mu.Lock()
		b.validToken = "a2"
		b.mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "a2", Path: "/", HttpOnly: true})
		io.WriteString(w, `{"message":"ok"}`)
	})
	mux.HandleFunc("/api/clubs", func(w http.ResponseWriter, r *http.Request) {
		if !b.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"detail":"Could not validate credentials"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"id":1,"name":"강남 테니스"}]`)
	})
	mux.HandleFunc("/api/ocr/extract", func(w http.ResponseWriter, r *http.Request) {
		b.uploads.Add(1)
		if !b.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		io.WriteString(w, `{"filename":"`+header.Filename+`","size":`+strconv.Itoa(len(data))+`}`)
	})
	mux.HandleFunc("/api/members", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"detail":[{"loc":["body","name"],"msg":"field required"},{"loc":["body","email"],"msg":"invalid email"}]}`)
	})
	mux.HandleFunc("/api/compressed/br", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		bw.Write([]byte(`{"encoding":"br"}`))
		bw.Close()
		w.Header().Set("Content-Encoding", "br")
		w.Write(buf.Bytes())
	})
	mux.HandleFunc("/api/compressed/gzip", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		gw.Write([]byte(`{"encoding":"gzip"}`))
		gw.Close()
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	})
	return mux
}

func (b *cookieBackend) authorized(r *http.Request) bool {
	c, err := r.Cookie("access_token")
	b.mu.Lock()
	defer b.mu.Unlock()
	return err == nil && c.Value == b.validToken
}

func newTestClient(t *testing.T, backend *cookieBackend, nav Navigator) *Client {
	t.Helper()
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.API.BaseURL = server.URL + "/api"
	cfg.API.Timeout = 5 * time.Second

	client, err := NewClient(cfg, nav)
	require.NoError(t, err)
	return client
}

func TestClient_RefreshRotatesCookieAndReplays(t *testing.T) {
	backend := &cookieBackend{validToken: "a1"}
	client := newTestClient(t, backend, &fakeNavigator{current: "/clubs"})

	// 过期的 access token + 有效的 refresh token
	client.SetCookies([]*http.Cookie{
		{Name: "access_token", Value: "expired", Path: "/"},
		{Name: "refresh_token", Value: "r1", Path: "/"},
	})

	var clubs []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, client.GetJSON(context.Background(), "/clubs", nil, &clubs))
	require.Len(t, clubs, 1)
	assert.Equal(t, "강남 테니스", clubs[0].Name)
	assert.Equal(t, int64(1), backend.refreshCalls.Load())

	names := map[string]string{}
	for _, c := range client.Cookies() {
		names[c.Name] = c.Value
	}
	assert.Equal(t, "a2", names["access_token"])
}

func TestClient_RefreshFailureRedirects(t *testing.T) {
	backend := &cookieBackend{validToken: "a1"}
	nav := &fakeNavigator{current: "/clubs/3/members"}
	client := newTestClient(t, backend, nav)

	err := client.GetJSON(context.Background(), "/clubs", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Equal(t, "Refresh token이 없습니다", ErrorDetail(err, "default"))
	assert.Equal(t, []string{"/"}, nav.gotos)
}

func TestClient_MultipartUploadIsReplayable(t *testing.T) {
	backend := &cookieBackend{validToken: "a1"}
	client := newTestClient(t, backend, nil)
	client.SetCookies([]*http.Cookie{{Name: "refresh_token", Value: "r1", Path: "/"}})

	var result struct {
		Filename string `json:"filename"`
		Size     int    `json:"size"`
	}
	err := client.PostMultipart(context.Background(), "/ocr/extract", "file", "score.png", strings.NewReader("PNGDATA"), &result)
	require.NoError(t, err)
	assert.Equal(t, "score.png", result.Filename)
	assert.Equal(t, 7, result.Size)
	assert.Equal(t, int64(2), backend.uploads.Load(), "original + replay with the same body")
}

func TestClient_ValidationDetailIsJoined(t *testing.T) {
	client := newTestClient(t, &cookieBackend{}, nil)

	err := client.PostJSON(context.Background(), "/members", map[string]string{}, nil)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnprocessableEntity, httpErr.StatusCode)
	assert.Equal(t, "field required; invalid email", httpErr.Detail)
	assert.Contains(t, httpErr.Error(), "POST /members: 422")
}

func TestClient_Decompression(t *testing.T) {
	client := newTestClient(t, &cookieBackend{}, nil)

	for _, enc := range []string{"br", "gzip"} {
		var out struct {
			Encoding string `json:"encoding"`
		}
		require.NoError(t, client.GetJSON(context.Background(), "/compressed/"+enc, nil, &out))
		assert.Equal(t, enc, out.Encoding)
	}
}

func TestClient_PublishesOutcomes(t *testing.T) {
	backend := &cookieBackend{validToken: "a1"}
	client := newTestClient(t, backend, nil)
	client.SetCookies([]*http.Cookie{{Name: "refresh_token", Value: "r1", Path: "/"}})

	bus := events.NewEventBus(nil)
	require.NoError(t, bus.Start())

	var mu sync.Mutex
	var seen []events.Event
	bus.Subscribe("test", func(e events.Event) {
		mu.Lock()
		seen = append(seen, e)
		mu.Unlock()
	})
	client.SetEventBus(bus)

	require.NoError(t, client.GetJSON(context.Background(), "/clubs", nil, nil))
	require.NoError(t, bus.Stop())

	mu.Lock()
	defer mu.Unlock()
	var types []events.EventType
	for _, e := range seen {
		types = append(types, e.Type)
	}
	assert.Equal(t, []events.EventType{
		events.EventRefreshStarted,
		events.EventRefreshSucceeded,
		events.EventRequestReplayed,
		events.EventRequestCompleted,
	}, types)

	completed := seen[len(seen)-1]
	assert.Equal(t, "/clubs", completed.Data["path"])
	assert.Equal(t, true, completed.Data["retried"])
	assert.Equal(t, http.StatusOK, completed.Data["status_code"])
}

func TestNewHTTPSender_RejectsRelativeBaseURL(t *testing.T) {
	_, err := NewHTTPSender("/api", nil, time.Second)
	assert.Error(t, err)
}

func TestHTTPSender_Resolve(t *testing.T) {
	s, err := NewHTTPSender("http://example.com/api/", nil, time.Second)
	require.NoError(t, err)

	pr := NewPendingRequest("get", "/clubs/1/members", map[string][]string{"active": {"true"}}, nil, nil)
	assert.Equal(t, "http://example.com/api/clubs/1/members?active=true", s.resolve(pr))
	assert.Equal(t, "GET", pr.Method)
}
