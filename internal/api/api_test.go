package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"club-client/config"
	"club-client/internal/apiclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	method string
	path   string
	query  url.Values
	body   any
}

// recorder 记录调用并返回预设的 JSON
type recorder struct {
	calls    []call
	response string
}

func (r *recorder) reply(out any) error {
	if out == nil || r.response == "" {
		return nil
	}
	return json.Unmarshal([]byte(r.response), out)
}

func (r *recorder) GetJSON(_ context.Context, path string, query url.Values, out any) error {
	r.calls = append(r.calls, call{method: http.MethodGet, path: path, query: query})
	return r.reply(out)
}

func (r *recorder) PostJSON(_ context.Context, path string, body, out any) error {
	r.calls = append(r.calls, call{method: http.MethodPost, path: path, body: body})
	return r.reply(out)
}

func (r *recorder) PostJSONWithQuery(_ context.Context, path string, query url.Values, body, out any) error {
	r.calls = append(r.calls, call{method: http.MethodPost, path: path, query: query, body: body})
	return r.reply(out)
}

func (r *recorder) PutJSON(_ context.Context, path string, body, out any) error {
	r.calls = append(r.calls, call{method: http.MethodPut, path: path, body: body})
	return r.reply(out)
}

func (r *recorder) Delete(_ context.Context, path string) error {
	r.calls = append(r.calls, call{method: http.MethodDelete, path: path})
	return nil
}

func (r *recorder) PostMultipart(_ context.Context, path, field, filename string, file io.Reader, out any) error {
	data, _ := io.ReadAll(file)
	r.calls = append(r.calls, call{method: http.MethodPost, path: path, body: field + ":" + filename + ":" + string(data)})
	return r.reply(out)
}

func (r *recorder) last() call {
	return r.calls[len(r.calls)-1]
}

func TestServicePaths(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	svc := New(rec, config.CognitoConfig{})

	tests := []struct {
		name   string
		invoke func() error
		method string
		path   string
	}{
		{"clubs list", func() error { _, err := svc.Clubs.List(ctx, ListParams{}); return err }, "GET", "/clubs/"},
		{"club delete", func() error { return svc.Clubs.Delete(ctx, 3) }, "DELETE", "/clubs/3"},
		{"member stats", func() error { _, err := svc.Members.Stats(ctx, 3, 9); return err }, "GET", "/clubs/3/members/9/stats"},
		{"season rankings", func() error { _, err := svc.Seasons.Rankings(ctx, 3, 2); return err }, "GET", "/clubs/3/seasons/2/rankings"},
		{"calculate", func() error { _, err := svc.Seasons.CalculateRankings(ctx, 3, 2); return err }, "POST", "/clubs/3/seasons/2/rankings/calculate"},
		{"participant add", func() error { return svc.Sessions.AddParticipant(ctx, 3, 5, 9) }, "POST", "/clubs/3/sessions/5/participants/9"},
		{"leave", func() error { return svc.Sessions.Leave(ctx, 3, 5) }, "DELETE", "/clubs/3/sessions/5/join"},
		{"my participation", func() error { _, err := svc.Sessions.MyParticipation(ctx, 3, 5); return err }, "GET", "/clubs/3/sessions/5/my-participation"},
		{"match result", func() error { _, err := svc.Matches.RecordResult(ctx, 3, 7, MatchResult{TeamAScore: 6, TeamBScore: 4}); return err }, "POST", "/clubs/3/matches/7/result"},
		{"ranking update", func() error { _, err := svc.Rankings.Update(ctx, 3); return err }, "POST", "/clubs/3/rankings/update"},
		{"guest update", func() error { _, err := svc.Guests.Update(ctx, 3, 4, GuestInput{Name: "김"}); return err }, "PUT", "/clubs/3/guests/4"},
		{"event delete", func() error { return svc.Events.Delete(ctx, 3, 8) }, "DELETE", "/clubs/3/events/8"},
		{"membership", func() error { _, err := svc.Auth.Membership(ctx, 3); return err }, "GET", "/auth/me/memberships/3"},
		{"ocr save", func() error { _, err := svc.OCR.SaveMatches(ctx, 3, SaveMatchesRequest{}); return err }, "POST", "/clubs/3/ocr/save-matches"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.invoke())
			got := rec.last()
			assert.Equal(t, tt.method, got.method)
			assert.Equal(t, tt.path, got.path)
		})
	}
}

func TestQueryParameters(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	svc := New(rec, config.CognitoConfig{})

	_, err := svc.Clubs.List(ctx, ListParams{Skip: 20, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, "limit=10&skip=20", rec.last().query.Encode())

	_, err = svc.Seasons.List(ctx, 1, "")
	require.NoError(t, err)
	assert.Nil(t, rec.last().query)

	_, err = svc.Seasons.List(ctx, 1, "active")
	require.NoError(t, err)
	assert.Equal(t, "active", rec.last().query.Get("status"))

	_, err = svc.Sessions.List(ctx, 1, SessionFilter{SeasonID: 4})
	require.NoError(t, err)
	assert.Equal(t, "season_id=4", rec.last().query.Encode())

	_, err = svc.Sessions.GenerateAIMatches(ctx, 1, 2, AIMatchOptions{Mode: "balanced", MatchDurationMinutes: 25})
	require.NoError(t, err)
	got := rec.last()
	assert.Equal(t, "/clubs/1/sessions/2/matches/generate-ai", got.path)
	assert.Equal(t, "match_duration_minutes=25&mode=balanced", got.query.Encode())

	_, err = svc.Rankings.List(ctx, 1, RankingQuery{SortBy: "points"})
	require.NoError(t, err)
	assert.Equal(t, "points", rec.last().query.Get("sort_by"))
}

func TestOCRExtractUsesFileField(t *testing.T) {
	rec := &recorder{response: `{"date":"2024-05-01","matches":[{"match_type":"mens_doubles","court_number":1,"team_a":{"players":["a","b"],"score":6},"team_b":{"players":["c","d"],"score":3}}]}`}
	svc := New(rec, config.CognitoConfig{})

	result, err := svc.OCR.Extract(context.Background(), 2, "board.png", strings.NewReader("PNG"))
	require.NoError(t, err)
	assert.Equal(t, "file:board.png:PNG", rec.last().body)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, 6, result.Matches[0].TeamA.Score)
	assert.Equal(t, []string{"c", "d"}, result.Matches[0].TeamB.Players)
}

func TestCognitoURLs(t *testing.T) {
	svc := New(&recorder{}, config.CognitoConfig{
		Domain:      "club.auth.ap-northeast-2.amazoncognito.com",
		ClientID:    "abc123",
		RedirectURI: "http://localhost:5173/auth/callback",
		SignOutURI:  "http://localhost:5173/",
	})

	login, err := url.Parse(svc.Auth.GoogleLoginURL())
	require.NoError(t, err)
	assert.Equal(t, "https", login.Scheme)
	assert.Equal(t, "/oauth2/authorize", login.Path)
	assert.Equal(t, "abc123", login.Query().Get("client_id"))
	assert.Equal(t, "code", login.Query().Get("response_type"))
	assert.Equal(t, "openid email profile", login.Query().Get("scope"))
	assert.Equal(t, "Google", login.Query().Get("identity_provider"))
	assert.Equal(t, "http://localhost:5173/auth/callback", login.Query().Get("redirect_uri"))

	logout, err := url.Parse(svc.Auth.LogoutURL())
	require.NoError(t, err)
	assert.Equal(t, "/logout", logout.Path)
	assert.Equal(t, "http://localhost:5173/", logout.Query().Get("logout_uri"))

	empty := New(&recorder{}, config.CognitoConfig{})
	assert.Empty(t, empty.Auth.GoogleLoginURL())
	assert.Empty(t, empty.Auth.LogoutURL())
}

func TestAuthFlowThroughClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret123" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"detail":"이메일 또는 비밀번호가 올바르지 않습니다"}`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "ok", Path: "/", HttpOnly: true})
		io.WriteString(w, `{"user":{"id":1,"email":"a@b.c","name":"민수","role":"super_admin"}}`)
	})
	mux.HandleFunc("/api/auth/check", func(w http.ResponseWriter, r *http.Request) {
		_, err := r.Cookie("access_token")
		io.WriteString(w, `{"authenticated":`+map[bool]string{true: "true", false: "false"}[err == nil]+`}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := config.Default()
	cfg.API.BaseURL = server.URL + "/api"
	client, err := apiclient.NewClient(cfg, nil)
	require.NoError(t, err)
	svc := New(client, cfg.Cognito)
	ctx := context.Background()

	check, err := svc.Auth.Check(ctx)
	require.NoError(t, err)
	assert.False(t, check.Authenticated)

	// 登录接口属于豁免路径，401 直接返回给调用方
	_, err = svc.Auth.Login(ctx, "a@b.c", "wrong")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, apiclient.StatusCode(err))
	assert.Equal(t, "이메일 또는 비밀번호가 올바르지 않습니다", apiclient.ErrorDetail(err, ""))

	result, err := svc.Auth.Login(ctx, "a@b.c", "secret123")
	require.NoError(t, err)
	require.NotNil(t, result.User)
	assert.Equal(t, "super_admin", result.User.Role)

	check, err = svc.Auth.Check(ctx)
	require.NoError(t, err)
	assert.True(t, check.Authenticated)
}
