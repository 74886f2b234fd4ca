package store

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"club-client/internal/api"
	"club-client/internal/apiclient"
	"club-client/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuthAPI struct {
	loginErr   error
	logoutErr  error
	meErr      error
	checkErr   error
	authorized bool
	user       *api.User
}

func (f *fakeAuthAPI) Register(context.Context, api.RegisterInput) (*api.Message, error) {
	return &api.Message{Message: "sent"}, nil
}

func (f *fakeAuthAPI) VerifyEmail(_ context.Context, email, code string) (*api.AuthResult, error) {
	if code != "123456" {
		return nil, &apiclient.HTTPError{StatusCode: 400, Detail: "인증번호가 일치하지 않습니다"}
	}
	return &api.AuthResult{User: &api.User{ID: 7, Email: email}}, nil
}

func (f *fakeAuthAPI) ResendCode(context.Context, string) (*api.Message, error) {
	return nil, errors.New("smtp down")
}

func (f *fakeAuthAPI) Login(context.Context, string, string) (*api.AuthResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &api.AuthResult{User: f.user}, nil
}

func (f *fakeAuthAPI) Logout(context.Context) error { return f.logoutErr }

func (f *fakeAuthAPI) Check(context.Context) (*api.AuthCheck, error) {
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	return &api.AuthCheck{Authenticated: f.authorized}, nil
}

func (f *fakeAuthAPI) Me(context.Context) (*api.User, error) {
	if f.meErr != nil {
		return nil, f.meErr
	}
	return f.user, nil
}

func (f *fakeAuthAPI) UpdateProfile(_ context.Context, in api.ProfileUpdate) (*api.User, error) {
	u := *f.user
	u.Gender = in.Gender
	u.BirthDate = in.BirthDate
	return &u, nil
}

func (f *fakeAuthAPI) HandleCallback(context.Context, string) (*api.AuthResult, error) {
	return nil, &apiclient.HTTPError{StatusCode: 400}
}

type recordingNav struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNav) GoTo(path string) {
	n.mu.Lock()
	n.paths = append(n.paths, path)
	n.mu.Unlock()
}

func strPtr(s string) *string { return &s }

func TestAuthStoreLoginAndGetters(t *testing.T) {
	fake := &fakeAuthAPI{user: &api.User{ID: 1, Role: "super_admin", IsPremium: true}}
	s := NewAuthStore(fake, nil)

	_, err := s.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.True(t, s.IsAuthenticated())
	assert.True(t, s.IsAdmin())
	assert.True(t, s.IsPremium())
	assert.False(t, s.IsProfileComplete())
	assert.False(t, s.Snapshot().Loading)

	_, err = s.UpdateProfile(context.Background(), api.ProfileUpdate{Gender: strPtr("male"), BirthDate: strPtr("1990-01-01")})
	require.NoError(t, err)
	assert.True(t, s.IsProfileComplete())
}

func TestAuthStoreErrorMessages(t *testing.T) {
	ctx := context.Background()

	t.Run("detail from server", func(t *testing.T) {
		s := NewAuthStore(&fakeAuthAPI{loginErr: &apiclient.HTTPError{StatusCode: 401, Detail: "비밀번호가 틀렸습니다"}}, nil)
		_, err := s.Login(ctx, "a@b.c", "x")
		require.Error(t, err)
		assert.Equal(t, "비밀번호가 틀렸습니다", s.Error())
		assert.False(t, s.IsAuthenticated())
	})

	t.Run("fallback message", func(t *testing.T) {
		s := NewAuthStore(&fakeAuthAPI{loginErr: errors.New("dial tcp: refused")}, nil)
		_, err := s.Login(ctx, "a@b.c", "x")
		require.Error(t, err)
		assert.Equal(t, msgLoginFailed, s.Error())

		s.ClearError()
		assert.Empty(t, s.Error())
	})

	t.Run("resend and oauth", func(t *testing.T) {
		s := NewAuthStore(&fakeAuthAPI{}, nil)
		require.Error(t, s.ResendCode(ctx, "a@b.c"))
		assert.Equal(t, msgResendFailed, s.Error())
		_, err := s.HandleCallback(ctx, "code")
		require.Error(t, err)
		assert.Equal(t, msgOAuthFailed, s.Error())
	})
}

func TestAuthStoreRegisterAndVerify(t *testing.T) {
	ctx := context.Background()
	s := NewAuthStore(&fakeAuthAPI{}, nil)

	require.NoError(t, s.Register(ctx, "new@b.c", "password1", "민지"))
	assert.Equal(t, "new@b.c", s.Snapshot().PendingEmail)

	_, err := s.VerifyEmail(ctx, "new@b.c", "000000")
	require.Error(t, err)
	assert.Equal(t, "인증번호가 일치하지 않습니다", s.Error())
	assert.Equal(t, "new@b.c", s.Snapshot().PendingEmail)

	_, err = s.VerifyEmail(ctx, "new@b.c", "123456")
	require.NoError(t, err)
	assert.Empty(t, s.Snapshot().PendingEmail)
	assert.True(t, s.IsAuthenticated())
}

func TestAuthStoreLogoutAlwaysClears(t *testing.T) {
	nav := &recordingNav{}
	fake := &fakeAuthAPI{user: &api.User{ID: 1}, logoutErr: errors.New("500")}
	s := NewAuthStore(fake, nav)

	_, err := s.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	s.Logout(context.Background())
	assert.False(t, s.IsAuthenticated())
	assert.Nil(t, s.User())
	assert.Equal(t, []string{"/"}, nav.paths)
}

func TestAuthStoreCheckAuthIsSilent(t *testing.T) {
	ctx := context.Background()

	s := NewAuthStore(&fakeAuthAPI{authorized: true, user: &api.User{ID: 3}}, nil)
	assert.True(t, s.CheckAuth(ctx))
	assert.Equal(t, 3, s.User().ID)

	s = NewAuthStore(&fakeAuthAPI{authorized: false}, nil)
	assert.False(t, s.CheckAuth(ctx))

	s = NewAuthStore(&fakeAuthAPI{authorized: true, meErr: &apiclient.HTTPError{StatusCode: 401, Detail: "expired"}}, nil)
	assert.False(t, s.CheckAuth(ctx))
	assert.Empty(t, s.Error())

	s = NewAuthStore(&fakeAuthAPI{checkErr: errors.New("offline")}, nil)
	assert.False(t, s.CheckAuth(ctx))
	assert.Empty(t, s.Error())
}

func TestAuthStoreLoadUserNotSilent(t *testing.T) {
	s := NewAuthStore(&fakeAuthAPI{meErr: errors.New("boom")}, nil)
	_, err := s.LoadUser(context.Background(), false)
	require.Error(t, err)
	assert.Equal(t, msgLoadUserFailed, s.Error())
}

func TestAuthStoreEvents(t *testing.T) {
	bus := events.NewEventBus(nil)
	require.NoError(t, bus.Start())
	defer bus.Stop()

	var mu sync.Mutex
	var seen []map[string]interface{}
	bus.Subscribe("test", func(e events.Event) {
		if e.Type == events.EventAuthChanged {
			mu.Lock()
			seen = append(seen, e.Data)
			mu.Unlock()
		}
	})

	s := NewAuthStore(&fakeAuthAPI{user: &api.User{ID: 1}}, nil)
	s.SetEventBus(bus)

	_, err := s.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	s.HandleEvent(events.Event{Type: events.EventRequestCompleted})
	assert.True(t, s.IsAuthenticated())

	s.HandleEvent(events.Event{Type: events.EventLoginRedirect})
	assert.False(t, s.IsAuthenticated())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, true, seen[0]["authenticated"])
	assert.Equal(t, "login", seen[0]["reason"])
	assert.Equal(t, false, seen[1]["authenticated"])
	assert.Equal(t, "session_expired", seen[1]["reason"])
}

type fakeClubAPI struct {
	clubs     []api.Club
	deleteErr error
}

func (f *fakeClubAPI) List(context.Context, api.ListParams) ([]api.Club, error) {
	return f.clubs, nil
}

func (f *fakeClubAPI) Get(_ context.Context, id int) (*api.Club, error) {
	for _, c := range f.clubs {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, &apiclient.HTTPError{StatusCode: 404}
}

func (f *fakeClubAPI) Create(_ context.Context, in api.ClubInput) (*api.Club, error) {
	return &api.Club{ID: 99, Name: in.Name}, nil
}

func (f *fakeClubAPI) Update(_ context.Context, id int, in api.ClubInput) (*api.Club, error) {
	return &api.Club{ID: id, Name: in.Name}, nil
}

func (f *fakeClubAPI) Delete(context.Context, int) error { return f.deleteErr }

func TestClubStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	state, err := LoadState(filepath.Join(t.TempDir(), "state.yaml"))
	require.NoError(t, err)

	fake := &fakeClubAPI{clubs: []api.Club{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}}
	s := NewClubStore(fake, state)

	_, err = s.Fetch(ctx, api.ListParams{})
	require.NoError(t, err)
	assert.Len(t, s.Clubs(), 2)

	require.NoError(t, s.Select(2))
	assert.Equal(t, "B", s.Selected().Name)
	assert.Equal(t, 2, state.SelectedClubID())

	_, err = s.FetchOne(ctx, 2)
	require.NoError(t, err)
	_, err = s.Update(ctx, 2, api.ClubInput{Name: "B2"})
	require.NoError(t, err)
	assert.Equal(t, "B2", s.Current().Name)
	assert.Equal(t, "B2", s.Selected().Name)

	created, err := s.Create(ctx, api.ClubInput{Name: "C"})
	require.NoError(t, err)
	assert.Equal(t, 99, created.ID)
	assert.Len(t, s.Clubs(), 3)

	require.NoError(t, s.Delete(ctx, 2))
	assert.Len(t, s.Clubs(), 2)
	assert.Nil(t, s.Current())
	assert.Equal(t, 0, s.SelectedID())
	assert.Nil(t, s.Selected())
}

func TestClubStoreErrors(t *testing.T) {
	s := NewClubStore(&fakeClubAPI{deleteErr: &apiclient.HTTPError{StatusCode: 403, Detail: "권한이 없습니다"}}, nil)

	_, err := s.FetchOne(context.Background(), 5)
	require.Error(t, err)
	assert.Equal(t, msgClubLoadFailed, s.Error())

	require.Error(t, s.Delete(context.Background(), 1))
	assert.Equal(t, "권한이 없습니다", s.Error())
	assert.False(t, s.Loading())
}

func TestStateFilePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.yaml")
	state, err := LoadState(path)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, state.SetCookies([]*http.Cookie{
		{Name: "access_token", Value: "a1", HttpOnly: true},
		{Name: "stale", Value: "x", Expires: now.Add(-time.Hour)},
	}))
	require.NoError(t, state.SetSelectedClubID(4))

	reloaded, err := LoadState(path)
	require.NoError(t, err)
	assert.Equal(t, 4, reloaded.SelectedClubID())

	cookies := reloaded.Cookies(now)
	require.Len(t, cookies, 1)
	assert.Equal(t, "access_token", cookies[0].Name)
	assert.Equal(t, "/", cookies[0].Path)
	assert.True(t, cookies[0].HttpOnly)
}
