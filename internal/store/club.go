package store

import (
	"context"
	"slices"
	"sync"

	"club-client/internal/api"
	"club-client/internal/apiclient"
)

const (
	msgClubsLoadFailed  = "동호회 목록을 불러올 수 없습니다."
	msgClubLoadFailed   = "동호회 정보를 불러올 수 없습니다."
	msgClubCreateFailed = "동호회 생성에 실패했습니다."
	msgClubUpdateFailed = "동호회 수정에 실패했습니다."
	msgClubDeleteFailed = "동호회 삭제에 실패했습니다."
)

// ClubAPI ClubStore 依赖的俱乐部接口，*api.ClubService 实现了它
type ClubAPI interface {
	List(ctx context.Context, p api.ListParams) ([]api.Club, error)
	Get(ctx context.Context, id int) (*api.Club, error)
	Create(ctx context.Context, in api.ClubInput) (*api.Club, error)
	Update(ctx context.Context, id int, in api.ClubInput) (*api.Club, error)
	Delete(ctx context.Context, id int) error
}

// ClubStore 俱乐部列表与当前选中的俱乐部
type ClubStore struct {
	api   ClubAPI
	state *StateFile

	mu         sync.RWMutex
	clubs      []api.Club
	current    *api.Club
	selectedID int
	loading    bool
	err        string
}

// NewClubStore state 可以为 nil，此时选中的俱乐部不会持久化
func NewClubStore(clubAPI ClubAPI, state *StateFile) *ClubStore {
	s := &ClubStore{api: clubAPI, state: state}
	if state != nil {
		s.selectedID = state.SelectedClubID()
	}
	return s
}

func (s *ClubStore) Clubs() []api.Club {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.clubs)
}

func (s *ClubStore) Current() *api.Club {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	c := *s.current
	return &c
}

func (s *ClubStore) SelectedID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedID
}

// Selected 在已加载的列表中查找选中的俱乐部
func (s *ClubStore) Selected() *api.Club {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selectedID == 0 {
		return nil
	}
	for i := range s.clubs {
		if s.clubs[i].ID == s.selectedID {
			c := s.clubs[i]
			return &c
		}
	}
	return nil
}

func (s *ClubStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *ClubStore) Error() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *ClubStore) Fetch(ctx context.Context, p api.ListParams) ([]api.Club, error) {
	s.begin()
	defer s.end()

	clubs, err := s.api.List(ctx, p)
	if err != nil {
		return nil, s.fail(err, msgClubsLoadFailed)
	}
	s.mu.Lock()
	s.clubs = clubs
	s.mu.Unlock()
	return slices.Clone(clubs), nil
}

func (s *ClubStore) FetchOne(ctx context.Context, id int) (*api.Club, error) {
	s.begin()
	defer s.end()

	club, err := s.api.Get(ctx, id)
	if err != nil {
		return nil, s.fail(err, msgClubLoadFailed)
	}
	s.mu.Lock()
	s.current = club
	s.mu.Unlock()
	return club, nil
}

func (s *ClubStore) Create(ctx context.Context, in api.ClubInput) (*api.Club, error) {
	s.begin()
	defer s.end()

	club, err := s.api.Create(ctx, in)
	if err != nil {
		return nil, s.fail(err, msgClubCreateFailed)
	}
	s.mu.Lock()
	s.clubs = append(s.clubs, *club)
	s.mu.Unlock()
	return club, nil
}

func (s *ClubStore) Update(ctx context.Context, id int, in api.ClubInput) (*api.Club, error) {
	s.begin()
	defer s.end()

	club, err := s.api.Update(ctx, id, in)
	if err != nil {
		return nil, s.fail(err, msgClubUpdateFailed)
	}
	s.mu.Lock()
	if i := slices.IndexFunc(s.clubs, func(c api.Club) bool { return c.ID == id }); i >= 0 {
		s.clubs[i] = *club
	}
	if s.current != nil && s.current.ID == id {
		s.current = club
	}
	s.mu.Unlock()
	return club, nil
}

// Delete 删除成功后同步清理当前俱乐部和选中状态
func (s *ClubStore) Delete(ctx context.Context, id int) error {
	s.begin()
	defer s.end()

	if err := s.api.Delete(ctx, id); err != nil {
		return s.fail(err, msgClubDeleteFailed)
	}
	s.mu.Lock()
	s.clubs = slices.DeleteFunc(s.clubs, func(c api.Club) bool { return c.ID == id })
	if s.current != nil && s.current.ID == id {
		s.current = nil
	}
	wasSelected := s.selectedID == id
	s.mu.Unlock()

	if wasSelected {
		return s.Select(0)
	}
	return nil
}

// Select id 为 0 表示取消选择
func (s *ClubStore) Select(id int) error {
	s.mu.Lock()
	s.selectedID = id
	s.mu.Unlock()
	if s.state == nil {
		return nil
	}
	return s.state.SetSelectedClubID(id)
}

func (s *ClubStore) begin() {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()
}

func (s *ClubStore) end() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
}

func (s *ClubStore) fail(err error, fallback string) error {
	s.mu.Lock()
	s.err = apiclient.ErrorDetail(err, fallback)
	s.mu.Unlock()
	return err
}
