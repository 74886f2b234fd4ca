package devserver

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"club-client/config"
	"club-client/internal/api"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("not found")
)

// 开发用的轻量参数
const (
	argonTime    = 1
	argonMemory  = 8 * 1024
	argonThreads = 1
	argonKeyLen  = 32
	saltLen      = 16
)

type passwordHash struct {
	salt []byte
	key  []byte
}

func hashPassword(password string) (passwordHash, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return passwordHash{}, err
	}
	return passwordHash{salt: salt, key: argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)}, nil
}

func (h passwordHash) verify(password string) bool {
	computed := argon2.IDKey([]byte(password), h.salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return subtle.ConstantTimeCompare(computed, h.key) == 1
}

type account struct {
	user     api.User
	password passwordHash
}

// Directory 开发服务器的内存数据
type Directory struct {
	mu       sync.RWMutex
	accounts map[int]*account
	byEmail  map[string]int
	clubs    []api.Club
	members  map[int][]api.Member
	seasons  map[int][]api.Season
	rankings map[int][]api.Ranking
	nextID   int
}

// DefaultUsers 未配置用户时使用的演示账号
func DefaultUsers() []config.DevUserConfig {
	return []config.DevUserConfig{
		{Email: "demo@club.local", Password: "tennis1234", Name: "김데모", Role: "super_admin", Gender: "male", BirthDate: "1990-05-01"},
		{Email: "player@club.local", Password: "tennis1234", Name: "이선수", Gender: "female", BirthDate: "1994-09-12"},
		{Email: "newbie@club.local", Password: "tennis1234", Name: "박신입"},
	}
}

// NewDirectory 创建账号并生成一个示例俱乐部
func NewDirectory(users []config.DevUserConfig, now time.Time) (*Directory, error) {
	if len(users) == 0 {
		users = DefaultUsers()
	}
	d := &Directory{
		accounts: make(map[int]*account),
		byEmail:  make(map[string]int),
		members:  make(map[int][]api.Member),
		seasons:  make(map[int][]api.Season),
		rankings: make(map[int][]api.Ranking),
		nextID:   1,
	}

	for _, u := range users {
		hash, err := hashPassword(u.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password for %s: %w", u.Email, err)
		}
		role := u.Role
		if role == "" {
			role = "user"
		}
		user := api.User{
			ID:           d.allocID(),
			Email:        strings.ToLower(u.Email),
			Name:         u.Name,
			Role:         role,
			IsSuperAdmin: role == "super_admin",
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if u.Gender != "" {
			user.Gender = &u.Gender
		}
		if u.BirthDate != "" {
			user.BirthDate = &u.BirthDate
		}
		d.accounts[user.ID] = &account{user: user, password: hash}
		d.byEmail[user.Email] = user.ID
	}

	d.seedClub(now)
	return d, nil
}

func (d *Directory) allocID() int {
	id := d.nextID
	d.nextID++
	return id
}

func (d *Directory) seedClub(now time.Time) {
	owner := d.sortedAccountIDs()[0]
	desc := "주말 복식 위주의 동호회"
	club := api.Club{ID: d.allocID(), Name: "강남 테니스 클럽", Description: &desc, CreatedByID: owner, CreatedAt: now, UpdatedAt: now}
	d.clubs = append(d.clubs, club)

	season := api.Season{
		ID:        d.allocID(),
		ClubID:    club.ID,
		Name:      fmt.Sprintf("%d 시즌 1", now.Year()),
		StartDate: now.AddDate(0, -1, 0).Format("2006-01-02"),
		EndDate:   now.AddDate(0, 2, 0).Format("2006-01-02"),
		Status:    "active",
		CreatedAt: now,
	}
	d.seasons[club.ID] = []api.Season{season}

	for i, uid := range d.sortedAccountIDs() {
		acc := d.accounts[uid]
		role := "member"
		if uid == owner {
			role = "manager"
		}
		gender := "male"
		if acc.user.Gender != nil {
			gender = *acc.user.Gender
		}
		member := api.Member{
			ID:            d.allocID(),
			ClubID:        club.ID,
			UserID:        uid,
			Role:          role,
			Status:        "active",
			Gender:        gender,
			PreferredType: "any",
			JoinedAt:      now,
			UserName:      acc.user.Name,
			UserEmail:     acc.user.Email,
		}
		d.members[club.ID] = append(d.members[club.ID], member)

		wins, losses := max(6-i, 0), 2+i
		total := wins + losses
		d.rankings[club.ID] = append(d.rankings[club.ID], api.Ranking{
			ID:           d.allocID(),
			ClubID:       club.ID,
			ClubMemberID: member.ID,
			TotalMatches: total,
			Wins:         wins,
			Losses:       losses,
			Points:       wins * 3,
			WinRate:      float64(wins) / float64(total) * 100,
			LastUpdated:  now,
			MemberName:   acc.user.Name,
			MemberEmail:  acc.user.Email,
		})
	}
}

func (d *Directory) sortedAccountIDs() []int {
	ids := make([]int, 0, len(d.accounts))
	for id := range d.accounts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Authenticate 邮箱不区分大小写
func (d *Directory) Authenticate(email, password string) (api.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byEmail[strings.ToLower(email)]
	if !ok {
		return api.User{}, ErrInvalidCredentials
	}
	acc := d.accounts[id]
	if !acc.password.verify(password) {
		return api.User{}, ErrInvalidCredentials
	}
	return acc.user, nil
}

func (d *Directory) User(id int) (api.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acc, ok := d.accounts[id]
	if !ok {
		return api.User{}, ErrNotFound
	}
	return acc.user, nil
}

func (d *Directory) UpdateProfile(id int, in api.ProfileUpdate, now time.Time) (api.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	acc, ok := d.accounts[id]
	if !ok {
		return api.User{}, ErrNotFound
	}
	if in.Name != nil {
		acc.user.Name = *in.Name
	}
	if in.Gender != nil {
		acc.user.Gender = in.Gender
	}
	if in.BirthDate != nil {
		acc.user.BirthDate = in.BirthDate
	}
	acc.user.UpdatedAt = now
	return acc.user, nil
}

// Clubs 只返回用户加入的俱乐部
func (d *Directory) Clubs(userID int) []api.Club {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []api.Club
	for _, c := range d.clubs {
		if d.isMember(c.ID, userID) {
			out = append(out, c)
		}
	}
	return out
}

func (d *Directory) CreateClub(userID int, in api.ClubInput, now time.Time) api.Club {
	d.mu.Lock()
	defer d.mu.Unlock()
	club := api.Club{
		ID:          d.allocID(),
		Name:        in.Name,
		Description: in.Description,
		Location:    in.Location,
		CreatedByID: userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	d.clubs = append(d.clubs, club)

	member := api.Member{ID: d.allocID(), ClubID: club.ID, UserID: userID, Role: "manager", Status: "active", JoinedAt: now}
	if acc, ok := d.accounts[userID]; ok {
		member.UserName = acc.user.Name
		member.UserEmail = acc.user.Email
	}
	d.members[club.ID] = []api.Member{member}
	return club
}

// Club 非成员访问返回 ErrNotFound
func (d *Directory) Club(userID, clubID int) (api.Club, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, c := range d.clubs {
		if c.ID == clubID && d.isMember(clubID, userID) {
			return c, nil
		}
	}
	return api.Club{}, ErrNotFound
}

func (d *Directory) Members(userID, clubID int) ([]api.Member, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.isMember(clubID, userID) {
		return nil, ErrNotFound
	}
	return slices.Clone(d.members[clubID]), nil
}

func (d *Directory) Seasons(userID, clubID int, status string) ([]api.Season, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.isMember(clubID, userID) {
		return nil, ErrNotFound
	}
	out := []api.Season{}
	for _, s := range d.seasons[clubID] {
		if status == "" || s.Status == status {
			out = append(out, s)
		}
	}
	return out, nil
}

// SeasonRankings 由俱乐部排名按积分排序生成
func (d *Directory) SeasonRankings(userID, clubID, seasonID int) (api.SeasonRankingList, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.isMember(clubID, userID) {
		return api.SeasonRankingList{}, ErrNotFound
	}
	idx := slices.IndexFunc(d.seasons[clubID], func(s api.Season) bool { return s.ID == seasonID })
	if idx < 0 {
		return api.SeasonRankingList{}, ErrNotFound
	}

	ranked := d.sortedRankings(clubID)
	list := api.SeasonRankingList{Season: d.seasons[clubID][idx], Rankings: make([]api.SeasonRanking, 0, len(ranked))}
	for i, r := range ranked {
		rank := i + 1
		name := r.MemberName
		list.Rankings = append(list.Rankings, api.SeasonRanking{
			ID:           r.ID,
			SeasonID:     seasonID,
			ClubMemberID: r.ClubMemberID,
			Rank:         &rank,
			TotalMatches: r.TotalMatches,
			Wins:         r.Wins,
			Draws:        r.Draws,
			Losses:       r.Losses,
			Points:       r.Points,
			WinRate:      r.WinRate,
			LastUpdated:  r.LastUpdated,
			MemberName:   &name,
		})
	}
	return list, nil
}

func (d *Directory) Rankings(userID, clubID int) ([]api.Ranking, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.isMember(clubID, userID) {
		return nil, ErrNotFound
	}
	return d.sortedRankings(clubID), nil
}

func (d *Directory) sortedRankings(clubID int) []api.Ranking {
	ranked := slices.Clone(d.rankings[clubID])
	slices.SortStableFunc(ranked, func(a, b api.Ranking) int {
		if a.Points != b.Points {
			return b.Points - a.Points
		}
		return a.ClubMemberID - b.ClubMemberID
	})
	return ranked
}

func (d *Directory) isMember(clubID, userID int) bool {
	return slices.ContainsFunc(d.members[clubID], func(m api.Member) bool { return m.UserID == userID })
}
