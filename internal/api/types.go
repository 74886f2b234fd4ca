package api

import "time"

// 日期字段使用 "2006-01-02" 字符串，时间字段使用 "15:04:05" 字符串，与后端保持一致

type User struct {
	ID                    int        `json:"id"`
	Email                 string     `json:"email"`
	Name                  string     `json:"name"`
	Role                  string     `json:"role,omitempty"`
	SubscriptionTier      string     `json:"subscription_tier,omitempty"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at,omitempty"`
	IsSuperAdmin          bool       `json:"is_super_admin"`
	IsPremium             bool       `json:"is_premium"`
	Gender                *string    `json:"gender,omitempty"`
	BirthDate             *string    `json:"birth_date,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// ProfileUpdate 字段为 nil 时不修改
type ProfileUpdate struct {
	Name      *string `json:"name,omitempty"`
	Gender    *string `json:"gender,omitempty"`
	BirthDate *string `json:"birth_date,omitempty"`
}

// AuthResult 登录、邮箱验证、OAuth 回调的响应
type AuthResult struct {
	Message string `json:"message,omitempty"`
	User    *User  `json:"user"`
}

type AuthCheck struct {
	Authenticated bool `json:"authenticated"`
}

type Message struct {
	Message string `json:"message"`
}

type Membership struct {
	ID       int     `json:"id"`
	ClubID   int     `json:"club_id"`
	ClubName string  `json:"club_name,omitempty"`
	Role     string  `json:"role"`
	Status   string  `json:"status,omitempty"`
	Nickname *string `json:"nickname,omitempty"`
	Gender   *string `json:"gender,omitempty"`
}

type MembershipUpdate struct {
	Nickname *string `json:"nickname,omitempty"`
	Gender   *string `json:"gender,omitempty"`
}

type Club struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Location    *string   `json:"location,omitempty"`
	CreatedByID int       `json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ClubInput struct {
	Name        string  `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Location    *string `json:"location,omitempty"`
}

type Member struct {
	ID            int       `json:"id"`
	ClubID        int       `json:"club_id"`
	UserID        int       `json:"user_id"`
	Role          string    `json:"role"`
	Status        string    `json:"status,omitempty"`
	Gender        string    `json:"gender"`
	PreferredType string    `json:"preferred_type"`
	JoinedAt      time.Time `json:"joined_at"`
	UserName      string    `json:"user_name,omitempty"`
	UserEmail     string    `json:"user_email,omitempty"`
}

type MemberInput struct {
	UserID        int    `json:"user_id,omitempty"`
	Role          string `json:"role,omitempty"`
	Gender        string `json:"gender,omitempty"`
	PreferredType string `json:"preferred_type,omitempty"`
}

type MemberStats struct {
	TotalMatches int     `json:"total_matches"`
	Wins         int     `json:"wins"`
	Draws        int     `json:"draws"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`
}

type Season struct {
	ID                int       `json:"id"`
	ClubID            int       `json:"club_id"`
	Name              string    `json:"name"`
	Description       *string   `json:"description,omitempty"`
	StartDate         string    `json:"start_date"`
	EndDate           string    `json:"end_date"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	TotalSessions     int       `json:"total_sessions,omitempty"`
	TotalMatches      int       `json:"total_matches,omitempty"`
	TotalParticipants int       `json:"total_participants,omitempty"`
}

type SeasonInput struct {
	Name        string  `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	StartDate   string  `json:"start_date,omitempty"`
	EndDate     string  `json:"end_date,omitempty"`
	Status      string  `json:"status,omitempty"`
}

type SeasonRanking struct {
	ID             int       `json:"id"`
	SeasonID       int       `json:"season_id"`
	ClubMemberID   int       `json:"club_member_id"`
	Rank           *int      `json:"rank,omitempty"`
	TotalMatches   int       `json:"total_matches"`
	Wins           int       `json:"wins"`
	Draws          int       `json:"draws"`
	Losses         int       `json:"losses"`
	Points         int       `json:"points"`
	WinRate        float64   `json:"win_rate"`
	LastUpdated    time.Time `json:"last_updated"`
	MemberName     *string   `json:"member_name,omitempty"`
	MemberNickname *string   `json:"member_nickname,omitempty"`
}

type SeasonRankingList struct {
	Season   Season          `json:"season"`
	Rankings []SeasonRanking `json:"rankings"`
}

type Ranking struct {
	ID           int       `json:"id"`
	ClubID       int       `json:"club_id"`
	ClubMemberID int       `json:"club_member_id"`
	TotalMatches int       `json:"total_matches"`
	Wins         int       `json:"wins"`
	Draws        int       `json:"draws"`
	Losses       int       `json:"losses"`
	Points       int       `json:"points"`
	WinRate      float64   `json:"win_rate"`
	LastUpdated  time.Time `json:"last_updated"`
	MemberName   string    `json:"member_name,omitempty"`
	MemberEmail  string    `json:"member_email,omitempty"`
}

type Session struct {
	ID                   int       `json:"id"`
	EventID              *int      `json:"event_id,omitempty"`
	SeasonID             *int      `json:"season_id,omitempty"`
	Title                string    `json:"title,omitempty"`
	Date                 string    `json:"date"`
	StartTime            string    `json:"start_time"`
	EndTime              string    `json:"end_time"`
	Location             *string   `json:"location,omitempty"`
	SessionType          string    `json:"session_type,omitempty"`
	NumCourts            int       `json:"num_courts"`
	MatchDurationMinutes int       `json:"match_duration_minutes"`
	BreakDurationMinutes *int      `json:"break_duration_minutes,omitempty"`
	Status               string    `json:"status"`
	CreatedAt            time.Time `json:"created_at"`
}

// SessionInput 会话创建与修改的请求体
type SessionInput map[string]any

type Participant struct {
	ID           int    `json:"id"`
	SessionID    int    `json:"session_id"`
	ClubMemberID *int   `json:"club_member_id,omitempty"`
	GuestID      *int   `json:"guest_id,omitempty"`
	Category     string `json:"category,omitempty"`
	Name         string `json:"name,omitempty"`
}

type MyParticipation struct {
	IsParticipating bool `json:"is_participating"`
	IsMember        bool `json:"is_member"`
	MemberID        *int `json:"member_id"`
	ParticipantID   *int `json:"participant_id"`
}

type Match struct {
	ID                int        `json:"id"`
	SessionID         int        `json:"session_id"`
	MatchNumber       int        `json:"match_number"`
	CourtNumber       int        `json:"court_number"`
	ScheduledDatetime time.Time  `json:"scheduled_datetime"`
	ScheduledTime     string     `json:"scheduled_time"`
	MatchType         string     `json:"match_type"`
	Status            string     `json:"status"`
	ActualStartTime   *time.Time `json:"actual_start_time,omitempty"`
	ActualEndTime     *time.Time `json:"actual_end_time,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type MatchUpdate struct {
	CourtNumber       *int       `json:"court_number,omitempty"`
	ScheduledDatetime *time.Time `json:"scheduled_datetime,omitempty"`
	Status            string     `json:"status,omitempty"`
	TeamAScore        *int       `json:"team_a_score,omitempty"`
	TeamBScore        *int       `json:"team_b_score,omitempty"`
}

type MatchResult struct {
	TeamAScore int            `json:"team_a_score"`
	TeamBScore int            `json:"team_b_score"`
	SetsDetail map[string]any `json:"sets_detail"`
	WinnerTeam *string        `json:"winner_team,omitempty"`
}

// AIMatchOptions AI 自动排阵参数
type AIMatchOptions struct {
	Mode                 string `json:"mode,omitempty"` // balanced | random
	MatchDurationMinutes int    `json:"match_duration_minutes,omitempty"`
	BreakDurationMinutes int    `json:"break_duration_minutes,omitempty"`
}

type MatchPlayers struct {
	Players []string `json:"players"`
	Score   int      `json:"score"`
}

type ExtractedMatch struct {
	MatchType   string       `json:"match_type"`
	CourtNumber int          `json:"court_number"`
	TeamA       MatchPlayers `json:"team_a"`
	TeamB       MatchPlayers `json:"team_b"`
}

type OCRResult struct {
	Date     *string          `json:"date,omitempty"`
	Location *string          `json:"location,omitempty"`
	Matches  []ExtractedMatch `json:"matches"`
}

type PlayerMapping struct {
	ExtractedName string `json:"extracted_name"`
	MemberID      *int   `json:"member_id,omitempty"`
	GuestID       *int   `json:"guest_id,omitempty"`
}

// SaveMatchesRequest OCR 结果入库请求
type SaveMatchesRequest struct {
	SeasonID         *int             `json:"season_id,omitempty"`
	SessionID        *int             `json:"session_id,omitempty"`
	CreateNewSession bool             `json:"create_new_session"`
	SessionTitle     string           `json:"session_title,omitempty"`
	SessionDate      string           `json:"session_date,omitempty"`
	SessionStartTime string           `json:"session_start_time,omitempty"`
	SessionEndTime   string           `json:"session_end_time,omitempty"`
	SessionLocation  string           `json:"session_location,omitempty"`
	Matches          []ExtractedMatch `json:"matches"`
	PlayerMappings   []PlayerMapping  `json:"player_mappings,omitempty"`
}

type Guest struct {
	ID         int     `json:"id"`
	ClubID     int     `json:"club_id"`
	Name       string  `json:"name"`
	Gender     string  `json:"gender"`
	Phone      *string `json:"phone,omitempty"`
	Notes      *string `json:"notes,omitempty"`
	TotalGames int     `json:"total_games"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	Draws      int     `json:"draws"`
}

type GuestInput struct {
	Name   string  `json:"name,omitempty"`
	Gender string  `json:"gender,omitempty"`
	Phone  *string `json:"phone,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

type Event struct {
	ID             int       `json:"id"`
	ClubID         int       `json:"club_id"`
	Title          string    `json:"title"`
	EventType      string    `json:"event_type"`
	RecurrenceRule *string   `json:"recurrence_rule,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type EventInput struct {
	Title          string  `json:"title,omitempty"`
	EventType      string  `json:"event_type,omitempty"`
	RecurrenceRule *string `json:"recurrence_rule,omitempty"`
}
