package api

import (
	"context"
	"net/url"
	"strconv"
)

type SessionService struct{ r Requester }

// SessionFilter 按赛季或活动筛选，零值表示不过滤
type SessionFilter struct {
	SeasonID int
	EventID  int
}

func (f SessionFilter) query() url.Values {
	q := url.Values{}
	if f.SeasonID > 0 {
		q.Set("season_id", strconv.Itoa(f.SeasonID))
	}
	if f.EventID > 0 {
		q.Set("event_id", strconv.Itoa(f.EventID))
	}
	return q
}

func (s *SessionService) List(ctx context.Context, clubID int, f SessionFilter) ([]Session, error) {
	var out []Session
	if err := s.r.GetJSON(ctx, clubPath(clubID, "/sessions"), f.query(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SessionService) Get(ctx context.Context, clubID, sessionID int) (*Session, error) {
	var out Session
	if err := s.r.GetJSON(ctx, clubPath(clubID, "/sessions/%d", sessionID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SessionService) Create(ctx context.Context, clubID int, in SessionInput) (*Session, error) {
	var out Session
	if err := s.r.PostJSON(ctx, clubPath(clubID, "/sessions"), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SessionService) Update(ctx context.Context, clubID, sessionID int, in SessionInput) (*Session, error) {
	var out Session
	if err := s.r.PutJSON(ctx, clubPath(clubID, "/sessions/%d", sessionID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SessionService) Delete(ctx context.Context, clubID, sessionID int) error {
	return s.r.Delete(ctx, clubPath(clubID, "/sessions/%d", sessionID))
}

func (s *SessionService) Participants(ctx context.Context, clubID, sessionID int) ([]Participant, error) {
	var out []Participant
	if err := s.r.GetJSON(ctx, clubPath(clubID, "/sessions/%d/participants", sessionID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SessionService) AddParticipant(ctx context.Context, clubID, sessionID, memberID int) error {
	return s.r.PostJSON(ctx, clubPath(clubID, "/sessions/%d/participants/%d", sessionID, memberID), nil, nil)
}

func (s *SessionService) RemoveParticipant(ctx context.Context, clubID, sessionID, memberID int) error {
	return s.r.Delete(ctx, clubPath(clubID, "/sessions/%d/participants/%d", sessionID, memberID))
}

func (s *SessionService) Matches(ctx context.Context, clubID, sessionID int) ([]Match, error) {
	var out []Match
	if err := s.r.GetJSON(ctx, clubPath(clubID, "/sessions/%d/matches", sessionID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SessionService) GenerateMatches(ctx context.Context, clubID, sessionID int) ([]Match, error) {
	var out []Match
	if err := s.r.PostJSON(ctx, clubPath(clubID, "/sessions/%d/matches/generate", sessionID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SessionService) UpdateMatch(ctx context.Context, clubID, sessionID, matchID int, in MatchUpdate) (*Match, error) {
	var out Match
	if err := s.r.PutJSON(ctx, clubPath(clubID, "/sessions/%d/matches/%d", sessionID, matchID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SessionService) Join(ctx context.Context, clubID, sessionID int) (*Participant, error) {
	var out Participant
	if err := s.r.PostJSON(ctx, clubPath(clubID, "/sessions/%d/join", sessionID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SessionService) Leave(ctx context.Context, clubID, sessionID int) error {
	return s.r.Delete(ctx, clubPath(clubID, "/sessions/%d/join", sessionID))
}

func (s *SessionService) MyParticipation(ctx context.Context, clubID, sessionID int) (*MyParticipation, error) {
	var out MyParticipation
	if err := s.r.GetJSON(ctx, clubPath(clubID, "/sessions/%d/my-participation", sessionID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateAIMatches 仅生成预览，需要 ConfirmAIMatches 才会落库
func (s *SessionService) GenerateAIMatches(ctx context.Context, clubID, sessionID int, opts AIMatchOptions) ([]map[string]any, error) {
	q := url.Values{}
	if opts.Mode != "" {
		q.Set("mode", opts.Mode)
	}
	if opts.MatchDurationMinutes > 0 {
		q.Set("match_duration_minutes", strconv.Itoa(opts.MatchDurationMinutes))
	}
	if opts.BreakDurationMinutes > 0 {
		q.Set("break_duration_minutes", strconv.Itoa(opts.BreakDurationMinutes))
	}
	var out []map[string]any
	if err := s.r.PostJSONWithQuery(ctx, clubPath(clubID, "/sessions/%d/matches/generate-ai", sessionID), q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SessionService) ConfirmAIMatches(ctx context.Context, clubID, sessionID int, matches []map[string]any) ([]Match, error) {
	var out []Match
	body := map[string]any{"matches": matches}
	if err := s.r.PostJSON(ctx, clubPath(clubID, "/sessions/%d/matches/confirm-ai", sessionID), body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type MatchService struct{ r Requester }

func (s *MatchService) Get(ctx context.Context, clubID, matchID int) (*Match, error) {
	var out Match
	if err := s.r.GetJSON(ctx, clubPath(clubID, "/matches/%d", matchID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MatchService) Update(ctx context.Context, clubID, matchID int, in MatchUpdate) (*Match, error) {
	var out Match
	if err := s.r.PutJSON(ctx, clubPath(clubID, "/matches/%d", matchID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MatchService) Delete(ctx context.Context, clubID, matchID int) error {
	return s.r.Delete(ctx, clubPath(clubID, "/matches/%d", matchID))
}

func (s *MatchService) RecordResult(ctx context.Context, clubID, matchID int, result MatchResult) (*Match, error) {
	var out Match
	if err := s.r.PostJSON(ctx, clubPath(clubID, "/matches/%d/result", matchID), result, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
