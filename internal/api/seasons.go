package api

import (
	"context"
	"net/url"
)

type SeasonService struct{ r Requester }

// List status 为空时返回全部赛季
func (s *SeasonService) List(ctx context.Context, clubID int, status string) ([]Season, error) {
	var q url.Values
	if status != "" {
		q = url.Values{"status": {status}}
	}
	var out []Season
	if err := s.r.GetJSON(ctx, clubPath(clubID, "/seasons"), q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SeasonService) Get(ctx context.Context, clubID, seasonID int) (*Season, error) {
	var out Season
	if err := s.r.GetJSON(ctx, clubPath(clubID, "/seasons/%d", seasonID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SeasonService) Create(ctx context.Context, clubID int, in SeasonInput) (*Season, error) {
	var out Season
	if err := s.r.PostJSON(ctx, clubPath(clubID, "/seasons"), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SeasonService) Update(ctx context.Context, clubID, seasonID int, in SeasonInput) (*Season, error) {
	var out Season
	if err := s.r.PutJSON(ctx, clubPath(clubID, "/seasons/%d", seasonID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SeasonService) Delete(ctx context.Context, clubID, seasonID int) error {
	return s.r.Delete(ctx, clubPath(clubID, "/seasons/%d", seasonID))
}

func (s *SeasonService) Rankings(ctx context.Context, clubID, seasonID int) (*SeasonRankingList, error) {
	var out SeasonRankingList
	if err := s.r.GetJSON(ctx, clubPath(clubID, "/seasons/%d/rankings", seasonID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CalculateRankings 触发服务端重新计算赛季排名
func (s *SeasonService) CalculateRankings(ctx context.Context, clubID, seasonID int) (*Message, error) {
	var out Message
	if err := s.r.PostJSON(ctx, clubPath(clubID, "/seasons/%d/rankings/calculate", seasonID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type RankingService struct{ r Requester }

// RankingQuery 排名筛选参数
type RankingQuery struct {
	ListParams
	SortBy string
}

func (s *RankingService) List(ctx context.Context, clubID int, q RankingQuery) ([]Ranking, error) {
	values := q.query()
	if q.SortBy != "" {
		values.Set("sort_by", q.SortBy)
	}
	var out []Ranking
	if err := s.r.GetJSON(ctx, clubPath(clubID, "/rankings"), values, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RankingService) Member(ctx context.Context, clubID, memberID int) (*Ranking, error) {
	var out Ranking
	if err := s.r.GetJSON(ctx, clubPath(clubID, "/rankings/%d", memberID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *RankingService) Update(ctx context.Context, clubID int) (*Message, error) {
	var out Message
	if err := s.r.PostJSON(ctx, clubPath(clubID, "/rankings/update"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
