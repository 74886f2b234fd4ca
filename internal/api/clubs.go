package api

import (
	"context"
	"fmt"
)

type ClubService struct{ r Requester }

func (s *ClubService) List(ctx context.Context, p ListParams) ([]Club, error) {
	var out []Club
	if err := s.r.GetJSON(ctx, "/clubs/", p.query(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ClubService) Get(ctx context.Context, id int) (*Club, error) {
	var out Club
	if err := s.r.GetJSON(ctx, fmt.Sprintf("/clubs/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ClubService) Create(ctx context.Context, in ClubInput) (*Club, error) {
	var out Club
	if err := s.r.PostJSON(ctx, "/clubs/", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ClubService) Update(ctx context.Context, id int, in ClubInput) (*Club, error) {
	var out Club
	if err := s.r.PutJSON(ctx, fmt.Sprintf("/clubs/%d", id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ClubService) Delete(ctx context.Context, id int) error {
	return s.r.Delete(ctx, fmt.Sprintf("/clubs/%d", id))
}

type MemberService struct{ r Requester }

func (s *MemberService) List(ctx context.Context, clubID int, p ListParams) ([]Member, error) {
	var out []Member
	if err := s.r.GetJSON(ctx, clubPath(clubID, "/members"), p.query(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MemberService) Get(ctx context.Context, clubID, memberID int) (*Member, error) {
	var out Member
	if err := s.r.GetJSON(ctx, clubPath(clubID, "/members/%d", memberID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MemberService) Add(ctx context.Context, clubID int, in MemberInput) (*Member, error) {
	var out Member
	if err := s.r.PostJSON(ctx, clubPath(clubID, "/members"), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MemberService) Update(ctx context.Context, clubID, memberID int, in MemberInput) (*Member, error) {
	var out Member
	if err := s.r.PutJSON(ctx, clubPath(clubID, "/members/%d", memberID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MemberService) Remove(ctx context.Context, clubID, memberID int) error {
	return s.r.Delete(ctx, clubPath(clubID, "/members/%d", memberID))
}

func (s *MemberService) Stats(ctx context.Context, clubID, memberID int) (*MemberStats, error) {
	var out MemberStats
	if err := s.r.GetJSON(ctx, clubPath(clubID, "/members/%d/stats", memberID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
