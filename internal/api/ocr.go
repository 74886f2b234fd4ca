package api

import (
	"context"
	"io"
)

type OCRService struct{ r Requester }

// Extract 上传比赛记录截图，字段名固定为 file
func (s *OCRService) Extract(ctx context.Context, clubID int, filename string, image io.Reader) (*OCRResult, error) {
	var out OCRResult
	if err := s.r.PostMultipart(ctx, clubPath(clubID, "/ocr/extract"), "file", filename, image, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *OCRService) SaveMatches(ctx context.Context, clubID int, req SaveMatchesRequest) (map[string]any, error) {
	var out map[string]any
	if err := s.r.PostJSON(ctx, clubPath(clubID, "/ocr/save-matches"), req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type GuestService struct{ r Requester }

func (s *GuestService) List(ctx context.Context, clubID int) ([]Guest, error) {
	var out []Guest
	if err := s.r.GetJSON(ctx, clubPath(clubID, "/guests"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GuestService) Get(ctx context.Context, clubID, guestID int) (*Guest, error) {
	var out Guest
	if err := s.r.GetJSON(ctx, clubPath(clubID, "/guests/%d", guestID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *GuestService) Create(ctx context.Context, clubID int, in GuestInput) (*Guest, error) {
	var out Guest
	if err := s.r.PostJSON(ctx, clubPath(clubID, "/guests"), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *GuestService) Update(ctx context.Context, clubID, guestID int, in GuestInput) (*Guest, error) {
	var out Guest
	if err := s.r.PutJSON(ctx, clubPath(clubID, "/guests/%d", guestID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *GuestService) Delete(ctx context.Context, clubID, guestID int) error {
	return s.r.Delete(ctx, clubPath(clubID, "/guests/%d", guestID))
}

type EventService struct{ r Requester }

func (s *EventService) List(ctx context.Context, clubID int) ([]Event, error) {
	var out []Event
	if err := s.r.GetJSON(ctx, clubPath(clubID, "/events"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *EventService) Get(ctx context.Context, clubID, eventID int) (*Event, error) {
	var out Event
	if err := s.r.GetJSON(ctx, clubPath(clubID, "/events/%d", eventID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *EventService) Create(ctx context.Context, clubID int, in EventInput) (*Event, error) {
	var out Event
	if err := s.r.PostJSON(ctx, clubPath(clubID, "/events"), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *EventService) Update(ctx context.Context, clubID, eventID int, in EventInput) (*Event, error) {
	var out Event
	if err := s.r.PutJSON(ctx, clubPath(clubID, "/events/%d", eventID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *EventService) Delete(ctx context.Context, clubID, eventID int) error {
	return s.r.Delete(ctx, clubPath(clubID, "/events/%d", eventID))
}
