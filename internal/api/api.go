// Package api 俱乐部后端各资源的类型化调用
package api

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"club-client/config"
)

// Requester 发送 JSON 请求的最小接口，*apiclient.Client 实现了它
type Requester interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
	PostJSON(ctx context.Context, path string, body, out any) error
	PostJSONWithQuery(ctx context.Context, path string, query url.Values, body, out any) error
	PutJSON(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string) error
	PostMultipart(ctx context.Context, path, field, filename string, file io.Reader, out any) error
}

// Services 汇总所有资源服务
type Services struct {
	Auth     *AuthService
	Clubs    *ClubService
	Members  *MemberService
	Seasons  *SeasonService
	Sessions *SessionService
	Matches  *MatchService
	Rankings *RankingService
	OCR      *OCRService
	Guests   *GuestService
	Events   *EventService
}

// New 创建全部服务
func New(r Requester, cognito config.CognitoConfig) *Services {
	return &Services{
		Auth:     &AuthService{r: r, cognito: cognito},
		Clubs:    &ClubService{r: r},
		Members:  &MemberService{r: r},
		Seasons:  &SeasonService{r: r},
		Sessions: &SessionService{r: r},
		Matches:  &MatchService{r: r},
		Rankings: &RankingService{r: r},
		OCR:      &OCRService{r: r},
		Guests:   &GuestService{r: r},
		Events:   &EventService{r: r},
	}
}

// ListParams 分页参数
type ListParams struct {
	Skip  int
	Limit int
}

func (p ListParams) query() url.Values {
	q := url.Values{}
	if p.Skip > 0 {
		q.Set("skip", strconv.Itoa(p.Skip))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	return q
}

func clubPath(clubID int, format string, args ...any) string {
	return fmt.Sprintf("/clubs/%d", clubID) + fmt.Sprintf(format, args...)
}
