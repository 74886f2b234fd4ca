package store

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// StoredCookie 会话 Cookie 的持久化形式
type StoredCookie struct {
	Name     string    `yaml:"name"`
	Value    string    `yaml:"value"`
	Path     string    `yaml:"path,omitempty"`
	Domain   string    `yaml:"domain,omitempty"`
	Expires  time.Time `yaml:"expires,omitempty"`
	Secure   bool      `yaml:"secure,omitempty"`
	HttpOnly bool      `yaml:"http_only,omitempty"`
}

type stateData struct {
	SelectedClubID int            `yaml:"selected_club_id,omitempty"`
	Cookies        []StoredCookie `yaml:"cookies,omitempty"`
}

// StateFile CLI 两次运行之间保留的本地状态
type StateFile struct {
	path string
	mu   sync.Mutex
	data stateData
}

// LoadState 文件不存在时返回空状态
func LoadState(path string) (*StateFile, error) {
	s := &StateFile{path: path}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return s, nil
}

func (s *StateFile) SelectedClubID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.SelectedClubID
}

func (s *StateFile) SetSelectedClubID(id int) error {
	s.mu.Lock()
	s.data.SelectedClubID = id
	s.mu.Unlock()
	return s.Save()
}

// Cookies 跳过已过期的 Cookie
func (s *StateFile) Cookies(now time.Time) []*http.Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	cookies := make([]*http.Cookie, 0, len(s.data.Cookies))
	for _, c := range s.data.Cookies {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		cookies = append(cookies, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		})
	}
	return cookies
}

func (s *StateFile) SetCookies(cookies []*http.Cookie) error {
	stored := make([]StoredCookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, StoredCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		})
	}
	s.mu.Lock()
	s.data.Cookies = stored
	s.mu.Unlock()
	return s.Save()
}

// Save 以 0600 权限写入，文件中包含会话凭证
func (s *StateFile) Save() error {
	s.mu.Lock()
	data, err := yaml.Marshal(s.data)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}
