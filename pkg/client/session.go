package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/paulexconde/surveydesk/internal/models"
)

var ErrNotLoggedIn = errors.New("no user is logged in")

// SessionState is what gets written to the session file.
type SessionState struct {
	CurrentUser *models.User     `yaml:"currentUser,omitempty"`
	SurveyJSON  map[string]any   `yaml:"surveyJson,omitempty"`
	Results     []map[string]any `yaml:"results,omitempty"`
}

// Session keeps the logged in user, the survey being edited and the results
// collected locally. State is loaded on Open and written back on Close.
type Session struct {
	mu     sync.RWMutex
	path   string
	client *Client
	state  SessionState
}

// Open loads the session file at path. A missing file starts an empty session.
func Open(path string, c *Client) (*Session, error) {
	s := &Session{path: path, client: c}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read session: %w", err)
	}

	if err := yaml.Unmarshal(raw, &s.state); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", path, err)
	}
	return s, nil
}

// Login looks the user up on the server and makes them current.
func (s *Session) Login(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.client.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.state.CurrentUser = user
	s.mu.Unlock()
	return user, nil
}

func (s *Session) Logout() {
	s.mu.Lock()
	s.state.CurrentUser = nil
	s.mu.Unlock()
}

func (s *Session) CurrentUser() (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.CurrentUser == nil {
		return models.User{}, ErrNotLoggedIn
	}
	return *s.state.CurrentUser, nil
}

func (s *Session) SetSurveyJSON(doc map[string]any) {
	s.mu.Lock()
	s.state.SurveyJSON = doc
	s.mu.Unlock()
}

func (s *Session) SurveyJSON() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.SurveyJSON
}

func (s *Session) AddResult(result map[string]any) {
	s.mu.Lock()
	s.state.Results = append(s.state.Results, result)
	s.mu.Unlock()
}

func (s *Session) Results() []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]map[string]any, len(s.state.Results))
	copy(out, s.state.Results)
	return out
}

// Close writes the state back to disk. The file is replaced atomically.
func (s *Session) Close() error {
	s.mu.RLock()
	raw, err := yaml.Marshal(&s.state)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}
