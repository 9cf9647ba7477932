// Package client talks to the survey API over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/paulexconde/surveydesk/internal/models"
)

const (
	DefaultBaseURL = "http://localhost:9180/surveyjs/api"
	DefaultTimeout = 30 * time.Second
)

// StatusError is returned for any non-2xx answer the caller did not expect.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	validate   *validator.Validate
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		validate:   validator.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SurveyInput is the body of create and update calls.
type SurveyInput struct {
	Title   string         `json:"title" validate:"required"`
	Content map[string]any `json:"jsonContent" validate:"required"`
	// nil leaves assignments untouched on update; an empty slice clears them.
	UserIDs []int64 `json:"-" validate:"dive,gt=0"`
	// Version, when set, makes the update fail with 409 if the survey moved on.
	Version int `json:"version,omitempty" validate:"gte=0"`
}

func (in SurveyInput) body() map[string]any {
	body := map[string]any{"title": in.Title, "jsonContent": in.Content}
	if in.UserIDs != nil {
		body["userIds"] = in.UserIDs
	}
	if in.Version > 0 {
		body["version"] = in.Version
	}
	return body
}

// ResponseInput is one save of a user's answers.
type ResponseInput struct {
	SurveyID        int64          `json:"surveyId" validate:"required,gt=0"`
	UserID          int64          `json:"userId" validate:"required,gt=0"`
	ResponseData    map[string]any `json:"responseData" validate:"required"`
	IsCompleted     bool           `json:"isCompleted"`
	Score           *int           `json:"score,omitempty" validate:"omitempty,min=0"`
	TotalQuestions  *int           `json:"totalQuestions,omitempty" validate:"omitempty,min=0"`
	ScorePercentage *float64       `json:"scorePercentage,omitempty" validate:"omitempty,min=0,max=100"`
}

type SaveResult struct {
	Message    string `json:"message"`
	ResponseID int64  `json:"responseId"`
	// Created is true when the save started a new attempt.
	Created bool `json:"-"`
}

type Score struct {
	Score           int     `json:"score"`
	TotalQuestions  int     `json:"totalQuestions"`
	ScorePercentage float64 `json:"scorePercentage"`
}

type surveyAck struct {
	Message  string `json:"message"`
	SurveyID int64  `json:"surveyId"`
}

func (c *Client) GetSurveys(ctx context.Context, userID *int64) ([]models.Survey, error) {
	path := "/surveys"
	if userID != nil {
		path += "?userId=" + strconv.FormatInt(*userID, 10)
	}

	var surveys []models.Survey
	if _, err := c.do(ctx, "fetch surveys", http.MethodGet, path, nil, &surveys); err != nil {
		return nil, err
	}
	return surveys, nil
}

func (c *Client) GetSurvey(ctx context.Context, id int64) (*models.Survey, error) {
	var survey models.Survey
	if _, err := c.do(ctx, "fetch survey", http.MethodGet, fmt.Sprintf("/surveys/%d", id), nil, &survey); err != nil {
		return nil, err
	}
	return &survey, nil
}

func (c *Client) CreateSurvey(ctx context.Context, in SurveyInput) (int64, error) {
	if err := c.validate.Struct(in); err != nil {
		return 0, fmt.Errorf("create survey: %w", err)
	}

	var ack surveyAck
	if _, err := c.do(ctx, "create survey", http.MethodPost, "/surveys", in.body(), &ack); err != nil {
		return 0, err
	}
	return ack.SurveyID, nil
}

func (c *Client) UpdateSurvey(ctx context.Context, id int64, in SurveyInput) error {
	if err := c.validate.Struct(in); err != nil {
		return fmt.Errorf("update survey: %w", err)
	}

	_, err := c.do(ctx, "update survey", http.MethodPut, fmt.Sprintf("/surveys/%d", id), in.body(), nil)
	return err
}

func (c *Client) GetUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if _, err := c.do(ctx, "fetch users", http.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if _, err := c.do(ctx, "fetch user", http.MethodGet, fmt.Sprintf("/users/%d", id), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) SaveResponse(ctx context.Context, in ResponseInput) (*SaveResult, error) {
	if err := c.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("save response: %w", err)
	}

	var result SaveResult
	status, err := c.do(ctx, "save response", http.MethodPost, "/responses", in, &result)
	if err != nil {
		return nil, err
	}
	result.Created = status == http.StatusCreated
	return &result, nil
}

// GetResponse returns the latest attempt, or nil when the user has none.
func (c *Client) GetResponse(ctx context.Context, surveyID, userID int64) (*models.SurveyResponse, error) {
	q := url.Values{}
	q.Set("surveyId", strconv.FormatInt(surveyID, 10))
	q.Set("userId", strconv.FormatInt(userID, 10))

	var resp models.SurveyResponse
	status, err := c.do(ctx, "get response", http.MethodGet, "/responses?"+q.Encode(), nil, &resp, http.StatusNotFound)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	return &resp, nil
}

func (c *Client) Grade(ctx context.Context, surveyID int64, answers map[string]any) (*Score, error) {
	var score Score
	body := map[string]any{"responseData": answers}
	if _, err := c.do(ctx, "grade", http.MethodPost, fmt.Sprintf("/surveys/%d/grade", surveyID), body, &score); err != nil {
		return nil, err
	}
	return &score, nil
}

// do sends body as JSON and decodes a 2xx answer into out. Statuses listed in
// tolerate are returned without error and without decoding.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any, tolerate ...int) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("%s: encode: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	for _, s := range tolerate {
		if resp.StatusCode == s {
			_, _ = io.Copy(io.Discard, resp.Body)
			return resp.StatusCode, nil
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return resp.StatusCode, &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("%s: decode: %w", op, err)
		}
	}
	return resp.StatusCode, nil
}
