package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulexconde/surveydesk/internal/app"
	"github.com/paulexconde/surveydesk/internal/config"
	"github.com/paulexconde/surveydesk/internal/db/dbtest"
	"github.com/paulexconde/surveydesk/internal/pkg/logger"
	"github.com/paulexconde/surveydesk/pkg/client"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestReadSurveyFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.json", `{"pages":[]}`)
	writeFile(t, dir, "a.json", `{"title":"Onboarding","pages":[]}`)
	writeFile(t, dir, "notes.txt", `ignored`)

	files, err := readSurveyFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "Onboarding", files[0].title)
	assert.Equal(t, "b", files[1].title)
}

func TestReadSurveyFiles_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.json", `{"title":`)

	_, err := readSurveyFiles(dir)
	assert.Error(t, err)
}

func TestImportSurveys(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conn := dbtest.Open(t)
	users := dbtest.Users(t, conn, "alice")

	srv := httptest.NewServer(app.NewRouter(config.ServerConfig{BasePath: "/surveyjs/api"}, conn, logger.Nop()))
	defer srv.Close()
	c := client.New(srv.URL + "/surveyjs/api")

	dir := t.TempDir()
	writeFile(t, dir, "one.json", `{"title":"One","pages":[]}`)
	writeFile(t, dir, "two.json", `{"title":"Two","pages":[]}`)
	writeFile(t, dir, "three.json", `{"pages":[]}`)

	n, err := importSurveys(context.Background(), c, dir, users, 2, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	surveys, err := c.GetSurveys(context.Background(), &users[0])
	require.NoError(t, err)
	assert.Len(t, surveys, 3)
}

func TestImportSurveys_EmptyDir(t *testing.T) {
	_, err := importSurveys(context.Background(), client.New(""), t.TempDir(), nil, 1, logger.Nop())
	assert.Error(t, err)
}

func TestImportSurveys_RejectedCreateIsNotRetried(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, `{"error":{"code":"invalid_request"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	dir := t.TempDir()
	writeFile(t, dir, "one.json", `{"title":"One","pages":[]}`)

	_, err := importSurveys(context.Background(), client.New(srv.URL), dir, nil, 1, logger.Nop())

	var statusErr *client.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.EqualValues(t, 1, attempts.Load())
}

func TestRetryableCreate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "bad request", err: &client.StatusError{StatusCode: http.StatusBadRequest}, want: false},
		{name: "server error", err: &client.StatusError{StatusCode: http.StatusInternalServerError}, want: true},
		{name: "unavailable", err: &client.StatusError{StatusCode: http.StatusServiceUnavailable}, want: true},
		{name: "gateway timeout", err: &client.StatusError{StatusCode: http.StatusGatewayTimeout}, want: false},
		{name: "connection refused", err: fmt.Errorf("one.json: %w", &net.OpError{Op: "dial", Err: errors.New("connection refused")}), want: true},
		{name: "read reset", err: &net.OpError{Op: "read", Err: errors.New("connection reset")}, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryableCreate(tt.err))
		})
	}
}
