package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAPI struct {
	mu     sync.Mutex
	saves  []ResponseInput
	status int
}

func (r *recordingAPI) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var in ResponseInput
	_ = json.NewDecoder(req.Body).Decode(&in)

	r.mu.Lock()
	r.saves = append(r.saves, in)
	status := r.status
	r.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"message":"Response updated","responseId":1}`))
}

func (r *recordingAPI) recorded() []ResponseInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ResponseInput(nil), r.saves...)
}

func newRecordingClient(t *testing.T, status int) (*Client, *recordingAPI) {
	t.Helper()
	api := &recordingAPI{status: status}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return New(srv.URL), api
}

func TestAutosaver_DebouncesChanges(t *testing.T) {
	c, api := newRecordingClient(t, 0)
	saver := NewAutosaver(c, 7, 3, 30*time.Millisecond, nil)
	defer saver.Stop()

	saver.Change(map[string]any{"q1": "a"})
	saver.Change(map[string]any{"q1": "ab"})
	saver.Change(map[string]any{"q1": "abc"})

	require.Eventually(t, func() bool { return len(api.recorded()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	saves := api.recorded()
	require.Len(t, saves, 1)
	assert.Equal(t, "abc", saves[0].ResponseData["q1"])
	assert.EqualValues(t, 7, saves[0].SurveyID)
	assert.EqualValues(t, 3, saves[0].UserID)
	assert.False(t, saves[0].IsCompleted)
}

func TestAutosaver_FlushSavesImmediately(t *testing.T) {
	c, api := newRecordingClient(t, 0)
	saver := NewAutosaver(c, 1, 1, time.Hour, nil)
	defer saver.Stop()

	require.NoError(t, saver.Flush(context.Background()))
	assert.Empty(t, api.recorded())

	saver.Change(map[string]any{"page": 1})
	require.NoError(t, saver.Flush(context.Background()))
	require.NoError(t, saver.Flush(context.Background()))

	saves := api.recorded()
	require.Len(t, saves, 2)
	assert.EqualValues(t, 1, saves[1].ResponseData["page"])
}

func TestAutosaver_ReportsFailures(t *testing.T) {
	c, _ := newRecordingClient(t, http.StatusInternalServerError)

	errs := make(chan error, 1)
	saver := NewAutosaver(c, 1, 1, 10*time.Millisecond, func(err error) { errs <- err })
	defer saver.Stop()

	saver.Change(map[string]any{"q1": "x"})

	select {
	case err := <-errs:
		var statusErr *StatusError
		assert.ErrorAs(t, err, &statusErr)
	case <-time.After(time.Second):
		t.Fatal("autosave error was not reported")
	}
}

func TestAutosaver_StopCancelsPendingSave(t *testing.T) {
	c, api := newRecordingClient(t, 0)
	saver := NewAutosaver(c, 1, 1, 20*time.Millisecond, nil)

	saver.Change(map[string]any{"q1": "x"})
	saver.Stop()
	time.Sleep(60 * time.Millisecond)

	assert.Empty(t, api.recorded())
}

func TestAutosaver_QueuedSaveSendsNewestAnswers(t *testing.T) {
	c, api := newRecordingClient(t, 0)
	saver := NewAutosaver(c, 1, 1, time.Hour, nil)
	defer saver.Stop()

	saver.Change(map[string]any{"q1": "old"})

	// Hold the save slot so the timer save and the flush both queue behind it.
	saver.saveMu.Lock()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		saver.fire()
	}()
	saver.Change(map[string]any{"q1": "new"})
	go func() {
		defer wg.Done()
		assert.NoError(t, saver.Flush(context.Background()))
	}()
	time.Sleep(20 * time.Millisecond)
	saver.saveMu.Unlock()
	wg.Wait()

	saves := api.recorded()
	require.NotEmpty(t, saves)
	for _, s := range saves {
		assert.Equal(t, "new", s.ResponseData["q1"])
	}
}
