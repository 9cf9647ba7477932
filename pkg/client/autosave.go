package client

import (
	"context"
	"sync"
	"time"
)

const saveTimeout = 10 * time.Second

// Autosaver saves in-progress answers for one user and one survey. Changes
// are debounced; Flush saves right away. Saves always keep the attempt open
// and are not retried.
type Autosaver struct {
	client   *Client
	surveyID int64
	userID   int64
	delay    time.Duration
	onError  func(error)

	mu     sync.Mutex
	timer  *time.Timer
	latest map[string]any
	dirty  bool
	closed bool

	// one save in flight at a time
	saveMu sync.Mutex
}

func NewAutosaver(c *Client, surveyID, userID int64, delay time.Duration, onError func(error)) *Autosaver {
	if onError == nil {
		onError = func(error) {}
	}
	return &Autosaver{
		client:   c,
		surveyID: surveyID,
		userID:   userID,
		delay:    delay,
		onError:  onError,
	}
}

// Change records the current answers and re-arms the timer. The map must not
// be mutated after it is handed over.
func (a *Autosaver) Change(data map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	a.latest = data
	a.dirty = true
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, a.fire)
}

func (a *Autosaver) fire() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := a.saveLatest(ctx, false); err != nil {
		a.onError(err)
	}
}

// Flush saves the latest answers now, whether or not a change is pending.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.mu.Unlock()

	if err := a.saveLatest(ctx, true); err != nil {
		a.onError(err)
		return err
	}
	return nil
}

// Stop cancels a pending save. Saves already in flight finish.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
	}
}

// saveLatest snapshots the answers only once it holds saveMu, so a save never
// sends data older than the one before it. Without force it only sends pending
// changes.
func (a *Autosaver) saveLatest(ctx context.Context, force bool) error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	data := a.latest
	pending := a.dirty && !a.closed
	a.dirty = false
	a.mu.Unlock()

	if data == nil || (!force && !pending) {
		return nil
	}

	_, err := a.client.SaveResponse(ctx, ResponseInput{
		SurveyID:     a.surveyID,
		UserID:       a.userID,
		ResponseData: data,
		IsCompleted:  false,
	})
	return err
}
