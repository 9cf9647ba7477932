package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/paulexconde/surveydesk/internal/config"
	"github.com/paulexconde/surveydesk/internal/db"
	"github.com/paulexconde/surveydesk/internal/db/dbtest"
	"github.com/paulexconde/surveydesk/internal/pkg/logger"
	"github.com/paulexconde/surveydesk/internal/pkg/paginator"
	"github.com/paulexconde/surveydesk/pkg/fault"
)

type responseFixture struct {
	conn     *sqlx.DB
	svc      *surveyResponseServiceImpl
	surveyID int64
	userID   int64
}

func newResponseFixture(t *testing.T) *responseFixture {
	t.Helper()

	conn := dbtest.Open(t)
	users := dbtest.Users(t, conn, "alice")

	surveyID, err := NewSurveyService(conn, logger.Nop()).CreateSurvey(context.Background(), "Quiz", quizContent, users)
	require.NoError(t, err)

	svc := NewSurveyResponseService(conn, logger.Nop()).(*surveyResponseServiceImpl)

	// A clock that moves forward on every read keeps created_at strictly ordered.
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	var tick int
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	return &responseFixture{conn: conn, svc: svc, surveyID: surveyID, userID: users[0]}
}

func (f *responseFixture) rowCount(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, f.conn.Get(&n, f.conn.Rebind(`SELECT COUNT(*) FROM survey_responses WHERE survey_id = ? AND user_id = ?`), f.surveyID, f.userID))
	return n
}

func (f *responseFixture) submit(t *testing.T, data string, completed bool) *SubmitResult {
	t.Helper()
	res, err := f.svc.SubmitAnswers(context.Background(), SubmitRequest{
		SurveyID:     f.surveyID,
		UserID:       f.userID,
		ResponseData: datatypes.JSON(data),
		IsCompleted:  completed,
	})
	require.NoError(t, err)
	return res
}

func TestSubmitAnswers_AutosaveReusesOpenRow(t *testing.T) {
	f := newResponseFixture(t)

	first := f.submit(t, `{"q1":"a"}`, false)
	second := f.submit(t, `{"q1":"ab"}`, false)

	assert.True(t, first.Created)
	assert.False(t, second.Created)
	assert.Equal(t, first.ResponseID, second.ResponseID)
	assert.Equal(t, 1, f.rowCount(t))

	latest, err := f.svc.GetLatestResponse(context.Background(), f.surveyID, f.userID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"q1":"ab"}`, string(latest.ResponseData))
	assert.False(t, latest.IsCompleted)
	assert.Nil(t, latest.CompletedAt)
}

func TestSubmitAnswers_CompletingUpdatesSameRow(t *testing.T) {
	f := newResponseFixture(t)

	first := f.submit(t, `{"q1":"a"}`, false)
	f.submit(t, `{"q1":"ab"}`, false)
	done := f.submit(t, `{"q1":"abc"}`, true)

	assert.False(t, done.Created)
	assert.Equal(t, first.ResponseID, done.ResponseID)
	assert.Equal(t, 1, f.rowCount(t))

	latest, err := f.svc.GetLatestResponse(context.Background(), f.surveyID, f.userID)
	require.NoError(t, err)
	assert.True(t, latest.IsCompleted)
	require.NotNil(t, latest.CompletedAt)
	assert.JSONEq(t, `{"q1":"abc"}`, string(latest.ResponseData))
}

func TestSubmitAnswers_AfterCompletionStartsNewAttempt(t *testing.T) {
	f := newResponseFixture(t)

	done := f.submit(t, `{"q1":"a"}`, true)
	retake := f.submit(t, `{"q1":"b"}`, false)

	// Nothing enforces a single row per pair: a finished attempt is frozen and
	// the next save opens a second one.
	assert.True(t, done.Created)
	assert.True(t, retake.Created)
	assert.NotEqual(t, done.ResponseID, retake.ResponseID)
	assert.Equal(t, 2, f.rowCount(t))

	latest, err := f.svc.GetLatestResponse(context.Background(), f.surveyID, f.userID)
	require.NoError(t, err)
	assert.Equal(t, retake.ResponseID, latest.ID)
	assert.False(t, latest.IsCompleted)

	var frozen string
	require.NoError(t, f.conn.Get(&frozen, f.conn.Rebind(`SELECT response_data FROM survey_responses WHERE id = ?`), done.ResponseID))
	assert.JSONEq(t, `{"q1":"a"}`, frozen)
}

func TestSubmitAnswers_CompletedOnInsertStampsCompletedAt(t *testing.T) {
	f := newResponseFixture(t)

	res := f.submit(t, `{"q1":"a"}`, true)
	assert.True(t, res.Created)

	latest, err := f.svc.GetLatestResponse(context.Background(), f.surveyID, f.userID)
	require.NoError(t, err)
	assert.True(t, latest.IsCompleted)
	assert.NotNil(t, latest.CompletedAt)
}

func TestSubmitAnswers_OmittedScoresStayNull(t *testing.T) {
	f := newResponseFixture(t)
	f.submit(t, `{"q1":"a"}`, true)

	latest, err := f.svc.GetLatestResponse(context.Background(), f.surveyID, f.userID)
	require.NoError(t, err)
	assert.Nil(t, latest.Score)
	assert.Nil(t, latest.TotalQuestions)
	assert.Nil(t, latest.ScorePercentage)
}

func TestSubmitAnswers_ZeroScoreIsNotNull(t *testing.T) {
	f := newResponseFixture(t)
	zero, total, pct := 0, 3, 0.0

	_, err := f.svc.SubmitAnswers(context.Background(), SubmitRequest{
		SurveyID: f.surveyID, UserID: f.userID, ResponseData: datatypes.JSON(`{}`),
		IsCompleted: true, Score: &zero, TotalQuestions: &total, ScorePercentage: &pct,
	})
	require.NoError(t, err)

	latest, err := f.svc.GetLatestResponse(context.Background(), f.surveyID, f.userID)
	require.NoError(t, err)
	require.NotNil(t, latest.Score)
	assert.Equal(t, 0, *latest.Score)
	require.NotNil(t, latest.TotalQuestions)
	assert.Equal(t, 3, *latest.TotalQuestions)
	require.NotNil(t, latest.ScorePercentage)
	assert.Equal(t, 0.0, *latest.ScorePercentage)
}

func TestSubmitAnswers_UpdateClearsOmittedScores(t *testing.T) {
	f := newResponseFixture(t)
	score, total, pct := 2, 3, 66.666

	_, err := f.svc.SubmitAnswers(context.Background(), SubmitRequest{
		SurveyID: f.surveyID, UserID: f.userID, ResponseData: datatypes.JSON(`{}`),
		Score: &score, TotalQuestions: &total, ScorePercentage: &pct,
	})
	require.NoError(t, err)

	latest, err := f.svc.GetLatestResponse(context.Background(), f.surveyID, f.userID)
	require.NoError(t, err)
	require.NotNil(t, latest.ScorePercentage)
	assert.InDelta(t, 66.67, *latest.ScorePercentage, 0.0001)

	f.submit(t, `{"q1":"x"}`, false)

	latest, err = f.svc.GetLatestResponse(context.Background(), f.surveyID, f.userID)
	require.NoError(t, err)
	assert.Nil(t, latest.Score)
	assert.Nil(t, latest.ScorePercentage)
}

func TestSubmitAnswers_UnknownUser(t *testing.T) {
	f := newResponseFixture(t)

	_, err := f.svc.SubmitAnswers(context.Background(), SubmitRequest{
		SurveyID: f.surveyID, UserID: 999, ResponseData: datatypes.JSON(`{}`),
	})
	require.Error(t, err)
	assert.True(t, fault.IsClientError(err))
}

func TestSubmitAnswers_ConcurrentAutosavesKeepOneOpenRow(t *testing.T) {
	f := newResponseFixture(t)

	var mu sync.Mutex
	clock := f.svc.now
	f.svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock()
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.SubmitAnswers(context.Background(), SubmitRequest{
				SurveyID: f.surveyID, UserID: f.userID, ResponseData: datatypes.JSON(`{"q1":"x"}`),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.rowCount(t))
}

func TestSubmitAnswers_ConcurrentUsersOnSqliteFile(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, config.DatabaseConfig{
		Driver:       "sqlite3",
		Path:         filepath.Join(t.TempDir(), "surveys.db"),
		MaxOpenConns: 10,
		MaxIdleConns: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, db.Migrate(ctx, conn))

	names := make([]string, 20)
	for i := range names {
		names[i] = fmt.Sprintf("user%02d", i)
	}
	users := dbtest.Users(t, conn, names...)

	surveyID, err := NewSurveyService(conn, logger.Nop()).CreateSurvey(ctx, "Quiz", quizContent, users)
	require.NoError(t, err)
	svc := NewSurveyResponseService(conn, logger.Nop())

	const rounds = 5
	for round := range rounds {
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			errs []error
		)
		for _, userID := range users {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.SubmitAnswers(ctx, SubmitRequest{
					SurveyID:     surveyID,
					UserID:       userID,
					ResponseData: datatypes.JSON(fmt.Sprintf(`{"round":%d}`, round)),
				})
				if err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		require.Empty(t, errs, "round %d", round)
	}

	var rows int
	require.NoError(t, conn.Get(&rows, conn.Rebind(`SELECT COUNT(*) FROM survey_responses WHERE survey_id = ?`), surveyID))
	assert.Equal(t, len(users), rows)
}

func TestGetLatestResponse_Lifecycle(t *testing.T) {
	f := newResponseFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetLatestResponse(ctx, f.surveyID, f.userID)
	assert.ErrorIs(t, err, fault.ErrNotFound)

	first := f.submit(t, `{"q1":"a"}`, false)
	latest, err := f.svc.GetLatestResponse(ctx, f.surveyID, f.userID)
	require.NoError(t, err)
	assert.Equal(t, first.ResponseID, latest.ID)

	f.submit(t, `{"q1":"b"}`, false)
	latest, err = f.svc.GetLatestResponse(ctx, f.surveyID, f.userID)
	require.NoError(t, err)
	assert.Equal(t, first.ResponseID, latest.ID)
	assert.JSONEq(t, `{"q1":"b"}`, string(latest.ResponseData))
}

func TestListResponses_Paginates(t *testing.T) {
	f := newResponseFixture(t)

	for range 3 {
		f.submit(t, `{"q1":"a"}`, true)
	}

	page, err := f.svc.ListResponses(context.Background(), f.surveyID, paginator.Params{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalItems)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Items, 2)
	assert.Nil(t, page.PrevPage)
	require.NotNil(t, page.NextPage)
	assert.Equal(t, 2, *page.NextPage)
	assert.True(t, page.Items[0].ID > page.Items[1].ID, "newest first")

	last, err := f.svc.ListResponses(context.Background(), f.surveyID, paginator.Params{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, last.Items, 1)
	assert.Nil(t, last.NextPage)
}

func TestSummarize(t *testing.T) {
	f := newResponseFixture(t)
	ctx := context.Background()

	empty, err := f.svc.Summarize(ctx, f.surveyID)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalResponses)
	assert.Nil(t, empty.AverageScorePercentage)

	score, total := 1, 2
	for _, pct := range []float64{50, 100} {
		p := pct
		_, err := f.svc.SubmitAnswers(ctx, SubmitRequest{
			SurveyID: f.surveyID, UserID: f.userID, ResponseData: datatypes.JSON(`{}`),
			IsCompleted: true, Score: &score, TotalQuestions: &total, ScorePercentage: &p,
		})
		require.NoError(t, err)
	}
	f.submit(t, `{}`, false)

	summary, err := f.svc.Summarize(ctx, f.surveyID)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalResponses)
	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, 1, summary.InProgress)
	assert.Equal(t, 2, summary.Scored)
	require.NotNil(t, summary.AverageScorePercentage)
	assert.InDelta(t, 75.0, *summary.AverageScorePercentage, 0.001)
	assert.InDelta(t, 66.67, summary.CompletionRate, 0.001)
}
