package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/datatypes"

	"github.com/paulexconde/surveydesk/internal/models"
	"github.com/paulexconde/surveydesk/internal/pkg/keylock"
	"github.com/paulexconde/surveydesk/internal/pkg/logger"
	"github.com/paulexconde/surveydesk/internal/pkg/paginator"
	"github.com/paulexconde/surveydesk/internal/pkg/store"
	"github.com/paulexconde/surveydesk/pkg/fault"
)

const responseColumns = `id, survey_id, user_id, response_data, is_completed, completed_at,
	score, total_questions, score_percentage, created_at`

// The newest attempt of a user, completed or not. id breaks ties between rows
// written within the same clock tick.
const latestResponseQuery = `SELECT ` + responseColumns + ` FROM survey_responses
	WHERE survey_id = ? AND user_id = ?
	ORDER BY created_at DESC, id DESC
	LIMIT 1`

var submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "surveydesk_response_submissions_total",
	Help: "Answer submissions by outcome (created, updated, completed, failed)",
}, []string{"outcome"})

// SubmitRequest carries one save of a user's answers. Score fields are
// optional: nil is persisted as NULL, never as zero.
type SubmitRequest struct {
	SurveyID        int64
	UserID          int64
	ResponseData    datatypes.JSON
	IsCompleted     bool
	Score           *int
	TotalQuestions  *int
	ScorePercentage *float64
}

type SubmitResult struct {
	ResponseID int64
	Created    bool
}

// Handles every response for every survey.
type SurveyResponseService interface {
	// Create or update the open attempt of a user, completing it when asked.
	SubmitAnswers(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
	// The newest attempt of the pair, or fault.ErrNotFound.
	GetLatestResponse(ctx context.Context, surveyID, userID int64) (*models.SurveyResponse, error)
	ListResponses(ctx context.Context, surveyID int64, params paginator.Params) (*paginator.PaginatedResponse[models.SurveyResponse], error)
	Summarize(ctx context.Context, surveyID int64) (*Summary, error)
}

type surveyResponseServiceImpl struct {
	gateway   *store.Gateway
	responses store.Datastorer[models.SurveyResponse]
	summaries store.Datastorer[summaryRow]
	locks     *keylock.KeyLock
	log       *logger.Logger
	now       func() time.Time
}

// Instantiate the `SurveyResponseService`.
func NewSurveyResponseService(db *sqlx.DB, log *logger.Logger) SurveyResponseService {
	return &surveyResponseServiceImpl{
		gateway:   store.NewGateway(db),
		responses: store.NewDataStore[models.SurveyResponse](db, "survey_responses"),
		summaries: store.NewDataStore[summaryRow](db, "survey_responses"),
		locks:     keylock.New(),
		log:       log.With("service", "response"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *surveyResponseServiceImpl) SubmitAnswers(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	// Autosave and page-leave saves of one user race each other; in this process
	// they take turns. Separate processes are only ordered by the database.
	unlock := s.locks.Lock(fmt.Sprintf("%d:%d", req.SurveyID, req.UserID))
	defer unlock()

	var result SubmitResult

	err := s.gateway.WithTx(ctx, func(tx *sqlx.Tx) error {
		responses := s.responses.Bind(tx)

		latest, err := responses.Get(ctx, latestResponseQuery, req.SurveyID, req.UserID)
		if err != nil && !errors.Is(err, fault.ErrNotFound) {
			return err
		}

		now := s.now()
		percentage := roundPercentage(req.ScorePercentage)

		if latest != nil && !latest.IsCompleted {
			if req.IsCompleted {
				_, err = responses.Exec(ctx, `
					UPDATE survey_responses
					SET response_data = ?, is_completed = ?, completed_at = ?,
						score = ?, total_questions = ?, score_percentage = ?
					WHERE id = ?`,
					req.ResponseData, true, now, req.Score, req.TotalQuestions, percentage, latest.ID)
			} else {
				_, err = responses.Exec(ctx, `
					UPDATE survey_responses
					SET response_data = ?, score = ?, total_questions = ?, score_percentage = ?
					WHERE id = ?`,
					req.ResponseData, req.Score, req.TotalQuestions, percentage, latest.ID)
			}
			if err != nil {
				return err
			}

			result = SubmitResult{ResponseID: latest.ID}
			return nil
		}

		dto := &models.SurveyResponseDTO{
			SurveyID:        req.SurveyID,
			UserID:          req.UserID,
			ResponseData:    req.ResponseData,
			IsCompleted:     req.IsCompleted,
			Score:           req.Score,
			TotalQuestions:  req.TotalQuestions,
			ScorePercentage: percentage,
			CreatedAt:       now,
		}
		if req.IsCompleted {
			dto.CompletedAt = &now
		}

		model, err := responses.Create(ctx, dto)
		if err != nil {
			return err
		}

		result = SubmitResult{ResponseID: model.(*models.SurveyResponse).ID, Created: true}
		return nil
	})
	if err != nil {
		submissionsTotal.WithLabelValues("failed").Inc()
		if errors.Is(err, fault.ErrForeignKeyViolation) {
			return nil, fault.NewClientError("surveyId or userId does not exist", err)
		}
		s.log.Error("submit answers failed",
			"survey_id", req.SurveyID, "user_id", req.UserID, "error", err)
		return nil, err
	}

	switch {
	case req.IsCompleted:
		submissionsTotal.WithLabelValues("completed").Inc()
	case result.Created:
		submissionsTotal.WithLabelValues("created").Inc()
	default:
		submissionsTotal.WithLabelValues("updated").Inc()
	}

	s.log.Debug("answers saved",
		"survey_id", req.SurveyID, "user_id", req.UserID,
		"response_id", result.ResponseID, "created", result.Created, "completed", req.IsCompleted)

	return &result, nil
}

func (s *surveyResponseServiceImpl) GetLatestResponse(ctx context.Context, surveyID, userID int64) (*models.SurveyResponse, error) {
	return s.responses.Get(ctx, latestResponseQuery, surveyID, userID)
}

func (s *surveyResponseServiceImpl) ListResponses(ctx context.Context, surveyID int64, params paginator.Params) (*paginator.PaginatedResponse[models.SurveyResponse], error) {
	query := `SELECT ` + responseColumns + ` FROM survey_responses WHERE survey_id = ? ORDER BY created_at DESC, id DESC`
	return paginator.NewPaginator(s.responses).PaginateQuery(ctx, query, []any{surveyID}, params)
}

// roundPercentage keeps the two fractional digits the column can hold.
func roundPercentage(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*100) / 100
	return &r
}
