package services

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"gorm.io/datatypes"

	"github.com/paulexconde/surveydesk/internal/models"
	"github.com/paulexconde/surveydesk/internal/pkg/logger"
	"github.com/paulexconde/surveydesk/internal/pkg/store"
	"github.com/paulexconde/surveydesk/pkg/fault"
)

const surveyColumns = `s.id, s.title, s.json_content, s.version, s.created_at, s.updated_at`

// UpdateSurveyRequest rewrites a survey in place.
//
// A nil UserIDs keeps the current assignments while a non-nil empty slice
// removes all of them. ExpectedVersion, when set, turns the update into a
// compare-and-swap on the stored version.
type UpdateSurveyRequest struct {
	ID              int64
	Title           string
	Content         datatypes.JSON
	UserIDs         *[]int64
	ExpectedVersion *int
}

// Handles authoring of surveys and who they are assigned to.
type SurveyService interface {
	// Create a survey at version 1 together with its assignments.
	CreateSurvey(ctx context.Context, title string, content datatypes.JSON, userIDs []int64) (int64, error)
	// Update content, bump the version and reconcile assignments.
	UpdateSurvey(ctx context.Context, req UpdateSurveyRequest) error
	// List every survey, or only the ones assigned to userID.
	ListSurveys(ctx context.Context, userID *int64) ([]models.Survey, error)
	GetSurvey(ctx context.Context, id int64) (*models.Survey, error)
	// Grade answers against the correct answers stored in the survey.
	Grade(ctx context.Context, surveyID int64, answers datatypes.JSON) (*Score, error)
}

type surveyServiceImpl struct {
	gateway     *store.Gateway
	surveys     store.Datastorer[models.Survey]
	assignments store.Datastorer[models.Assignment]
	log         *logger.Logger
	now         func() time.Time
}

// Instantiate the SurveyService.
func NewSurveyService(db *sqlx.DB, log *logger.Logger) SurveyService {
	s := &surveyServiceImpl{
		gateway:     store.NewGateway(db),
		surveys:     store.NewDataStore[models.Survey](db, "surveys"),
		assignments: store.NewDataStore[models.Assignment](db, "user_surveys"),
		log:         log.With("service", "survey"),
		now:         func() time.Time { return time.Now().UTC() },
	}

	s.surveys.SetHooks(store.Hooks{
		PostSave: []func(ctx context.Context, tx *sqlx.Tx, data store.DTO, model any, isNew bool) error{
			s.assignOnCreate,
		},
	})

	return s
}

func (s *surveyServiceImpl) CreateSurvey(ctx context.Context, title string, content datatypes.JSON, userIDs []int64) (int64, error) {
	model, err := s.surveys.Create(ctx, &models.SurveyDTO{
		Title:       title,
		JSONContent: content,
		Version:     1,
		CreatedAt:   s.now(),
		UserIDs:     userIDs,
	})
	if err != nil {
		if errors.Is(err, fault.ErrForeignKeyViolation) {
			return 0, fault.NewFieldError("userIds", "references an unknown user", err)
		}
		s.log.Error("create survey failed", "title", title, "error", err)
		return 0, err
	}

	survey := model.(*models.Survey)
	s.log.Info("survey created", "survey_id", survey.ID, "assignments", len(userIDs))

	return survey.ID, nil
}

func (s *surveyServiceImpl) assignOnCreate(ctx context.Context, tx *sqlx.Tx, data store.DTO, model any, isNew bool) error {
	dto, ok := data.(*models.SurveyDTO)
	if !ok || !isNew {
		return nil
	}
	return s.assign(ctx, tx, model.(*models.Survey).ID, dto.UserIDs)
}

func (s *surveyServiceImpl) assign(ctx context.Context, tx *sqlx.Tx, surveyID int64, userIDs []int64) error {
	seen := make(map[int64]struct{}, len(userIDs))
	rows := make([]models.Assignment, 0, len(userIDs))

	for _, userID := range userIDs {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		rows = append(rows, models.Assignment{SurveyID: surveyID, UserID: userID, AccessRole: models.RoleViewer})
	}

	if len(rows) == 0 {
		return nil
	}

	return s.assignments.Bind(tx).InsertMany(ctx, rows)
}

func (s *surveyServiceImpl) UpdateSurvey(ctx context.Context, req UpdateSurveyRequest) error {
	err := s.gateway.WithTx(ctx, func(tx *sqlx.Tx) error {
		surveys := s.surveys.Bind(tx)

		query := `UPDATE surveys SET title = ?, json_content = ?, version = version + 1, updated_at = ? WHERE id = ?`
		args := []any{req.Title, req.Content, s.now(), req.ID}
		if req.ExpectedVersion != nil {
			query += ` AND version = ?`
			args = append(args, *req.ExpectedVersion)
		}

		updated, err := surveys.Exec(ctx, query, args...)
		if err != nil {
			return err
		}

		if updated == 0 {
			if req.ExpectedVersion == nil {
				return fault.ErrNotFound
			}
			// Either the survey is gone or someone else bumped the version first.
			if _, err := surveys.QueryRow(ctx, `SELECT version FROM surveys WHERE id = ?`, req.ID); err != nil {
				return err
			}
			return fault.ErrConflict
		}

		if req.UserIDs == nil {
			return nil
		}

		if err := s.assignments.Bind(tx).DeleteWhere(ctx, "survey_id", req.ID); err != nil {
			return err
		}

		return s.assign(ctx, tx, req.ID, *req.UserIDs)
	})

	switch {
	case err == nil:
		s.log.Info("survey updated", "survey_id", req.ID)
		return nil
	case errors.Is(err, fault.ErrNotFound), errors.Is(err, fault.ErrConflict):
		return err
	case errors.Is(err, fault.ErrForeignKeyViolation):
		return fault.NewFieldError("userIds", "references an unknown user", err)
	default:
		s.log.Error("update survey failed", "survey_id", req.ID, "error", err)
		return err
	}
}

func (s *surveyServiceImpl) ListSurveys(ctx context.Context, userID *int64) ([]models.Survey, error) {
	if userID == nil {
		return s.surveys.Select(ctx, `SELECT `+surveyColumns+` FROM surveys s ORDER BY s.id`)
	}

	return s.surveys.Select(ctx, `
		SELECT `+surveyColumns+` FROM surveys s
		JOIN user_surveys us ON s.id = us.survey_id
		WHERE us.user_id = ?
		ORDER BY s.id`, *userID)
}

func (s *surveyServiceImpl) GetSurvey(ctx context.Context, id int64) (*models.Survey, error) {
	return s.surveys.Get(ctx, `SELECT `+surveyColumns+` FROM surveys s WHERE s.id = ?`, id)
}

func (s *surveyServiceImpl) Grade(ctx context.Context, surveyID int64, answers datatypes.JSON) (*Score, error) {
	survey, err := s.GetSurvey(ctx, surveyID)
	if err != nil {
		return nil, err
	}

	return Grade(survey.JSONContent, answers)
}
