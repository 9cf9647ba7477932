package models

import (
	"time"

	"gorm.io/datatypes"
)

// SurveyResponse is one attempt of one user at one survey.
//
// The score columns stay NULL for surveys that are not graded, which is
// different from a graded attempt that scored zero.
type SurveyResponse struct {
	ID              int64          `db:"id" json:"id"`
	SurveyID        int64          `db:"survey_id" json:"surveyId"`
	UserID          int64          `db:"user_id" json:"userId"`
	ResponseData    datatypes.JSON `db:"response_data" json:"responseData"`
	IsCompleted     bool           `db:"is_completed" json:"isCompleted"`
	CompletedAt     *time.Time     `db:"completed_at" json:"completedAt"`
	Score           *int           `db:"score" json:"score"`
	TotalQuestions  *int           `db:"total_questions" json:"totalQuestions"`
	ScorePercentage *float64       `db:"score_percentage" json:"scorePercentage"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
}

type SurveyResponseDTO struct {
	SurveyID        int64          `db:"survey_id"`
	UserID          int64          `db:"user_id"`
	ResponseData    datatypes.JSON `db:"response_data"`
	IsCompleted     bool           `db:"is_completed"`
	CompletedAt     *time.Time     `db:"completed_at"`
	Score           *int           `db:"score"`
	TotalQuestions  *int           `db:"total_questions"`
	ScorePercentage *float64       `db:"score_percentage"`
	CreatedAt       time.Time      `db:"created_at"`
}

func (d *SurveyResponseDTO) ToModel(id int64) any {
	return &SurveyResponse{
		ID:              id,
		SurveyID:        d.SurveyID,
		UserID:          d.UserID,
		ResponseData:    d.ResponseData,
		IsCompleted:     d.IsCompleted,
		CompletedAt:     d.CompletedAt,
		Score:           d.Score,
		TotalQuestions:  d.TotalQuestions,
		ScorePercentage: d.ScorePercentage,
		CreatedAt:       d.CreatedAt,
	}
}
