package models

import (
	"time"

	"gorm.io/datatypes"
)

// RoleViewer is the only access role assignments are created with.
const RoleViewer = "Viewer"

type Survey struct {
	ID          int64          `db:"id" json:"id"`
	Title       string         `db:"title" json:"title"`
	JSONContent datatypes.JSON `db:"json_content" json:"jsonContent"`
	Version     int            `db:"version" json:"version"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   *time.Time     `db:"updated_at" json:"updatedAt"`
}

// SurveyDTO is what gets inserted on create. UserIDs are written by a PostSave hook.
type SurveyDTO struct {
	Title       string         `db:"title"`
	JSONContent datatypes.JSON `db:"json_content"`
	Version     int            `db:"version"`
	CreatedAt   time.Time      `db:"created_at"`
	UserIDs     []int64        `db:"-"`
}

func (d *SurveyDTO) ToModel(id int64) any {
	return &Survey{
		ID:          id,
		Title:       d.Title,
		JSONContent: d.JSONContent,
		Version:     d.Version,
		CreatedAt:   d.CreatedAt,
	}
}

// Assignment grants a user visibility of a survey.
type Assignment struct {
	SurveyID   int64  `db:"survey_id" json:"surveyId"`
	UserID     int64  `db:"user_id" json:"userId"`
	AccessRole string `db:"access_role" json:"accessRole"`
}

type User struct {
	ID       int64  `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
}
