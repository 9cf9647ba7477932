package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/paulexconde/surveydesk/internal/http/response"
	"github.com/paulexconde/surveydesk/internal/pkg/paginator"
	"github.com/paulexconde/surveydesk/internal/services"
)

type SurveyHandler struct {
	surveys   services.SurveyService
	responses services.SurveyResponseService
}

func NewSurveyHandler(surveys services.SurveyService, responses services.SurveyResponseService) *SurveyHandler {
	return &SurveyHandler{surveys: surveys, responses: responses}
}

type createSurveyRequest struct {
	Title       string         `json:"title" binding:"required"`
	JSONContent datatypes.JSON `json:"jsonContent" binding:"required,jsonobject"`
	UserIDs     []int64        `json:"userIds"`
}

// UserIDs is a pointer so that a missing field can be told apart from [].
type updateSurveyRequest struct {
	Title       string         `json:"title" binding:"required"`
	JSONContent datatypes.JSON `json:"jsonContent" binding:"required,jsonobject"`
	UserIDs     *[]int64       `json:"userIds"`
	Version     *int           `json:"version" binding:"omitempty,min=1"`
}

type gradeRequest struct {
	ResponseData datatypes.JSON `json:"responseData" binding:"required,jsonobject"`
}

// GET /surveys?userId=
func (h *SurveyHandler) ListSurveys(c *gin.Context) {
	var userID *int64
	if raw := c.Query("userId"); raw != "" {
		id, ok := parseID(c, raw, "userId")
		if !ok {
			return
		}
		userID = &id
	}

	surveys, err := h.surveys.ListSurveys(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.RespondOK(c, surveys)
}

// GET /surveys/:id
func (h *SurveyHandler) GetSurvey(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"), "id")
	if !ok {
		return
	}

	survey, err := h.surveys.GetSurvey(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.RespondOK(c, survey)
}

// POST /surveys
// body: { "title": "...", "jsonContent": {...}, "userIds": [1, 2] }
func (h *SurveyHandler) CreateSurvey(c *gin.Context) {
	var req createSurveyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	id, err := h.surveys.CreateSurvey(c.Request.Context(), req.Title, req.JSONContent, req.UserIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Survey Created", "surveyId": id})
}

// PUT /surveys/:id
// body: { "title": "...", "jsonContent": {...}, "userIds": [1, 2], "version": 3 }
func (h *SurveyHandler) UpdateSurvey(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"), "id")
	if !ok {
		return
	}

	var req updateSurveyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	err := h.surveys.UpdateSurvey(c.Request.Context(), services.UpdateSurveyRequest{
		ID:              id,
		Title:           req.Title,
		Content:         req.JSONContent,
		UserIDs:         req.UserIDs,
		ExpectedVersion: req.Version,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"message": "Survey Updated", "surveyId": id})
}

// POST /surveys/:id/grade
// body: { "responseData": {...} }
func (h *SurveyHandler) Grade(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"), "id")
	if !ok {
		return
	}

	var req gradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	score, err := h.surveys.Grade(c.Request.Context(), id, req.ResponseData)
	if err != nil {
		respondError(c, err)
		return
	}
	response.RespondOK(c, score)
}

// GET /surveys/:id/responses?page=&limit=
func (h *SurveyHandler) ListResponses(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"), "id")
	if !ok {
		return
	}

	params := paginator.ParseParams(c.Query("page"), c.Query("limit"))

	result, err := h.responses.ListResponses(c.Request.Context(), id, params)
	if err != nil {
		respondError(c, err)
		return
	}
	response.RespondOK(c, result)
}

// GET /surveys/:id/summary
func (h *SurveyHandler) Summary(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"), "id")
	if !ok {
		return
	}

	summary, err := h.responses.Summarize(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.RespondOK(c, summary)
}
