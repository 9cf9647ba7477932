package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/paulexconde/surveydesk/internal/http/response"
	"github.com/paulexconde/surveydesk/internal/services"
	"github.com/paulexconde/surveydesk/pkg/fault"
)

type ResponseHandler struct {
	responses services.SurveyResponseService
}

func NewResponseHandler(responses services.SurveyResponseService) *ResponseHandler {
	return &ResponseHandler{responses: responses}
}

type submitResponseRequest struct {
	SurveyID        int64          `json:"surveyId" binding:"required,gt=0"`
	UserID          int64          `json:"userId" binding:"required,gt=0"`
	ResponseData    datatypes.JSON `json:"responseData" binding:"required,jsonobject"`
	IsCompleted     bool           `json:"isCompleted"`
	Score           *int           `json:"score" binding:"omitempty,min=0"`
	TotalQuestions  *int           `json:"totalQuestions" binding:"omitempty,min=0"`
	ScorePercentage *float64       `json:"scorePercentage" binding:"omitempty,min=0,max=100"`
}

// POST /responses
func (h *ResponseHandler) SubmitResponse(c *gin.Context) {
	var req submitResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.responses.SubmitAnswers(c.Request.Context(), services.SubmitRequest{
		SurveyID:        req.SurveyID,
		UserID:          req.UserID,
		ResponseData:    req.ResponseData,
		IsCompleted:     req.IsCompleted,
		Score:           req.Score,
		TotalQuestions:  req.TotalQuestions,
		ScorePercentage: req.ScorePercentage,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if result.Created {
		c.JSON(http.StatusCreated, gin.H{"message": "Response saved", "responseId": result.ResponseID})
		return
	}
	response.RespondOK(c, gin.H{"message": "Response updated", "responseId": result.ResponseID})
}

// GET /responses?surveyId=&userId=
func (h *ResponseHandler) GetResponse(c *gin.Context) {
	surveyID, ok := parseID(c, c.Query("surveyId"), "surveyId")
	if !ok {
		return
	}
	userID, ok := parseID(c, c.Query("userId"), "userId")
	if !ok {
		return
	}

	latest, err := h.responses.GetLatestResponse(c.Request.Context(), surveyID, userID)
	if errors.Is(err, fault.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "No response found"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	response.RespondOK(c, latest)
}
