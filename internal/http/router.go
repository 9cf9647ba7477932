package http

import (
	nethttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpH "github.com/paulexconde/surveydesk/internal/http/handlers"
	httpMW "github.com/paulexconde/surveydesk/internal/http/middleware"
	"github.com/paulexconde/surveydesk/internal/pkg/logger"
)

type RouterConfig struct {
	BasePath    string
	CORSOrigins []string
	Logger      *logger.Logger

	SurveyHandler   *httpH.SurveyHandler
	ResponseHandler *httpH.ResponseHandler
	UserHandler     *httpH.UserHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	httpH.RegisterValidators()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.RequestID())
	r.Use(httpMW.RequestLogger(cfg.Logger))
	r.Use(httpMW.Metrics())
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	r.GET("/", func(c *gin.Context) {
		c.String(nethttp.StatusOK, "SurveyJS API is running")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group(cfg.BasePath)
	{
		// Surveys
		if cfg.SurveyHandler != nil {
			api.GET("/surveys", cfg.SurveyHandler.ListSurveys)
			api.POST("/surveys", cfg.SurveyHandler.CreateSurvey)
			api.GET("/surveys/:id", cfg.SurveyHandler.GetSurvey)
			api.PUT("/surveys/:id", cfg.SurveyHandler.UpdateSurvey)
			api.POST("/surveys/:id/grade", cfg.SurveyHandler.Grade)
			api.GET("/surveys/:id/responses", cfg.SurveyHandler.ListResponses)
			api.GET("/surveys/:id/summary", cfg.SurveyHandler.Summary)
		}

		// Users
		if cfg.UserHandler != nil {
			api.GET("/users", cfg.UserHandler.ListUsers)
			api.GET("/users/:id", cfg.UserHandler.GetUser)
		}

		// Responses
		if cfg.ResponseHandler != nil {
			api.POST("/responses", cfg.ResponseHandler.SubmitResponse)
			api.GET("/responses", cfg.ResponseHandler.GetResponse)
		}
	}

	return r
}
