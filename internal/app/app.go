package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/paulexconde/surveydesk/internal/config"
	"github.com/paulexconde/surveydesk/internal/db"
	httpx "github.com/paulexconde/surveydesk/internal/http"
	httpH "github.com/paulexconde/surveydesk/internal/http/handlers"
	"github.com/paulexconde/surveydesk/internal/pkg/logger"
	"github.com/paulexconde/surveydesk/internal/services"
)

// App owns the database pool and everything built on top of it.
type App struct {
	Config *config.Config
	Log    *logger.Logger
	DB     *sqlx.DB
	Router *gin.Engine
}

// New opens the database, brings the schema up to date and wires the HTTP API.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("Database connected successfully", "driver", cfg.Database.Driver)

	return &App{
		Config: cfg,
		Log:    log,
		DB:     conn,
		Router: NewRouter(cfg.Server, conn, log),
	}, nil
}

// NewRouter builds the gin engine over an already migrated database.
func NewRouter(cfg config.ServerConfig, conn *sqlx.DB, log *logger.Logger) *gin.Engine {
	if log == nil {
		log = logger.Nop()
	}

	surveys := services.NewSurveyService(conn, log)
	responses := services.NewSurveyResponseService(conn, log)
	users := services.NewUserService(conn)

	return httpx.NewRouter(httpx.RouterConfig{
		BasePath:        cfg.BasePath,
		CORSOrigins:     cfg.CORSOrigins,
		Logger:          log,
		SurveyHandler:   httpH.NewSurveyHandler(surveys, responses),
		ResponseHandler: httpH.NewResponseHandler(responses),
		UserHandler:     httpH.NewUserHandler(users),
		HealthHandler:   httpH.NewHealthHandler(conn),
	})
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return httpx.NewServer(a.Config.Server, a.Router, a.Log).Run(ctx)
}

func (a *App) Close() error {
	return a.DB.Close()
}
