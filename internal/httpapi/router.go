package httpapi

import (
	"net/http"

	"github.com/frn-reports/voicereport/internal/common"
	"github.com/frn-reports/voicereport/internal/config"
	"github.com/frn-reports/voicereport/internal/httpapi/handlers"
	"github.com/frn-reports/voicereport/internal/httpapi/middleware"
	"github.com/frn-reports/voicereport/internal/store/rabbitmq"
	"github.com/frn-reports/voicereport/internal/store/redisstore"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func NewRouter(db *gorm.DB, cfg config.Config, rds *redisstore.Store, pub *rabbitmq.Publisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(db, cfg, rds, pub)

	r.GET("/ping", h.Ping)

	// captcha
	r.POST("/captcha", h.SendCaptcha)

	// CRUD users register
	r.POST("/users", h.CreateUser)
	r.GET("/users/:id", h.GetUserByID)

	// auth
	r.POST("/login", h.Login)
	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)

	// Dialogue (JWT required)
	authGroup.POST("/dialogue/turns", h.TakeTurn)
	authGroup.POST("/dialogue/transcribe", h.TranscribeTurn)
	authGroup.GET("/dialogue/speak", h.Speak)
	authGroup.GET("/dialogue/sessions/:session_id", h.GetSessionProgress)
	authGroup.GET("/dialogue/sessions/:session_id/turns", h.ListSessionTurns)

	// Manual report dispatch (bypasses the state machine)
	authGroup.POST("/reports", h.CreateReportJob)
	authGroup.GET("/reports/jobs/:job_id", h.GetReportJob)

	return r
}
