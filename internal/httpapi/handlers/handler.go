package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/frn-reports/voicereport/internal/ai"
	"github.com/frn-reports/voicereport/internal/common"
	"github.com/frn-reports/voicereport/internal/config"
	"github.com/frn-reports/voicereport/internal/dialogue"
	"github.com/frn-reports/voicereport/internal/email"
	"github.com/frn-reports/voicereport/internal/report"
	"github.com/frn-reports/voicereport/internal/speech"
	"github.com/frn-reports/voicereport/internal/store/rabbitmq"
	"github.com/frn-reports/voicereport/internal/store/redisstore"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Handler struct {
	DB          *gorm.DB
	Cfg         config.Config
	Redis       *redisstore.Store
	Rabbit      *rabbitmq.Publisher
	SMTPSetting email.SMTPConfig

	DialogueSvc *dialogue.Service
	ReportRepo  *report.Repo
	Transcriber speech.Transcriber
	Synthesizer speech.Synthesizer
}

func NewHandler(db *gorm.DB, cfg config.Config, rds *redisstore.Store, pub *rabbitmq.Publisher) *Handler {
	schema, err := report.ParseSchema(cfg.ReportFields)
	if err != nil {
		panic(fmt.Sprintf("bad REPORT_FIELDS: %v", err))
	}

	// provider registry (route by session.Provider + session.Model)
	reg := ai.NewRegistry()
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})
	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, m, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})

	smtp := email.SMTPConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	}

	assembler := report.NewAssembler(schema)
	dispatcher := report.NewEmailDispatcher(smtp, cfg.ReportToEmail)

	defaultModel := cfg.OllamaModel
	if strings.ToLower(cfg.AIProvider) == "openrouter" {
		defaultModel = cfg.OpenRouterModel
	}

	svc := dialogue.NewService(
		dialogue.NewRepo(db), reg, schema, assembler, dispatcher,
		dialogue.Options{
			Greeting:        cfg.DialogueGreeting,
			ContextWindow:   cfg.DialogueContextWindow,
			DefaultProvider: strings.ToLower(cfg.AIProvider),
			DefaultModel:    defaultModel,
		},
	)

	speechClient := speech.NewClient(cfg.SpeechBaseURL, cfg.SpeechAPIKey, cfg.TranscribeModel, cfg.TTSModel, cfg.TTSVoice)

	return &Handler{
		DB:          db,
		Cfg:         cfg,
		Redis:       rds,
		Rabbit:      pub,
		SMTPSetting: smtp,
		DialogueSvc: svc,
		ReportRepo:  report.NewRepo(db),
		Transcriber: speechClient,
		Synthesizer: speechClient,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}
