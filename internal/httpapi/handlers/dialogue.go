package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/frn-reports/voicereport/internal/common"
	"github.com/frn-reports/voicereport/internal/dialogue"
	"github.com/frn-reports/voicereport/internal/httpapi/middleware"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

// failTurn maps state machine errors onto the response envelope. Collaborator
// and dispatch failures are retryable with the same session id and utterance.
func failTurn(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		common.Fail(c, http.StatusNotFound, 40402, "session not found")
	case errors.Is(err, dialogue.ErrDispatch):
		common.Fail(c, http.StatusBadGateway, 50220, "report dispatch failed, retry the turn")
	case errors.Is(err, dialogue.ErrCollaborator):
		common.Fail(c, http.StatusBadGateway, 50210, "reply generation failed, retry the turn")
	case errors.Is(err, dialogue.ErrInvariant):
		common.Fail(c, http.StatusInternalServerError, 50030, "session state error")
	default:
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}

type turnReq struct {
	SessionID string `json:"session_id" binding:"required"`
	// Message may be empty; the state machine re-requests the current field.
	Message string `json:"message"`
}

func (h *Handler) TakeTurn(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req turnReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if len(req.SessionID) > 64 {
		common.Fail(c, http.StatusBadRequest, 10005, "session_id too long")
		return
	}

	res, err := h.DialogueSvc.Turn(c.Request.Context(), uid, req.SessionID, req.Message)
	if err != nil {
		log.Printf("[TakeTurn] uid=%d session_id=%s err=%v", uid, req.SessionID, err)
		failTurn(c, err)
		return
	}
	common.OK(c, res)
}

func (h *Handler) TranscribeTurn(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	sessionID := c.PostForm("session_id")
	if sessionID == "" || len(sessionID) > 64 {
		common.Fail(c, http.StatusBadRequest, 10006, "session_id required")
		return
	}

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10010, "audio file required")
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10011, "unreadable audio file")
		return
	}
	defer f.Close()

	text, err := h.Transcriber.Transcribe(c.Request.Context(), fileHeader.Filename, f, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		log.Printf("[TranscribeTurn] transcription failed uid=%d session_id=%s err=%v", uid, sessionID, err)
		common.Fail(c, http.StatusBadGateway, 50211, "transcription failed, retry with the same audio")
		return
	}

	res, err := h.DialogueSvc.Turn(c.Request.Context(), uid, sessionID, text)
	if err != nil {
		log.Printf("[TranscribeTurn] uid=%d session_id=%s err=%v", uid, sessionID, err)
		failTurn(c, err)
		return
	}
	common.OK(c, gin.H{
		"transcript": text,
		"turn":       res,
	})
}

const speechCacheTTL = 24 * time.Hour

func (h *Handler) Speak(c *gin.Context) {
	_, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	text := c.Query("text")
	if text == "" {
		common.Fail(c, http.StatusBadRequest, 10012, "text required")
		return
	}

	sum := sha256.Sum256([]byte(h.Cfg.TTSVoice + "|" + text))
	key := hex.EncodeToString(sum[:])

	if audio, err := h.Redis.GetSpeech(c.Request.Context(), key); err == nil {
		c.Data(http.StatusOK, "audio/mpeg", audio)
		return
	} else if err != redis.Nil {
		log.Printf("[Speak] speech cache read failed: %v", err)
	}

	audio, err := h.Synthesizer.Synthesize(c.Request.Context(), text)
	if err != nil {
		log.Printf("[Speak] synthesis failed err=%v", err)
		common.Fail(c, http.StatusBadGateway, 50212, "speech synthesis failed")
		return
	}

	if err := h.Redis.SetSpeech(c.Request.Context(), key, audio, speechCacheTTL); err != nil {
		log.Printf("[Speak] speech cache write failed: %v", err)
	}

	c.Data(http.StatusOK, "audio/mpeg", audio)
}

func (h *Handler) GetSessionProgress(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	sessionID := c.Param("session_id")
	progress, err := h.DialogueSvc.Progress(c.Request.Context(), uid, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, progress)
}

func (h *Handler) ListSessionTurns(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	sessionID := c.Param("session_id")

	limit, _ := strconv.Atoi(c.Query("limit"))
	var beforeID uint64
	if v := c.Query("before_id"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			beforeID = n
		}
	}

	turns, err := h.DialogueSvc.ListTurns(c.Request.Context(), uid, sessionID, limit, beforeID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list turns")
		return
	}

	var nextBeforeID uint64
	if len(turns) > 0 {
		nextBeforeID = turns[len(turns)-1].ID
	}

	common.OK(c, gin.H{
		"turns":          turns,
		"next_before_id": nextBeforeID,
	})
}
