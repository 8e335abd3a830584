package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/frn-reports/voicereport/internal/common"
	"github.com/frn-reports/voicereport/internal/report"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type createReportReq struct {
	Fields map[string]string `json:"fields" binding:"required"`
}

// CreateReportJob is the manual/admin dispatch path: a supplied field map is
// assembled and mailed by the worker, bypassing the dialogue state machine.
func (h *Handler) CreateReportJob(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req createReportReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if len(req.Fields) == 0 {
		common.Fail(c, http.StatusBadRequest, 10020, "fields required")
		return
	}

	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		common.Fail(c, http.StatusBadRequest, 10003, "idempotency key too long")
		return
	}
	var idempoKeyPtr *string
	if idempoKey != "" {
		idempoKeyPtr = &idempoKey
	}

	fieldsJSON, err := json.Marshal(req.Fields)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid fields")
		return
	}

	jobID, err := common.NewULID()
	if err != nil {
		log.Printf("[CreateReportJob] NewULID failed uid=%d err=%v", uid, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	j := &report.Job{
		ID:             jobID,
		UserID:         uid,
		FieldsJSON:     string(fieldsJSON),
		IdempotencyKey: idempoKeyPtr,
		Status:         report.JobQueued,
	}

	job, created, err := h.ReportRepo.CreateJobOrGetExisting(c.Request.Context(), j)
	if err != nil {
		log.Printf("[CreateReportJob] CreateJobOrGetExisting failed uid=%d job_id=%s err=%v", uid, jobID, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	// enqueue only when a new job was created
	if created {
		if err := h.Rabbit.PublishJob(c.Request.Context(), job.ID); err != nil {
			log.Printf("[CreateReportJob] PublishJob failed uid=%d job_id=%s err=%v", uid, job.ID, err)
			common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
			return
		}
	}

	common.OK(c, gin.H{"job_id": job.ID})
}

func (h *Handler) GetReportJob(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	jobID := c.Param("job_id")
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "job_id required")
		return
	}

	j, err := h.ReportRepo.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40403, "job not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	if j.UserID != uid {
		// hide existence
		common.Fail(c, http.StatusNotFound, 40403, "job not found")
		return
	}

	common.OK(c, gin.H{
		"job": gin.H{
			"id":         j.ID,
			"status":     j.Status,
			"error":      j.Error,
			"created_at": j.CreatedAt,
			"updated_at": j.UpdatedAt,
		},
	})
}
