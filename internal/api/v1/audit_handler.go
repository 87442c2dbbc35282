package v1

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mesquitadev/whatsticket-be/internal/api/middleware"
	"github.com/mesquitadev/whatsticket-be/internal/api/response"
	"github.com/mesquitadev/whatsticket-be/internal/model"
	"github.com/mesquitadev/whatsticket-be/internal/repository"
)

type AuditHandler struct {
	auditRepo repository.AuditRepository
}

func NewAuditHandler(auditRepo repository.AuditRepository) *AuditHandler {
	return &AuditHandler{auditRepo: auditRepo}
}

func RegisterAuditRoutes(group *gin.RouterGroup, auditRepo repository.AuditRepository) {
	if auditRepo == nil {
		return
	}

	handler := NewAuditHandler(auditRepo)
	group.GET("/audit-logs", middleware.JWTAuth(), middleware.RequireProfile("super"), handler.List)
}

func (h *AuditHandler) List(c *gin.Context) {
	filter := repository.AuditListFilter{
		Pagination: repository.Pagination{
			Limit:  parseInt32OrDefault(c.Query("limit"), 50),
			Offset: parseInt32OrDefault(c.Query("offset"), 0),
		},
	}

	if raw := strings.TrimSpace(c.Query("companyId")); raw != "" {
		companyID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, "invalid companyId")
			return
		}
		filter.CompanyID = &companyID
	}
	if action := strings.TrimSpace(c.Query("action")); action != "" {
		filter.Action = &action
	}
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		filter.StartTime = &from
	}
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, "invalid to timestamp")
			return
		}
		filter.EndTime = &to
	}

	entries, err := h.auditRepo.List(c.Request.Context(), filter)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, "internal error")
		return
	}
	if entries == nil {
		entries = []*model.AuditLog{}
	}
	response.Success(c, entries)
}

func parseInt32OrDefault(raw string, fallback int32) int32 {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
	if err != nil || value < 0 {
		return fallback
	}
	return int32(value)
}
