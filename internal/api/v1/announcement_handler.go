package v1

import (
	"errors"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mesquitadev/whatsticket-be/internal/api/middleware"
	"github.com/mesquitadev/whatsticket-be/internal/api/response"
	inputsanitize "github.com/mesquitadev/whatsticket-be/internal/api/sanitize"
	"github.com/mesquitadev/whatsticket-be/internal/model"
	"github.com/mesquitadev/whatsticket-be/internal/service"
	"github.com/mesquitadev/whatsticket-be/internal/storage"
)

type AnnouncementHandler struct {
	announcementService *service.AnnouncementService
	store               storage.Store
}

type announcementRequest struct {
	Title    string `json:"title"`
	Text     string `json:"text"`
	Priority string `json:"priority"`
	Status   string `json:"status"`
}

func NewAnnouncementHandler(announcementService *service.AnnouncementService, store storage.Store) *AnnouncementHandler {
	return &AnnouncementHandler{
		announcementService: announcementService,
		store:               store,
	}
}

func RegisterAnnouncementRoutes(group *gin.RouterGroup, announcementService *service.AnnouncementService, store storage.Store) {
	if announcementService == nil {
		return
	}

	handler := NewAnnouncementHandler(announcementService, store)
	ann := group.Group("/announcements")
	ann.Use(middleware.JWTAuth())

	ann.GET("", handler.List)
	ann.GET("/list", handler.FindAll)
	ann.GET("/:id", handler.Show)
	ann.GET("/media/:name", handler.ServeMedia)

	super := middleware.RequireProfile("super")
	writeLimit := middleware.RateLimit("announcement_write", 30, time.Minute)
	uploadLimit := middleware.RateLimit("announcement_upload", 10, time.Minute)
	ann.POST("", super, writeLimit, handler.Create)
	ann.PUT("/:id", super, writeLimit, handler.Update)
	ann.DELETE("/:id", super, writeLimit, handler.Delete)
	ann.POST("/:id/media-upload", super, uploadLimit, handler.AttachMedia)
	ann.DELETE("/:id/media-upload", super, uploadLimit, handler.DetachMedia)
}

// List returns one fixed-size page of the caller's tenant, newest and most
// urgent first.
func (h *AnnouncementHandler) List(c *gin.Context) {
	companyID, ok := middleware.GetCompanyID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	page, err := h.announcementService.List(
		c.Request.Context(),
		companyID,
		inputsanitize.Text(c.Query("searchParam")),
		c.Query("pageNumber"),
	)
	if err != nil {
		handleAnnouncementServiceError(c, err)
		return
	}
	response.Success(c, page)
}

func (h *AnnouncementHandler) FindAll(c *gin.Context) {
	companyID, ok := middleware.GetCompanyID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	items, err := h.announcementService.FindAll(c.Request.Context(), companyID)
	if err != nil {
		handleAnnouncementServiceError(c, err)
		return
	}
	if items == nil {
		items = []*model.Announcement{}
	}
	response.Success(c, items)
}

func (h *AnnouncementHandler) Show(c *gin.Context) {
	item, err := h.announcementService.Show(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleAnnouncementServiceError(c, err)
		return
	}
	response.Success(c, item)
}

func (h *AnnouncementHandler) Create(c *gin.Context) {
	companyID, ok := middleware.GetCompanyID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req announcementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.announcementService.Create(c.Request.Context(), companyID, service.CreateAnnouncementRequest{
		Title:    inputsanitize.Text(req.Title),
		Text:     inputsanitize.Body(req.Text),
		Priority: model.AnnouncementPriority(req.Priority),
		Status:   model.AnnouncementStatus(req.Status),
	})
	if err != nil {
		handleAnnouncementServiceError(c, err)
		return
	}
	response.Created(c, item)
}

func (h *AnnouncementHandler) Update(c *gin.Context) {
	var req announcementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.announcementService.Update(c.Request.Context(), c.Param("id"), service.UpdateAnnouncementRequest{
		Title:    inputsanitize.Text(req.Title),
		Text:     inputsanitize.Body(req.Text),
		Priority: model.AnnouncementPriority(req.Priority),
		Status:   model.AnnouncementStatus(req.Status),
	})
	if err != nil {
		handleAnnouncementServiceError(c, err)
		return
	}
	response.Success(c, item)
}

func (h *AnnouncementHandler) Delete(c *gin.Context) {
	companyID, ok := middleware.GetCompanyID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.announcementService.Delete(c.Request.Context(), companyID, c.Param("id")); err != nil {
		handleAnnouncementServiceError(c, err)
		return
	}
	response.Message(c, "Announcement deleted")
}

// AttachMedia accepts a multipart upload. Only the first file is used,
// extras are ignored.
func (h *AnnouncementHandler) AttachMedia(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid multipart form")
		return
	}

	var header *multipart.FileHeader
	for _, headers := range form.File {
		if len(headers) > 0 {
			header = headers[0]
			break
		}
	}
	if header == nil {
		response.Fail(c, http.StatusBadRequest, "no file uploaded")
		return
	}

	file, err := header.Open()
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "unreadable file")
		return
	}
	defer file.Close()

	item, err := h.announcementService.AttachMedia(c.Request.Context(), c.Param("id"), file, header.Filename)
	if err != nil {
		handleAnnouncementServiceError(c, err)
		return
	}
	response.Success(c, item)
}

func (h *AnnouncementHandler) DetachMedia(c *gin.Context) {
	item, err := h.announcementService.DetachMedia(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleAnnouncementServiceError(c, err)
		return
	}
	response.Success(c, item)
}

func (h *AnnouncementHandler) ServeMedia(c *gin.Context) {
	if h.store == nil {
		response.Fail(c, http.StatusNotFound, "file not found")
		return
	}

	path, err := h.store.Resolve(c.Param("name"))
	if err != nil {
		response.Fail(c, http.StatusNotFound, "file not found")
		return
	}
	c.File(path)
}

func handleAnnouncementServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAnnouncementID),
		errors.Is(err, service.ErrInvalidAnnouncementInput):
		response.Fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAnnouncementNotFound):
		response.Fail(c, http.StatusNotFound, "announcement not found")
	default:
		response.Fail(c, http.StatusInternalServerError, "internal error")
	}
}
