package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mesquitadev/whatsticket-be/internal/metrics"
	"github.com/mesquitadev/whatsticket-be/internal/model"
	"github.com/mesquitadev/whatsticket-be/internal/repository"
	"github.com/mesquitadev/whatsticket-be/internal/sse"
	"github.com/mesquitadev/whatsticket-be/internal/storage"
)

const defaultStorageSaveTimeout = 30 * time.Second

var (
	ErrAnnouncementNotFound     = errors.New("announcement not found")
	ErrInvalidAnnouncementInput = errors.New("invalid announcement input")
	ErrInvalidAnnouncementID    = errors.New("invalid announcement id")
)

type CreateAnnouncementRequest struct {
	Title    string                     `json:"title"`
	Text     string                     `json:"text"`
	Priority model.AnnouncementPriority `json:"priority"`
	Status   model.AnnouncementStatus   `json:"status"`
}

// UpdateAnnouncementRequest replaces all four caller-mutable fields.
type UpdateAnnouncementRequest struct {
	Title    string                     `json:"title"`
	Text     string                     `json:"text"`
	Priority model.AnnouncementPriority `json:"priority"`
	Status   model.AnnouncementStatus   `json:"status"`
}

type AnnouncementPage struct {
	Records []*model.Announcement `json:"records"`
	Count   int64                 `json:"count"`
	HasMore bool                  `json:"hasMore"`
}

type AnnouncementServiceConfig struct {
	// StorageSaveTimeout bounds a single attachment write so a failing disk
	// cannot hold the entity half-migrated indefinitely.
	StorageSaveTimeout time.Duration
}

// AnnouncementService coordinates the repository, the attachment store and
// the fan-out hub. Every mutation follows the same shape: validate, persist,
// then publish. Publish failures are advisory and never fail the request.
type AnnouncementService struct {
	repo      repository.AnnouncementRepository
	auditRepo repository.AuditRepository
	store     storage.Store
	hub       *sse.Hub
	cfg       AnnouncementServiceConfig
	logger    *zap.Logger
}

func NewAnnouncementService(
	repo repository.AnnouncementRepository,
	auditRepo repository.AuditRepository,
	store storage.Store,
	hub *sse.Hub,
	cfg AnnouncementServiceConfig,
	logger *zap.Logger,
) *AnnouncementService {
	if cfg.StorageSaveTimeout <= 0 {
		cfg.StorageSaveTimeout = defaultStorageSaveTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AnnouncementService{
		repo:      repo,
		auditRepo: auditRepo,
		store:     store,
		hub:       hub,
		cfg:       cfg,
		logger:    logger,
	}
}

func (s *AnnouncementService) Create(
	ctx context.Context,
	companyID int64,
	req CreateAnnouncementRequest,
) (*model.Announcement, error) {
	item, err := buildAnnouncementForCreate(companyID, req)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}

	s.writeAudit(ctx, &companyID, "announcement.create", item.ID, nil, announcementAuditValue(item))
	s.broadcastRecord(sse.ActionCreate, item)

	return item, nil
}

func (s *AnnouncementService) Show(ctx context.Context, rawID string) (*model.Announcement, error) {
	id, err := parseAnnouncementID(rawID)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return item, nil
}

func (s *AnnouncementService) List(
	ctx context.Context,
	companyID int64,
	searchParam, pageNumber string,
) (*AnnouncementPage, error) {
	page := parsePageNumber(pageNumber)

	records, count, err := s.repo.List(ctx, repository.AnnouncementListFilter{
		CompanyID: companyID,
		Search:    strings.TrimSpace(searchParam),
		Page:      page,
	})
	if err != nil {
		return nil, err
	}

	return &AnnouncementPage{
		Records: records,
		Count:   count,
		HasMore: count > int64(page*repository.AnnouncementPageSize),
	}, nil
}

func (s *AnnouncementService) FindAll(ctx context.Context, companyID int64) ([]*model.Announcement, error) {
	return s.repo.FindAll(ctx, companyID)
}

func (s *AnnouncementService) Update(
	ctx context.Context,
	rawID string,
	req UpdateAnnouncementRequest,
) (*model.Announcement, error) {
	id, err := parseAnnouncementID(rawID)
	if err != nil {
		return nil, err
	}

	fields, err := buildAnnouncementUpdate(req)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	// Last-write-wins: concurrent updates race at the repository layer with
	// no version check; the later write is the final state.
	item, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	s.writeAudit(ctx, &item.CompanyID, "announcement.update", id, announcementAuditValue(current), announcementAuditValue(item))
	s.broadcastRecord(sse.ActionUpdate, item)

	return item, nil
}

// Delete removes the record and publishes a deletion event scoped to the
// tenant topic only; other tenants never observe it.
func (s *AnnouncementService) Delete(ctx context.Context, companyID int64, rawID string) error {
	id, err := parseAnnouncementID(rawID)
	if err != nil {
		return err
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return mapRepositoryError(err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepositoryError(err)
	}

	if current.HasMedia() {
		if err := s.store.Delete(ctx, *current.MediaPath); err != nil {
			// Row is gone; the file is an orphan the sweep job will collect.
			metrics.IncStorageError()
			s.logger.Warn("delete attachment after announcement delete failed",
				zap.Int64("announcement_id", id),
				zap.String("stored_name", *current.MediaPath),
				zap.Error(err),
			)
		}
	}

	s.writeAudit(ctx, &companyID, "announcement.delete", id, announcementAuditValue(current), nil)
	metrics.IncAnnouncementMutation(sse.ActionDelete)
	if s.hub != nil {
		s.hub.SendToCompany(companyID, sse.NewEvent(sse.EventAnnouncement, map[string]interface{}{
			"action": sse.ActionDelete,
			"id":     id,
		}))
	}

	return nil
}

// AttachMedia stores the file first, then points the record at it, then
// publishes. A failure after the file write leaves an orphaned file (swept
// out-of-band), never a record referencing a file that does not exist.
func (s *AnnouncementService) AttachMedia(
	ctx context.Context,
	rawID string,
	r io.Reader,
	originalName string,
) (*model.Announcement, error) {
	id, err := parseAnnouncementID(rawID)
	if err != nil {
		return nil, err
	}

	originalName = strings.TrimSpace(originalName)
	if originalName == "" {
		return nil, fmt.Errorf("%w: file name is required", ErrInvalidAnnouncementInput)
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	saveCtx, cancel := context.WithTimeout(ctx, s.cfg.StorageSaveTimeout)
	defer cancel()

	saved, err := s.store.Save(saveCtx, r, originalName)
	if err != nil {
		metrics.IncStorageError()
		return nil, err
	}

	item, err := s.repo.UpdateMedia(ctx, id, &saved.StoredName, &saved.OriginalName)
	if err != nil {
		s.logger.Warn("attachment stored but record update failed, file orphaned",
			zap.Int64("announcement_id", id),
			zap.String("stored_name", saved.StoredName),
			zap.Error(err),
		)
		return nil, mapRepositoryError(err)
	}

	if current.HasMedia() {
		if err := s.store.Delete(ctx, *current.MediaPath); err != nil {
			metrics.IncStorageError()
			s.logger.Warn("delete replaced attachment failed",
				zap.Int64("announcement_id", id),
				zap.String("stored_name", *current.MediaPath),
				zap.Error(err),
			)
		}
	}

	s.writeAudit(ctx, &item.CompanyID, "announcement.media.attach", id, announcementAuditValue(current), announcementAuditValue(item))
	s.broadcastRecord(sse.ActionUpdate, item)

	return item, nil
}

// DetachMedia deletes the stored file before clearing the record, so a
// storage failure leaves the record still pointing at the (possibly gone)
// file and the caller can retry. Detaching with no media attached is a
// no-op that still publishes.
func (s *AnnouncementService) DetachMedia(ctx context.Context, rawID string) (*model.Announcement, error) {
	id, err := parseAnnouncementID(rawID)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	if !current.HasMedia() {
		s.broadcastRecord(sse.ActionUpdate, current)
		return current, nil
	}

	if err := s.store.Delete(ctx, *current.MediaPath); err != nil {
		metrics.IncStorageError()
		return nil, err
	}

	item, err := s.repo.UpdateMedia(ctx, id, nil, nil)
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	s.writeAudit(ctx, &item.CompanyID, "announcement.media.detach", id, announcementAuditValue(current), announcementAuditValue(item))
	s.broadcastRecord(sse.ActionUpdate, item)

	return item, nil
}

func parseAnnouncementID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidAnnouncementID
	}
	return id, nil
}

func parsePageNumber(raw string) int {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || page <= 0 {
		return 1
	}
	return page
}

func buildAnnouncementForCreate(companyID int64, req CreateAnnouncementRequest) (*model.Announcement, error) {
	title := strings.TrimSpace(req.Title)
	if err := validateAnnouncementFields(title, req.Priority, req.Status); err != nil {
		return nil, err
	}

	return &model.Announcement{
		CompanyID: companyID,
		Title:     title,
		Text:      strings.TrimSpace(req.Text),
		Priority:  req.Priority,
		Status:    req.Status,
	}, nil
}

func buildAnnouncementUpdate(req UpdateAnnouncementRequest) (repository.AnnouncementUpdate, error) {
	title := strings.TrimSpace(req.Title)
	if err := validateAnnouncementFields(title, req.Priority, req.Status); err != nil {
		return repository.AnnouncementUpdate{}, err
	}

	return repository.AnnouncementUpdate{
		Title:    title,
		Text:     strings.TrimSpace(req.Text),
		Priority: req.Priority,
		Status:   req.Status,
	}, nil
}

func validateAnnouncementFields(
	title string,
	priority model.AnnouncementPriority,
	status model.AnnouncementStatus,
) error {
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidAnnouncementInput)
	}
	if status == "" {
		return fmt.Errorf("%w: status is required", ErrInvalidAnnouncementInput)
	}
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidAnnouncementInput, status)
	}
	if !priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidAnnouncementInput, priority)
	}
	return nil
}

func mapRepositoryError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrAnnouncementNotFound
	}
	return err
}

func announcementAuditValue(item *model.Announcement) map[string]interface{} {
	if item == nil {
		return nil
	}

	value := map[string]interface{}{
		"title":    item.Title,
		"text":     item.Text,
		"priority": string(item.Priority),
		"status":   string(item.Status),
	}
	if item.MediaPath != nil {
		value["mediaPath"] = *item.MediaPath
	}
	if item.MediaName != nil {
		value["mediaName"] = *item.MediaName
	}
	return value
}

func (s *AnnouncementService) writeAudit(
	ctx context.Context,
	companyID *int64,
	action string,
	resourceID int64,
	oldValue, newValue map[string]interface{},
) {
	if s.auditRepo == nil {
		return
	}

	resourceType := "announcement"
	rawID := strconv.FormatInt(resourceID, 10)
	_ = s.auditRepo.Create(ctx, &model.AuditLog{
		CompanyID:    companyID,
		Action:       action,
		ResourceType: &resourceType,
		ResourceID:   &rawID,
		OldValue:     oldValue,
		NewValue:     newValue,
		CreatedAt:    time.Now().UTC(),
	})
}

// broadcastRecord publishes to the global topic: announcement create/update
// events are cross-tenant operational broadcasts.
func (s *AnnouncementService) broadcastRecord(action string, item *model.Announcement) {
	metrics.IncAnnouncementMutation(action)
	if s.hub == nil || item == nil {
		return
	}

	s.hub.Broadcast(sse.NewEvent(sse.EventAnnouncement, map[string]interface{}{
		"action": action,
		"record": item,
	}))
}
