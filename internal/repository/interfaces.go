package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mesquitadev/whatsticket-be/internal/model"
)

// ErrNotFound is returned by lookups and mutations that target a missing row.
var ErrNotFound = errors.New("record not found")

// AnnouncementPageSize is fixed by the list API contract.
const AnnouncementPageSize = 20

type AnnouncementListFilter struct {
	CompanyID int64  `json:"company_id"`
	Search    string `json:"search,omitempty"`
	Page      int    `json:"page"`
}

// AnnouncementUpdate carries the four caller-mutable columns. Media columns
// are only touched through UpdateMedia so the path/name pair stays consistent.
type AnnouncementUpdate struct {
	Title    string
	Text     string
	Priority model.AnnouncementPriority
	Status   model.AnnouncementStatus
}

type AnnouncementRepository interface {
	Create(ctx context.Context, item *model.Announcement) error
	// FindByID is not tenant-filtered; tenant access is checked upstream.
	FindByID(ctx context.Context, id int64) (*model.Announcement, error)
	List(ctx context.Context, filter AnnouncementListFilter) ([]*model.Announcement, int64, error)
	FindAll(ctx context.Context, companyID int64) ([]*model.Announcement, error)
	Update(ctx context.Context, id int64, fields AnnouncementUpdate) (*model.Announcement, error)
	UpdateMedia(ctx context.Context, id int64, mediaPath, mediaName *string) (*model.Announcement, error)
	Delete(ctx context.Context, id int64) error
	// ListMediaPaths returns every non-null media_path; used by the orphan sweep.
	ListMediaPaths(ctx context.Context) ([]string, error)
}

type Pagination struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

type AuditListFilter struct {
	CompanyID  *int64     `json:"company_id,omitempty"`
	Action     *string    `json:"action,omitempty"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	Pagination Pagination `json:"pagination"`
}

type AuditRepository interface {
	Create(ctx context.Context, log *model.AuditLog) error
	List(ctx context.Context, filter AuditListFilter) ([]*model.AuditLog, error)
}
