package model

import "time"

type AnnouncementPriority string

const (
	PriorityLow    AnnouncementPriority = "low"
	PriorityMedium AnnouncementPriority = "medium"
	PriorityHigh   AnnouncementPriority = "high"
)

func (p AnnouncementPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Rank defines the list ordering: higher priority sorts first.
func (p AnnouncementPriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

type AnnouncementStatus string

const (
	StatusActive   AnnouncementStatus = "active"
	StatusInactive AnnouncementStatus = "inactive"
)

func (s AnnouncementStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive:
		return true
	default:
		return false
	}
}

// Announcement is a tenant-scoped record with at most one binary attachment.
// MediaPath and MediaName are always set or cleared together.
type Announcement struct {
	ID        int64                `db:"id" json:"id"`
	CompanyID int64                `db:"company_id" json:"companyId"`
	Title     string               `db:"title" json:"title"`
	Text      string               `db:"text" json:"text"`
	Priority  AnnouncementPriority `db:"priority" json:"priority"`
	Status    AnnouncementStatus   `db:"status" json:"status"`
	MediaPath *string              `db:"media_path" json:"mediaPath"`
	MediaName *string              `db:"media_name" json:"mediaName"`
	CreatedAt time.Time            `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time            `db:"updated_at" json:"updatedAt"`
}

func (a *Announcement) HasMedia() bool {
	return a != nil && a.MediaPath != nil
}
