package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mesquitadev/whatsticket-be/internal/model"
	"github.com/mesquitadev/whatsticket-be/internal/repository"
)

type announcementRepository struct {
	pool *pgxpool.Pool
}

func NewAnnouncementRepository(pool *pgxpool.Pool) repository.AnnouncementRepository {
	return &announcementRepository{pool: pool}
}

var _ repository.AnnouncementRepository = (*announcementRepository)(nil)

const announcementColumns = `
	id,
	company_id,
	title,
	text,
	priority,
	status,
	media_path,
	media_name,
	created_at,
	updated_at
`

// Priority is stored as text; the rank expression keeps the list order
// stable: high before medium before low, newest first within a rank.
const priorityRankExpr = `CASE priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END`

const announcementOrderClause = ` ORDER BY ` + priorityRankExpr + ` DESC, created_at DESC, id DESC`

func (r *announcementRepository) Create(ctx context.Context, item *model.Announcement) error {
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = item.CreatedAt
	}

	query := `
		INSERT INTO announcements (
			company_id, title, text, priority, status,
			media_path, media_name, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	return r.pool.QueryRow(
		ctx,
		query,
		item.CompanyID,
		item.Title,
		item.Text,
		item.Priority,
		item.Status,
		item.MediaPath,
		item.MediaName,
		item.CreatedAt,
		item.UpdatedAt,
	).Scan(&item.ID)
}

func (r *announcementRepository) FindByID(ctx context.Context, id int64) (*model.Announcement, error) {
	query := `SELECT ` + announcementColumns + ` FROM announcements WHERE id = $1`
	item, err := scanAnnouncement(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *announcementRepository) List(
	ctx context.Context,
	filter repository.AnnouncementListFilter,
) ([]*model.Announcement, int64, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}

	args := make([]any, 0, 4)
	conditions := buildAnnouncementConditions(filter, &args)

	var builder strings.Builder
	builder.WriteString("SELECT ")
	builder.WriteString(announcementColumns)
	builder.WriteString(" FROM announcements WHERE ")
	builder.WriteString(strings.Join(conditions, " AND "))
	builder.WriteString(announcementOrderClause)

	args = append(args, repository.AnnouncementPageSize, (page-1)*repository.AnnouncementPageSize)
	_, _ = fmt.Fprintf(&builder, " LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, builder.String(), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]*model.Announcement, 0, repository.AnnouncementPageSize)
	for rows.Next() {
		item, scanErr := scanAnnouncement(rows)
		if scanErr != nil {
			return nil, 0, scanErr
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countArgs := make([]any, 0, 2)
	countConditions := buildAnnouncementConditions(filter, &countArgs)

	var total int64
	countQuery := "SELECT COUNT(*) FROM announcements WHERE " + strings.Join(countConditions, " AND ")
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (r *announcementRepository) FindAll(ctx context.Context, companyID int64) ([]*model.Announcement, error) {
	query := `SELECT ` + announcementColumns + ` FROM announcements WHERE company_id = $1` + announcementOrderClause

	rows, err := r.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*model.Announcement, 0, 16)
	for rows.Next() {
		item, scanErr := scanAnnouncement(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// Update writes the caller-mutable columns with last-write-wins semantics and
// re-reads the row so the returned record reflects the persisted state.
func (r *announcementRepository) Update(
	ctx context.Context,
	id int64,
	fields repository.AnnouncementUpdate,
) (*model.Announcement, error) {
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE announcements
		    SET title = $2,
		        text = $3,
		        priority = $4,
		        status = $5,
		        updated_at = $6
		  WHERE id = $1`,
		id,
		fields.Title,
		fields.Text,
		fields.Priority,
		fields.Status,
		time.Now().UTC(),
	)
	if err != nil {
		return nil, err
	}
	if err := ensureAffected(tag); err != nil {
		return nil, err
	}

	return r.FindByID(ctx, id)
}

// UpdateMedia sets both media columns in one statement; the pair is either
// two values or two NULLs, never mixed.
func (r *announcementRepository) UpdateMedia(
	ctx context.Context,
	id int64,
	mediaPath, mediaName *string,
) (*model.Announcement, error) {
	if (mediaPath == nil) != (mediaName == nil) {
		return nil, errors.New("media path and name must be set or cleared together")
	}

	tag, err := r.pool.Exec(
		ctx,
		`UPDATE announcements
		    SET media_path = $2,
		        media_name = $3,
		        updated_at = $4
		  WHERE id = $1`,
		id,
		mediaPath,
		mediaName,
		time.Now().UTC(),
	)
	if err != nil {
		return nil, err
	}
	if err := ensureAffected(tag); err != nil {
		return nil, err
	}

	return r.FindByID(ctx, id)
}

func (r *announcementRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return ensureAffected(tag)
}

func (r *announcementRepository) ListMediaPaths(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT media_path FROM announcements WHERE media_path IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	paths := make([]string, 0, 16)
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return paths, nil
}

func buildAnnouncementConditions(filter repository.AnnouncementListFilter, args *[]any) []string {
	conditions := make([]string, 0, 2)

	*args = append(*args, filter.CompanyID)
	conditions = append(conditions, fmt.Sprintf("company_id = $%d", len(*args)))

	if search := strings.TrimSpace(filter.Search); search != "" {
		*args = append(*args, "%"+escapeLikePattern(search)+"%")
		conditions = append(conditions, fmt.Sprintf("title ILIKE $%d", len(*args)))
	}

	return conditions
}

var likePatternEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLikePattern neutralizes LIKE metacharacters so a search term matches
// literally instead of acting as a wildcard.
func escapeLikePattern(term string) string {
	return likePatternEscaper.Replace(term)
}

func scanAnnouncement(src scanTarget) (*model.Announcement, error) {
	item := &model.Announcement{}
	err := src.Scan(
		&item.ID,
		&item.CompanyID,
		&item.Title,
		&item.Text,
		&item.Priority,
		&item.Status,
		&item.MediaPath,
		&item.MediaName,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return item, nil
}
