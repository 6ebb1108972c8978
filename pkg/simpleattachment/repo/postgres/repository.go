package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-attachment/pkg/simpleattachment"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simpleattachment.Repository using PostgreSQL.
// Reference sets are TEXT[] columns changed with single conditional UPDATE
// statements, so concurrent reconciliations never lose each other's writes.
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

var _ simpleattachment.Repository = (*Repository)(nil)

const attachmentColumns = `id, owner_id, type, status, extension, url, title, description,
	video_refs, module_refs, created_at, updated_at`

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("attachment already exists")
		case "23514": // check_violation
			return fmt.Errorf("%w: %s", simpleattachment.ErrInvariantViolation, pgErr.ConstraintName)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return simpleattachment.ErrAttachmentNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func refColumn(kind simpleattachment.ElementKind) (string, error) {
	switch kind {
	case simpleattachment.ElementKindVideo:
		return "video_refs", nil
	case simpleattachment.ElementKindModule:
		return "module_refs", nil
	default:
		return "", fmt.Errorf("%w: %q", simpleattachment.ErrInvalidElementKind, kind)
	}
}

func scanAttachment(row pgx.Row) (*simpleattachment.Attachment, error) {
	var a simpleattachment.Attachment
	err := row.Scan(
		&a.ID, &a.OwnerID, &a.Type, &a.Status, &a.Extension, &a.URL,
		&a.Title, &a.Description, &a.VideoRefs, &a.ModuleRefs,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if a.VideoRefs == nil {
		a.VideoRefs = []string{}
	}
	if a.ModuleRefs == nil {
		a.ModuleRefs = []string{}
	}
	return &a, nil
}

// Attachment operations

func (r *Repository) CreateAttachment(ctx context.Context, attachment *simpleattachment.Attachment) error {
	query := `
		INSERT INTO attachments (
			id, owner_id, type, status, extension, url, title, description,
			video_refs, module_refs, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	videoRefs, moduleRefs := attachment.VideoRefs, attachment.ModuleRefs
	if videoRefs == nil {
		videoRefs = []string{}
	}
	if moduleRefs == nil {
		moduleRefs = []string{}
	}

	_, err := r.db.Exec(ctx, query,
		attachment.ID, attachment.OwnerID, attachment.Type, attachment.Status,
		attachment.Extension, attachment.URL, attachment.Title, attachment.Description,
		videoRefs, moduleRefs, attachment.CreatedAt, attachment.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create attachment", err)
	}
	return nil
}

func (r *Repository) GetAttachment(ctx context.Context, id uuid.UUID) (*simpleattachment.Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM attachments WHERE id = $1`

	attachment, err := scanAttachment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("get attachment", err)
	}
	return attachment, nil
}

// UpdateAttachment writes every column except the reference sets, the owner
// and the creation time.
func (r *Repository) UpdateAttachment(ctx context.Context, attachment *simpleattachment.Attachment) error {
	query := `
		UPDATE attachments SET
			type = $2, status = $3, extension = $4, url = $5,
			title = $6, description = $7, updated_at = $8
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		attachment.ID, attachment.Type, attachment.Status, attachment.Extension,
		attachment.URL, attachment.Title, attachment.Description, attachment.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update attachment", err)
	}
	if tag.RowsAffected() == 0 {
		return simpleattachment.ErrAttachmentNotFound
	}
	return nil
}

func (r *Repository) DeleteAttachment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM attachments WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete attachment", err)
	}
	if tag.RowsAffected() == 0 {
		return simpleattachment.ErrAttachmentNotFound
	}
	return nil
}

func (r *Repository) ListAttachments(ctx context.Context, filter simpleattachment.AttachmentFilter, page simpleattachment.Page) ([]*simpleattachment.Attachment, int, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.VideoRef != nil {
		args = append(args, *filter.VideoRef)
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(video_refs)", len(args)))
	}
	if filter.ModuleRef != nil {
		args = append(args, *filter.ModuleRef)
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(module_refs)", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM attachments`+where, args...).Scan(&total); err != nil {
		return nil, 0, r.handlePostgresError("count attachments", err)
	}

	page = page.Normalize()
	query := fmt.Sprintf(`SELECT %s FROM attachments%s ORDER BY updated_at DESC, id LIMIT $%d OFFSET $%d`,
		attachmentColumns, where, len(args)+1, len(args)+2)
	args = append(args, page.Size, page.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, r.handlePostgresError("list attachments", err)
	}
	defer rows.Close()

	var result []*simpleattachment.Attachment
	for rows.Next() {
		attachment, err := scanAttachment(rows)
		if err != nil {
			return nil, 0, r.handlePostgresError("scan attachment", err)
		}
		result = append(result, attachment)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, r.handlePostgresError("list attachments", err)
	}
	return result, total, nil
}

func (r *Repository) ListAttachmentIDsByReference(ctx context.Context, kind simpleattachment.ElementKind, elementID string) ([]uuid.UUID, error) {
	column, err := refColumn(kind)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `SELECT id FROM attachments WHERE $1 = ANY(`+column+`) ORDER BY id`, elementID)
	if err != nil {
		return nil, r.handlePostgresError("list referencing attachments", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, r.handlePostgresError("scan attachment id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list referencing attachments", err)
	}
	return ids, nil
}

func (r *Repository) AddReference(ctx context.Context, id uuid.UUID, kind simpleattachment.ElementKind, elementID string) (bool, error) {
	column, err := refColumn(kind)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf(`
		UPDATE attachments SET %[1]s = array_append(%[1]s, $2), updated_at = $3
		WHERE id = $1 AND NOT ($2 = ANY(%[1]s))`, column)
	return r.mutateReference(ctx, "add reference", query, id, elementID)
}

func (r *Repository) RemoveReference(ctx context.Context, id uuid.UUID, kind simpleattachment.ElementKind, elementID string) (bool, error) {
	column, err := refColumn(kind)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf(`
		UPDATE attachments SET %[1]s = array_remove(%[1]s, $2), updated_at = $3
		WHERE id = $1 AND $2 = ANY(%[1]s)`, column)
	return r.mutateReference(ctx, "remove reference", query, id, elementID)
}

// mutateReference runs a conditional reference update. When no row changed
// it tells an unknown attachment apart from a set that was already right.
func (r *Repository) mutateReference(ctx context.Context, operation, query string, id uuid.UUID, elementID string) (bool, error) {
	tag, err := r.db.Exec(ctx, query, id, elementID, time.Now().UTC())
	if err != nil {
		return false, r.handlePostgresError(operation, err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	return false, r.checkExists(ctx, operation, id)
}

// CompleteUpload flips IN_PROGRESS to COMPLETED only while the row is still
// LOCAL with the given extension.
func (r *Repository) CompleteUpload(ctx context.Context, id uuid.UUID, extension string, updatedAt time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE attachments SET status = $3, updated_at = $4
		WHERE id = $1 AND type = $5 AND extension = $2 AND status = $6`,
		id, extension, simpleattachment.AttachmentStatusCompleted, updatedAt,
		simpleattachment.AttachmentTypeLocal, simpleattachment.AttachmentStatusInProgress)
	if err != nil {
		return false, r.handlePostgresError("complete upload", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	return false, r.checkExists(ctx, "complete upload", id)
}

func (r *Repository) checkExists(ctx context.Context, operation string, id uuid.UUID) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM attachments WHERE id = $1)`, id).Scan(&exists); err != nil {
		return r.handlePostgresError(operation, err)
	}
	if !exists {
		return simpleattachment.ErrAttachmentNotFound
	}
	return nil
}
