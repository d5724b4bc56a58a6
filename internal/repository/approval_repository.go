package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/si-yapemri/school-admin-api/internal/models"
)

const approvalColumns = `id, seeked_by, approved_by, rejected_by, mutation_type, status, target_kind, target_id, created_at, updated_at`

// ApprovalRepository persists approval workflow data.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository constructs the repository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// Create inserts a new approval row.
func (r *ApprovalRepository) Create(ctx context.Context, approval *models.ApprovalRequest) error {
	if approval.ID == "" {
		approval.ID = uuid.NewString()
	}
	if approval.Status == "" {
		approval.Status = models.ApprovalStatusRequested
	}
	now := time.Now().UTC()
	if approval.CreatedAt.IsZero() {
		approval.CreatedAt = now
	}
	approval.UpdatedAt = now
	const query = `INSERT INTO approvals
	(id, seeked_by, approved_by, rejected_by, mutation_type, status, target_kind, target_id, created_at, updated_at)
	VALUES (:id, :seeked_by, :approved_by, :rejected_by, :mutation_type, :status, :target_kind, :target_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, approval); err != nil {
		return fmt.Errorf("create approval: %w", err)
	}
	return nil
}

// UpsertOpen inserts an open request or, when the (seeked_by, target) open
// slot already exists, overwrites its mutation type in place. The partial
// unique index uq_approvals_open makes this a single atomic statement, so two
// concurrent submissions by the same actor on the same target cannot produce
// two open requests.
func (r *ApprovalRepository) UpsertOpen(ctx context.Context, approval *models.ApprovalRequest) error {
	if approval.ID == "" {
		approval.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	query := `INSERT INTO approvals
	(id, seeked_by, mutation_type, status, target_kind, target_id, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	ON CONFLICT (seeked_by, target_kind, target_id) WHERE status = 'requested'
	DO UPDATE SET mutation_type = EXCLUDED.mutation_type, updated_at = EXCLUDED.updated_at
	RETURNING ` + approvalColumns
	var merged models.ApprovalRequest
	err := r.db.GetContext(ctx, &merged, query,
		approval.ID,
		approval.SeekedBy,
		approval.MutationType,
		models.ApprovalStatusRequested,
		approval.TargetKind,
		approval.TargetID,
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert open approval: %w", err)
	}
	*approval = merged
	return nil
}

// FindOpen returns the open request for (seekedBy, target), if any.
func (r *ApprovalRepository) FindOpen(ctx context.Context, seekedBy string, target models.TargetRef) (*models.ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals
	WHERE seeked_by = $1 AND target_kind = $2 AND target_id = $3 AND status = $4`
	var approval models.ApprovalRequest
	if err := r.db.GetContext(ctx, &approval, query, seekedBy, target.Kind, target.ID, models.ApprovalStatusRequested); err != nil {
		return nil, err
	}
	return &approval, nil
}

// GetByID fetches an approval by identifier.
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE id = $1`
	var approval models.ApprovalRequest
	if err := r.db.GetContext(ctx, &approval, query, id); err != nil {
		return nil, err
	}
	return &approval, nil
}

// GetDetail fetches an approval with requester and decider biodata resolved.
func (r *ApprovalRepository) GetDetail(ctx context.Context, id string) (*models.ApprovalDetail, error) {
	const query = `SELECT a.id, a.seeked_by, a.approved_by, a.rejected_by, a.mutation_type, a.status,
	       a.target_kind, a.target_id, a.created_at, a.updated_at,
	       s.full_name AS seeked_by_name, s.email AS seeked_by_email,
	       d.full_name AS decided_by_name, d.email AS decided_by_email
	FROM approvals a
	LEFT JOIN accounts s ON s.id = a.seeked_by
	LEFT JOIN accounts d ON d.id = COALESCE(a.approved_by, a.rejected_by)
	WHERE a.id = $1`
	var detail models.ApprovalDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns approvals matching the filter, newest first. A non-positive
// limit returns the full result set.
func (r *ApprovalRepository) List(ctx context.Context, filter models.ApprovalFilter) ([]models.ApprovalRequest, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + approvalColumns + ` FROM approvals`)

	conditions, args := approvalConditions(filter)
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset))
	}

	var approvals []models.ApprovalRequest
	if err := r.db.SelectContext(ctx, &approvals, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	return approvals, nil
}

// Count returns the number of approvals matching the filter.
func (r *ApprovalRepository) Count(ctx context.Context, filter models.ApprovalFilter) (int, error) {
	builder := strings.Builder{}
	builder.WriteString("SELECT COUNT(*) FROM approvals")
	conditions, args := approvalConditions(filter)
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	var total int
	if err := r.db.GetContext(ctx, &total, builder.String(), args...); err != nil {
		return 0, fmt.Errorf("count approvals: %w", err)
	}
	return total, nil
}

func approvalConditions(filter models.ApprovalFilter) ([]string, []interface{}) {
	conditions := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.MutationType != "" {
		args = append(args, filter.MutationType)
		conditions = append(conditions, fmt.Sprintf("mutation_type = $%d", len(args)))
	}
	if filter.SeekedBy != "" {
		args = append(args, filter.SeekedBy)
		conditions = append(conditions, fmt.Sprintf("seeked_by = $%d", len(args)))
	}
	if filter.TargetKind != "" {
		args = append(args, filter.TargetKind)
		conditions = append(conditions, fmt.Sprintf("target_kind = $%d", len(args)))
	}
	if filter.TargetID != "" {
		args = append(args, filter.TargetID)
		conditions = append(conditions, fmt.Sprintf("target_id = $%d", len(args)))
	}
	return conditions, args
}

// DecideApprovalParams groups the columns written by a reviewer decision.
type DecideApprovalParams struct {
	ID        string
	Outcome   models.ApprovalStatus
	DecidedBy string
	DecidedAt time.Time
}

// Decide records a reviewer decision. Exactly one of approved_by/rejected_by
// is populated and the opposite is force-cleared, so a re-decision flips which
// field carries the reviewer. No status guard: deciding an already-terminal
// request overwrites it (correction semantics).
func (r *ApprovalRepository) Decide(ctx context.Context, params DecideApprovalParams) (*models.ApprovalRequest, error) {
	query := `UPDATE approvals SET
		status = $2,
		approved_by = CASE WHEN $2 = 'approved' THEN $3 ELSE NULL END,
		rejected_by = CASE WHEN $2 = 'rejected' THEN $3 ELSE NULL END,
		updated_at = $4
	WHERE id = $1
	RETURNING ` + approvalColumns
	var approval models.ApprovalRequest
	err := r.db.GetContext(ctx, &approval, query, params.ID, params.Outcome, params.DecidedBy, params.DecidedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("decide approval: %w", err)
	}
	return &approval, nil
}
