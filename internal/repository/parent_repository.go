package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/si-yapemri/school-admin-api/internal/models"
)

const parentColumns = `id, first_name, last_name, birthplace, birth_date, gender, religion, citizenship, address, phone, occupation, data_status, created_at, updated_at`

// ParentRepository manages persistence for parent records.
type ParentRepository struct {
	db *sqlx.DB
}

// NewParentRepository constructs a ParentRepository.
func NewParentRepository(db *sqlx.DB) *ParentRepository {
	return &ParentRepository{db: db}
}

// List returns parents matching the provided filter and the total count.
func (r *ParentRepository) List(ctx context.Context, filter models.ParentFilter) ([]models.Parent, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.DataStatus != "" {
		args = append(args, filter.DataStatus)
		conditions = append(conditions, fmt.Sprintf("data_status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(first_name || ' ' || last_name) LIKE $%d", len(args)))
	}

	where := strings.Join(conditions, " AND ")
	page, size := normalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf(`SELECT %s FROM parents WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		parentColumns, where, size, (page-1)*size)

	var parents []models.Parent
	if err := r.db.SelectContext(ctx, &parents, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list parents: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM parents WHERE %s", where), args...); err != nil {
		return nil, 0, fmt.Errorf("count parents: %w", err)
	}
	return parents, total, nil
}

// FindByID fetches a parent by ID.
func (r *ParentRepository) FindByID(ctx context.Context, id string) (*models.Parent, error) {
	query := `SELECT ` + parentColumns + ` FROM parents WHERE id = $1`
	var parent models.Parent
	if err := r.db.GetContext(ctx, &parent, query, id); err != nil {
		return nil, err
	}
	return &parent, nil
}

// Create inserts a new parent record.
func (r *ParentRepository) Create(ctx context.Context, parent *models.Parent) error {
	if parent.ID == "" {
		parent.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if parent.CreatedAt.IsZero() {
		parent.CreatedAt = now
	}
	parent.UpdatedAt = now
	const query = `INSERT INTO parents (id, first_name, last_name, birthplace, birth_date, gender, religion, citizenship, address, phone, occupation, data_status, created_at, updated_at)
	VALUES (:id, :first_name, :last_name, :birthplace, :birth_date, :gender, :religion, :citizenship, :address, :phone, :occupation, :data_status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, parent); err != nil {
		return fmt.Errorf("create parent: %w", err)
	}
	return nil
}

// Update modifies an existing parent record.
func (r *ParentRepository) Update(ctx context.Context, parent *models.Parent) error {
	parent.UpdatedAt = time.Now().UTC()
	const query = `UPDATE parents SET first_name = :first_name, last_name = :last_name, birthplace = :birthplace,
	birth_date = :birth_date, gender = :gender, religion = :religion, citizenship = :citizenship,
	address = :address, phone = :phone, occupation = :occupation, data_status = :data_status,
	updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, parent); err != nil {
		return fmt.Errorf("update parent: %w", err)
	}
	return nil
}

// SetDataStatus flips the lifecycle status of a parent record.
func (r *ParentRepository) SetDataStatus(ctx context.Context, id string, status models.DataStatus) error {
	const query = `UPDATE parents SET data_status = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set parent status: %w", err)
	}
	return requireRow(result)
}

// HardDelete permanently removes a parent row.
func (r *ParentRepository) HardDelete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM parents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete parent: %w", err)
	}
	return requireRow(result)
}
