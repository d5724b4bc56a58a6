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

const staffColumns = `id, nip, first_name, last_name, birthplace, birth_date, gender, religion, citizenship, address, phone, position, data_status, created_at, updated_at`

// StaffRepository manages persistence for staff records.
type StaffRepository struct {
	db *sqlx.DB
}

// NewStaffRepository constructs a StaffRepository.
func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// List returns staff matching the provided filter and the total count.
func (r *StaffRepository) List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Position != "" {
		args = append(args, filter.Position)
		conditions = append(conditions, fmt.Sprintf("position = $%d", len(args)))
	}
	if filter.DataStatus != "" {
		args = append(args, filter.DataStatus)
		conditions = append(conditions, fmt.Sprintf("data_status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(first_name || ' ' || last_name) LIKE $%d OR LOWER(nip) LIKE $%d)", len(args), len(args)))
	}

	where := strings.Join(conditions, " AND ")
	page, size := normalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf(`SELECT %s FROM staff WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		staffColumns, where, size, (page-1)*size)

	var staff []models.Staff
	if err := r.db.SelectContext(ctx, &staff, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list staff: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM staff WHERE %s", where), args...); err != nil {
		return nil, 0, fmt.Errorf("count staff: %w", err)
	}
	return staff, total, nil
}

// FindByID fetches a staff record by ID.
func (r *StaffRepository) FindByID(ctx context.Context, id string) (*models.Staff, error) {
	query := `SELECT ` + staffColumns + ` FROM staff WHERE id = $1`
	var staff models.Staff
	if err := r.db.GetContext(ctx, &staff, query, id); err != nil {
		return nil, err
	}
	return &staff, nil
}

// Create inserts a new staff record.
func (r *StaffRepository) Create(ctx context.Context, staff *models.Staff) error {
	if staff.ID == "" {
		staff.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if staff.CreatedAt.IsZero() {
		staff.CreatedAt = now
	}
	staff.UpdatedAt = now
	const query = `INSERT INTO staff (id, nip, first_name, last_name, birthplace, birth_date, gender, religion, citizenship, address, phone, position, data_status, created_at, updated_at)
	VALUES (:id, :nip, :first_name, :last_name, :birthplace, :birth_date, :gender, :religion, :citizenship, :address, :phone, :position, :data_status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, staff); err != nil {
		return fmt.Errorf("create staff: %w", err)
	}
	return nil
}

// Update modifies an existing staff record.
func (r *StaffRepository) Update(ctx context.Context, staff *models.Staff) error {
	staff.UpdatedAt = time.Now().UTC()
	const query = `UPDATE staff SET nip = :nip, first_name = :first_name, last_name = :last_name,
	birthplace = :birthplace, birth_date = :birth_date, gender = :gender, religion = :religion,
	citizenship = :citizenship, address = :address, phone = :phone, position = :position,
	data_status = :data_status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, staff); err != nil {
		return fmt.Errorf("update staff: %w", err)
	}
	return nil
}

// SetDataStatus flips the lifecycle status of a staff record.
func (r *StaffRepository) SetDataStatus(ctx context.Context, id string, status models.DataStatus) error {
	const query = `UPDATE staff SET data_status = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set staff status: %w", err)
	}
	return requireRow(result)
}

// HardDelete permanently removes a staff row.
func (r *StaffRepository) HardDelete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM staff WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete staff: %w", err)
	}
	return requireRow(result)
}
