package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/si-yapemri/school-admin-api/internal/models"
	appErrors "github.com/si-yapemri/school-admin-api/pkg/errors"
)

type staffRepository interface {
	List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, int, error)
	FindByID(ctx context.Context, id string) (*models.Staff, error)
	Create(ctx context.Context, staff *models.Staff) error
	Update(ctx context.Context, staff *models.Staff) error
	SetDataStatus(ctx context.Context, id string, status models.DataStatus) error
}

// CreateStaffRequest holds payload for creating staff records.
type CreateStaffRequest struct {
	NIP         string    `json:"nip" validate:"required"`
	FirstName   string    `json:"firstName" validate:"required"`
	LastName    string    `json:"lastName"`
	Birthplace  string    `json:"birthplace"`
	BirthDate   time.Time `json:"birthDate" validate:"required"`
	Gender      string    `json:"gender" validate:"required"`
	Religion    string    `json:"religion"`
	Citizenship string    `json:"citizenship"`
	Address     string    `json:"address"`
	Phone       string    `json:"phone"`
	Position    string    `json:"position" validate:"required"`
}

// UpdateStaffRequest holds payload for updating staff records.
type UpdateStaffRequest CreateStaffRequest

// StaffService handles staff use-cases with approval bookkeeping.
type StaffService struct {
	repo      staffRepository
	tracker   MutationTracker
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStaffService constructs the staff service.
func NewStaffService(repo staffRepository, tracker MutationTracker, validate *validator.Validate, logger *zap.Logger) *StaffService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffService{repo: repo, tracker: tracker, validator: validate, logger: logger}
}

// List returns staff and pagination metadata.
func (s *StaffService) List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, *models.Pagination, error) {
	staff, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list staff")
	}
	return staff, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one staff record by ID.
func (s *StaffService) Get(ctx context.Context, id string) (*models.Staff, error) {
	staff, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff")
	}
	return staff, nil
}

// Create registers a new staff record and opens an add request for review.
func (s *StaffService) Create(ctx context.Context, req CreateStaffRequest, actorID string) (*models.Staff, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}
	staff := &models.Staff{
		NIP:         req.NIP,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Birthplace:  req.Birthplace,
		BirthDate:   req.BirthDate,
		Gender:      req.Gender,
		Religion:    req.Religion,
		Citizenship: req.Citizenship,
		Address:     req.Address,
		Phone:       req.Phone,
		Position:    req.Position,
		DataStatus:  models.DataStatusRequested,
	}
	if err := s.repo.Create(ctx, staff); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create staff")
	}
	s.track(ctx, actorID, models.MutationAdd, staff.ID)
	return staff, nil
}

// Update modifies an existing staff record and opens an edit request.
func (s *StaffService) Update(ctx context.Context, id string, req UpdateStaffRequest, actorID string) (*models.Staff, error) {
	if err := s.validator.Struct(CreateStaffRequest(req)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}
	staff, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff")
	}
	staff.NIP = req.NIP
	staff.FirstName = req.FirstName
	staff.LastName = req.LastName
	staff.Birthplace = req.Birthplace
	staff.BirthDate = req.BirthDate
	staff.Gender = req.Gender
	staff.Religion = req.Religion
	staff.Citizenship = req.Citizenship
	staff.Address = req.Address
	staff.Phone = req.Phone
	staff.Position = req.Position
	staff.DataStatus = models.DataStatusEdited
	if err := s.repo.Update(ctx, staff); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update staff")
	}
	s.track(ctx, actorID, models.MutationEdit, staff.ID)
	return staff, nil
}

// Delete soft-deletes the staff record and opens a delete request.
func (s *StaffService) Delete(ctx context.Context, id string, actorID string) error {
	if err := s.repo.SetDataStatus(ctx, id, models.DataStatusReviewed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "staff not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete staff")
	}
	s.track(ctx, actorID, models.MutationDelete, id)
	return nil
}

func (s *StaffService) track(ctx context.Context, actorID string, mutation models.MutationType, staffID string) {
	if s.tracker == nil {
		return
	}
	target := models.TargetRef{Kind: models.TargetStaff, ID: staffID}
	if _, err := s.tracker.Track(ctx, actorID, mutation, target); err != nil {
		s.logger.Warn("failed to track staff mutation for review",
			zap.String("mutation_type", string(mutation)),
			zap.String("staff_id", staffID),
			zap.Error(err))
	}
}
