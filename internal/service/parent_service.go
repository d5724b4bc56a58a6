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

type parentRepository interface {
	List(ctx context.Context, filter models.ParentFilter) ([]models.Parent, int, error)
	FindByID(ctx context.Context, id string) (*models.Parent, error)
	Create(ctx context.Context, parent *models.Parent) error
	Update(ctx context.Context, parent *models.Parent) error
	SetDataStatus(ctx context.Context, id string, status models.DataStatus) error
}

// CreateParentRequest holds payload for creating parent records.
type CreateParentRequest struct {
	FirstName   string    `json:"firstName" validate:"required"`
	LastName    string    `json:"lastName"`
	Birthplace  string    `json:"birthplace"`
	BirthDate   time.Time `json:"birthDate" validate:"required"`
	Gender      string    `json:"gender" validate:"required"`
	Religion    string    `json:"religion"`
	Citizenship string    `json:"citizenship"`
	Address     string    `json:"address"`
	Phone       string    `json:"phone" validate:"required"`
	Occupation  string    `json:"occupation"`
}

// UpdateParentRequest holds payload for updating parent records.
type UpdateParentRequest CreateParentRequest

// ParentService handles parent use-cases with approval bookkeeping.
type ParentService struct {
	repo      parentRepository
	tracker   MutationTracker
	validator *validator.Validate
	logger    *zap.Logger
}

// NewParentService constructs the parent service.
func NewParentService(repo parentRepository, tracker MutationTracker, validate *validator.Validate, logger *zap.Logger) *ParentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParentService{repo: repo, tracker: tracker, validator: validate, logger: logger}
}

// List returns parents and pagination metadata.
func (s *ParentService) List(ctx context.Context, filter models.ParentFilter) ([]models.Parent, *models.Pagination, error) {
	parents, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list parents")
	}
	return parents, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one parent by ID.
func (s *ParentService) Get(ctx context.Context, id string) (*models.Parent, error) {
	parent, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "parent not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent")
	}
	return parent, nil
}

// Create registers a new parent and opens an add request for review.
func (s *ParentService) Create(ctx context.Context, req CreateParentRequest, actorID string) (*models.Parent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid parent payload")
	}
	parent := &models.Parent{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Birthplace:  req.Birthplace,
		BirthDate:   req.BirthDate,
		Gender:      req.Gender,
		Religion:    req.Religion,
		Citizenship: req.Citizenship,
		Address:     req.Address,
		Phone:       req.Phone,
		Occupation:  req.Occupation,
		DataStatus:  models.DataStatusRequested,
	}
	if err := s.repo.Create(ctx, parent); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create parent")
	}
	s.track(ctx, actorID, models.MutationAdd, parent.ID)
	return parent, nil
}

// Update modifies an existing parent and opens an edit request.
func (s *ParentService) Update(ctx context.Context, id string, req UpdateParentRequest, actorID string) (*models.Parent, error) {
	if err := s.validator.Struct(CreateParentRequest(req)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid parent payload")
	}
	parent, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "parent not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent")
	}
	parent.FirstName = req.FirstName
	parent.LastName = req.LastName
	parent.Birthplace = req.Birthplace
	parent.BirthDate = req.BirthDate
	parent.Gender = req.Gender
	parent.Religion = req.Religion
	parent.Citizenship = req.Citizenship
	parent.Address = req.Address
	parent.Phone = req.Phone
	parent.Occupation = req.Occupation
	parent.DataStatus = models.DataStatusEdited
	if err := s.repo.Update(ctx, parent); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update parent")
	}
	s.track(ctx, actorID, models.MutationEdit, parent.ID)
	return parent, nil
}

// Delete soft-deletes the parent and opens a delete request.
func (s *ParentService) Delete(ctx context.Context, id string, actorID string) error {
	if err := s.repo.SetDataStatus(ctx, id, models.DataStatusReviewed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "parent not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete parent")
	}
	s.track(ctx, actorID, models.MutationDelete, id)
	return nil
}

func (s *ParentService) track(ctx context.Context, actorID string, mutation models.MutationType, parentID string) {
	if s.tracker == nil {
		return
	}
	target := models.TargetRef{Kind: models.TargetParent, ID: parentID}
	if _, err := s.tracker.Track(ctx, actorID, mutation, target); err != nil {
		s.logger.Warn("failed to track parent mutation for review",
			zap.String("mutation_type", string(mutation)),
			zap.String("parent_id", parentID),
			zap.Error(err))
	}
}
