package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/si-yapemri/school-admin-api/internal/models"
	appErrors "github.com/si-yapemri/school-admin-api/pkg/errors"
	"github.com/si-yapemri/school-admin-api/pkg/export"
)

type registrationRepository interface {
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, int, error)
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	Create(ctx context.Context, registration *models.Registration) error
	Update(ctx context.Context, registration *models.Registration) error
	Delete(ctx context.Context, id string) error
}

// SubmitRegistrationRequest is the public enrollment interest form.
type SubmitRegistrationRequest struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"required"`
	Address     string `json:"address"`
	NumChildren int    `json:"numChildren" validate:"required,gt=0"`
	AgeChildren string `json:"ageChildren"`
	Grade       string `json:"grade" validate:"required"`
	Reason      string `json:"reason"`
}

// UpdateRegistrationRequest revises a submitted form.
type UpdateRegistrationRequest SubmitRegistrationRequest

// RegistrationService handles enrollment interest forms.
type RegistrationService struct {
	repo      registrationRepository
	csv       csvRenderer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRegistrationService constructs the registration service.
func NewRegistrationService(repo registrationRepository, validate *validator.Validate, logger *zap.Logger) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		repo:      repo,
		csv:       export.NewCSVExporter(),
		validator: validate,
		logger:    logger,
	}
}

// List returns registrations and pagination metadata.
func (s *RegistrationService) List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, *models.Pagination, error) {
	registrations, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	return registrations, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one registration by ID.
func (s *RegistrationService) Get(ctx context.Context, id string) (*models.Registration, error) {
	registration, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	return registration, nil
}

// Submit stores a new registration form.
func (s *RegistrationService) Submit(ctx context.Context, req SubmitRegistrationRequest) (*models.Registration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	registration := &models.Registration{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
		NumChildren: req.NumChildren,
		AgeChildren: req.AgeChildren,
		Grade:       req.Grade,
		Reason:      req.Reason,
	}
	if err := s.repo.Create(ctx, registration); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create registration")
	}
	return registration, nil
}

// Update revises a submitted form.
func (s *RegistrationService) Update(ctx context.Context, id string, req UpdateRegistrationRequest) (*models.Registration, error) {
	if err := s.validator.Struct(SubmitRegistrationRequest(req)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	registration, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	registration.Name = req.Name
	registration.Email = req.Email
	registration.Phone = req.Phone
	registration.Address = req.Address
	registration.NumChildren = req.NumChildren
	registration.AgeChildren = req.AgeChildren
	registration.Grade = req.Grade
	registration.Reason = req.Reason
	if err := s.repo.Update(ctx, registration); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update registration")
	}
	return registration, nil
}

// Delete removes a registration form.
func (s *RegistrationService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete registration")
	}
	return nil
}

// ExportCSV renders the filtered registrations as a CSV document.
func (s *RegistrationService) ExportCSV(ctx context.Context, filter models.RegistrationFilter) ([]byte, error) {
	filter.Page = 1
	filter.PageSize = 100
	var all []models.Registration
	for {
		registrations, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
		}
		all = append(all, registrations...)
		if len(all) >= total || len(registrations) == 0 {
			break
		}
		filter.Page++
	}

	rows := make([]map[string]string, 0, len(all))
	for _, r := range all {
		rows = append(rows, map[string]string{
			"Name":         r.Name,
			"Email":        r.Email,
			"Phone":        r.Phone,
			"Children":     fmt.Sprintf("%d", r.NumChildren),
			"Ages":         r.AgeChildren,
			"Grade":        r.Grade,
			"Submitted At": r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Name", "Email", "Phone", "Children", "Ages", "Grade", "Submitted At"},
		Rows:    rows,
	}
	payload, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render registration export")
	}
	return payload, nil
}
