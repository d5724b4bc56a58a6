package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/si-yapemri/school-admin-api/internal/models"
	appErrors "github.com/si-yapemri/school-admin-api/pkg/errors"
	"github.com/si-yapemri/school-admin-api/pkg/export"
)

type evaluationRepository interface {
	List(ctx context.Context, filter models.EvaluationFilter) ([]models.Evaluation, int, error)
	FindByID(ctx context.Context, id string) (*models.Evaluation, error)
	Create(ctx context.Context, evaluation *models.Evaluation) error
	Update(ctx context.Context, evaluation *models.Evaluation) error
	Delete(ctx context.Context, id string) error
}

type evaluationStudentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// EvaluationAspectInput is one scored aspect in a submission.
type EvaluationAspectInput struct {
	Name  string `json:"name" validate:"required"`
	Score string `json:"score" validate:"required"`
}

// CreateEvaluationRequest holds payload for filing a periodic evaluation.
type CreateEvaluationRequest struct {
	StudentID    string                  `json:"studentId" validate:"required"`
	Grade        string                  `json:"grade" validate:"required"`
	Period       string                  `json:"period" validate:"required"`
	Introduction string                  `json:"introduction" validate:"required"`
	Aspects      []EvaluationAspectInput `json:"aspects" validate:"required,min=1,dive"`
	Closing      string                  `json:"closing"`
}

// UpdateEvaluationRequest holds payload for revising an evaluation.
type UpdateEvaluationRequest CreateEvaluationRequest

// EvaluationService handles periodic student development reports.
type EvaluationService struct {
	repo      evaluationRepository
	students  evaluationStudentLookup
	pdf       pdfRenderer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEvaluationService constructs the evaluation service.
func NewEvaluationService(repo evaluationRepository, students evaluationStudentLookup, validate *validator.Validate, logger *zap.Logger) *EvaluationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvaluationService{
		repo:      repo,
		students:  students,
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
	}
}

// List returns evaluations and pagination metadata.
func (s *EvaluationService) List(ctx context.Context, filter models.EvaluationFilter) ([]models.Evaluation, *models.Pagination, error) {
	evaluations, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list evaluations")
	}
	return evaluations, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one evaluation by ID.
func (s *EvaluationService) Get(ctx context.Context, id string) (*models.Evaluation, error) {
	evaluation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "evaluation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation")
	}
	return evaluation, nil
}

// Create files a new evaluation for a student.
func (s *EvaluationService) Create(ctx context.Context, req CreateEvaluationRequest) (*models.Evaluation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid evaluation payload")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	evaluation := &models.Evaluation{
		StudentID:    req.StudentID,
		Grade:        req.Grade,
		Period:       req.Period,
		Introduction: req.Introduction,
		Aspects:      aspectsFromInput(req.Aspects),
		Closing:      req.Closing,
	}
	if err := s.repo.Create(ctx, evaluation); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create evaluation")
	}
	return evaluation, nil
}

// Update revises an existing evaluation.
func (s *EvaluationService) Update(ctx context.Context, id string, req UpdateEvaluationRequest) (*models.Evaluation, error) {
	if err := s.validator.Struct(CreateEvaluationRequest(req)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid evaluation payload")
	}
	evaluation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	evaluation.StudentID = req.StudentID
	evaluation.Grade = req.Grade
	evaluation.Period = req.Period
	evaluation.Introduction = req.Introduction
	evaluation.Aspects = aspectsFromInput(req.Aspects)
	evaluation.Closing = req.Closing
	if err := s.repo.Update(ctx, evaluation); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update evaluation")
	}
	return evaluation, nil
}

// Delete removes an evaluation.
func (s *EvaluationService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "evaluation not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete evaluation")
	}
	return nil
}

// RenderPDF produces a printable report for one evaluation.
func (s *EvaluationService) RenderPDF(ctx context.Context, id string) ([]byte, string, error) {
	evaluation, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	student, err := s.students.FindByID(ctx, evaluation.StudentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	studentName := evaluation.StudentID
	if student != nil {
		studentName = fmt.Sprintf("%s %s", student.FirstName, student.LastName)
	}

	rows := make([]map[string]string, 0, len(evaluation.Aspects)+2)
	for _, aspect := range evaluation.Aspects {
		rows = append(rows, map[string]string{"Aspect": aspect.Name, "Score": aspect.Score})
	}
	dataset := export.Dataset{
		Headers: []string{"Aspect", "Score"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Evaluation %s - %s (%s)", evaluation.Period, studentName, evaluation.Grade)
	payload, err := s.pdf.Render(dataset, title)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render evaluation report")
	}
	filename := fmt.Sprintf("evaluation_%s_%s.pdf", evaluation.StudentID, evaluation.Period)
	return payload, filename, nil
}

func aspectsFromInput(inputs []EvaluationAspectInput) models.AspectList {
	aspects := make(models.AspectList, 0, len(inputs))
	for _, in := range inputs {
		aspects = append(aspects, models.EvaluationAspect{Name: in.Name, Score: in.Score})
	}
	return aspects
}
