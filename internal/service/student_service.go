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

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByNIS(ctx context.Context, nis, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	SetDataStatus(ctx context.Context, id string, status models.DataStatus) error
}

// CreateStudentRequest holds payload for creating students.
type CreateStudentRequest struct {
	NIS         string    `json:"nis" validate:"required"`
	FirstName   string    `json:"firstName" validate:"required"`
	LastName    string    `json:"lastName"`
	Birthplace  string    `json:"birthplace"`
	BirthDate   time.Time `json:"birthDate" validate:"required"`
	Gender      string    `json:"gender" validate:"required"`
	Religion    string    `json:"religion"`
	Citizenship string    `json:"citizenship"`
	Address     string    `json:"address"`
	Grade       string    `json:"grade" validate:"required"`
	ParentID    *string   `json:"parentId"`
}

// UpdateStudentRequest holds payload for updating students.
type UpdateStudentRequest CreateStudentRequest

// StudentService handles student use-cases with approval bookkeeping.
type StudentService struct {
	repo      studentRepository
	tracker   MutationTracker
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, tracker MutationTracker, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, tracker: tracker, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one student by ID.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new student and opens an add request for review.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest, actorID string) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	exists, err := s.repo.ExistsByNIS(ctx, req.NIS, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate nis")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "nis already used")
	}
	student := &models.Student{
		NIS:         req.NIS,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Birthplace:  req.Birthplace,
		BirthDate:   req.BirthDate,
		Gender:      req.Gender,
		Religion:    req.Religion,
		Citizenship: req.Citizenship,
		Address:     req.Address,
		Grade:       req.Grade,
		ParentID:    req.ParentID,
		DataStatus:  models.DataStatusRequested,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.track(ctx, actorID, models.MutationAdd, student.ID)
	return student, nil
}

// Update modifies an existing student and opens an edit request.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest, actorID string) (*models.Student, error) {
	if err := s.validator.Struct(CreateStudentRequest(req)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	exists, err := s.repo.ExistsByNIS(ctx, req.NIS, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate nis")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "nis already used")
	}
	student.NIS = req.NIS
	student.FirstName = req.FirstName
	student.LastName = req.LastName
	student.Birthplace = req.Birthplace
	student.BirthDate = req.BirthDate
	student.Gender = req.Gender
	student.Religion = req.Religion
	student.Citizenship = req.Citizenship
	student.Address = req.Address
	student.Grade = req.Grade
	student.ParentID = req.ParentID
	student.DataStatus = models.DataStatusEdited
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	s.track(ctx, actorID, models.MutationEdit, student.ID)
	return student, nil
}

// Delete soft-deletes the student and opens a delete request.
func (s *StudentService) Delete(ctx context.Context, id string, actorID string) error {
	if err := s.repo.SetDataStatus(ctx, id, models.DataStatusReviewed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.track(ctx, actorID, models.MutationDelete, id)
	return nil
}

func (s *StudentService) track(ctx context.Context, actorID string, mutation models.MutationType, studentID string) {
	if s.tracker == nil {
		return
	}
	target := models.TargetRef{Kind: models.TargetStudent, ID: studentID}
	if _, err := s.tracker.Track(ctx, actorID, mutation, target); err != nil {
		s.logger.Warn("failed to track student mutation for review",
			zap.String("mutation_type", string(mutation)),
			zap.String("student_id", studentID),
			zap.Error(err))
	}
}
