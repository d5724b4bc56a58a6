package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/si-yapemri/school-admin-api/internal/models"
	"github.com/si-yapemri/school-admin-api/internal/repository"
	appErrors "github.com/si-yapemri/school-admin-api/pkg/errors"
)

type accountRepository interface {
	List(ctx context.Context, filter models.AccountFilter) ([]models.Account, int, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, account *models.Account) error
	Update(ctx context.Context, account *models.Account) error
	SetDataStatus(ctx context.Context, id string, status models.DataStatus) error
}

// CreateAccountRequest holds payload for creating accounts.
type CreateAccountRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=8"`
	FullName string          `json:"fullName" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required,oneof=SUPERADMIN ADMIN STAFF"`
	Picture  string          `json:"picture"`
}

// UpdateAccountRequest holds payload for updating accounts. An empty password
// leaves the current hash untouched.
type UpdateAccountRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"omitempty,min=8"`
	FullName string          `json:"fullName" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required,oneof=SUPERADMIN ADMIN STAFF"`
	Picture  string          `json:"picture"`
}

// AccountService handles account use-cases. Writes land immediately and a
// review request is opened alongside; a failed bookkeeping write never rolls
// the entity change back.
type AccountService struct {
	repo      accountRepository
	tracker   MutationTracker
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAccountService constructs the account service.
func NewAccountService(repo accountRepository, tracker MutationTracker, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *AccountService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{repo: repo, tracker: tracker, audit: audit, validator: validate, logger: logger}
}

// List returns accounts and pagination metadata.
func (s *AccountService) List(ctx context.Context, filter models.AccountFilter) ([]models.Account, *models.Pagination, error) {
	accounts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list accounts")
	}
	return accounts, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one account by ID.
func (s *AccountService) Get(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	return account, nil
}

// Create registers a new account and opens an add request for review.
func (s *AccountService) Create(ctx context.Context, req CreateAccountRequest, actorID string) (*models.Account, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid account payload")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	exists, err := s.repo.ExistsByEmail(ctx, email, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already used")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	account := &models.Account{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         req.Role,
		Picture:      req.Picture,
		DataStatus:   models.DataStatusRequested,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		// A racing insert can beat the existence check; the unique index is
		// the authority.
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already used")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
	}
	s.track(ctx, actorID, models.MutationAdd, models.TargetRef{Kind: models.TargetAccount, ID: account.ID})
	s.emitProtectedAudit(ctx, actorID, models.AuditActionProtectedCreate, "account", account.ID)
	return account, nil
}

// Update modifies an existing account and opens an edit request for review.
func (s *AccountService) Update(ctx context.Context, id string, req UpdateAccountRequest, actorID string) (*models.Account, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid account payload")
	}
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	exists, err := s.repo.ExistsByEmail(ctx, email, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already used")
	}
	account.Email = email
	account.FullName = req.FullName
	account.Role = req.Role
	account.Picture = req.Picture
	account.DataStatus = models.DataStatusEdited
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		account.PasswordHash = string(hash)
	}
	if err := s.repo.Update(ctx, account); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already used")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update account")
	}
	s.track(ctx, actorID, models.MutationEdit, models.TargetRef{Kind: models.TargetAccount, ID: account.ID})
	s.emitProtectedAudit(ctx, actorID, models.AuditActionProtectedUpdate, "account", account.ID)
	return account, nil
}

// Delete soft-deletes the account and opens a delete request. The row only
// disappears if a reviewer approves the deletion.
func (s *AccountService) Delete(ctx context.Context, id string, actorID string) error {
	if err := s.repo.SetDataStatus(ctx, id, models.DataStatusReviewed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete account")
	}
	s.track(ctx, actorID, models.MutationDelete, models.TargetRef{Kind: models.TargetAccount, ID: id})
	s.emitProtectedAudit(ctx, actorID, models.AuditActionProtectedDelete, "account", id)
	return nil
}

func (s *AccountService) track(ctx context.Context, actorID string, mutation models.MutationType, target models.TargetRef) {
	if s.tracker == nil {
		return
	}
	if _, err := s.tracker.Track(ctx, actorID, mutation, target); err != nil {
		s.logger.Warn("failed to track mutation for review",
			zap.String("mutation_type", string(mutation)),
			zap.String("target_kind", string(target.Kind)),
			zap.String("target_id", target.ID),
			zap.Error(err))
	}
}

func (s *AccountService) emitProtectedAudit(ctx context.Context, actorID, action, resource, resourceID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
		IPAddress:  "system",
		UserAgent:  "account-service",
	}
	if actorID != "" {
		log.ActorID = &actorID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func paginationFor(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
