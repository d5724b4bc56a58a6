package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/si-yapemri/school-admin-api/internal/models"
	appErrors "github.com/si-yapemri/school-admin-api/pkg/errors"
)

type accountRepoStub struct {
	accounts  map[string]*models.Account
	emails    map[string]string
	createErr error
}

func newAccountRepoStub() *accountRepoStub {
	return &accountRepoStub{
		accounts: make(map[string]*models.Account),
		emails:   make(map[string]string),
	}
}

func (r *accountRepoStub) List(ctx context.Context, filter models.AccountFilter) ([]models.Account, int, error) {
	result := make([]models.Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		result = append(result, *account)
	}
	return result, len(result), nil
}

func (r *accountRepoStub) FindByID(ctx context.Context, id string) (*models.Account, error) {
	if account, ok := r.accounts[id]; ok {
		copy := *account
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *accountRepoStub) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	id, ok := r.emails[email]
	return ok && id != excludeID, nil
}

func (r *accountRepoStub) Create(ctx context.Context, account *models.Account) error {
	if r.createErr != nil {
		return r.createErr
	}
	if account.ID == "" {
		account.ID = "acc-" + account.Email
	}
	r.accounts[account.ID] = account
	r.emails[account.Email] = account.ID
	return nil
}

func (r *accountRepoStub) Update(ctx context.Context, account *models.Account) error {
	if _, ok := r.accounts[account.ID]; !ok {
		return sql.ErrNoRows
	}
	r.accounts[account.ID] = account
	r.emails[account.Email] = account.ID
	return nil
}

func (r *accountRepoStub) SetDataStatus(ctx context.Context, id string, status models.DataStatus) error {
	account, ok := r.accounts[id]
	if !ok {
		return sql.ErrNoRows
	}
	account.DataStatus = status
	return nil
}

type trackerStub struct {
	tracked []models.MutationType
	targets []models.TargetRef
	err     error
}

func (s *trackerStub) Track(ctx context.Context, seekedBy string, mutation models.MutationType, target models.TargetRef) (*models.ApprovalRequest, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.tracked = append(s.tracked, mutation)
	s.targets = append(s.targets, target)
	return &models.ApprovalRequest{ID: "apr-1", SeekedBy: seekedBy, MutationType: mutation}, nil
}

func TestAccountServiceCreateOpensAddRequest(t *testing.T) {
	repo := newAccountRepoStub()
	tracker := &trackerStub{}
	audit := &auditStub{}
	svc := NewAccountService(repo, tracker, audit, nil, nil)

	account, err := svc.Create(context.Background(), CreateAccountRequest{
		Email:    "  Siti@Example.SCH.id ",
		Password: "rahasia-sekali",
		FullName: "Siti Admin",
		Role:     models.RoleAdmin,
	}, "super-1")
	require.NoError(t, err)
	require.Equal(t, "siti@example.sch.id", account.Email)
	require.Equal(t, models.DataStatusRequested, account.DataStatus)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte("rahasia-sekali")))

	require.Equal(t, []models.MutationType{models.MutationAdd}, tracker.tracked)
	require.Equal(t, models.TargetAccount, tracker.targets[0].Kind)
	require.Equal(t, account.ID, tracker.targets[0].ID)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionProtectedCreate, audit.logs[0].Action)
}

func TestAccountServiceCreateDuplicateEmail(t *testing.T) {
	repo := newAccountRepoStub()
	repo.emails["siti@example.sch.id"] = "acc-1"
	svc := NewAccountService(repo, &trackerStub{}, nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateAccountRequest{
		Email:    "siti@example.sch.id",
		Password: "rahasia-sekali",
		FullName: "Siti Admin",
		Role:     models.RoleAdmin,
	}, "super-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAccountServiceCreateRacingDuplicateEmail(t *testing.T) {
	repo := newAccountRepoStub()
	repo.createErr = &pq.Error{Code: "23505", Constraint: "accounts_email_key"}
	svc := NewAccountService(repo, &trackerStub{}, nil, nil, nil)

	// A concurrent insert can slip between the existence check and the write;
	// the unique index fires and the caller still gets a conflict, not a 500.
	_, err := svc.Create(context.Background(), CreateAccountRequest{
		Email:    "siti@example.sch.id",
		Password: "rahasia-sekali",
		FullName: "Siti Admin",
		Role:     models.RoleAdmin,
	}, "super-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAccountServiceCreateInvalidPayload(t *testing.T) {
	svc := NewAccountService(newAccountRepoStub(), &trackerStub{}, nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateAccountRequest{
		Email:    "not-an-email",
		Password: "short",
		FullName: "",
		Role:     models.UserRole("GUEST"),
	}, "super-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAccountServiceCreateSurvivesTrackerFailure(t *testing.T) {
	repo := newAccountRepoStub()
	tracker := &trackerStub{err: errors.New("approvals table unavailable")}
	svc := NewAccountService(repo, tracker, nil, nil, nil)

	// The entity write is the source of truth. A failed review-bookkeeping
	// write is logged, never propagated.
	account, err := svc.Create(context.Background(), CreateAccountRequest{
		Email:    "budi@example.sch.id",
		Password: "rahasia-sekali",
		FullName: "Budi Staff",
		Role:     models.RoleStaff,
	}, "super-1")
	require.NoError(t, err)
	require.NotNil(t, repo.accounts[account.ID])
}

func TestAccountServiceUpdateOpensEditRequest(t *testing.T) {
	repo := newAccountRepoStub()
	existing := &models.Account{
		ID:         "acc-1",
		Email:      "siti@example.sch.id",
		FullName:   "Siti Admin",
		Role:       models.RoleAdmin,
		DataStatus: models.DataStatusApproved,
	}
	repo.accounts[existing.ID] = existing
	repo.emails[existing.Email] = existing.ID
	tracker := &trackerStub{}
	svc := NewAccountService(repo, tracker, nil, nil, nil)

	updated, err := svc.Update(context.Background(), "acc-1", UpdateAccountRequest{
		Email:    "siti@example.sch.id",
		FullName: "Siti A. Rahma",
		Role:     models.RoleAdmin,
	}, "super-1")
	require.NoError(t, err)
	require.Equal(t, "Siti A. Rahma", updated.FullName)
	require.Equal(t, models.DataStatusEdited, updated.DataStatus)
	require.Equal(t, []models.MutationType{models.MutationEdit}, tracker.tracked)
}

func TestAccountServiceDeleteSoftDeletes(t *testing.T) {
	repo := newAccountRepoStub()
	repo.accounts["acc-1"] = &models.Account{ID: "acc-1", Email: "siti@example.sch.id", DataStatus: models.DataStatusApproved}
	tracker := &trackerStub{}
	svc := NewAccountService(repo, tracker, nil, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "acc-1", "super-1"))
	require.Equal(t, models.DataStatusReviewed, repo.accounts["acc-1"].DataStatus)
	require.Equal(t, []models.MutationType{models.MutationDelete}, tracker.tracked)

	err := svc.Delete(context.Background(), "ghost", "super-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
