package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/si-yapemri/school-admin-api/internal/models"
	appErrors "github.com/si-yapemri/school-admin-api/pkg/errors"
)

type authRepoStub struct {
	accounts  map[string]*models.Account
	lastLogin map[string]time.Time
	logs      []*models.AuditLog
}

func newAuthRepoStub() *authRepoStub {
	return &authRepoStub{
		accounts:  make(map[string]*models.Account),
		lastLogin: make(map[string]time.Time),
	}
}

func (r *authRepoStub) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	for _, account := range r.accounts {
		if account.Email == email {
			return account, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *authRepoStub) FindByID(ctx context.Context, id string) (*models.Account, error) {
	if account, ok := r.accounts[id]; ok {
		return account, nil
	}
	return nil, sql.ErrNoRows
}

func (r *authRepoStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	r.lastLogin[id] = ts
	return nil
}

func (r *authRepoStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func authTestConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "school-admin-api",
	}
}

func seedAccount(t *testing.T, repo *authRepoStub, status models.DataStatus) *models.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("rahasia-sekali"), bcrypt.MinCost)
	require.NoError(t, err)
	account := &models.Account{
		ID:           "acc-1",
		Email:        "siti@example.sch.id",
		PasswordHash: string(hash),
		FullName:     "Siti Admin",
		Role:         models.RoleAdmin,
		DataStatus:   status,
	}
	repo.accounts[account.ID] = account
	return account
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := newAuthRepoStub()
	account := seedAccount(t, repo, models.DataStatusApproved)
	svc := NewAuthService(repo, nil, nil, authTestConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    account.Email,
		Password: "rahasia-sekali",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.Equal(t, int64(3600), resp.ExpiresIn)
	require.Equal(t, account.ID, resp.Account.ID)
	require.Contains(t, repo.lastLogin, account.ID)
	require.Len(t, repo.logs, 1)
	require.Equal(t, models.AuditActionLogin, repo.logs[0].Action)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, account.ID, claims.AccountID)
	require.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := newAuthRepoStub()
	account := seedAccount(t, repo, models.DataStatusApproved)
	svc := NewAuthService(repo, nil, nil, authTestConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    account.Email,
		Password: "salah",
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	svc := NewAuthService(newAuthRepoStub(), nil, nil, authTestConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ghost@example.sch.id",
		Password: "rahasia-sekali",
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	for _, status := range []models.DataStatus{models.DataStatusRejected, models.DataStatusReviewed} {
		repo := newAuthRepoStub()
		account := seedAccount(t, repo, status)
		svc := NewAuthService(repo, nil, nil, authTestConfig())

		_, err := svc.Login(context.Background(), models.LoginRequest{
			Email:    account.Email,
			Password: "rahasia-sekali",
		})
		require.Error(t, err)
		require.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
	}
}

func TestAuthServiceValidateTokenRejectsTampered(t *testing.T) {
	repo := newAuthRepoStub()
	account := seedAccount(t, repo, models.DataStatusApproved)
	svc := NewAuthService(repo, nil, nil, authTestConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    account.Email,
		Password: "rahasia-sekali",
	})
	require.NoError(t, err)

	other := NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret: "another-secret",
		AccessTokenExpiry: time.Hour,
	})
	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)

	_, err = svc.ValidateToken("not.a.token")
	require.Error(t, err)
}
