package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/si-yapemri/school-admin-api/internal/models"
)

func newApprovalRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func approvalRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "seeked_by", "approved_by", "rejected_by", "mutation_type", "status", "target_kind", "target_id", "created_at", "updated_at"})
}

func TestApprovalRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newApprovalRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO approvals")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	approval, err := models.NewApprovalRequest("admin-1", models.MutationAdd, models.TargetRef{Kind: models.TargetStudent, ID: "student-1"})
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), approval))
	require.NotEmpty(t, approval.ID)
	require.Equal(t, models.ApprovalStatusRequested, approval.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryUpsertOpenMergesPending(t *testing.T) {
	db, mock, cleanup := newApprovalRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	now := time.Now().UTC()
	// The conflict path returns the pre-existing row: same id, mutation type
	// overwritten by the new submission.
	rows := approvalRows().
		AddRow("apr-existing", "admin-1", nil, nil, "delete", "requested", "student", "student-1", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (seeked_by, target_kind, target_id) WHERE status = 'requested'")).
		WillReturnRows(rows)

	approval, err := models.NewApprovalRequest("admin-1", models.MutationDelete, models.TargetRef{Kind: models.TargetStudent, ID: "student-1"})
	require.NoError(t, err)
	require.NoError(t, repo.UpsertOpen(context.Background(), approval))
	require.Equal(t, "apr-existing", approval.ID)
	require.Equal(t, models.MutationDelete, approval.MutationType)
	require.Equal(t, models.ApprovalStatusRequested, approval.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryDecideApprove(t *testing.T) {
	db, mock, cleanup := newApprovalRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	now := time.Now().UTC()
	reviewer := "super-1"
	rows := approvalRows().
		AddRow("apr-1", "admin-1", reviewer, nil, "edit", "approved", "staff", "staff-2", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE approvals SET")).
		WithArgs("apr-1", models.ApprovalStatusApproved, reviewer, now).
		WillReturnRows(rows)

	decided, err := repo.Decide(context.Background(), DecideApprovalParams{
		ID:        "apr-1",
		Outcome:   models.ApprovalStatusApproved,
		DecidedBy: reviewer,
		DecidedAt: now,
	})
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusApproved, decided.Status)
	require.NotNil(t, decided.ApprovedBy)
	require.Equal(t, reviewer, *decided.ApprovedBy)
	require.Nil(t, decided.RejectedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryDecideMissing(t *testing.T) {
	db, mock, cleanup := newApprovalRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE approvals SET")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Decide(context.Background(), DecideApprovalParams{
		ID:        "missing",
		Outcome:   models.ApprovalStatusRejected,
		DecidedBy: "super-1",
		DecidedAt: time.Now().UTC(),
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newApprovalRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	now := time.Now().UTC()
	rows := approvalRows().
		AddRow("apr-1", "admin-1", nil, nil, "edit", "requested", "student", "student-1", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM approvals")).
		WithArgs(models.ApprovalStatusRequested, models.MutationEdit, models.TargetStudent).
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.ApprovalFilter{
		Status:       []models.ApprovalStatus{models.ApprovalStatusRequested},
		MutationType: models.MutationEdit,
		TargetKind:   models.TargetStudent,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "apr-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryListPaged(t *testing.T) {
	db, mock, cleanup := newApprovalRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	now := time.Now().UTC()
	rows := approvalRows().
		AddRow("apr-2", "admin-1", nil, nil, "add", "requested", "parent", "parent-1", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT 10 OFFSET 20")).
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.ApprovalFilter{Limit: 10, Offset: 20})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryGetDetail(t *testing.T) {
	db, mock, cleanup := newApprovalRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "seeked_by", "approved_by", "rejected_by", "mutation_type", "status",
		"target_kind", "target_id", "created_at", "updated_at",
		"seeked_by_name", "seeked_by_email", "decided_by_name", "decided_by_email",
	}).AddRow("apr-1", "admin-1", "super-1", nil, "edit", "approved", "staff", "staff-2", now, now,
		"Siti Admin", "siti@example.sch.id", "Pak Super", "super@example.sch.id")
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN accounts")).
		WithArgs("apr-1").
		WillReturnRows(rows)

	detail, err := repo.GetDetail(context.Background(), "apr-1")
	require.NoError(t, err)
	require.NotNil(t, detail.SeekedByName)
	require.Equal(t, "Siti Admin", *detail.SeekedByName)
	require.NotNil(t, detail.DecidedByEmail)
	require.Equal(t, "super@example.sch.id", *detail.DecidedByEmail)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryCount(t *testing.T) {
	db, mock, cleanup := newApprovalRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM approvals")).
		WithArgs("admin-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	total, err := repo.Count(context.Background(), models.ApprovalFilter{SeekedBy: "admin-1"})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
