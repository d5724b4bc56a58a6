package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/si-yapemri/school-admin-api/internal/models"
	appErrors "github.com/si-yapemri/school-admin-api/pkg/errors"
)

type recordStoreStub struct {
	statuses map[string]models.DataStatus
	deleted  []string
	err      error
}

func newRecordStoreStub() *recordStoreStub {
	return &recordStoreStub{statuses: make(map[string]models.DataStatus)}
}

func (s *recordStoreStub) SetDataStatus(ctx context.Context, id string, status models.DataStatus) error {
	if s.err != nil {
		return s.err
	}
	s.statuses[id] = status
	return nil
}

func (s *recordStoreStub) HardDelete(ctx context.Context, id string) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func decidedApproval(mutation models.MutationType, status models.ApprovalStatus) *models.ApprovalRequest {
	return &models.ApprovalRequest{
		ID:           "apr-1",
		SeekedBy:     "admin-1",
		MutationType: mutation,
		Status:       status,
		TargetKind:   models.TargetStudent,
		TargetID:     "student-1",
	}
}

func TestApprovalReconcilerApproveAddMarksApproved(t *testing.T) {
	store := newRecordStoreStub()
	reconciler := NewApprovalReconciler(map[models.TargetKind]RecordStore{models.TargetStudent: store}, nil)

	err := reconciler.Apply(context.Background(), decidedApproval(models.MutationAdd, models.ApprovalStatusApproved))
	require.NoError(t, err)
	require.Equal(t, models.DataStatusApproved, store.statuses["student-1"])
	require.Empty(t, store.deleted)
}

func TestApprovalReconcilerApproveEditMarksApproved(t *testing.T) {
	store := newRecordStoreStub()
	reconciler := NewApprovalReconciler(map[models.TargetKind]RecordStore{models.TargetStudent: store}, nil)

	err := reconciler.Apply(context.Background(), decidedApproval(models.MutationEdit, models.ApprovalStatusApproved))
	require.NoError(t, err)
	require.Equal(t, models.DataStatusApproved, store.statuses["student-1"])
}

func TestApprovalReconcilerApproveDeleteRemovesRow(t *testing.T) {
	store := newRecordStoreStub()
	reconciler := NewApprovalReconciler(map[models.TargetKind]RecordStore{models.TargetStudent: store}, nil)

	err := reconciler.Apply(context.Background(), decidedApproval(models.MutationDelete, models.ApprovalStatusApproved))
	require.NoError(t, err)
	require.Equal(t, []string{"student-1"}, store.deleted)
	require.Empty(t, store.statuses)
}

func TestApprovalReconcilerRejectMarksRejected(t *testing.T) {
	for _, mutation := range []models.MutationType{models.MutationAdd, models.MutationEdit, models.MutationDelete} {
		store := newRecordStoreStub()
		reconciler := NewApprovalReconciler(map[models.TargetKind]RecordStore{models.TargetStudent: store}, nil)

		err := reconciler.Apply(context.Background(), decidedApproval(mutation, models.ApprovalStatusRejected))
		require.NoError(t, err)
		require.Equal(t, models.DataStatusRejected, store.statuses["student-1"])
		require.Empty(t, store.deleted)
	}
}

func TestApprovalReconcilerRejectsUndecidedRequest(t *testing.T) {
	reconciler := NewApprovalReconciler(map[models.TargetKind]RecordStore{models.TargetStudent: newRecordStoreStub()}, nil)

	err := reconciler.Apply(context.Background(), decidedApproval(models.MutationEdit, models.ApprovalStatusRequested))
	require.Error(t, err)

	err = reconciler.Apply(context.Background(), nil)
	require.Error(t, err)
}

func TestApprovalReconcilerUnknownTargetKind(t *testing.T) {
	reconciler := NewApprovalReconciler(map[models.TargetKind]RecordStore{}, nil)

	err := reconciler.Apply(context.Background(), decidedApproval(models.MutationEdit, models.ApprovalStatusApproved))
	require.Error(t, err)
}

func TestApprovalReconcilerMissingTargetSurfacesNotFound(t *testing.T) {
	store := newRecordStoreStub()
	store.err = sql.ErrNoRows
	reconciler := NewApprovalReconciler(map[models.TargetKind]RecordStore{models.TargetStudent: store}, nil)

	err := reconciler.Apply(context.Background(), decidedApproval(models.MutationDelete, models.ApprovalStatusApproved))
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
