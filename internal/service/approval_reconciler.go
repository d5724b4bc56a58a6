package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/si-yapemri/school-admin-api/internal/models"
	appErrors "github.com/si-yapemri/school-admin-api/pkg/errors"
)

// RecordStore is the slice of a repository the reconciler needs to flow a
// decision back onto the target entity.
type RecordStore interface {
	SetDataStatus(ctx context.Context, id string, status models.DataStatus) error
	HardDelete(ctx context.Context, id string) error
}

// ApprovalReconciler propagates a decided request onto its target record.
// Approving an add or edit marks the record approved; approving a delete
// removes the row for good; any rejection marks the record rejected, which for
// a delete revives the soft-deleted row under a rejected status.
type ApprovalReconciler struct {
	stores map[models.TargetKind]RecordStore
	logger *zap.Logger
}

// NewApprovalReconciler constructs the reconciler over per-kind stores.
func NewApprovalReconciler(stores map[models.TargetKind]RecordStore, logger *zap.Logger) *ApprovalReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalReconciler{stores: stores, logger: logger}
}

// Apply executes the side effect for a decided request. The caller persists
// the decision before calling Apply, so a missing target surfaces as NotFound
// without undoing the decision itself.
func (r *ApprovalReconciler) Apply(ctx context.Context, approval *models.ApprovalRequest) error {
	if approval == nil {
		return appErrors.Clone(appErrors.ErrValidation, "approval is required")
	}
	if !approval.Status.Terminal() {
		return appErrors.Clone(appErrors.ErrValidation, "approval has no decision to apply")
	}

	store, ok := r.stores[approval.TargetKind]
	if !ok {
		return appErrors.Wrap(
			fmt.Errorf("no record store for target kind %q", approval.TargetKind),
			appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "unsupported approval target")
	}

	var err error
	switch {
	case approval.Status == models.ApprovalStatusApproved && approval.MutationType == models.MutationDelete:
		err = store.HardDelete(ctx, approval.TargetID)
	case approval.Status == models.ApprovalStatusApproved:
		err = store.SetDataStatus(ctx, approval.TargetID, models.DataStatusApproved)
	default:
		err = store.SetDataStatus(ctx, approval.TargetID, models.DataStatusRejected)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Warn("approval target no longer exists",
				zap.String("approval_id", approval.ID),
				zap.String("target_kind", string(approval.TargetKind)),
				zap.String("target_id", approval.TargetID))
			return appErrors.Clone(appErrors.ErrNotFound, "approval target no longer exists")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply approval decision")
	}
	return nil
}
