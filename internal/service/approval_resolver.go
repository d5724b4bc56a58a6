package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/si-yapemri/school-admin-api/internal/models"
	appErrors "github.com/si-yapemri/school-admin-api/pkg/errors"
)

type approvalWriter interface {
	Create(ctx context.Context, approval *models.ApprovalRequest) error
	UpsertOpen(ctx context.Context, approval *models.ApprovalRequest) error
	Count(ctx context.Context, filter models.ApprovalFilter) (int, error)
}

// MutationTracker records that an actor touched a protected entity and needs
// review. Entity services call it after their own write succeeds.
type MutationTracker interface {
	Track(ctx context.Context, seekedBy string, mutation models.MutationType, target models.TargetRef) (*models.ApprovalRequest, error)
}

type openApprovalsGauge interface {
	SetOpenApprovals(count int)
}

// ApprovalResolver guarantees at most one open request per (actor, target)
// pair for edits and deletes. An add always opens a fresh request: a created
// entity has no prior open slot to merge into.
type ApprovalResolver struct {
	repo     approvalWriter
	notifier Notifier
	cache    approvalCache
	metrics  openApprovalsGauge
	logger   *zap.Logger
}

// ApprovalResolverOption configures the resolver.
type ApprovalResolverOption func(*ApprovalResolver)

// WithResolverCache purges cached approval reads after every tracked write.
// Without it a merged request keeps serving its superseded mutation type from
// cache until the TTL expires.
func WithResolverCache(cache approvalCache) ApprovalResolverOption {
	return func(r *ApprovalResolver) {
		r.cache = cache
	}
}

// WithResolverMetrics refreshes the open-request gauge after every tracked
// write.
func WithResolverMetrics(metrics openApprovalsGauge) ApprovalResolverOption {
	return func(r *ApprovalResolver) {
		r.metrics = metrics
	}
}

// NewApprovalResolver constructs the resolver. A nil notifier disables event
// emission.
func NewApprovalResolver(repo approvalWriter, notifier Notifier, logger *zap.Logger, opts ...ApprovalResolverOption) *ApprovalResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	resolver := &ApprovalResolver{repo: repo, notifier: notifier, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(resolver)
		}
	}
	return resolver
}

// Track opens or merges an approval request for the mutation. Repeated edits
// by the same actor on the same target collapse into the existing open
// request, overwriting its mutation type; a later delete likewise absorbs a
// pending edit. Requests already decided never absorb new submissions.
func (r *ApprovalResolver) Track(ctx context.Context, seekedBy string, mutation models.MutationType, target models.TargetRef) (*models.ApprovalRequest, error) {
	approval, err := models.NewApprovalRequest(seekedBy, mutation, target)
	if err != nil {
		return nil, err
	}

	switch mutation {
	case models.MutationAdd:
		err = r.repo.Create(ctx, approval)
	default:
		err = r.repo.UpsertOpen(ctx, approval)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record approval request")
	}

	// Reviewers must never read a superseded request from cache: a merge that
	// flips edit to delete changes what an approval will do.
	if r.cache != nil {
		if err := r.cache.DeleteByPattern(ctx, approvalCachePrefix+"*"); err != nil {
			r.logger.Warn("failed to invalidate approval cache", zap.Error(err))
		}
	}
	r.refreshOpenGauge(ctx)

	if r.notifier != nil {
		r.notifier.Notify(NotificationEvent{
			Type:       NotificationApprovalTracked,
			ApprovalID: approval.ID,
			ActorID:    seekedBy,
			Mutation:   approval.MutationType,
			TargetKind: approval.TargetKind,
			TargetID:   approval.TargetID,
		})
	}
	return approval, nil
}

func (r *ApprovalResolver) refreshOpenGauge(ctx context.Context) {
	if r.metrics == nil {
		return
	}
	open, err := r.repo.Count(ctx, models.ApprovalFilter{Status: []models.ApprovalStatus{models.ApprovalStatusRequested}})
	if err != nil {
		r.logger.Warn("failed to count open approvals", zap.Error(err))
		return
	}
	r.metrics.SetOpenApprovals(open)
}
