package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/si-yapemri/school-admin-api/internal/dto"
	"github.com/si-yapemri/school-admin-api/internal/models"
	"github.com/si-yapemri/school-admin-api/internal/repository"
	appErrors "github.com/si-yapemri/school-admin-api/pkg/errors"
)

const approvalCachePrefix = "approvals:"

type approvalStore interface {
	GetByID(ctx context.Context, id string) (*models.ApprovalRequest, error)
	GetDetail(ctx context.Context, id string) (*models.ApprovalDetail, error)
	List(ctx context.Context, filter models.ApprovalFilter) ([]models.ApprovalRequest, error)
	Count(ctx context.Context, filter models.ApprovalFilter) (int, error)
	Decide(ctx context.Context, params repository.DecideApprovalParams) (*models.ApprovalRequest, error)
}

type decisionApplier interface {
	Apply(ctx context.Context, approval *models.ApprovalRequest) error
}

type approvalCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type approvalMetrics interface {
	RecordDecision(outcome, mutationType string)
	RecordCacheOperation(hit bool)
	SetOpenApprovals(count int)
}

// ApprovalService exposes the review side of the workflow: inspecting pending
// requests and deciding them.
type ApprovalService struct {
	repo     approvalStore
	applier  decisionApplier
	cache    approvalCache
	audit    auditLogger
	notifier Notifier
	metrics  approvalMetrics
	logger   *zap.Logger
	cacheTTL time.Duration
}

// ApprovalServiceOption configures the service.
type ApprovalServiceOption func(*ApprovalService)

// WithApprovalCache enables read caching with the given TTL.
func WithApprovalCache(cache approvalCache, ttl time.Duration) ApprovalServiceOption {
	return func(s *ApprovalService) {
		s.cache = cache
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithApprovalNotifier sets the fire-and-forget decision hook.
func WithApprovalNotifier(notifier Notifier) ApprovalServiceOption {
	return func(s *ApprovalService) {
		s.notifier = notifier
	}
}

// WithApprovalMetrics sets the decision counter, cache hit/miss counters and
// the open-request gauge.
func WithApprovalMetrics(metrics approvalMetrics) ApprovalServiceOption {
	return func(s *ApprovalService) {
		s.metrics = metrics
	}
}

// WithApprovalAudit sets the audit trail sink.
func WithApprovalAudit(audit auditLogger) ApprovalServiceOption {
	return func(s *ApprovalService) {
		s.audit = audit
	}
}

// NewApprovalService constructs the service.
func NewApprovalService(repo approvalStore, applier decisionApplier, logger *zap.Logger, opts ...ApprovalServiceOption) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ApprovalService{
		repo:     repo,
		applier:  applier,
		logger:   logger,
		cacheTTL: 2 * time.Minute,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// List returns approvals matching the query, newest first. Pagination metadata
// is only computed for paged queries.
func (s *ApprovalService) List(ctx context.Context, query dto.ApprovalQuery) ([]models.ApprovalRequest, *models.Pagination, error) {
	filter := models.ApprovalFilter{
		Status:       query.Status,
		MutationType: query.MutationType,
		SeekedBy:     query.SeekedBy,
		TargetKind:   query.TargetKind,
		TargetID:     query.TargetID,
	}
	var pagination *models.Pagination
	if query.Page > 0 || query.PageSize > 0 {
		page := query.Page
		if page < 1 {
			page = 1
		}
		size := query.PageSize
		if size <= 0 {
			size = 20
		}
		filter.Limit = size
		filter.Offset = (page - 1) * size
		pagination = &models.Pagination{Page: page, PageSize: size}
	}

	key := approvalListCacheKey(filter)
	if s.cache != nil {
		var cached approvalListPayload
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.recordCacheOperation(true)
			if pagination != nil {
				pagination.TotalCount = cached.Total
				return cached.Items, pagination, nil
			}
			return cached.Items, nil, nil
		}
		s.recordCacheOperation(false)
	}

	approvals, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approvals")
	}
	total := len(approvals)
	if pagination != nil {
		total, err = s.repo.Count(ctx, filter)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count approvals")
		}
		pagination.TotalCount = total
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, approvalListPayload{Items: approvals, Total: total}, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache approval list", zap.Error(err))
		}
	}
	return approvals, pagination, nil
}

// Get returns one approval with requester and decider biodata resolved.
func (s *ApprovalService) Get(ctx context.Context, id string) (*models.ApprovalDetail, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "approval id is required")
	}
	key := approvalCachePrefix + "detail:" + id
	if s.cache != nil {
		var cached models.ApprovalDetail
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.recordCacheOperation(true)
			return &cached, nil
		}
		s.recordCacheOperation(false)
	}
	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "approval not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, detail, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache approval detail", zap.Error(err))
		}
	}
	return detail, nil
}

// Decide records the reviewer outcome and then flows it onto the target
// record. The decision is persisted first: if the target has since vanished
// the caller gets NotFound while the request stays decided. Re-deciding a
// request is allowed and flips the decision fields atomically.
func (s *ApprovalService) Decide(ctx context.Context, id string, outcome models.ApprovalStatus, reviewerID string) (*models.ApprovalRequest, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "approval id is required")
	}
	if reviewerID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "reviewer identity is required")
	}
	if !outcome.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "outcome must be approved or rejected")
	}

	decided, err := s.repo.Decide(ctx, repository.DecideApprovalParams{
		ID:        id,
		Outcome:   outcome,
		DecidedBy: reviewerID,
		DecidedAt: time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "approval not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}

	s.invalidateCache(ctx)
	if s.metrics != nil {
		s.metrics.RecordDecision(string(decided.Status), string(decided.MutationType))
		s.refreshOpenGauge(ctx)
	}
	s.emitAudit(ctx, &models.AuditLog{
		ActorID:    &reviewerID,
		Action:     models.AuditActionApprovalDecide,
		Resource:   "approval",
		ResourceID: &decided.ID,
		Detail:     []byte(fmt.Sprintf(`{"outcome":%q,"mutationType":%q}`, decided.Status, decided.MutationType)),
	})
	if s.notifier != nil {
		s.notifier.Notify(NotificationEvent{
			Type:       NotificationApprovalDecided,
			ApprovalID: decided.ID,
			ActorID:    reviewerID,
			Mutation:   decided.MutationType,
			Outcome:    decided.Status,
			TargetKind: decided.TargetKind,
			TargetID:   decided.TargetID,
		})
	}

	if err := s.applier.Apply(ctx, decided); err != nil {
		return decided, err
	}
	return decided, nil
}

func (s *ApprovalService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, approvalCachePrefix+"*"); err != nil {
		s.logger.Warn("failed to invalidate approval cache", zap.Error(err))
	}
}

func (s *ApprovalService) recordCacheOperation(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(hit)
	}
}

func (s *ApprovalService) refreshOpenGauge(ctx context.Context) {
	open, err := s.repo.Count(ctx, models.ApprovalFilter{Status: []models.ApprovalStatus{models.ApprovalStatusRequested}})
	if err != nil {
		s.logger.Warn("failed to count open approvals", zap.Error(err))
		return
	}
	s.metrics.SetOpenApprovals(open)
}

func (s *ApprovalService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = "approval-service"
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

type approvalListPayload struct {
	Items []models.ApprovalRequest `json:"items"`
	Total int                      `json:"total"`
}

func approvalListCacheKey(filter models.ApprovalFilter) string {
	statuses := make([]string, len(filter.Status))
	for i, status := range filter.Status {
		statuses[i] = string(status)
	}
	return fmt.Sprintf("%slist:%s:%s:%s:%s:%s:%d:%d",
		approvalCachePrefix,
		strings.Join(statuses, ","),
		filter.MutationType,
		filter.SeekedBy,
		filter.TargetKind,
		filter.TargetID,
		filter.Limit,
		filter.Offset,
	)
}
