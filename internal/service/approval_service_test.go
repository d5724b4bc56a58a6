package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/si-yapemri/school-admin-api/internal/dto"
	"github.com/si-yapemri/school-admin-api/internal/models"
	"github.com/si-yapemri/school-admin-api/internal/repository"
	appErrors "github.com/si-yapemri/school-admin-api/pkg/errors"
)

type approvalStoreStub struct {
	approvals map[string]*models.ApprovalRequest
	listed    models.ApprovalFilter
	total     int
}

func newApprovalStoreStub() *approvalStoreStub {
	return &approvalStoreStub{approvals: make(map[string]*models.ApprovalRequest)}
}

func (s *approvalStoreStub) GetByID(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	if approval, ok := s.approvals[id]; ok {
		copy := *approval
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *approvalStoreStub) GetDetail(ctx context.Context, id string) (*models.ApprovalDetail, error) {
	if approval, ok := s.approvals[id]; ok {
		return &models.ApprovalDetail{ApprovalRequest: *approval}, nil
	}
	return nil, sql.ErrNoRows
}

func (s *approvalStoreStub) List(ctx context.Context, filter models.ApprovalFilter) ([]models.ApprovalRequest, error) {
	s.listed = filter
	result := make([]models.ApprovalRequest, 0, len(s.approvals))
	for _, approval := range s.approvals {
		result = append(result, *approval)
	}
	return result, nil
}

func (s *approvalStoreStub) Count(ctx context.Context, filter models.ApprovalFilter) (int, error) {
	if s.total > 0 {
		return s.total, nil
	}
	return len(s.approvals), nil
}

func (s *approvalStoreStub) Decide(ctx context.Context, params repository.DecideApprovalParams) (*models.ApprovalRequest, error) {
	approval, ok := s.approvals[params.ID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	approval.Status = params.Outcome
	decidedBy := params.DecidedBy
	if params.Outcome == models.ApprovalStatusApproved {
		approval.ApprovedBy = &decidedBy
		approval.RejectedBy = nil
	} else {
		approval.RejectedBy = &decidedBy
		approval.ApprovedBy = nil
	}
	approval.UpdatedAt = params.DecidedAt
	copy := *approval
	return &copy, nil
}

type applierStub struct {
	applied []*models.ApprovalRequest
	err     error
}

func (a *applierStub) Apply(ctx context.Context, approval *models.ApprovalRequest) error {
	a.applied = append(a.applied, approval)
	return a.err
}

type cacheStub struct {
	entries map[string][]byte
	purged  []string
}

func newCacheStub() *cacheStub {
	return &cacheStub{entries: make(map[string][]byte)}
}

func (c *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *cacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	c.purged = append(c.purged, pattern)
	c.entries = make(map[string][]byte)
	return nil
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type metricsStub struct {
	decisions []string
	cacheOps  []bool
	openSets  []int
}

func (m *metricsStub) RecordDecision(outcome, mutationType string) {
	m.decisions = append(m.decisions, outcome+"/"+mutationType)
}

func (m *metricsStub) RecordCacheOperation(hit bool) {
	m.cacheOps = append(m.cacheOps, hit)
}

func (m *metricsStub) SetOpenApprovals(count int) {
	m.openSets = append(m.openSets, count)
}

func openApproval(id string) *models.ApprovalRequest {
	return &models.ApprovalRequest{
		ID:           id,
		SeekedBy:     "admin-1",
		MutationType: models.MutationEdit,
		Status:       models.ApprovalStatusRequested,
		TargetKind:   models.TargetStudent,
		TargetID:     "student-1",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
}

func TestApprovalServiceDecideApprove(t *testing.T) {
	repo := newApprovalStoreStub()
	repo.approvals["apr-1"] = openApproval("apr-1")
	applier := &applierStub{}
	audit := &auditStub{}
	metrics := &metricsStub{}
	notifier := &notifierCapture{}
	cache := newCacheStub()
	cache.entries["approvals:list:stale"] = []byte(`{}`)
	svc := NewApprovalService(repo, applier, nil,
		WithApprovalCache(cache, time.Minute),
		WithApprovalNotifier(notifier),
		WithApprovalMetrics(metrics),
		WithApprovalAudit(audit),
	)

	decided, err := svc.Decide(context.Background(), "apr-1", models.ApprovalStatusApproved, "super-1")
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusApproved, decided.Status)
	require.NotNil(t, decided.ApprovedBy)
	require.Equal(t, "super-1", *decided.ApprovedBy)
	require.Nil(t, decided.RejectedBy)

	require.Len(t, applier.applied, 1)
	require.Equal(t, []string{"approvals:*"}, cache.purged)
	require.Empty(t, cache.entries)
	require.Equal(t, []string{"approved/edit"}, metrics.decisions)
	require.Equal(t, []int{1}, metrics.openSets)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionApprovalDecide, audit.logs[0].Action)
	require.Len(t, notifier.events, 1)
	require.Equal(t, NotificationApprovalDecided, notifier.events[0].Type)
	require.Equal(t, models.ApprovalStatusApproved, notifier.events[0].Outcome)
}

func TestApprovalServiceDecideRejectClearsOpposite(t *testing.T) {
	repo := newApprovalStoreStub()
	approval := openApproval("apr-1")
	approver := "super-1"
	approval.Status = models.ApprovalStatusApproved
	approval.ApprovedBy = &approver
	repo.approvals["apr-1"] = approval
	svc := NewApprovalService(repo, &applierStub{}, nil)

	// Re-deciding flips the decision and force-clears the opposite reviewer.
	decided, err := svc.Decide(context.Background(), "apr-1", models.ApprovalStatusRejected, "super-2")
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusRejected, decided.Status)
	require.Nil(t, decided.ApprovedBy)
	require.NotNil(t, decided.RejectedBy)
	require.Equal(t, "super-2", *decided.RejectedBy)
}

func TestApprovalServiceDecideValidation(t *testing.T) {
	svc := NewApprovalService(newApprovalStoreStub(), &applierStub{}, nil)

	_, err := svc.Decide(context.Background(), "", models.ApprovalStatusApproved, "super-1")
	require.Error(t, err)

	_, err = svc.Decide(context.Background(), "apr-1", models.ApprovalStatusApproved, "")
	require.Error(t, err)

	_, err = svc.Decide(context.Background(), "apr-1", models.ApprovalStatusReviewed, "super-1")
	require.Error(t, err)
}

func TestApprovalServiceDecideMissingRequest(t *testing.T) {
	svc := NewApprovalService(newApprovalStoreStub(), &applierStub{}, nil)

	_, err := svc.Decide(context.Background(), "ghost", models.ApprovalStatusApproved, "super-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceDecideKeepsDecisionWhenTargetGone(t *testing.T) {
	repo := newApprovalStoreStub()
	repo.approvals["apr-1"] = openApproval("apr-1")
	applier := &applierStub{err: appErrors.Clone(appErrors.ErrNotFound, "approval target no longer exists")}
	svc := NewApprovalService(repo, applier, nil)

	decided, err := svc.Decide(context.Background(), "apr-1", models.ApprovalStatusApproved, "super-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	// The decision itself stands even though the side effect found nothing.
	require.NotNil(t, decided)
	require.Equal(t, models.ApprovalStatusApproved, decided.Status)
	require.Equal(t, models.ApprovalStatusApproved, repo.approvals["apr-1"].Status)
}

func TestApprovalServiceListUnpaged(t *testing.T) {
	repo := newApprovalStoreStub()
	repo.approvals["apr-1"] = openApproval("apr-1")
	svc := NewApprovalService(repo, &applierStub{}, nil)

	approvals, pagination, err := svc.List(context.Background(), dto.ApprovalQuery{
		Status: []models.ApprovalStatus{models.ApprovalStatusRequested},
	})
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	require.Nil(t, pagination)
	require.Zero(t, repo.listed.Limit)
}

func TestApprovalServiceListPaged(t *testing.T) {
	repo := newApprovalStoreStub()
	repo.approvals["apr-1"] = openApproval("apr-1")
	repo.total = 41
	svc := NewApprovalService(repo, &applierStub{}, nil)

	_, pagination, err := svc.List(context.Background(), dto.ApprovalQuery{Page: 3, PageSize: 10})
	require.NoError(t, err)
	require.NotNil(t, pagination)
	require.Equal(t, 3, pagination.Page)
	require.Equal(t, 10, pagination.PageSize)
	require.Equal(t, 41, pagination.TotalCount)
	require.Equal(t, 10, repo.listed.Limit)
	require.Equal(t, 20, repo.listed.Offset)
}

func TestApprovalServiceListServedFromCache(t *testing.T) {
	repo := newApprovalStoreStub()
	repo.approvals["apr-1"] = openApproval("apr-1")
	cache := newCacheStub()
	svc := NewApprovalService(repo, &applierStub{}, nil, WithApprovalCache(cache, time.Minute))

	first, _, err := svc.List(context.Background(), dto.ApprovalQuery{})
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Len(t, cache.entries, 1)

	// A second identical query never reaches the store.
	delete(repo.approvals, "apr-1")
	second, _, err := svc.List(context.Background(), dto.ApprovalQuery{})
	require.NoError(t, err)
	require.Len(t, second, 1)
}

func TestApprovalServiceCountsCacheHitsAndMisses(t *testing.T) {
	repo := newApprovalStoreStub()
	repo.approvals["apr-1"] = openApproval("apr-1")
	cache := newCacheStub()
	metrics := &metricsStub{}
	svc := NewApprovalService(repo, &applierStub{}, nil,
		WithApprovalCache(cache, time.Minute),
		WithApprovalMetrics(metrics),
	)

	_, _, err := svc.List(context.Background(), dto.ApprovalQuery{})
	require.NoError(t, err)
	_, _, err = svc.List(context.Background(), dto.ApprovalQuery{})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "apr-1")
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), "apr-1")
	require.NoError(t, err)

	require.Equal(t, []bool{false, true, false, true}, metrics.cacheOps)
}

func TestApprovalServiceGet(t *testing.T) {
	repo := newApprovalStoreStub()
	repo.approvals["apr-1"] = openApproval("apr-1")
	svc := NewApprovalService(repo, &applierStub{}, nil)

	detail, err := svc.Get(context.Background(), "apr-1")
	require.NoError(t, err)
	require.Equal(t, "apr-1", detail.ID)

	_, err = svc.Get(context.Background(), "ghost")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Get(context.Background(), "")
	require.Error(t, err)
}
