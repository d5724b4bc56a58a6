package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/si-yapemri/school-admin-api/internal/models"
)

type approvalWriterStub struct {
	created  []*models.ApprovalRequest
	upserted []*models.ApprovalRequest
	err      error
}

func (w *approvalWriterStub) Create(ctx context.Context, approval *models.ApprovalRequest) error {
	if w.err != nil {
		return w.err
	}
	approval.ID = "apr-created"
	w.created = append(w.created, approval)
	return nil
}

func (w *approvalWriterStub) UpsertOpen(ctx context.Context, approval *models.ApprovalRequest) error {
	if w.err != nil {
		return w.err
	}
	approval.ID = "apr-merged"
	w.upserted = append(w.upserted, approval)
	return nil
}

func (w *approvalWriterStub) Count(ctx context.Context, filter models.ApprovalFilter) (int, error) {
	return len(w.created) + len(w.upserted), nil
}

type notifierCapture struct {
	events []NotificationEvent
}

func (n *notifierCapture) Notify(event NotificationEvent) {
	n.events = append(n.events, event)
}

func TestApprovalResolverTrackAddAlwaysCreates(t *testing.T) {
	writer := &approvalWriterStub{}
	notifier := &notifierCapture{}
	resolver := NewApprovalResolver(writer, notifier, nil)

	approval, err := resolver.Track(context.Background(), "admin-1", models.MutationAdd,
		models.TargetRef{Kind: models.TargetStudent, ID: "student-1"})
	require.NoError(t, err)
	require.Len(t, writer.created, 1)
	require.Empty(t, writer.upserted)
	require.Equal(t, models.ApprovalStatusRequested, approval.Status)

	require.Len(t, notifier.events, 1)
	require.Equal(t, NotificationApprovalTracked, notifier.events[0].Type)
	require.Equal(t, "apr-created", notifier.events[0].ApprovalID)
	require.Equal(t, models.TargetStudent, notifier.events[0].TargetKind)
}

func TestApprovalResolverTrackEditAndDeleteUpsert(t *testing.T) {
	writer := &approvalWriterStub{}
	resolver := NewApprovalResolver(writer, nil, nil)
	target := models.TargetRef{Kind: models.TargetStaff, ID: "staff-1"}

	_, err := resolver.Track(context.Background(), "admin-1", models.MutationEdit, target)
	require.NoError(t, err)
	_, err = resolver.Track(context.Background(), "admin-1", models.MutationDelete, target)
	require.NoError(t, err)

	require.Empty(t, writer.created)
	require.Len(t, writer.upserted, 2)
	require.Equal(t, models.MutationEdit, writer.upserted[0].MutationType)
	require.Equal(t, models.MutationDelete, writer.upserted[1].MutationType)
}

func TestApprovalResolverTrackRejectsInvalidInput(t *testing.T) {
	resolver := NewApprovalResolver(&approvalWriterStub{}, nil, nil)

	_, err := resolver.Track(context.Background(), "", models.MutationAdd,
		models.TargetRef{Kind: models.TargetParent, ID: "parent-1"})
	require.Error(t, err)

	_, err = resolver.Track(context.Background(), "admin-1", models.MutationType("rename"),
		models.TargetRef{Kind: models.TargetParent, ID: "parent-1"})
	require.Error(t, err)

	_, err = resolver.Track(context.Background(), "admin-1", models.MutationEdit, models.TargetRef{})
	require.Error(t, err)
}

func TestApprovalResolverTrackPurgesCachedReads(t *testing.T) {
	writer := &approvalWriterStub{}
	cache := newCacheStub()
	cache.entries["approvals:list:stale"] = []byte(`{"items":[],"total":0}`)
	resolver := NewApprovalResolver(writer, nil, nil, WithResolverCache(cache))

	// A freshly tracked request must show up in the next list read, not sit
	// behind a stale cached page until the TTL expires.
	_, err := resolver.Track(context.Background(), "admin-1", models.MutationAdd,
		models.TargetRef{Kind: models.TargetStudent, ID: "student-1"})
	require.NoError(t, err)
	require.Equal(t, []string{"approvals:*"}, cache.purged)
	require.Empty(t, cache.entries)
}

func TestApprovalResolverTrackMergePurgesDetailCache(t *testing.T) {
	writer := &approvalWriterStub{}
	cache := newCacheStub()
	cache.entries["approvals:detail:apr-merged"] = []byte(`{"mutationType":"edit"}`)
	resolver := NewApprovalResolver(writer, nil, nil, WithResolverCache(cache))

	// A delete absorbing a pending edit changes what an approval will do; the
	// cached detail with the superseded mutation type must not survive.
	approval, err := resolver.Track(context.Background(), "admin-1", models.MutationDelete,
		models.TargetRef{Kind: models.TargetStudent, ID: "student-1"})
	require.NoError(t, err)
	require.Equal(t, models.MutationDelete, approval.MutationType)
	require.Equal(t, []string{"approvals:*"}, cache.purged)
	require.NotContains(t, cache.entries, "approvals:detail:apr-merged")
}

func TestApprovalResolverTrackRefreshesOpenGauge(t *testing.T) {
	writer := &approvalWriterStub{}
	metrics := &metricsStub{}
	resolver := NewApprovalResolver(writer, nil, nil, WithResolverMetrics(metrics))

	_, err := resolver.Track(context.Background(), "admin-1", models.MutationAdd,
		models.TargetRef{Kind: models.TargetStaff, ID: "staff-1"})
	require.NoError(t, err)
	_, err = resolver.Track(context.Background(), "admin-1", models.MutationEdit,
		models.TargetRef{Kind: models.TargetStaff, ID: "staff-2"})
	require.NoError(t, err)

	require.Equal(t, []int{1, 2}, metrics.openSets)
}

func TestApprovalResolverTrackStoreFailure(t *testing.T) {
	writer := &approvalWriterStub{err: errors.New("db down")}
	notifier := &notifierCapture{}
	resolver := NewApprovalResolver(writer, notifier, nil)

	_, err := resolver.Track(context.Background(), "admin-1", models.MutationEdit,
		models.TargetRef{Kind: models.TargetAccount, ID: "acc-1"})
	require.Error(t, err)
	require.Empty(t, notifier.events)
}
