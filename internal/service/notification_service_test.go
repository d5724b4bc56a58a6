package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/si-yapemri/school-admin-api/internal/models"
	"github.com/si-yapemri/school-admin-api/pkg/jobs"
)

type sinkStub struct {
	mu     sync.Mutex
	events []NotificationEvent
	fail   int
}

func (s *sinkStub) Deliver(ctx context.Context, event NotificationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return errors.New("sink unavailable")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *sinkStub) delivered() []NotificationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]NotificationEvent(nil), s.events...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition not met in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestNotificationServiceDeliversToSinks(t *testing.T) {
	sink := &sinkStub{}
	svc := NewNotificationService(jobs.QueueConfig{Workers: 1, BufferSize: 4}, nil, sink)
	svc.Start(context.Background())
	defer svc.Stop()

	svc.Notify(NotificationEvent{
		Type:       NotificationApprovalDecided,
		ApprovalID: "apr-1",
		ActorID:    "super-1",
		Mutation:   models.MutationEdit,
		Outcome:    models.ApprovalStatusApproved,
		TargetKind: models.TargetStudent,
		TargetID:   "student-1",
	})

	waitFor(t, func() bool { return len(sink.delivered()) == 1 })
	event := sink.delivered()[0]
	require.Equal(t, "apr-1", event.ApprovalID)
	require.False(t, event.OccurredAt.IsZero())
}

func TestNotificationServiceRetriesFailedDelivery(t *testing.T) {
	sink := &sinkStub{fail: 1}
	svc := NewNotificationService(jobs.QueueConfig{
		Workers:    1,
		BufferSize: 4,
		MaxRetries: 3,
		RetryDelay: 10 * time.Millisecond,
	}, nil, sink)
	svc.Start(context.Background())
	defer svc.Stop()

	svc.Notify(NotificationEvent{
		Type:       NotificationApprovalTracked,
		ApprovalID: "apr-2",
		ActorID:    "admin-1",
		Mutation:   models.MutationAdd,
		TargetKind: models.TargetStaff,
		TargetID:   "staff-1",
	})

	waitFor(t, func() bool { return len(sink.delivered()) == 1 })
}

func TestNotificationServiceNotifyBeforeStartIsSwallowed(t *testing.T) {
	sink := &sinkStub{}
	svc := NewNotificationService(jobs.QueueConfig{Workers: 1}, nil, sink)

	// Never started: the enqueue fails and is logged, the caller is unaffected.
	svc.Notify(NotificationEvent{Type: NotificationApprovalTracked, ApprovalID: "apr-3"})
	require.Empty(t, sink.delivered())
}
