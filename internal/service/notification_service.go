package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/si-yapemri/school-admin-api/internal/models"
	"github.com/si-yapemri/school-admin-api/pkg/jobs"
)

// Notification event types emitted by the approval workflow.
const (
	NotificationApprovalTracked = "approval.tracked"
	NotificationApprovalDecided = "approval.decided"
)

// NotificationEvent describes a workflow occurrence pushed to subscribers.
type NotificationEvent struct {
	Type       string                `json:"type"`
	ApprovalID string                `json:"approvalId"`
	ActorID    string                `json:"actorId"`
	Mutation   models.MutationType   `json:"mutationType"`
	Outcome    models.ApprovalStatus `json:"outcome,omitempty"`
	TargetKind models.TargetKind     `json:"targetKind"`
	TargetID   string                `json:"targetId"`
	OccurredAt time.Time             `json:"occurredAt"`
}

// Notifier is the fire-and-forget hook invoked after workflow transitions.
// Implementations must never block the caller beyond enqueueing.
type Notifier interface {
	Notify(event NotificationEvent)
}

// NotifierFunc allows using plain functions as notifiers.
type NotifierFunc func(event NotificationEvent)

// Notify implements Notifier.
func (f NotifierFunc) Notify(event NotificationEvent) { f(event) }

// NotificationSink delivers a single event to an external channel.
type NotificationSink interface {
	Deliver(ctx context.Context, event NotificationEvent) error
}

// LogSink writes events to the structured log. It is the default sink when no
// external channel is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Deliver implements NotificationSink.
func (s *LogSink) Deliver(_ context.Context, event NotificationEvent) error {
	s.logger.Info("notification",
		zap.String("type", event.Type),
		zap.String("approval_id", event.ApprovalID),
		zap.String("actor_id", event.ActorID),
		zap.String("mutation_type", string(event.Mutation)),
		zap.String("target_kind", string(event.TargetKind)),
		zap.String("target_id", event.TargetID),
	)
	return nil
}

// NotificationService fans workflow events out to sinks through a background
// worker pool. Enqueue failures are logged and swallowed: a dropped
// notification never fails the operation that produced it.
type NotificationService struct {
	queue  *jobs.Queue
	sinks  []NotificationSink
	logger *zap.Logger
}

// NewNotificationService constructs the service. When no sinks are provided a
// LogSink is installed.
func NewNotificationService(cfg jobs.QueueConfig, logger *zap.Logger, sinks ...NotificationSink) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(sinks) == 0 {
		sinks = []NotificationSink{NewLogSink(logger)}
	}
	svc := &NotificationService{sinks: sinks, logger: logger}
	cfg.Logger = logger
	svc.queue = jobs.NewQueue("notifications", svc.process, cfg)
	return svc
}

// Start begins background delivery.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the worker pool.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify implements Notifier by enqueueing the event for async delivery.
func (s *NotificationService) Notify(event NotificationEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    event.Type,
		Payload: event,
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("type", event.Type),
			zap.String("approval_id", event.ApprovalID),
			zap.Error(err))
	}
}

func (s *NotificationService) process(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(NotificationEvent)
	if !ok {
		s.logger.Warn("dropping notification with unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	for _, sink := range s.sinks {
		if err := sink.Deliver(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
