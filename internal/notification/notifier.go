package notification

import (
	"context"

	"github.com/lawjfmiranda/jurbot1/internal/qualification"
	"github.com/lawjfmiranda/jurbot1/internal/scheduler"
	"github.com/lawjfmiranda/jurbot1/platform/logger"
)

// Notifier hands qualified leads to the job queue so delivery retries do not
// block the conversation. Without a queue, delivery runs inline.
type Notifier struct {
	tasks        scheduler.TaskScheduler
	dispatcher   *Dispatcher
	queueEnabled bool
	log          *logger.Logger
}

// NewNotifier creates the notifier. queueEnabled should reflect whether the
// task queue is actually backed by redis.
func NewNotifier(tasks scheduler.TaskScheduler, dispatcher *Dispatcher, queueEnabled bool, log *logger.Logger) *Notifier {
	return &Notifier{
		tasks:        tasks,
		dispatcher:   dispatcher,
		queueEnabled: queueEnabled,
		log:          log,
	}
}

// NotifyLeadQualified enqueues the lead for delivery, falling back to inline
// dispatch when the queue is unavailable.
func (n *Notifier) NotifyLeadQualified(ctx context.Context, record qualification.Record) error {
	if n.queueEnabled {
		err := n.tasks.EnqueueLeadNotification(ctx, scheduler.LeadNotificationPayload{
			Identity:  record.Identity,
			Name:      record.Name,
			Category:  record.Category,
			Score:     record.Score,
			Urgent:    record.Urgent,
			Viability: record.Viability,
			Summary:   record.Summary,
		})
		if err == nil {
			return nil
		}
		n.log.ExternalCallFailed("task queue", err)
	}

	return n.dispatcher.Dispatch(ctx, LeadFromRecord(record))
}

// Deliver implements scheduler.LeadDelivery for the queue worker.
func (d *Dispatcher) Deliver(ctx context.Context, payload scheduler.LeadNotificationPayload) error {
	return d.Dispatch(ctx, Lead{
		Identity:  payload.Identity,
		Name:      payload.Name,
		Category:  payload.Category,
		Score:     payload.Score,
		Urgent:    payload.Urgent,
		Viability: payload.Viability,
		Summary:   payload.Summary,
	})
}

// LeadFromRecord converts a qualification record into the delivery payload.
func LeadFromRecord(record qualification.Record) Lead {
	return Lead{
		Identity:  record.Identity,
		Name:      record.Name,
		Category:  record.Category,
		Score:     record.Score,
		Urgent:    record.Urgent,
		Viability: record.Viability,
		Summary:   record.Summary,
	}
}
