// Package meetings records confirmed appointments and schedules their
// reminder and follow-up jobs.
package meetings

import (
	"context"
	"time"

	"github.com/lawjfmiranda/jurbot1/internal/meetings/repository"
	"github.com/lawjfmiranda/jurbot1/internal/scheduler"
	"github.com/lawjfmiranda/jurbot1/internal/scheduling"
	"github.com/lawjfmiranda/jurbot1/platform/logger"
	"github.com/lawjfmiranda/jurbot1/platform/phone"

	"github.com/google/uuid"
)

const (
	reminderLead  = 24 * time.Hour
	followUpDelay = 24 * time.Hour
)

// Service persists appointments and enqueues their background jobs.
type Service struct {
	repo  *repository.Repository
	tasks scheduler.TaskScheduler
	log   *logger.Logger
}

// NewService creates the meetings service.
func NewService(repo *repository.Repository, tasks scheduler.TaskScheduler, log *logger.Logger) *Service {
	return &Service{repo: repo, tasks: tasks, log: log}
}

// RecordAppointment stores the booked meeting under the client's record and
// schedules the reminder one day before the start and the follow-up one day
// after the end. Queue failures are logged; the meeting row is the source of
// truth and must not be lost because redis is down.
func (s *Service) RecordAppointment(ctx context.Context, identity, name string, iv scheduling.Interval, eventID string) error {
	clientID, err := s.repo.UpsertClient(ctx, phone.NormalizeE164(identity), name)
	if err != nil {
		return err
	}

	meetingID, err := s.repo.CreateMeeting(ctx, clientID, eventID, iv.Start, iv.End)
	if err != nil {
		return err
	}

	reminderAt := iv.Start.Add(-reminderLead)
	if reminderAt.After(time.Now()) {
		err := s.tasks.ScheduleMeetingReminder(ctx, scheduler.MeetingReminderPayload{
			MeetingID: meetingID.String(),
		}, reminderAt)
		if err != nil {
			s.log.ExternalCallFailed("task queue", err)
		}
	}

	err = s.tasks.ScheduleMeetingFollowUp(ctx, scheduler.MeetingFollowUpPayload{
		MeetingID: meetingID.String(),
	}, iv.End.Add(followUpDelay))
	if err != nil {
		s.log.ExternalCallFailed("task queue", err)
	}

	return nil
}

// Cancel marks a meeting as cancelled.
func (s *Service) Cancel(ctx context.Context, meetingID uuid.UUID) error {
	return s.repo.UpdateStatus(ctx, meetingID, repository.StatusCancelled)
}
