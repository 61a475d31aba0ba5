package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/lawjfmiranda/jurbot1/internal/meetings/repository"
	"github.com/lawjfmiranda/jurbot1/internal/whatsapp"
	"github.com/lawjfmiranda/jurbot1/platform/apperr"
	"github.com/lawjfmiranda/jurbot1/platform/config"
	"github.com/lawjfmiranda/jurbot1/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// LeadDelivery hands a dequeued lead notification to its delivery chain.
type LeadDelivery interface {
	Deliver(ctx context.Context, payload LeadNotificationPayload) error
}

// Worker consumes the task queue: lead notifications, meeting reminders and
// day-after follow-ups.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	repo   *repository.Repository
	sender whatsapp.Sender
	leads  LeadDelivery
	log    *logger.Logger
}

// NewWorker creates the queue worker.
func NewWorker(cfg config.RedisConfig, repo *repository.Repository, sender whatsapp.Sender, leads LeadDelivery, log *logger.Logger) (*Worker, error) {
	if !cfg.IsRedisEnabled() {
		return nil, fmt.Errorf("redis not configured")
	}

	server := asynq.NewServer(redisClientOpt(cfg), asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			defaultQueue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		repo:   repo,
		sender: sender,
		leads:  leads,
		log:    log,
	}

	mux.HandleFunc(TaskLeadNotification, w.handleLeadNotification)
	mux.HandleFunc(TaskMeetingReminder, w.handleMeetingReminder)
	mux.HandleFunc(TaskMeetingFollowUp, w.handleMeetingFollowUp)

	return w, nil
}

// Run serves the queue until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleLeadNotification(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseLeadNotificationPayload(task)
	if err != nil {
		return err
	}

	if w.leads == nil {
		return nil
	}
	return w.leads.Deliver(ctx, payload)
}

func (w *Worker) handleMeetingReminder(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseMeetingReminderPayload(task)
	if err != nil {
		return err
	}

	meetingID, err := uuid.Parse(payload.MeetingID)
	if err != nil {
		return err
	}

	meeting, err := w.repo.GetMeeting(ctx, meetingID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}
	if meeting.Status != repository.StatusScheduled {
		return nil
	}

	if w.sender == nil {
		return nil
	}
	msg := fmt.Sprintf("Olá, %s! 👋 Lembrete: sua consulta com o advogado é amanhã, %s às %s. Até lá!",
		firstName(meeting.ClientName), meeting.StartTime.Format("02/01"), meeting.StartTime.Format("15:04"))
	return w.sender.SendMessage(ctx, meeting.ClientPhone, msg)
}

func (w *Worker) handleMeetingFollowUp(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseMeetingFollowUpPayload(task)
	if err != nil {
		return err
	}

	meetingID, err := uuid.Parse(payload.MeetingID)
	if err != nil {
		return err
	}

	meeting, err := w.repo.GetMeeting(ctx, meetingID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}
	if meeting.Status != repository.StatusScheduled {
		return nil
	}

	if w.sender != nil {
		msg := fmt.Sprintf("Olá, %s! Como foi sua consulta? Se precisar de mais alguma coisa, é só me chamar por aqui. 😊",
			firstName(meeting.ClientName))
		if err := w.sender.SendMessage(ctx, meeting.ClientPhone, msg); err != nil {
			return err
		}
	}

	return w.repo.UpdateStatus(ctx, meetingID, repository.StatusFollowedUp)
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return "tudo bem"
	}
	return fields[0]
}
