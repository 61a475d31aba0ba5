package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskLeadNotification = "leads.notify"

const TaskMeetingReminder = "meetings.reminder"

const TaskMeetingFollowUp = "meetings.followup"

type LeadNotificationPayload struct {
	Identity  string `json:"identity"`
	Name      string `json:"name,omitempty"`
	Category  string `json:"category"`
	Score     int    `json:"score"`
	Urgent    bool   `json:"urgent"`
	Viability string `json:"viability"`
	Summary   string `json:"summary"`
}

type MeetingReminderPayload struct {
	MeetingID string `json:"meetingId"`
}

type MeetingFollowUpPayload struct {
	MeetingID string `json:"meetingId"`
}

func NewLeadNotificationTask(payload LeadNotificationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeadNotification, data), nil
}

func ParseLeadNotificationPayload(task *asynq.Task) (LeadNotificationPayload, error) {
	var payload LeadNotificationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadNotificationPayload{}, err
	}
	return payload, nil
}

func NewMeetingReminderTask(payload MeetingReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMeetingReminder, data), nil
}

func ParseMeetingReminderPayload(task *asynq.Task) (MeetingReminderPayload, error) {
	var payload MeetingReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return MeetingReminderPayload{}, err
	}
	return payload, nil
}

func NewMeetingFollowUpTask(payload MeetingFollowUpPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMeetingFollowUp, data), nil
}

func ParseMeetingFollowUpPayload(task *asynq.Task) (MeetingFollowUpPayload, error) {
	var payload MeetingFollowUpPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return MeetingFollowUpPayload{}, err
	}
	return payload, nil
}
