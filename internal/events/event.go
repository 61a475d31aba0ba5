// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"github.com/lawjfmiranda/jurbot1/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Intake Domain Events
// =============================================================================

// LeadQualified is published when a conversation finishes qualification.
type LeadQualified struct {
	BaseEvent
	Identity  string   `json:"identity"`
	Name      string   `json:"name,omitempty"`
	Category  string   `json:"category"`
	Score     int      `json:"score"`
	Urgent    bool     `json:"urgent"`
	Viability string   `json:"viability"`
	Summary   string   `json:"summary"`
	Answers   []string `json:"answers"`
}

func (e LeadQualified) EventName() string { return "intake.lead.qualified" }

// AppointmentBooked is published when a slot hold is confirmed and the
// external calendar event exists.
type AppointmentBooked struct {
	BaseEvent
	Identity        string    `json:"identity"`
	Name            string    `json:"name"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	CalendarEventID string    `json:"calendarEventId"`
}

func (e AppointmentBooked) EventName() string { return "intake.appointment.booked" }

// AppointmentCancelled is published when a pending slot hold is released by
// the sender before confirmation.
type AppointmentCancelled struct {
	BaseEvent
	Identity string    `json:"identity"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

func (e AppointmentCancelled) EventName() string { return "intake.appointment.cancelled" }
