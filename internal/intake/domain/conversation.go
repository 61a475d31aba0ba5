package domain

import (
	"fmt"
	"time"

	"github.com/lawjfmiranda/jurbot1/internal/qualification"
	"github.com/lawjfmiranda/jurbot1/internal/scheduling"
)

// Conversation is the per-identity intake state. It serializes to JSON for
// storage, so every field the flow depends on must live here.
type Conversation struct {
	Identity string `json:"identity"`
	Phase    Phase  `json:"phase"`

	Category string                 `json:"category,omitempty"`
	Step     int                    `json:"step"`
	Answers  []qualification.Answer `json:"answers,omitempty"`
	Urgent   bool                   `json:"urgent,omitempty"`

	Name        string                `json:"name,omitempty"`
	Period      scheduling.Period     `json:"period"`
	DateOptions []time.Time           `json:"dateOptions,omitempty"`
	SlotOptions []scheduling.Interval `json:"slotOptions,omitempty"`
	ChosenDate  time.Time             `json:"chosenDate,omitempty"`
	PendingHold *scheduling.SlotHold  `json:"pendingHold,omitempty"`

	// Duplicate detection: the (phase, step, text) triple of the last
	// processed message and the reply it produced.
	LastPhase Phase  `json:"lastPhase,omitempty"`
	LastStep  int    `json:"lastStep,omitempty"`
	LastText  string `json:"lastText,omitempty"`
	LastReply string `json:"lastReply,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// New creates a conversation in its initial phase.
func New(identity string) *Conversation {
	return &Conversation{
		Identity: identity,
		Phase:    PhaseInitial,
	}
}

// Advance moves the conversation to the next phase, enforcing the
// transition table.
func (c *Conversation) Advance(next Phase) error {
	if !c.Phase.CanTransitionTo(next) {
		return fmt.Errorf("invalid transition %s -> %s", c.Phase, next)
	}
	c.Phase = next
	return nil
}

// IsDuplicate reports whether an incoming message matches the last processed
// (phase, step, text) triple inside the deduplication window.
func (c *Conversation) IsDuplicate(text string, now time.Time, window time.Duration) bool {
	if c.LastText == "" || c.LastReply == "" {
		return false
	}
	if c.Phase != c.LastPhase || c.Step != c.LastStep || text != c.LastText {
		return false
	}
	return now.Sub(c.UpdatedAt) <= window
}

// RecordProcessed stores the dedup triple and reply after handling a message.
// phase and step are the values at arrival, before any transition.
func (c *Conversation) RecordProcessed(phase Phase, step int, text, reply string, now time.Time) {
	c.LastPhase = phase
	c.LastStep = step
	c.LastText = text
	c.LastReply = reply
	c.UpdatedAt = now
}

// ClearScheduling resets the scheduling sub-flow fields. The pending hold
// must already be released by the caller.
func (c *Conversation) ClearScheduling() {
	c.Period = scheduling.PeriodAny
	c.DateOptions = nil
	c.SlotOptions = nil
	c.ChosenDate = time.Time{}
	c.PendingHold = nil
}

// Validate checks the cross-field invariants of a stored conversation.
func (c *Conversation) Validate() error {
	if c.Identity == "" {
		return fmt.Errorf("conversation without identity")
	}
	if !c.Phase.Valid() {
		return fmt.Errorf("unknown phase %q", c.Phase)
	}
	if c.Phase == PhaseQualifying && c.Category == "" {
		return fmt.Errorf("qualifying conversation without category")
	}
	if c.PendingHold != nil && c.Phase != PhaseSchedConfirm {
		return fmt.Errorf("pending hold outside confirmation phase %q", c.Phase)
	}
	return nil
}
