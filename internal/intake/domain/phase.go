// Package domain holds the conversation state model for the intake flow.
package domain

// Phase is a conversation lifecycle state. A conversation moves through
// classification, qualification and the scheduling sub-flow; transitions
// outside the table below are rejected.
type Phase string

const (
	PhaseInitial      Phase = "INITIAL"
	PhaseClassifying  Phase = "CLASSIFYING"
	PhaseQualifying   Phase = "QUALIFYING"
	PhaseQualified    Phase = "QUALIFIED"
	PhaseSchedName    Phase = "SCHED_NAME"
	PhaseSchedPeriod  Phase = "SCHED_PERIOD"
	PhaseSchedDate    Phase = "SCHED_DATE"
	PhaseSchedTime    Phase = "SCHED_TIME"
	PhaseSchedConfirm Phase = "SCHED_CONFIRM"
	PhaseDone         Phase = "DONE"
)

// transitions is the explicit allow-list of phase changes. Remaining in the
// current phase (re-prompts, next qualification step) is always allowed and
// not listed.
var transitions = map[Phase][]Phase{
	PhaseInitial:      {PhaseClassifying, PhaseQualifying},
	PhaseClassifying:  {PhaseQualifying},
	PhaseQualifying:   {PhaseQualified},
	PhaseQualified:    {PhaseSchedName, PhaseSchedPeriod},
	PhaseSchedName:    {PhaseSchedPeriod, PhaseQualified},
	PhaseSchedPeriod:  {PhaseSchedDate, PhaseQualified},
	PhaseSchedDate:    {PhaseSchedTime, PhaseQualified},
	PhaseSchedTime:    {PhaseSchedConfirm, PhaseSchedDate, PhaseQualified},
	PhaseSchedConfirm: {PhaseDone, PhaseSchedTime, PhaseSchedDate, PhaseQualified},
	PhaseDone:         {PhaseClassifying, PhaseQualifying},
}

// CanTransitionTo reports whether moving to next is allowed.
func (p Phase) CanTransitionTo(next Phase) bool {
	if p == next {
		return true
	}
	for _, allowed := range transitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// InScheduling reports whether the phase belongs to the scheduling sub-flow.
func (p Phase) InScheduling() bool {
	switch p {
	case PhaseSchedName, PhaseSchedPeriod, PhaseSchedDate, PhaseSchedTime, PhaseSchedConfirm:
		return true
	default:
		return false
	}
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseInitial, PhaseClassifying, PhaseQualifying, PhaseQualified,
		PhaseSchedName, PhaseSchedPeriod, PhaseSchedDate, PhaseSchedTime,
		PhaseSchedConfirm, PhaseDone:
		return true
	default:
		return false
	}
}
