// Package scheduling implements appointment slot allocation against an
// external calendar: candidate generation within business hours, short-lived
// slot holds with overlap protection, and confirmation into the calendar.
package scheduling

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSlotConflict means the requested interval is taken, either by a
	// non-expired hold or by the external calendar.
	ErrSlotConflict = errors.New("slot conflict")

	// ErrSlotExpired means the hold's TTL elapsed before confirmation.
	ErrSlotExpired = errors.New("slot hold expired")

	// ErrExternalBookingFailed means the calendar rejected or failed the
	// event creation after the hold check passed.
	ErrExternalBookingFailed = errors.New("external booking failed")
)

// Interval is a half-open [Start, End) time range.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether two half-open intervals intersect.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// SlotHold is a temporary reservation on an interval. It blocks competing
// holds on overlapping intervals until confirmed, released or expired.
type SlotHold struct {
	ID        uuid.UUID `json:"id"`
	Interval  Interval  `json:"interval"`
	Holder    string    `json:"holder"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the hold's TTL elapsed at the given instant.
func (h SlotHold) Expired(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}

// Period narrows candidate slots to part of the business day.
type Period int

const (
	PeriodAny Period = iota
	PeriodMorning
	PeriodAfternoon
)

// ParsePeriod interprets a free-form period answer. Returns false when the
// text matches no known period.
func ParsePeriod(text string) (Period, bool) {
	lowered := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.Contains(lowered, "manhã") || strings.Contains(lowered, "manha") || lowered == "1":
		return PeriodMorning, true
	case strings.Contains(lowered, "tarde") || lowered == "2":
		return PeriodAfternoon, true
	case strings.Contains(lowered, "qualquer") || strings.Contains(lowered, "tanto faz") || lowered == "3":
		return PeriodAny, true
	default:
		return PeriodAny, false
	}
}

// Label renders the period in user-facing text.
func (p Period) Label() string {
	switch p {
	case PeriodMorning:
		return "manhã"
	case PeriodAfternoon:
		return "tarde"
	default:
		return "qualquer horário"
	}
}
