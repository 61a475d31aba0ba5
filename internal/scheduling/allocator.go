package scheduling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lawjfmiranda/jurbot1/platform/logger"

	"github.com/google/uuid"
)

// FreeBusySource answers whether an interval is busy in the external
// calendar. An error means the source could not be reached; callers must
// treat that as busy.
type FreeBusySource interface {
	IsBusy(ctx context.Context, iv Interval) (bool, error)
}

// EventCreator creates the calendar event for a confirmed slot and returns
// the external event ID.
type EventCreator interface {
	CreateEvent(ctx context.Context, iv Interval, summary, description string) (string, error)
}

// Options carries the business parameters of the allocator.
type Options struct {
	Location          *time.Location
	BusinessStartHour int
	BusinessEndHour   int
	SlotDuration      time.Duration
	HoldTTL           time.Duration
	// MinSameDayLead is how far ahead a same-day slot must start.
	MinSameDayLead time.Duration
	// Now is injectable for tests. Defaults to time.Now.
	Now func() time.Time
}

func (o *Options) withDefaults() {
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.BusinessStartHour == 0 && o.BusinessEndHour == 0 {
		o.BusinessStartHour, o.BusinessEndHour = 9, 18
	}
	if o.SlotDuration <= 0 {
		o.SlotDuration = time.Hour
	}
	if o.HoldTTL <= 0 {
		o.HoldTTL = 15 * time.Minute
	}
	if o.MinSameDayLead <= 0 {
		o.MinSameDayLead = time.Hour
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Allocator generates candidate slots and manages slot holds. Holds live in
// memory and overlap checks are serialized per calendar day, so concurrent
// Place calls on overlapping intervals resolve to exactly one winner without
// a global lock.
type Allocator struct {
	freeBusy FreeBusySource
	calendar EventCreator
	log      *logger.Logger
	opts     Options

	mu   sync.Mutex
	days map[string]*daySlots
}

type daySlots struct {
	mu    sync.Mutex
	holds map[uuid.UUID]SlotHold
}

// NewAllocator creates an allocator over the given calendar collaborators.
func NewAllocator(freeBusy FreeBusySource, calendar EventCreator, log *logger.Logger, opts Options) *Allocator {
	opts.withDefaults()
	return &Allocator{
		freeBusy: freeBusy,
		calendar: calendar,
		log:      log,
		opts:     opts,
		days:     make(map[string]*daySlots),
	}
}

// HoldTTL exposes the configured hold lifetime.
func (a *Allocator) HoldTTL() time.Duration {
	return a.opts.HoldTTL
}

// Location exposes the configured business timezone.
func (a *Allocator) Location() *time.Location {
	return a.opts.Location
}

func (a *Allocator) day(t time.Time) *daySlots {
	key := t.In(a.opts.Location).Format("2006-01-02")

	a.mu.Lock()
	defer a.mu.Unlock()
	d, ok := a.days[key]
	if !ok {
		d = &daySlots{holds: make(map[uuid.UUID]SlotHold)}
		a.days[key] = d
	}
	return d
}

// purgeExpired drops expired holds. Caller must hold d.mu.
func (d *daySlots) purgeExpired(now time.Time) {
	for id, h := range d.holds {
		if h.Expired(now) {
			delete(d.holds, id)
		}
	}
}

// overlapping returns a live hold overlapping iv, if any. Caller must hold d.mu.
func (d *daySlots) overlapping(iv Interval) (SlotHold, bool) {
	for _, h := range d.holds {
		if h.Interval.Overlaps(iv) {
			return h, true
		}
	}
	return SlotHold{}, false
}

// IsBusinessDay reports whether the given date is a working day.
func (a *Allocator) IsBusinessDay(t time.Time) bool {
	weekday := t.In(a.opts.Location).Weekday()
	return weekday != time.Saturday && weekday != time.Sunday
}

// NextBusinessDays returns the next n working days, including today while a
// same-day slot can still start.
func (a *Allocator) NextBusinessDays(n int) []time.Time {
	now := a.opts.Now().In(a.opts.Location)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.opts.Location)

	dayEnd := day.Add(time.Duration(a.opts.BusinessEndHour) * time.Hour)
	if !now.Add(a.opts.MinSameDayLead).Add(a.opts.SlotDuration).Before(dayEnd) {
		day = day.AddDate(0, 0, 1)
	}

	days := make([]time.Time, 0, n)
	for len(days) < n {
		if a.IsBusinessDay(day) {
			days = append(days, day)
		}
		day = day.AddDate(0, 0, 1)
	}
	return days
}

// periodBounds maps a period to start/end hours within the business day.
func (a *Allocator) periodBounds(p Period) (int, int) {
	start, end := a.opts.BusinessStartHour, a.opts.BusinessEndHour
	switch p {
	case PeriodMorning:
		if end > 12 {
			end = 12
		}
	case PeriodAfternoon:
		if start < 13 {
			start = 13
		}
	}
	return start, end
}

// ListCandidates returns the free slots for a calendar day and period, in
// chronological order. Non-business days yield no candidates. Candidates are
// filtered against local non-expired holds first, then against the external
// free/busy source; an unreachable source removes the candidate (fail
// closed) rather than offering a slot that may be taken.
func (a *Allocator) ListCandidates(ctx context.Context, date time.Time, period Period) ([]Interval, error) {
	if !a.IsBusinessDay(date) {
		return nil, nil
	}

	loc := a.opts.Location
	local := date.In(loc)
	startHour, endHour := a.periodBounds(period)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), startHour, 0, 0, 0, loc)
	dayEnd := time.Date(local.Year(), local.Month(), local.Day(), endHour, 0, 0, 0, loc)

	now := a.opts.Now().In(loc)
	minStart := now.Add(a.opts.MinSameDayLead)

	var candidates []Interval
	for start := dayStart; !start.Add(a.opts.SlotDuration).After(dayEnd); start = start.Add(a.opts.SlotDuration) {
		iv := Interval{Start: start, End: start.Add(a.opts.SlotDuration)}
		if sameDay(start, now) && start.Before(minStart) {
			continue
		}
		if start.Before(now) {
			continue
		}
		candidates = append(candidates, iv)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	d := a.day(dayStart)
	d.mu.Lock()
	d.purgeExpired(now)
	unheld := candidates[:0]
	for _, iv := range candidates {
		if _, taken := d.overlapping(iv); !taken {
			unheld = append(unheld, iv)
		}
	}
	d.mu.Unlock()

	free := make([]Interval, 0, len(unheld))
	for _, iv := range unheld {
		busy, err := a.freeBusy.IsBusy(ctx, iv)
		if err != nil {
			a.log.ExternalCallFailed("calendar.freebusy", err)
			continue
		}
		if !busy {
			free = append(free, iv)
		}
	}
	return free, nil
}

// Place reserves an interval for a holder. It fails with ErrSlotConflict if
// a live hold overlaps the interval or the external calendar reports it busy
// or cannot be reached. The overlap check and hold insertion are atomic with
// respect to other Place, Confirm and Release calls touching the same day.
func (a *Allocator) Place(ctx context.Context, holder string, iv Interval) (SlotHold, error) {
	now := a.opts.Now()

	d := a.day(iv.Start)
	d.mu.Lock()
	defer d.mu.Unlock()

	d.purgeExpired(now)
	if _, taken := d.overlapping(iv); taken {
		return SlotHold{}, ErrSlotConflict
	}

	busy, err := a.freeBusy.IsBusy(ctx, iv)
	if err != nil {
		a.log.ExternalCallFailed("calendar.freebusy", err)
		return SlotHold{}, fmt.Errorf("%w: free/busy unavailable: %v", ErrSlotConflict, err)
	}
	if busy {
		return SlotHold{}, ErrSlotConflict
	}

	hold := SlotHold{
		ID:        uuid.New(),
		Interval:  iv,
		Holder:    holder,
		ExpiresAt: now.Add(a.opts.HoldTTL),
	}
	d.holds[hold.ID] = hold
	return hold, nil
}

// Confirm turns a hold into a calendar event. An expired or unknown hold
// fails with ErrSlotExpired. A calendar failure releases the hold and fails
// with ErrExternalBookingFailed; the slot goes back into circulation.
func (a *Allocator) Confirm(ctx context.Context, hold SlotHold, summary, description string) (string, error) {
	now := a.opts.Now()

	d := a.day(hold.Interval.Start)
	d.mu.Lock()
	d.purgeExpired(now)
	stored, ok := d.holds[hold.ID]
	d.mu.Unlock()
	if !ok || stored.Expired(now) {
		return "", ErrSlotExpired
	}

	// The hold stays in place during the external call so the interval
	// remains blocked until the calendar owns it.
	eventID, err := a.calendar.CreateEvent(ctx, hold.Interval, summary, description)
	if err != nil {
		a.log.ExternalCallFailed("calendar.create_event", err)
		a.Release(hold)
		return "", fmt.Errorf("%w: %v", ErrExternalBookingFailed, err)
	}

	a.Release(hold)
	return eventID, nil
}

// Release drops a hold. Releasing an expired, confirmed or unknown hold is
// a no-op.
func (a *Allocator) Release(hold SlotHold) {
	d := a.day(hold.Interval.Start)
	d.mu.Lock()
	delete(d.holds, hold.ID)
	d.mu.Unlock()
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
