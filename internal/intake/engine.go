// Package intake implements the conversation engine: a per-identity state
// machine that classifies inbound messages, runs the qualification flow and
// drives appointment scheduling.
package intake

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lawjfmiranda/jurbot1/internal/admin"
	"github.com/lawjfmiranda/jurbot1/internal/classifier"
	"github.com/lawjfmiranda/jurbot1/internal/events"
	"github.com/lawjfmiranda/jurbot1/internal/intake/domain"
	"github.com/lawjfmiranda/jurbot1/internal/qualification"
	"github.com/lawjfmiranda/jurbot1/internal/scheduling"
	"github.com/lawjfmiranda/jurbot1/platform/apperr"
	"github.com/lawjfmiranda/jurbot1/platform/logger"
)

// Store persists conversation state. Get returns (nil, nil) for unknown
// identities.
type Store interface {
	Get(ctx context.Context, identity string) (*domain.Conversation, error)
	Put(ctx context.Context, conv *domain.Conversation) error
}

// Notifier delivers the qualification record to the operator channel. The
// engine treats delivery as fire-and-forget; failures are logged only.
type Notifier interface {
	NotifyLeadQualified(ctx context.Context, record qualification.Record) error
}

// MeetingRecorder persists a confirmed appointment and schedules its
// reminder jobs.
type MeetingRecorder interface {
	RecordAppointment(ctx context.Context, identity, name string, iv scheduling.Interval, eventID string) error
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Store      Store
	Classifier classifier.Classifier
	Qualifier  *qualification.Engine
	Allocator  *scheduling.Allocator
	Control    *admin.Control
	Bus        events.Bus
	Notifier   Notifier
	Meetings   MeetingRecorder
	Log        *logger.Logger

	// DedupWindow bounds duplicate message replay detection.
	DedupWindow time.Duration
	// Now is injectable for tests.
	Now func() time.Time
}

// Engine handles inbound messages. All processing for one identity is
// strictly serialized: the identity lock is held across load, decision and
// persist.
type Engine struct {
	store     Store
	classify  classifier.Classifier
	qualifier *qualification.Engine
	alloc     *scheduling.Allocator
	control   *admin.Control
	bus       events.Bus
	notifier  Notifier
	meetings  MeetingRecorder
	log       *logger.Logger

	locks       *identityLocks
	dedupWindow time.Duration
	now         func() time.Time
}

// maxSlotChoices is how many free slots a pick list offers.
const maxSlotChoices = 3

// NewEngine creates the conversation engine.
func NewEngine(deps Deps) *Engine {
	if deps.DedupWindow <= 0 {
		deps.DedupWindow = 2 * time.Minute
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Engine{
		store:       deps.Store,
		classify:    deps.Classifier,
		qualifier:   deps.Qualifier,
		alloc:       deps.Allocator,
		control:     deps.Control,
		bus:         deps.Bus,
		notifier:    deps.Notifier,
		meetings:    deps.Meetings,
		log:         deps.Log,
		locks:       newIdentityLocks(),
		dedupWindow: deps.DedupWindow,
		now:         deps.Now,
	}
}

// HandleMessage processes one inbound message and returns the reply text.
// Admin commands and gating run before any conversation state is touched.
// Only store failures surface as errors; every domain-level failure
// (conflicts, expired holds, unreachable externals) resolves into a reply.
func (e *Engine) HandleMessage(ctx context.Context, identity, text string) (string, error) {
	text = strings.TrimSpace(text)
	if identity == "" || text == "" {
		return "", apperr.Validation("identity and message text are required")
	}

	if reply, handled := e.control.HandleCommand(ctx, identity, text); handled {
		return reply, nil
	}

	if err := e.control.Gate(ctx, identity); err != nil {
		switch {
		case errors.Is(err, admin.ErrPaused):
			return replyPausedNotice, nil
		case errors.Is(err, admin.ErrRateLimited):
			return replyRateLimited, nil
		default:
			return "", err
		}
	}

	unlock := e.locks.Lock(identity)
	defer unlock()

	start := e.now()

	conv, err := e.store.Get(ctx, identity)
	if err != nil {
		return "", err
	}
	if conv == nil {
		conv = domain.New(identity)
	}

	if conv.IsDuplicate(text, start, e.dedupWindow) {
		e.log.Debug("duplicate message replayed", "identity", logger.Redact(identity))
		return conv.LastReply, nil
	}

	phaseAtArrival, stepAtArrival := conv.Phase, conv.Step

	reply := e.dispatch(ctx, conv, text)

	conv.RecordProcessed(phaseAtArrival, stepAtArrival, text, reply, e.now())
	if err := e.store.Put(ctx, conv); err != nil {
		return "", err
	}

	e.log.MessageProcessed(identity, string(conv.Phase), float64(e.now().Sub(start).Milliseconds()))
	return reply, nil
}

func (e *Engine) dispatch(ctx context.Context, conv *domain.Conversation, text string) string {
	if conv.Phase.InScheduling() && isCancel(text) {
		return e.cancelScheduling(ctx, conv)
	}

	switch conv.Phase {
	case domain.PhaseInitial, domain.PhaseClassifying, domain.PhaseDone:
		return e.handleClassify(ctx, conv, text)
	case domain.PhaseQualifying:
		return e.handleQualifying(ctx, conv, text)
	case domain.PhaseQualified:
		return e.handleQualified(conv, text)
	case domain.PhaseSchedName:
		return e.handleSchedName(conv, text)
	case domain.PhaseSchedPeriod:
		return e.handleSchedPeriod(conv, text)
	case domain.PhaseSchedDate:
		return e.handleSchedDate(ctx, conv, text)
	case domain.PhaseSchedTime:
		return e.handleSchedTime(ctx, conv, text)
	case domain.PhaseSchedConfirm:
		return e.handleSchedConfirm(ctx, conv, text)
	default:
		// Unknown stored phase. Reset and classify from scratch.
		*conv = *domain.New(conv.Identity)
		return e.handleClassify(ctx, conv, text)
	}
}

// advance applies a transition that the flow logic knows is legal. A
// rejection here is a programming error in the transition table.
func (e *Engine) advance(conv *domain.Conversation, next domain.Phase) {
	if err := conv.Advance(next); err != nil {
		e.log.Error("phase transition rejected", "error", err.Error())
	}
}

func (e *Engine) handleClassify(ctx context.Context, conv *domain.Conversation, text string) string {
	if conv.Phase == domain.PhaseDone {
		// A finished conversation starts over; the name survives.
		if conv.PendingHold != nil {
			e.alloc.Release(*conv.PendingHold)
		}
		conv.ClearScheduling()
		conv.Category = ""
		conv.Answers = nil
		conv.Step = 0
		conv.Urgent = false
	}

	result, err := e.classify.Classify(ctx, text)
	if err != nil {
		e.log.ExternalCallFailed("classifier", err)
	}

	cat, known := e.qualifier.Catalog().Category(result.Category)
	if err != nil || result.Category == "" || !known {
		e.advance(conv, domain.PhaseClassifying)
		return replyGreeting(e.qualifier.Catalog().Names())
	}

	conv.Category = result.Category
	conv.Step = 0
	conv.Answers = nil
	conv.Urgent = false
	e.advance(conv, domain.PhaseQualifying)

	first, _ := cat.Question(0)
	return replyCategoryIntro(result.Category, first)
}

func (e *Engine) handleQualifying(ctx context.Context, conv *domain.Conversation, text string) string {
	cat, ok := e.qualifier.Catalog().Category(conv.Category)
	if !ok {
		// The catalog no longer has this category. Start over.
		*conv = *domain.New(conv.Identity)
		return e.handleClassify(ctx, conv, text)
	}

	question, ok := cat.Question(conv.Step)
	if !ok {
		e.advance(conv, domain.PhaseQualified)
		return replyQualified(conv.Urgent)
	}

	answer, ok := matchAnswer(question, text)
	if !ok {
		return replyAnswerInvalid(question)
	}

	wasUrgent := conv.Urgent
	conv.Answers = append(conv.Answers, qualification.Answer{QuestionID: question.ID, Text: answer})

	partial := e.qualifier.EvaluatePartial(conv.Category, conv.Answers)
	conv.Urgent = partial.Urgent

	if conv.Step+1 < cat.QuestionCount() {
		conv.Step++
		next, _ := cat.Question(conv.Step)
		reply := renderQuestion(next)
		if conv.Urgent && !wasUrgent {
			reply = urgencyMarker + reply
		}
		return reply
	}

	record := e.qualifier.BuildRecord(conv.Identity, conv.Name, conv.Category, conv.Answers)
	conv.Urgent = record.Urgent
	conv.Step = 0
	e.advance(conv, domain.PhaseQualified)

	if e.notifier != nil {
		if err := e.notifier.NotifyLeadQualified(ctx, record); err != nil {
			e.log.ExternalCallFailed("lead notifier", err)
		}
	}
	e.publishLeadQualified(ctx, record)

	return replyQualified(record.Urgent)
}

func (e *Engine) handleQualified(conv *domain.Conversation, text string) string {
	if isCancel(text) {
		return replyNothingToCancel
	}
	if !isSchedulingIntent(text) {
		return replyOfferScheduling()
	}

	if conv.Name == "" {
		e.advance(conv, domain.PhaseSchedName)
		return replyAskName()
	}
	e.advance(conv, domain.PhaseSchedPeriod)
	return replyAskPeriod
}

func (e *Engine) handleSchedName(conv *domain.Conversation, text string) string {
	name := strings.TrimSpace(text)
	if len([]rune(name)) < 3 || isNumeric(name) {
		return replyNameInvalid
	}

	conv.Name = name
	e.advance(conv, domain.PhaseSchedPeriod)
	return replyAskPeriod
}

func (e *Engine) handleSchedPeriod(conv *domain.Conversation, text string) string {
	period, ok := scheduling.ParsePeriod(text)
	if !ok {
		return replyPeriodInvalid
	}

	conv.Period = period
	conv.DateOptions = e.alloc.NextBusinessDays(5)
	e.advance(conv, domain.PhaseSchedDate)
	return replyDates(conv.DateOptions)
}

func (e *Engine) handleSchedDate(ctx context.Context, conv *domain.Conversation, text string) string {
	idx, ok := parseChoice(text, len(conv.DateOptions))
	if !ok {
		return replyDateInvalid(conv.DateOptions)
	}
	date := conv.DateOptions[idx]

	slots, err := e.alloc.ListCandidates(ctx, date, conv.Period)
	if err != nil {
		e.log.ExternalCallFailed("slot candidates", err)
		return replyNoSlots
	}
	if len(slots) == 0 {
		return replyNoSlots
	}
	if len(slots) > maxSlotChoices {
		slots = slots[:maxSlotChoices]
	}

	conv.ChosenDate = date
	conv.SlotOptions = slots
	e.advance(conv, domain.PhaseSchedTime)
	return replySlots(slots)
}

func (e *Engine) handleSchedTime(ctx context.Context, conv *domain.Conversation, text string) string {
	idx, ok := parseChoice(text, len(conv.SlotOptions))
	if !ok {
		return replySlotInvalid(conv.SlotOptions)
	}
	iv := conv.SlotOptions[idx]

	hold, err := e.alloc.Place(ctx, conv.Identity, iv)
	if err != nil {
		return e.refreshSlots(ctx, conv, replySlotTaken)
	}

	conv.PendingHold = &hold
	e.advance(conv, domain.PhaseSchedConfirm)
	return replyConfirm(iv)
}

func (e *Engine) handleSchedConfirm(ctx context.Context, conv *domain.Conversation, text string) string {
	if conv.PendingHold == nil {
		conv.ClearScheduling()
		e.advance(conv, domain.PhaseQualified)
		return replyOfferScheduling()
	}

	switch {
	case isNo(text):
		hold := *conv.PendingHold
		e.alloc.Release(hold)
		conv.PendingHold = nil
		e.publishCancelled(ctx, conv.Identity, hold.Interval)
		return e.refreshSlots(ctx, conv, "Sem problemas, vamos escolher outro horário.")

	case isYes(text):
		hold := *conv.PendingHold
		summary := fmt.Sprintf("Consulta - %s", conv.Name)
		description := fmt.Sprintf("Área: %s\nContato: %s", conv.Category, conv.Identity)

		eventID, err := e.alloc.Confirm(ctx, hold, summary, description)
		if err != nil {
			conv.PendingHold = nil
			switch {
			case errors.Is(err, scheduling.ErrSlotExpired):
				return e.refreshSlots(ctx, conv, replyHoldExpired)
			default:
				return e.refreshSlots(ctx, conv, replyBookingFailed)
			}
		}

		iv := hold.Interval
		conv.ClearScheduling()
		e.advance(conv, domain.PhaseDone)

		if e.meetings != nil {
			if err := e.meetings.RecordAppointment(ctx, conv.Identity, conv.Name, iv, eventID); err != nil {
				e.log.DatabaseError("record appointment", err)
			}
		}
		e.bus.Publish(ctx, events.AppointmentBooked{
			BaseEvent:       events.NewBaseEvent(),
			Identity:        conv.Identity,
			Name:            conv.Name,
			Start:           iv.Start,
			End:             iv.End,
			CalendarEventID: eventID,
		})

		return replyBooked(conv.Name, iv)

	default:
		return replyConfirmInvalid
	}
}

// refreshSlots re-lists candidates for the chosen date after a conflict,
// expiry or booking failure. With no free slot left the flow falls back to
// date selection.
func (e *Engine) refreshSlots(ctx context.Context, conv *domain.Conversation, prefix string) string {
	slots, err := e.alloc.ListCandidates(ctx, conv.ChosenDate, conv.Period)
	if err == nil && len(slots) > 0 {
		if len(slots) > maxSlotChoices {
			slots = slots[:maxSlotChoices]
		}
		conv.SlotOptions = slots
		e.advance(conv, domain.PhaseSchedTime)
		return prefix + "\n\n" + replySlots(slots)
	}

	conv.SlotOptions = nil
	e.advance(conv, domain.PhaseSchedDate)
	return prefix + "\n\n" + replyDates(conv.DateOptions)
}

func (e *Engine) cancelScheduling(ctx context.Context, conv *domain.Conversation) string {
	if conv.PendingHold != nil {
		hold := *conv.PendingHold
		e.alloc.Release(hold)
		e.publishCancelled(ctx, conv.Identity, hold.Interval)
	}
	conv.ClearScheduling()
	e.advance(conv, domain.PhaseQualified)
	return replyCancelled
}

func (e *Engine) publishLeadQualified(ctx context.Context, record qualification.Record) {
	answers := make([]string, 0, len(record.Answers))
	for _, a := range record.Answers {
		answers = append(answers, a.Text)
	}
	e.bus.Publish(ctx, events.LeadQualified{
		BaseEvent: events.NewBaseEvent(),
		Identity:  record.Identity,
		Name:      record.Name,
		Category:  record.Category,
		Score:     record.Score,
		Urgent:    record.Urgent,
		Viability: record.Viability,
		Summary:   record.Summary,
		Answers:   answers,
	})
}

func (e *Engine) publishCancelled(ctx context.Context, identity string, iv scheduling.Interval) {
	e.bus.Publish(ctx, events.AppointmentCancelled{
		BaseEvent: events.NewBaseEvent(),
		Identity:  identity,
		Start:     iv.Start,
		End:       iv.End,
	})
}

// matchAnswer resolves a reply to a question. For option questions a number
// selects the option; a number out of range is rejected. Free text is
// accepted as given.
func matchAnswer(q qualification.Question, text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if len(q.Options) == 0 {
		return trimmed, true
	}

	if n, err := strconv.Atoi(trimmed); err == nil {
		if n < 1 || n > len(q.Options) {
			return "", false
		}
		return q.Options[n-1], true
	}

	for _, opt := range q.Options {
		if strings.EqualFold(trimmed, opt) {
			return opt, true
		}
	}
	return trimmed, true
}

// parseChoice reads a 1-based pick list selection.
func parseChoice(text string, options int) (int, bool) {
	if options == 0 {
		return 0, false
	}
	fields := strings.Fields(strings.TrimSpace(text))
	for _, field := range fields {
		if n, err := strconv.Atoi(field); err == nil {
			if n >= 1 && n <= options {
				return n - 1, true
			}
			return 0, false
		}
	}
	return 0, false
}

func isNumeric(text string) bool {
	seen := false
	for _, r := range text {
		if r == ' ' {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
		seen = true
	}
	return seen
}

func containsAny(text string, words []string) bool {
	lowered := strings.ToLower(text)
	for _, w := range words {
		if strings.Contains(lowered, w) {
			return true
		}
	}
	return false
}

func isCancel(text string) bool {
	return containsAny(text, []string{"cancelar", "cancela", "desmarcar", "desisto"})
}

func isSchedulingIntent(text string) bool {
	return containsAny(text, []string{"agendar", "agenda", "marcar", "consulta", "sim", "quero", "pode ser", "vamos"})
}

func isYes(text string) bool {
	lowered := strings.ToLower(strings.TrimSpace(text))
	switch lowered {
	case "sim", "s", "ok", "confirmo", "confirmar", "pode", "isso", "claro":
		return true
	}
	return strings.HasPrefix(lowered, "sim")
}

func isNo(text string) bool {
	lowered := strings.ToLower(strings.TrimSpace(text))
	switch lowered {
	case "não", "nao", "n":
		return true
	}
	return strings.HasPrefix(lowered, "não ") || strings.HasPrefix(lowered, "nao ")
}
