package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lawjfmiranda/jurbot1/internal/admin"
	"github.com/lawjfmiranda/jurbot1/internal/classifier"
	"github.com/lawjfmiranda/jurbot1/internal/events"
	"github.com/lawjfmiranda/jurbot1/internal/intake/domain"
	"github.com/lawjfmiranda/jurbot1/internal/qualification"
	"github.com/lawjfmiranda/jurbot1/internal/scheduling"
	"github.com/lawjfmiranda/jurbot1/platform/logger"
)

var testLoc = time.FixedZone("BRT", -3*3600)

const (
	testIdentity = "+5511999990000"
	testOperator = "+5511988887777"
)

type memStore struct {
	mu      sync.Mutex
	convs   map[string]*domain.Conversation
	gets    int
	puts    int
	failGet bool
	failPut bool
}

func newMemStore() *memStore {
	return &memStore{convs: make(map[string]*domain.Conversation)}
}

func (s *memStore) Get(_ context.Context, identity string) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet {
		return nil, errors.New("store down")
	}
	s.gets++
	conv, ok := s.convs[identity]
	if !ok {
		return nil, nil
	}
	clone := *conv
	return &clone, nil
}

func (s *memStore) Put(_ context.Context, conv *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut {
		return errors.New("store down")
	}
	s.puts++
	clone := *conv
	s.convs[conv.Identity] = &clone
	return nil
}

type stubClassifier struct {
	result classifier.Result
	err    error
	calls  int
}

func (s *stubClassifier) Classify(context.Context, string) (classifier.Result, error) {
	s.calls++
	return s.result, s.err
}

type fakeCalendar struct {
	mu         sync.Mutex
	busy       []scheduling.Interval
	failCreate bool
	created    int
}

func (c *fakeCalendar) IsBusy(_ context.Context, iv scheduling.Interval) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.busy {
		if b.Overlaps(iv) {
			return true, nil
		}
	}
	return false, nil
}

func (c *fakeCalendar) CreateEvent(_ context.Context, iv scheduling.Interval, _, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failCreate {
		return "", errors.New("calendar down")
	}
	c.created++
	c.busy = append(c.busy, iv)
	return fmt.Sprintf("evt-%d", c.created), nil
}

func (c *fakeCalendar) markBusy(iv scheduling.Interval) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = append(c.busy, iv)
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) named(name string) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.Event
	for _, e := range b.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

type captureNotifier struct {
	mu      sync.Mutex
	records []qualification.Record
}

func (n *captureNotifier) NotifyLeadQualified(_ context.Context, record qualification.Record) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = append(n.records, record)
	return nil
}

type meetingCall struct {
	identity string
	name     string
	iv       scheduling.Interval
	eventID  string
}

type captureMeetings struct {
	mu    sync.Mutex
	calls []meetingCall
}

func (m *captureMeetings) RecordAppointment(_ context.Context, identity, name string, iv scheduling.Interval, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, meetingCall{identity: identity, name: name, iv: iv, eventID: eventID})
	return nil
}

type adminCfg struct {
	operator string
	max      int
	window   time.Duration
}

func (c adminCfg) GetOperatorIdentity() string       { return c.operator }
func (c adminCfg) GetAdminToken() string             { return "" }
func (c adminCfg) GetRateLimitMax() int              { return c.max }
func (c adminCfg) GetRateLimitWindow() time.Duration { return c.window }

type fixture struct {
	t        *testing.T
	engine   *Engine
	store    *memStore
	cls      *stubClassifier
	cal      *fakeCalendar
	bus      *recordingBus
	notifier *captureNotifier
	meetings *captureMeetings
	control  *admin.Control

	// now drives both the engine and the allocator clocks.
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithLimit(t, 50)
}

func newFixtureWithLimit(t *testing.T, maxMsgs int) *fixture {
	t.Helper()

	f := &fixture{
		t: t,
		// Wednesday, 08:00 local.
		now:      time.Date(2026, 9, 2, 8, 0, 0, 0, testLoc),
		store:    newMemStore(),
		cls:      &stubClassifier{},
		cal:      &fakeCalendar{},
		bus:      &recordingBus{},
		notifier: &captureNotifier{},
		meetings: &captureMeetings{},
	}

	log := logger.New("test")
	nowFn := func() time.Time { return f.now }

	alloc := scheduling.NewAllocator(f.cal, f.cal, log, scheduling.Options{
		Location:          testLoc,
		BusinessStartHour: 9,
		BusinessEndHour:   18,
		SlotDuration:      time.Hour,
		HoldTTL:           15 * time.Minute,
		MinSameDayLead:    time.Hour,
		Now:               nowFn,
	})

	f.control = admin.NewControl(admin.NewMemoryStore(), adminCfg{
		operator: testOperator,
		max:      maxMsgs,
		window:   time.Minute,
	}, log)

	f.engine = NewEngine(Deps{
		Store:       f.store,
		Classifier:  f.cls,
		Qualifier:   qualification.NewEngine(qualification.Default()),
		Allocator:   alloc,
		Control:     f.control,
		Bus:         f.bus,
		Notifier:    f.notifier,
		Meetings:    f.meetings,
		Log:         log,
		DedupWindow: 2 * time.Minute,
		Now:         nowFn,
	})
	return f
}

func (f *fixture) send(text string) string {
	f.t.Helper()
	reply, err := f.engine.HandleMessage(context.Background(), testIdentity, text)
	if err != nil {
		f.t.Fatalf("HandleMessage(%q): %v", text, err)
	}
	return reply
}

func (f *fixture) sendFrom(identity, text string) string {
	f.t.Helper()
	reply, err := f.engine.HandleMessage(context.Background(), identity, text)
	if err != nil {
		f.t.Fatalf("HandleMessage(%q): %v", text, err)
	}
	return reply
}

func (f *fixture) conv() *domain.Conversation {
	f.t.Helper()
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	conv, ok := f.store.convs[testIdentity]
	if !ok {
		f.t.Fatal("no conversation stored")
	}
	return conv
}

func (f *fixture) seedQualified(name string) {
	conv := domain.New(testIdentity)
	conv.Phase = domain.PhaseQualified
	conv.Category = "Ação Penal"
	conv.Name = name
	f.store.convs[testIdentity] = conv
}

// advanceToConfirm drives a seeded conversation to the confirmation step with
// a hold on the first afternoon slot of the same day.
func (f *fixture) advanceToConfirm() {
	f.t.Helper()
	f.seedQualified("Maria Souza")
	f.send("quero agendar")
	f.send("2")
	f.send("1")
	reply := f.send("1")
	if !strings.Contains(reply, "confirmar") {
		f.t.Fatalf("expected confirmation prompt, got %q", reply)
	}
	if f.conv().Phase != domain.PhaseSchedConfirm {
		f.t.Fatalf("phase = %s, want %s", f.conv().Phase, domain.PhaseSchedConfirm)
	}
}

func slotAt(hour int) scheduling.Interval {
	start := time.Date(2026, 9, 2, hour, 0, 0, 0, testLoc)
	return scheduling.Interval{Start: start, End: start.Add(time.Hour)}
}

func TestGreetingWhenUnclassified(t *testing.T) {
	f := newFixture(t)
	f.cls.result = classifier.Result{}

	reply := f.send("oi")

	if !strings.Contains(reply, "Olá") {
		t.Errorf("reply = %q, want greeting", reply)
	}
	if !strings.Contains(reply, "Responsabilidade Civil") {
		t.Errorf("greeting should list practice areas, got %q", reply)
	}
	if got := f.conv().Phase; got != domain.PhaseClassifying {
		t.Errorf("phase = %s, want %s", got, domain.PhaseClassifying)
	}
}

func TestClassificationStartsQualification(t *testing.T) {
	f := newFixture(t)
	f.cls.result = classifier.Result{Category: "Ação Penal", Confidence: 0.9}

	reply := f.send("meu irmão foi preso ontem")

	if !strings.Contains(reply, "Ação Penal") {
		t.Errorf("reply = %q, want category intro", reply)
	}
	if !strings.Contains(reply, "Qual sua situação no processo?") {
		t.Errorf("reply = %q, want first question", reply)
	}
	conv := f.conv()
	if conv.Phase != domain.PhaseQualifying {
		t.Errorf("phase = %s, want %s", conv.Phase, domain.PhaseQualifying)
	}
	if conv.Step != 0 {
		t.Errorf("step = %d, want 0", conv.Step)
	}
}

func TestClassifierErrorFallsBackToGreeting(t *testing.T) {
	f := newFixture(t)
	f.cls.err = errors.New("model unavailable")

	reply := f.send("preciso de ajuda")

	if !strings.Contains(reply, "Olá") {
		t.Errorf("reply = %q, want greeting", reply)
	}
	if got := f.conv().Phase; got != domain.PhaseClassifying {
		t.Errorf("phase = %s, want %s", got, domain.PhaseClassifying)
	}
}

func TestFullQualificationFlow(t *testing.T) {
	f := newFixture(t)
	f.cls.result = classifier.Result{Category: "Responsabilidade Civil", Confidence: 0.9}

	f.send("bati o carro e tive prejuízo")
	f.send("1")
	f.send("uns 10 mil reais")
	f.send("2")
	reply := f.send("Não lembro a data exata")

	if !strings.Contains(reply, "agendar") {
		t.Errorf("final reply = %q, want scheduling offer", reply)
	}
	conv := f.conv()
	if conv.Phase != domain.PhaseQualified {
		t.Errorf("phase = %s, want %s", conv.Phase, domain.PhaseQualified)
	}
	if len(conv.Answers) != 4 {
		t.Fatalf("answers = %d, want 4", len(conv.Answers))
	}
	if conv.Answers[0].Text != "Danos materiais" {
		t.Errorf("first answer = %q, want option text", conv.Answers[0].Text)
	}

	if len(f.notifier.records) != 1 {
		t.Fatalf("notifier records = %d, want 1", len(f.notifier.records))
	}
	record := f.notifier.records[0]
	if record.Category != "Responsabilidade Civil" {
		t.Errorf("record category = %q", record.Category)
	}
	if record.Urgent {
		t.Error("record should not be urgent")
	}
	if got := f.bus.named("intake.lead.qualified"); len(got) != 1 {
		t.Errorf("qualified events = %d, want 1", len(got))
	}
}

func TestUrgencyMarkerAppearsMidFlow(t *testing.T) {
	f := newFixture(t)
	f.cls.result = classifier.Result{Category: "Medida Protetiva", Confidence: 0.9}

	f.send("estou sofrendo ameaças")
	f.send("2")
	reply := f.send("1")

	if !strings.HasPrefix(reply, "⚠️") {
		t.Errorf("reply = %q, want urgency marker prefix", reply)
	}
	if !f.conv().Urgent {
		t.Error("conversation should be flagged urgent")
	}

	// Already urgent: no repeated marker on the next question.
	reply = f.send("1")
	if strings.HasPrefix(reply, "⚠️") {
		t.Errorf("reply = %q, marker should not repeat", reply)
	}
}

func TestInvalidOptionNumberReprompts(t *testing.T) {
	f := newFixture(t)
	f.cls.result = classifier.Result{Category: "Ação Penal", Confidence: 0.9}
	f.send("fui intimado para audiência")

	reply := f.send("99")

	if !strings.Contains(reply, "Qual sua situação no processo?") {
		t.Errorf("reply = %q, want question repeated", reply)
	}
	conv := f.conv()
	if conv.Step != 0 {
		t.Errorf("step = %d, want 0", conv.Step)
	}
	if len(conv.Answers) != 0 {
		t.Errorf("answers = %d, want 0", len(conv.Answers))
	}
}

func TestDuplicateMessageReplaysReply(t *testing.T) {
	f := newFixture(t)
	f.cls.result = classifier.Result{Category: "Ação Penal", Confidence: 0.9}
	f.send("processo penal")

	first := f.send("99")
	putsAfterFirst := f.store.puts

	second := f.send("99")
	if second != first {
		t.Errorf("replayed reply = %q, want %q", second, first)
	}
	if f.store.puts != putsAfterFirst {
		t.Errorf("puts = %d, want %d (replay must not persist)", f.store.puts, putsAfterFirst)
	}

	// Outside the window the message is processed again.
	f.now = f.now.Add(3 * time.Minute)
	f.send("99")
	if f.store.puts != putsAfterFirst+1 {
		t.Errorf("puts = %d, want %d after window elapsed", f.store.puts, putsAfterFirst+1)
	}
}

func TestQualifiedOffersSchedulingUntilIntent(t *testing.T) {
	f := newFixture(t)
	f.seedQualified("")

	reply := f.send("obrigado pelas informações")
	if !strings.Contains(reply, "agendar") {
		t.Errorf("reply = %q, want scheduling offer", reply)
	}
	if got := f.conv().Phase; got != domain.PhaseQualified {
		t.Errorf("phase = %s, want %s", got, domain.PhaseQualified)
	}
}

func TestSchedulingAsksNameWhenMissing(t *testing.T) {
	f := newFixture(t)
	f.seedQualified("")

	reply := f.send("quero agendar")
	if !strings.Contains(reply, "nome completo") {
		t.Errorf("reply = %q, want name prompt", reply)
	}

	reply = f.send("22")
	if !strings.Contains(reply, "nome") {
		t.Errorf("reply = %q, want invalid name prompt", reply)
	}
	if got := f.conv().Phase; got != domain.PhaseSchedName {
		t.Errorf("phase = %s, want %s", got, domain.PhaseSchedName)
	}

	reply = f.send("João Pedro Alves")
	if !strings.Contains(reply, "manhã") {
		t.Errorf("reply = %q, want period prompt", reply)
	}
	if got := f.conv().Name; got != "João Pedro Alves" {
		t.Errorf("name = %q", got)
	}
}

func TestSchedulingHappyPath(t *testing.T) {
	f := newFixture(t)
	f.advanceToConfirm()

	reply := f.send("sim")

	if !strings.Contains(reply, "Agendado, Maria") {
		t.Errorf("reply = %q, want booking confirmation", reply)
	}
	conv := f.conv()
	if conv.Phase != domain.PhaseDone {
		t.Errorf("phase = %s, want %s", conv.Phase, domain.PhaseDone)
	}
	if conv.PendingHold != nil {
		t.Error("pending hold should be cleared")
	}
	if f.cal.created != 1 {
		t.Errorf("calendar events = %d, want 1", f.cal.created)
	}
	if len(f.meetings.calls) != 1 {
		t.Fatalf("meeting records = %d, want 1", len(f.meetings.calls))
	}
	call := f.meetings.calls[0]
	if call.eventID != "evt-1" || call.name != "Maria Souza" {
		t.Errorf("meeting call = %+v", call)
	}
	if !call.iv.Start.Equal(slotAt(13).Start) {
		t.Errorf("meeting start = %v, want %v", call.iv.Start, slotAt(13).Start)
	}
	if got := f.bus.named("intake.appointment.booked"); len(got) != 1 {
		t.Errorf("booked events = %d, want 1", len(got))
	}
}

func TestSlotConflictRelistsCandidates(t *testing.T) {
	f := newFixture(t)
	f.seedQualified("Maria Souza")
	f.send("quero agendar")
	f.send("2")
	f.send("1")

	f.cal.markBusy(slotAt(13))
	reply := f.send("1")

	if !strings.Contains(reply, "reservado por outra pessoa") {
		t.Errorf("reply = %q, want conflict notice", reply)
	}
	conv := f.conv()
	if conv.Phase != domain.PhaseSchedTime {
		t.Errorf("phase = %s, want %s", conv.Phase, domain.PhaseSchedTime)
	}
	if len(conv.SlotOptions) == 0 {
		t.Fatal("expected refreshed slot options")
	}
	if conv.SlotOptions[0].Start.Hour() != 14 {
		t.Errorf("first refreshed slot hour = %d, want 14", conv.SlotOptions[0].Start.Hour())
	}
}

func TestConfirmHoldExpired(t *testing.T) {
	f := newFixture(t)
	f.advanceToConfirm()

	f.now = f.now.Add(20 * time.Minute)
	reply := f.send("sim")

	if !strings.Contains(reply, "reserva expirou") {
		t.Errorf("reply = %q, want expiry notice", reply)
	}
	conv := f.conv()
	if conv.Phase != domain.PhaseSchedTime {
		t.Errorf("phase = %s, want %s", conv.Phase, domain.PhaseSchedTime)
	}
	if conv.PendingHold != nil {
		t.Error("pending hold should be cleared")
	}
}

func TestBookingFailureReleasesHold(t *testing.T) {
	f := newFixture(t)
	f.advanceToConfirm()

	f.cal.failCreate = true
	reply := f.send("sim")

	if !strings.Contains(reply, "problema ao registrar") {
		t.Errorf("reply = %q, want booking failure notice", reply)
	}
	conv := f.conv()
	if conv.Phase != domain.PhaseSchedTime {
		t.Errorf("phase = %s, want %s", conv.Phase, domain.PhaseSchedTime)
	}
	if len(conv.SlotOptions) == 0 || conv.SlotOptions[0].Start.Hour() != 13 {
		t.Errorf("slot options = %+v, released slot should be offered again", conv.SlotOptions)
	}
}

func TestDeclineConfirmationOffersOtherSlots(t *testing.T) {
	f := newFixture(t)
	f.advanceToConfirm()

	reply := f.send("não")

	if !strings.Contains(reply, "Sem problemas") {
		t.Errorf("reply = %q, want decline acknowledgement", reply)
	}
	conv := f.conv()
	if conv.Phase != domain.PhaseSchedTime {
		t.Errorf("phase = %s, want %s", conv.Phase, domain.PhaseSchedTime)
	}
	if conv.PendingHold != nil {
		t.Error("pending hold should be cleared")
	}
	if got := f.bus.named("intake.appointment.cancelled"); len(got) != 1 {
		t.Errorf("cancelled events = %d, want 1", len(got))
	}
}

func TestCancelKeywordAbortsScheduling(t *testing.T) {
	f := newFixture(t)
	f.advanceToConfirm()

	reply := f.send("quero cancelar")

	if !strings.Contains(reply, "cancelado") {
		t.Errorf("reply = %q, want cancellation notice", reply)
	}
	conv := f.conv()
	if conv.Phase != domain.PhaseQualified {
		t.Errorf("phase = %s, want %s", conv.Phase, domain.PhaseQualified)
	}
	if conv.PendingHold != nil {
		t.Error("pending hold should be cleared")
	}
	if got := f.bus.named("intake.appointment.cancelled"); len(got) != 1 {
		t.Errorf("cancelled events = %d, want 1", len(got))
	}
}

func TestCancelWithNothingInProgress(t *testing.T) {
	f := newFixture(t)
	f.seedQualified("Maria Souza")

	reply := f.send("cancelar")
	if !strings.Contains(reply, "nenhum agendamento") {
		t.Errorf("reply = %q, want nothing-to-cancel notice", reply)
	}
	if got := f.conv().Phase; got != domain.PhaseQualified {
		t.Errorf("phase = %s, want %s", got, domain.PhaseQualified)
	}
}

func TestDoneRestartsKeepingName(t *testing.T) {
	f := newFixture(t)
	f.advanceToConfirm()
	f.send("sim")

	f.cls.result = classifier.Result{Category: "Direito das Famílias", Confidence: 0.9}
	reply := f.send("agora preciso resolver um divórcio")

	if !strings.Contains(reply, "Direito das Famílias") {
		t.Errorf("reply = %q, want new category intro", reply)
	}
	conv := f.conv()
	if conv.Phase != domain.PhaseQualifying {
		t.Errorf("phase = %s, want %s", conv.Phase, domain.PhaseQualifying)
	}
	if conv.Name != "Maria Souza" {
		t.Errorf("name = %q, should survive restart", conv.Name)
	}
	if len(conv.Answers) != 0 {
		t.Errorf("answers = %d, want 0 after restart", len(conv.Answers))
	}
}

func TestPausedReturnsNoticeWithoutState(t *testing.T) {
	f := newFixture(t)
	if err := f.control.Pause(context.Background(), 0); err != nil {
		t.Fatal(err)
	}

	reply := f.send("oi")

	if !strings.Contains(reply, "pausado") {
		t.Errorf("reply = %q, want pause notice", reply)
	}
	if f.store.gets != 0 || f.store.puts != 0 {
		t.Errorf("store touched while paused: gets=%d puts=%d", f.store.gets, f.store.puts)
	}
}

func TestRateLimitedReturnsNotice(t *testing.T) {
	f := newFixtureWithLimit(t, 2)
	f.cls.result = classifier.Result{}

	f.send("primeira")
	f.send("segunda")
	reply := f.send("terceira")

	if !strings.Contains(reply, "muitas mensagens") {
		t.Errorf("reply = %q, want rate limit notice", reply)
	}
	if f.store.puts != 2 {
		t.Errorf("puts = %d, want 2 (limited message must not persist)", f.store.puts)
	}
}

func TestOperatorCommandBypassesFlow(t *testing.T) {
	f := newFixture(t)

	reply := f.sendFrom(testOperator, "status")

	if !strings.Contains(reply, "Atendimento ativo") {
		t.Errorf("reply = %q, want status", reply)
	}
	if f.store.gets != 0 {
		t.Errorf("gets = %d, commands must not touch conversations", f.store.gets)
	}
}

func TestOperatorPauseBlocksSenders(t *testing.T) {
	f := newFixture(t)

	f.sendFrom(testOperator, "pausar")
	reply := f.send("oi")
	if !strings.Contains(reply, "pausado") {
		t.Errorf("reply = %q, want pause notice", reply)
	}

	f.sendFrom(testOperator, "retomar")
	f.cls.result = classifier.Result{}
	reply = f.send("oi")
	if !strings.Contains(reply, "Olá") {
		t.Errorf("reply = %q, want greeting after resume", reply)
	}
}

func TestStoreErrorPropagates(t *testing.T) {
	f := newFixture(t)
	f.store.failGet = true

	_, err := f.engine.HandleMessage(context.Background(), testIdentity, "oi")
	if err == nil {
		t.Fatal("expected error when store is down")
	}
}

func TestEmptyMessageRejected(t *testing.T) {
	f := newFixture(t)

	if _, err := f.engine.HandleMessage(context.Background(), testIdentity, "   "); err == nil {
		t.Error("expected error for blank message")
	}
	if _, err := f.engine.HandleMessage(context.Background(), "", "oi"); err == nil {
		t.Error("expected error for missing identity")
	}
}
