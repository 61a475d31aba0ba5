package notification

import (
	"context"
	"fmt"

	"github.com/lawjfmiranda/jurbot1/internal/events"
	"github.com/lawjfmiranda/jurbot1/internal/whatsapp"
	"github.com/lawjfmiranda/jurbot1/platform/config"
	"github.com/lawjfmiranda/jurbot1/platform/logger"
)

// Subscriber forwards intake events to the operator's WhatsApp so the office
// sees qualified leads and bookings as they happen.
type Subscriber struct {
	sender   whatsapp.Sender
	operator string
	log      *logger.Logger
}

// NewSubscriber creates the operator notification subscriber.
func NewSubscriber(sender whatsapp.Sender, cfg config.AdminConfig, log *logger.Logger) *Subscriber {
	return &Subscriber{
		sender:   sender,
		operator: cfg.GetOperatorIdentity(),
		log:      log,
	}
}

// RegisterHandlers subscribes to the intake domain events.
func (s *Subscriber) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadQualified{}.EventName(), s)
	bus.Subscribe(events.AppointmentBooked{}.EventName(), s)
	bus.Subscribe(events.AppointmentCancelled{}.EventName(), s)
}

// Handle routes events to the appropriate notification.
func (s *Subscriber) Handle(ctx context.Context, event events.Event) error {
	if s.operator == "" || s.sender == nil {
		return nil
	}

	switch e := event.(type) {
	case events.LeadQualified:
		return s.sender.SendMessage(ctx, s.operator, e.Summary)

	case events.AppointmentBooked:
		name := e.Name
		if name == "" {
			name = "cliente"
		}
		msg := fmt.Sprintf("📅 Nova consulta agendada\n👤 %s\n🕐 %s às %s",
			name, e.Start.Format("02/01/2006"), e.Start.Format("15:04"))
		return s.sender.SendMessage(ctx, s.operator, msg)

	case events.AppointmentCancelled:
		msg := fmt.Sprintf("❌ Reserva de horário desfeita\n🕐 %s às %s",
			e.Start.Format("02/01/2006"), e.Start.Format("15:04"))
		return s.sender.SendMessage(ctx, s.operator, msg)

	default:
		s.log.Debug("unhandled event", "event", event.EventName())
		return nil
	}
}
