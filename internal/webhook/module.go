package webhook

import (
	apphttp "github.com/lawjfmiranda/jurbot1/internal/http"
	"github.com/lawjfmiranda/jurbot1/internal/whatsapp"
	"github.com/lawjfmiranda/jurbot1/platform/logger"
	"github.com/lawjfmiranda/jurbot1/platform/validator"
)

// Module is the inbound message bounded context module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates the webhook module.
func NewModule(engine MessageHandler, sender whatsapp.Sender, val *validator.Validator, log *logger.Logger) *Module {
	return &Module{
		handler: NewHandler(engine, sender, val, log),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts the inbound message routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.POST("/webhook/evolution", m.handler.HandleEvolution)
	ctx.V1.POST("/messages", m.handler.HandleDirectMessage)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
