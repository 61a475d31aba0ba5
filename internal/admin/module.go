package admin

import (
	apphttp "github.com/lawjfmiranda/jurbot1/internal/http"
	"github.com/lawjfmiranda/jurbot1/platform/logger"
	"github.com/lawjfmiranda/jurbot1/platform/validator"
)

// Module is the admin bounded context module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates the admin module around an existing Control.
func NewModule(control *Control, val *validator.Validator, log *logger.Logger) *Module {
	return &Module{
		handler: NewHandler(control, val, log),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "admin"
}

// RegisterRoutes mounts admin routes on the token-guarded admin group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Admin.GET("/status", m.handler.HandleStatus)
	ctx.Admin.POST("/pause", m.handler.HandlePause)
	ctx.Admin.POST("/resume", m.handler.HandleResume)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
