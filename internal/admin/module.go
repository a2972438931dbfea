// Package admin exposes the operator endpoints: counters for the dashboard
// and forced session resets.
package admin

import (
	apphttp "dispatch_bot_backend/internal/http"
	"dispatch_bot_backend/platform/logger"
)

// Module is the admin module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates the admin module.
func NewModule(stats StatsSource, sessions Sessions, log *logger.Logger) *Module {
	return &Module{handler: NewHandler(stats, sessions, log)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "admin"
}

// RegisterRoutes mounts the admin routes on the operator-only group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Admin.GET("/stats", m.handler.GetStats)
	ctx.Admin.DELETE("/sessions/:sender", m.handler.ResetSession)
}

var _ apphttp.Module = (*Module)(nil)
