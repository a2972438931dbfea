// Package webhook receives the messaging gateway's inbound notifications and
// hands them to the orchestrator.
package webhook

import (
	apphttp "dispatch_bot_backend/internal/http"
	"dispatch_bot_backend/platform/httpkit"
	"dispatch_bot_backend/platform/logger"

	"golang.org/x/time/rate"
)

// Module is the webhook module implementing http.Module.
type Module struct {
	handler *Handler
	secret  string
	limiter *httpkit.IPRateLimiter
}

// NewModule creates the webhook module.
func NewModule(source EventSource, dispatcher Dispatcher, secret string, log *logger.Logger) *Module {
	return &Module{
		handler: NewHandler(source, dispatcher),
		secret:  secret,
		limiter: httpkit.NewIPRateLimiter(rate.Limit(50), 100, log),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts webhook routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/webhook")
	group.Use(m.limiter.RateLimit(), SecretAuthMiddleware(m.secret))
	group.POST("/whatsapp", m.handler.HandleWhatsApp)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
