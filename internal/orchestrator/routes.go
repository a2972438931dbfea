package orchestrator

import (
	"context"
	"fmt"

	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/internal/session"
)

const (
	agentCommandHelp = "Comando de atendente não reconhecido. Use /finalizar, /falarcom [numero], /fila ou comandos financeiros como /enviarpix [numero]."
	technicianHelp   = "Comando não reconhecido. Use /ajuda para ver os comandos disponíveis."
	customerCommand  = "Comando não reconhecido ou você não tem permissão para usá-lo."
	agentIdleHelp    = "Você não está em nenhum atendimento. Use /fila para ver a fila de espera ou /falarcom [numero] para iniciar uma conversa."
	technicianIdle   = "Olá! Use /ordens para ver suas ordens ou /ajuda para ver os comandos disponíveis."
)

// route picks the owning engine: commands, technician buttons, the current
// session, arrival answers, held conversations, then onboarding. It returns
// the route name.
func (r *Router) route(ctx context.Context, t *conversation.Turn) (string, error) {
	if name, args, ok := t.Event.Command(); ok {
		return "command", r.command(ctx, t, name, args)
	}
	if t.Identity.Role == domain.RoleTechnician && t.Event.ButtonID != "" {
		return "button", r.Deps.Dispatch.HandleButton(ctx, t)
	}
	if st := t.State(); st != nil {
		return st.Flow().String(), r.resume(ctx, t, st)
	}

	if t.Identity.Role == domain.RoleCustomer && t.Event.ButtonID != "" {
		if handled, err := r.Deps.Dispatch.HandleCustomerButton(ctx, t); handled {
			return "button", err
		}
	}

	switch t.Identity.Role {
	case domain.RoleAgent:
		relayed, err := r.Support.RelayFromAgent(ctx, t)
		if relayed || err != nil {
			return "relay", err
		}
		t.Replyf(ctx, agentIdleHelp)
		return "help", nil
	case domain.RoleTechnician:
		t.Replyf(ctx, technicianIdle)
		return "help", nil
	default:
		relayed, err := r.Support.RelayFromCustomer(ctx, t)
		if relayed || err != nil {
			return "relay", err
		}
		return session.FlowOnboarding.String(), r.Onboarding.Start(ctx, t)
	}
}

func (r *Router) command(ctx context.Context, t *conversation.Turn, name, args string) error {
	var handlers []CommandHandler
	help := customerCommand
	switch t.Identity.Role {
	case domain.RoleAgent:
		handlers = []CommandHandler{r.Finance, r.Support}
		help = agentCommandHelp
	case domain.RoleTechnician:
		handlers = []CommandHandler{r.Deps.Dispatch}
		help = technicianHelp
	}
	if t.Identity.IsStaff() {
		if err := r.Identity.TouchStaff(ctx, t.Identity); err != nil {
			t.Log(ctx).Warn("staff activity not recorded", "error", err)
		}
	}

	for _, h := range handlers {
		handled, err := h.HandleCommand(ctx, t, name, args)
		if handled {
			return err
		}
	}
	t.Replyf(ctx, "%s", help)
	return nil
}

func (r *Router) resume(ctx context.Context, t *conversation.Turn, st session.State) error {
	switch st.Flow() {
	case session.FlowOnboarding:
		return r.Onboarding.Handle(ctx, t)
	case session.FlowFinance:
		return r.Finance.Handle(ctx, t)
	case session.FlowDispatch:
		return r.Deps.Dispatch.Handle(ctx, t)
	case session.FlowSupport:
		return r.Support.Handle(ctx, t)
	case session.FlowRating:
		return r.Rating.Handle(ctx, t)
	default:
		return fmt.Errorf("orchestrator: unknown flow %s for state %s", st.Flow(), st)
	}
}
