// Package onboarding registers customers, greets returning ones and owns the
// main menu with the booking, cancellation and info flows.
package onboarding

import (
	"context"
	"fmt"
	"time"

	"dispatch_bot_backend/internal/calendar"
	"dispatch_bot_backend/internal/catalog"
	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/internal/session"
	"dispatch_bot_backend/platform/validator"
)

// Store is the persistence the engine needs.
type Store interface {
	UpsertClient(ctx context.Context, address, name, postalAddress string) (domain.Client, error)
	RecordInteraction(ctx context.Context, clientID int64, kind string) error
	GetAppointment(ctx context.Context, id int64) (domain.Appointment, error)
	CreateAppointment(ctx context.Context, params domain.NewAppointment) (domain.Appointment, error)
	UpcomingAppointments(ctx context.Context, clientID int64) ([]domain.Appointment, error)
	CancelAppointment(ctx context.Context, clientID, appointmentID int64) (domain.Appointment, error)
}

// Calendar books and removes visits.
type Calendar interface {
	CreateEvent(ctx context.Context, ev calendar.Event) (string, error)
	DeleteEvent(ctx context.Context, id string) error
}

// Reminders schedules the visit reminder.
type Reminders interface {
	RemindBefore(ctx context.Context, appt domain.Appointment, to string) error
}

// Catalog lists the services shown under "Informações".
type Catalog interface {
	Services() []catalog.Service
}

// Rater prompts the sender for a rating.
type Rater interface {
	Prompt(ctx context.Context, t *conversation.Turn, clientID int64, rc session.Rating)
}

// Deps wires the engine. Calendar and Reminders are optional.
type Deps struct {
	Store     Store
	Calendar  Calendar
	Reminders Reminders
	Catalog   Catalog
	Rating    Rater
	Finance   conversation.Starter
	Support   conversation.Starter
	Location  *time.Location
	Now       func() time.Time
}

// Engine is the onboarding/menu engine.
type Engine struct {
	Deps
	validate *validator.Validator
}

// New creates the engine.
func New(d Deps) *Engine {
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Engine{Deps: d, validate: validator.New()}
}

var (
	confirmOptions = []conversation.Option{
		{ID: "save", Label: "Sim, salvar dados"},
		{ID: "redo_name", Label: "Não, corrigir nome"},
		{ID: "redo_address", Label: "Não, corrigir endereço"},
	}
	updateOptions = []conversation.Option{
		{ID: "update_name", Label: "Atualizar nome"},
		{ID: "update_address", Label: "Atualizar endereço"},
		{ID: "cancel_update", Label: "Cancelar"},
	}
	updateConfirmOptions = []conversation.Option{
		{ID: "save", Label: "Sim, salvar"},
		{ID: "cancel", Label: "Não, cancelar"},
	}
)

// Start greets a customer without a session.
func (e *Engine) Start(ctx context.Context, t *conversation.Turn) error {
	client := t.Identity.Client
	if client == nil {
		t.Replyf(ctx, "Olá! Sou o assistente virtual. Para começarmos, qual é o seu nome completo?")
		t.Start(AwaitingName, session.Data{})
		return nil
	}

	data := session.Data{
		ClientID:        client.ID,
		Name:            client.Name,
		Address:         client.PostalAddress,
		LastInteraction: client.LastInteractionType,
	}

	switch client.LastInteractionType {
	case domain.InteractionBooking:
		if client.LastAppointmentID != nil {
			appt, err := e.Store.GetAppointment(ctx, *client.LastAppointmentID)
			if err == nil {
				data.LastSpecialty = appt.Specialty
				data.LastInteractionDetail = fmt.Sprintf("Agendamento: %s em %s", appt.Specialty, domain.FormatDate(appt.ScheduledAt.In(e.Location)))
			} else {
				t.Log(ctx).Warn("last appointment unavailable", "appointment_id", *client.LastAppointmentID, "error", err)
			}
		}
	case domain.InteractionFinance:
		data.LastInteractionDetail = "Financeiro"
	case domain.InteractionSupport:
		data.LastInteractionDetail = "Suporte com Atendente"
	}
	if data.LastInteractionDetail == "" {
		data.LastInteraction = ""
	}

	t.Start(AwaitingWelcomeChoice, data)
	t.Reply(ctx, welcomePrompt(data))
	return nil
}

func welcomeOptions(data *session.Data) []conversation.Option {
	opts := make([]conversation.Option, 0, 3)
	if data.LastInteraction != "" {
		opts = append(opts, conversation.Option{ID: "repeat_last", Label: "Repetir última interação"})
	}
	return append(opts,
		conversation.Option{ID: "main_menu", Label: "Ver menu principal"},
		conversation.Option{ID: "update_data", Label: "Atualizar meus dados"},
	)
}

func welcomePrompt(data session.Data) conversation.Message {
	body := fmt.Sprintf("Olá %s, bem-vindo(a) de volta!", data.Name)
	if data.LastInteractionDetail != "" {
		body += fmt.Sprintf("\nSua última interação conosco foi sobre: *%s*.", data.LastInteractionDetail)
	}
	address := data.Address
	if address == "" {
		address = "Não informado"
	}
	body += fmt.Sprintf("\n\nSeus dados cadastrados são:\nEndereço: %s\n\nO que você gostaria de fazer?", address)
	return conversation.Buttons("Bem-vindo(a) de volta!", body, welcomeOptions(&data)...)
}

// Handle advances the onboarding flow by one event.
func (e *Engine) Handle(ctx context.Context, t *conversation.Turn) error {
	st, ok := t.State().(State)
	if !ok {
		return fmt.Errorf("onboarding: unexpected state %v", t.State())
	}

	switch st {
	case AwaitingName:
		return e.onName(ctx, t)
	case AwaitingAddress:
		return e.onAddress(ctx, t)
	case AwaitingAddressConfirmation:
		return e.onAddressConfirmation(ctx, t)
	case AwaitingWelcomeChoice:
		return e.onWelcomeChoice(ctx, t)
	case AwaitingDataUpdateChoice:
		return e.onDataUpdateChoice(ctx, t)
	case AwaitingNewName:
		return e.onNewName(ctx, t)
	case AwaitingNewAddress:
		return e.onNewAddress(ctx, t)
	case AwaitingUpdateConfirmation:
		return e.onUpdateConfirmation(ctx, t)
	case AwaitingMenuChoice:
		return e.onMenuChoice(ctx, t)
	case AwaitingSpecialty:
		return e.onSpecialty(ctx, t)
	case AwaitingProblemDescription:
		return e.onProblemDescription(ctx, t)
	case AwaitingAvailability:
		return e.onAvailability(ctx, t)
	case AwaitingCancelChoice:
		return e.onCancelChoice(ctx, t)
	case AwaitingInfoChoice:
		return e.onInfoChoice(ctx, t)
	default:
		return fmt.Errorf("onboarding: unhandled state %s", st)
	}
}

func (e *Engine) onName(ctx context.Context, t *conversation.Turn) error {
	name, ok := e.name(t.Event.Body())
	if !ok {
		t.Replyf(ctx, "Por favor, digite um nome válido (entre 2 e 100 letras).")
		return nil
	}
	data := t.Data()
	data.DraftName = name
	if data.DraftAddress != "" {
		return e.confirmRegistration(ctx, t)
	}
	t.Enter(AwaitingAddress)
	t.Replyf(ctx, "Obrigado, %s! Agora, por favor, me informe seu endereço completo (Ex: Rua Exemplo, 123, Bairro, Cidade - UF).", name)
	return nil
}

func (e *Engine) onAddress(ctx context.Context, t *conversation.Turn) error {
	address, ok := e.address(t.Event.Body())
	if !ok {
		t.Replyf(ctx, "Por favor, digite um endereço válido e completo, com número (entre 10 e 255 caracteres).")
		return nil
	}
	t.Data().DraftAddress = address
	return e.confirmRegistration(ctx, t)
}

func (e *Engine) confirmRegistration(ctx context.Context, t *conversation.Turn) error {
	data := t.Data()
	t.Enter(AwaitingAddressConfirmation)
	t.Reply(ctx, conversation.Buttons("Confirme seus dados",
		fmt.Sprintf("Nome: %s\nEndereço: %s\n\nOs dados estão corretos?", data.DraftName, data.DraftAddress),
		confirmOptions...))
	return nil
}

func (e *Engine) onAddressConfirmation(ctx context.Context, t *conversation.Turn) error {
	choice, ok := conversation.Pick(t.Event.Choice(), confirmOptions...)
	if !ok {
		t.Replyf(ctx, "Opção inválida. Por favor, digite 1 para confirmar, 2 para corrigir o nome ou 3 para corrigir o endereço.")
		return nil
	}

	data := t.Data()
	switch choice {
	case "save":
		client, err := e.Store.UpsertClient(ctx, t.Sender(), data.DraftName, data.DraftAddress)
		if err != nil {
			return fmt.Errorf("save client: %w", err)
		}
		t.Replyf(ctx, "Cadastro realizado com sucesso! ✅")
		return e.ShowMenu(ctx, t, client.ID, client.Name, client.PostalAddress)
	case "redo_name":
		t.Enter(AwaitingName)
		t.Replyf(ctx, "Ok, vamos corrigir seu nome. Qual é o seu nome completo?")
	case "redo_address":
		data.DraftAddress = ""
		t.Enter(AwaitingAddress)
		t.Replyf(ctx, "Ok, vamos corrigir seu endereço. Qual é o seu endereço completo (Rua, Número, Bairro, Cidade - UF)?")
	}
	return nil
}

func (e *Engine) onWelcomeChoice(ctx context.Context, t *conversation.Turn) error {
	data := t.Data()
	choice, ok := conversation.Pick(t.Event.Choice(), welcomeOptions(data)...)
	if !ok {
		t.Replyf(ctx, "Opção inválida. Por favor, selecione uma das opções.")
		return nil
	}

	switch choice {
	case "main_menu":
		return e.ShowMenu(ctx, t, data.ClientID, data.Name, data.Address)
	case "update_data":
		t.Enter(AwaitingDataUpdateChoice)
		t.Reply(ctx, conversation.Buttons("Atualizar dados", "O que você gostaria de atualizar?", updateOptions...))
		return nil
	default:
		return e.repeatLast(ctx, t)
	}
}

// repeatLast re-enters the flow of the customer's last interaction.
func (e *Engine) repeatLast(ctx context.Context, t *conversation.Turn) error {
	data := t.Data()
	switch data.LastInteraction {
	case domain.InteractionBooking:
		if data.LastSpecialty != "" {
			data.Specialty = data.LastSpecialty
			t.Enter(AwaitingProblemDescription)
			t.Replyf(ctx, "Ok, vamos agendar um serviço de %s novamente. Por favor, descreva o problema ou o serviço que você precisa.", data.Specialty)
			return nil
		}
		return e.startBooking(ctx, t)
	case domain.InteractionFinance:
		return e.Finance.Start(ctx, t)
	case domain.InteractionSupport:
		return e.Support.Start(ctx, t)
	default:
		t.Replyf(ctx, "Não encontramos uma interação anterior para repetir. Vamos para o menu principal.")
		return e.ShowMenu(ctx, t, data.ClientID, data.Name, data.Address)
	}
}

func (e *Engine) onDataUpdateChoice(ctx context.Context, t *conversation.Turn) error {
	choice, ok := conversation.Pick(t.Event.Choice(), updateOptions...)
	if !ok {
		t.Replyf(ctx, "Opção inválida. Por favor, selecione o que deseja atualizar ou cancele.")
		return nil
	}

	data := t.Data()
	switch choice {
	case "update_name":
		t.Enter(AwaitingNewName)
		t.Replyf(ctx, "Qual é o seu novo nome completo?")
	case "update_address":
		t.Enter(AwaitingNewAddress)
		t.Replyf(ctx, "Qual é o seu novo endereço completo (Rua, Número, Bairro, Cidade - UF)?")
	default:
		t.Replyf(ctx, "Atualização de dados cancelada.")
		return e.ShowMenu(ctx, t, data.ClientID, data.Name, data.Address)
	}
	return nil
}

func (e *Engine) onNewName(ctx context.Context, t *conversation.Turn) error {
	name, ok := e.name(t.Event.Body())
	if !ok {
		t.Replyf(ctx, "Por favor, digite um nome válido (entre 2 e 100 letras).")
		return nil
	}
	data := t.Data()
	data.DraftName, data.DraftAddress = name, data.Address
	return e.confirmUpdate(ctx, t, fmt.Sprintf("Confirmar novo nome: %s?", name))
}

func (e *Engine) onNewAddress(ctx context.Context, t *conversation.Turn) error {
	address, ok := e.address(t.Event.Body())
	if !ok {
		t.Replyf(ctx, "Por favor, digite um endereço válido e completo, com número (entre 10 e 255 caracteres).")
		return nil
	}
	data := t.Data()
	data.DraftName, data.DraftAddress = data.Name, address
	return e.confirmUpdate(ctx, t, fmt.Sprintf("Confirmar novo endereço: %s?", address))
}

func (e *Engine) confirmUpdate(ctx context.Context, t *conversation.Turn, body string) error {
	t.Enter(AwaitingUpdateConfirmation)
	t.Reply(ctx, conversation.Buttons("Confirmar atualização", body, updateConfirmOptions...))
	return nil
}

func (e *Engine) onUpdateConfirmation(ctx context.Context, t *conversation.Turn) error {
	choice, ok := conversation.Pick(t.Event.Choice(), updateConfirmOptions...)
	if !ok {
		t.Replyf(ctx, "Opção inválida. Digite 1 para salvar ou 2 para cancelar.")
		return nil
	}

	data := t.Data()
	if choice == "cancel" {
		t.Replyf(ctx, "Atualização de dados cancelada.")
		return e.ShowMenu(ctx, t, data.ClientID, data.Name, data.Address)
	}

	client, err := e.Store.UpsertClient(ctx, t.Sender(), data.DraftName, data.DraftAddress)
	if err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	t.Replyf(ctx, "Seus dados foram atualizados com sucesso!")
	return e.ShowMenu(ctx, t, client.ID, client.Name, client.PostalAddress)
}

func (e *Engine) name(input string) (string, bool) {
	v := validator.NormalizeText(input)
	return v, e.validate.ValidName(v)
}

func (e *Engine) address(input string) (string, bool) {
	v := validator.NormalizeText(input)
	return v, e.validate.ValidAddress(v)
}
