// Package finance serves PIX keys, invoices and payment proofs to customers
// and the finance commands to agents.
package finance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dispatch_bot_backend/internal/adapters/storage"
	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/internal/email"
	"dispatch_bot_backend/internal/session"
)

// Review tags of the finance terminals.
const (
	RatingPix     = "Consulta PIX"
	RatingInvoice = "Envio Fatura"
	RatingProof   = "Envio Comprovante"
)

// Store is the persistence the engine needs.
type Store interface {
	GetSetting(ctx context.Context, name string) (string, error)
	SetSetting(ctx context.Context, name, value string) error
	GetClientByAddress(ctx context.Context, address string) (domain.Client, error)
	InvoicesForClient(ctx context.Context, clientID int64) ([]domain.Invoice, error)
	InsertPaymentProof(ctx context.Context, p domain.NewPaymentProof) (int64, error)
	InvoiceTotals(ctx context.Context, from, to time.Time) ([]domain.InvoiceTotal, error)
}

// Broadcaster reaches every available agent.
type Broadcaster interface {
	NotifyAvailableAgents(ctx context.Context, msgs ...conversation.Message) (int, error)
}

// Rater prompts the sender for a rating.
type Rater interface {
	Prompt(ctx context.Context, t *conversation.Turn, clientID int64, rc session.Rating)
}

// Menu returns the customer to the main menu.
type Menu interface {
	ShowMenu(ctx context.Context, t *conversation.Turn, clientID int64, name, address string) error
}

// Deps wires the engine. Mail is optional.
type Deps struct {
	Store       Store
	Files       storage.FileStore
	ProofBucket string
	Agents      Broadcaster
	Mail        email.Sender
	Rating      Rater
	Menu        Menu
	Location    *time.Location
	Now         func() time.Time
}

// Engine is the finance engine.
type Engine struct {
	Deps
}

// New creates the engine.
func New(d Deps) *Engine {
	if d.Mail == nil {
		d.Mail = email.NoopSender{}
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Engine{Deps: d}
}

var (
	financeOptions = []conversation.Option{
		{ID: "pix", Label: "Chave PIX"},
		{ID: "invoices", Label: "Minhas faturas"},
		{ID: "proof", Label: "Enviar comprovante"},
	}
	paymentOptions = []conversation.Option{
		{ID: "pay_now", Label: "Pagar agora"},
		{ID: "back_menu", Label: "Voltar ao menu"},
	}
)

// Start shows the finance options to the customer of t.
func (e *Engine) Start(ctx context.Context, t *conversation.Turn) error {
	data := t.Data()
	t.Start(AwaitingFinanceChoice, session.Data{ClientID: data.ClientID, Name: data.Name, Address: data.Address})
	t.Reply(ctx, conversation.Buttons("Financeiro", "O que você precisa?", financeOptions...))
	return nil
}

// Handle advances the finance flow by one event.
func (e *Engine) Handle(ctx context.Context, t *conversation.Turn) error {
	st, ok := t.State().(State)
	if !ok {
		return fmt.Errorf("finance: unexpected state %v", t.State())
	}

	switch st {
	case AwaitingFinanceChoice:
		return e.onFinanceChoice(ctx, t)
	case AwaitingInvoiceChoice:
		return e.onInvoiceChoice(ctx, t)
	case AwaitingPaymentOption:
		return e.onPaymentOption(ctx, t)
	case AwaitingPaymentProof:
		return e.onPaymentProof(ctx, t)
	case AwaitingAttendantInvoiceChoice:
		return e.onAttendantInvoiceChoice(ctx, t)
	default:
		return fmt.Errorf("finance: unhandled state %s", st)
	}
}

func (e *Engine) onFinanceChoice(ctx context.Context, t *conversation.Turn) error {
	choice, ok := conversation.Pick(t.Event.Choice(), financeOptions...)
	if !ok {
		t.Replyf(ctx, "Opção inválida. Digite 1 para chave PIX, 2 para suas faturas ou 3 para enviar um comprovante.")
		return nil
	}

	data := t.Data()
	switch choice {
	case "pix":
		msgs, ok, err := e.pixMessages(ctx, 0, "")
		if err != nil {
			return err
		}
		if !ok {
			t.Replyf(ctx, "A chave PIX ainda não foi cadastrada. Por favor, fale com um atendente.")
			return e.Menu.ShowMenu(ctx, t, data.ClientID, data.Name, data.Address)
		}
		for _, msg := range msgs {
			t.Reply(ctx, msg)
		}
		e.Rating.Prompt(ctx, t, data.ClientID, session.Rating{Type: RatingPix})
		return nil
	case "invoices":
		invoices, err := e.Store.InvoicesForClient(ctx, data.ClientID)
		if err != nil {
			return fmt.Errorf("list invoices: %w", err)
		}
		if len(invoices) == 0 {
			t.Replyf(ctx, "Você não possui faturas cadastradas.")
			return e.Menu.ShowMenu(ctx, t, data.ClientID, data.Name, data.Address)
		}
		data.Invoices = invoices
		t.Enter(AwaitingInvoiceChoice)
		t.Replyf(ctx, "%s\n\nDigite o número da fatura para ver os detalhes ou 0 para voltar ao menu.", invoiceList("Suas faturas:", invoices, e.Location))
		return nil
	default:
		data.Invoice = nil
		t.Enter(AwaitingPaymentProof)
		t.Replyf(ctx, "Envie a foto ou o PDF do comprovante de pagamento. Digite 'cancelar' para voltar ao menu.")
		return nil
	}
}

func (e *Engine) onInvoiceChoice(ctx context.Context, t *conversation.Turn) error {
	data := t.Data()
	choice := t.Event.Choice()
	if choice == "0" {
		return e.Menu.ShowMenu(ctx, t, data.ClientID, data.Name, data.Address)
	}

	// The index refers to the list the customer saw, never a fresh query.
	idx, ok := conversation.Index(choice, len(data.Invoices))
	if !ok {
		t.Replyf(ctx, "Opção inválida. Digite um número entre 1 e %d, ou 0 para voltar ao menu.", len(data.Invoices))
		return nil
	}

	inv := data.Invoices[idx]
	if inv.Status.Payable() {
		data.Invoice = &inv
		t.Enter(AwaitingPaymentOption)
		t.Reply(ctx, conversation.Buttons("Fatura", invoiceDetails(inv, e.Location), paymentOptions...))
		return nil
	}

	t.Reply(ctx, conversation.Message{Text: invoiceDetails(inv, e.Location)})
	e.Rating.Prompt(ctx, t, data.ClientID, session.Rating{Type: RatingInvoice})
	return nil
}

func (e *Engine) onPaymentOption(ctx context.Context, t *conversation.Turn) error {
	choice, ok := conversation.Pick(t.Event.Choice(), paymentOptions...)
	if !ok {
		t.Replyf(ctx, "Opção inválida. Digite 1 para pagar agora ou 2 para voltar ao menu.")
		return nil
	}

	data := t.Data()
	if choice == "back_menu" || data.Invoice == nil {
		return e.Menu.ShowMenu(ctx, t, data.ClientID, data.Name, data.Address)
	}

	inv := *data.Invoice
	msgs, ok, err := e.pixMessages(ctx, inv.AmountCents, fmt.Sprintf("FAT%d", inv.ID))
	if err != nil {
		return err
	}
	if !ok {
		t.Replyf(ctx, "A chave PIX ainda não foi cadastrada. Por favor, fale com um atendente.")
		return e.Menu.ShowMenu(ctx, t, data.ClientID, data.Name, data.Address)
	}
	for _, msg := range msgs {
		t.Reply(ctx, msg)
	}
	t.Enter(AwaitingPaymentProof)
	t.Replyf(ctx, "Após o pagamento, envie aqui a foto ou o PDF do comprovante. Digite 'cancelar' para voltar ao menu.")
	return nil
}

// pixMessages builds the key text and QR image. ok is false when no key is configured.
func (e *Engine) pixMessages(ctx context.Context, amountCents int64, txid string) ([]conversation.Message, bool, error) {
	charge, err := e.pixCharge(ctx, amountCents, txid)
	if err != nil {
		return nil, false, err
	}
	if charge.Key == "" {
		return nil, false, nil
	}

	var text strings.Builder
	fmt.Fprintf(&text, "💠 *Chave PIX:* %s\nFavorecido: %s", charge.Key, charge.MerchantName)
	if amountCents > 0 {
		fmt.Fprintf(&text, "\nValor: %s", domain.FormatBRL(amountCents))
	}
	fmt.Fprintf(&text, "\n\n*PIX copia e cola:*\n%s", charge.Payload())
	msgs := []conversation.Message{{Text: text.String()}}

	png, err := charge.QRCode()
	if err != nil {
		// The text already carries everything needed to pay.
		return msgs, true, nil
	}
	return append(msgs, conversation.Image("QR Code PIX", "image/png", "pix.png", png)), true, nil
}

func (e *Engine) pixCharge(ctx context.Context, amountCents int64, txid string) (PixCharge, error) {
	charge := PixCharge{AmountCents: amountCents, TxID: txid}
	for name, dst := range map[string]*string{
		domain.SettingPixKey:          &charge.Key,
		domain.SettingPixMerchantName: &charge.MerchantName,
		domain.SettingPixMerchantCity: &charge.MerchantCity,
	} {
		v, err := e.Store.GetSetting(ctx, name)
		if err != nil {
			return PixCharge{}, fmt.Errorf("read setting %s: %w", name, err)
		}
		*dst = v
	}
	return charge, nil
}

func invoiceList(title string, invoices []domain.Invoice, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(title)
	for i, inv := range invoices {
		fmt.Fprintf(&b, "\n%d. Fatura #%d - %s - vence %s - %s",
			i+1, inv.ID, domain.FormatBRL(inv.AmountCents), domain.FormatDate(inv.DueDate.In(loc)), inv.Status.Label())
	}
	return b.String()
}

func invoiceDetails(inv domain.Invoice, loc *time.Location) string {
	s := fmt.Sprintf("*Fatura #%d*\nValor: %s\nVencimento: %s\nSituação: %s",
		inv.ID, domain.FormatBRL(inv.AmountCents), domain.FormatDate(inv.DueDate.In(loc)), inv.Status.Label())
	if inv.DocumentURL != "" {
		s += "\nBoleto: " + inv.DocumentURL
	}
	return s
}
