package finance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/internal/session"
	"dispatch_bot_backend/platform/apperr"
	"dispatch_bot_backend/platform/phone"
)

// HandleCommand runs an agent finance command. It reports false when name is
// not a finance command.
func (e *Engine) HandleCommand(ctx context.Context, t *conversation.Turn, name, args string) (bool, error) {
	switch name {
	case "/enviarpix":
		return true, e.cmdSendPix(ctx, t, args)
	case "/enviarboleto":
		return true, e.cmdSendInvoice(ctx, t, args)
	case "/atualizarpix":
		return true, e.cmdUpdatePix(ctx, t, args)
	case "/cadastrarboleto":
		t.Replyf(ctx, "O cadastro de boletos é feito pelo sistema financeiro.\n"+
			"Pelo WhatsApp você pode:\n"+
			"/enviarboleto <número> - enviar faturas ao cliente\n"+
			"/enviarpix <número> - enviar a chave PIX\n"+
			"/atualizarpix <chave> - alterar a chave PIX")
		return true, nil
	case "/relatoriofin":
		return true, e.cmdReport(ctx, t)
	default:
		return false, nil
	}
}

func (e *Engine) cmdSendPix(ctx context.Context, t *conversation.Turn, args string) error {
	to := phone.Address(args)
	if to == "" {
		t.Replyf(ctx, "Uso: /enviarpix <número do cliente>")
		return nil
	}
	msgs, ok, err := e.pixMessages(ctx, 0, "")
	if err != nil {
		return err
	}
	if !ok {
		t.Replyf(ctx, "Chave PIX não cadastrada. Use /atualizarpix <chave>.")
		return nil
	}
	for _, msg := range msgs {
		t.SendTo(ctx, to, msg)
	}
	t.Replyf(ctx, "Chave PIX enviada para %s.", to)
	return nil
}

func (e *Engine) cmdSendInvoice(ctx context.Context, t *conversation.Turn, args string) error {
	to := phone.Address(args)
	if to == "" {
		t.Replyf(ctx, "Uso: /enviarboleto <número do cliente>")
		return nil
	}
	client, err := e.Store.GetClientByAddress(ctx, to)
	if apperr.Is(err, apperr.KindNotFound) {
		t.Replyf(ctx, "Cliente %s não encontrado.", to)
		return nil
	}
	if err != nil {
		return fmt.Errorf("find client: %w", err)
	}

	invoices, err := e.Store.InvoicesForClient(ctx, client.ID)
	if err != nil {
		return fmt.Errorf("list invoices: %w", err)
	}
	if len(invoices) == 0 {
		t.Replyf(ctx, "Nenhuma fatura encontrada para %s.", client.Name)
		return nil
	}

	t.Start(AwaitingAttendantInvoiceChoice, session.Data{
		TargetAddress: client.Address,
		TargetName:    client.Name,
		TargetClient:  client.ID,
		Invoices:      invoices,
	})
	t.Replyf(ctx, "%s\n\nDigite o número da fatura a enviar, 'todas' para enviar a lista completa ou 'cancelar'.",
		invoiceList("Faturas de "+client.Name+":", invoices, e.Location))
	return nil
}

func (e *Engine) onAttendantInvoiceChoice(ctx context.Context, t *conversation.Turn) error {
	data := t.Data()
	choice := t.Event.Choice()
	switch choice {
	case "cancelar":
		t.Replyf(ctx, "Envio de fatura cancelado.")
		t.End()
		return nil
	case "todas":
		t.SendTo(ctx, data.TargetAddress, conversation.Message{Text: invoiceList("Olá! Seguem suas faturas:", data.Invoices, e.Location)})
		t.Replyf(ctx, "Lista com %d fatura(s) enviada para %s.", len(data.Invoices), data.TargetName)
		t.End()
		return nil
	}

	idx, ok := conversation.Index(choice, len(data.Invoices))
	if !ok {
		t.Replyf(ctx, "Opção inválida. Digite um número entre 1 e %d, 'todas' ou 'cancelar'.", len(data.Invoices))
		return nil
	}
	inv := data.Invoices[idx]
	t.SendTo(ctx, data.TargetAddress, conversation.Message{Text: "Olá! Segue sua fatura:\n\n" + invoiceDetails(inv, e.Location)})
	t.Replyf(ctx, "Fatura #%d enviada para %s.", inv.ID, data.TargetName)
	t.End()
	return nil
}

func (e *Engine) cmdUpdatePix(ctx context.Context, t *conversation.Turn, args string) error {
	key := strings.TrimSpace(args)
	if key == "" {
		t.Replyf(ctx, "Uso: /atualizarpix <nova chave PIX>")
		return nil
	}
	if err := e.Store.SetSetting(ctx, domain.SettingPixKey, key); err != nil {
		return fmt.Errorf("update pix key: %w", err)
	}
	t.Replyf(ctx, "Chave PIX atualizada para: %s", key)
	return nil
}

// Report is the month summary served by /relatoriofin.
type Report struct {
	Month     time.Time
	ByStatus  map[domain.InvoiceStatus]domain.InvoiceTotal
	Count     int
	Total     int64
	PaidCount int
	Paid      int64
}

// ConversionRate is the share of invoices already paid, in percent.
func (r Report) ConversionRate() float64 {
	if r.Count == 0 {
		return 0
	}
	return float64(r.PaidCount) * 100 / float64(r.Count)
}

// BuildReport folds per-status totals into a Report.
func BuildReport(month time.Time, totals []domain.InvoiceTotal) Report {
	r := Report{Month: month, ByStatus: make(map[domain.InvoiceStatus]domain.InvoiceTotal, len(totals))}
	for _, tot := range totals {
		r.ByStatus[tot.Status] = tot
		r.Count += tot.Count
		r.Total += tot.AmountCents
		if tot.Status == domain.InvoicePaid {
			r.PaidCount += tot.Count
			r.Paid += tot.AmountCents
		}
	}
	return r
}

func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Relatório financeiro - %s*\n", r.Month.Format("01/2006"))
	fmt.Fprintf(&b, "Faturas no mês: %d\n", r.Count)
	for _, st := range []domain.InvoiceStatus{domain.InvoicePaid, domain.InvoiceOpen, domain.InvoiceOverdue, domain.InvoiceCancelled} {
		tot := r.ByStatus[st]
		fmt.Fprintf(&b, "%s: %d (%s)\n", st.Label(), tot.Count, domain.FormatBRL(tot.AmountCents))
	}
	fmt.Fprintf(&b, "Valor total: %s\n", domain.FormatBRL(r.Total))
	fmt.Fprintf(&b, "Valor recebido: %s\n", domain.FormatBRL(r.Paid))
	fmt.Fprintf(&b, "Taxa de conversão: %s%%", strings.Replace(fmt.Sprintf("%.1f", r.ConversionRate()), ".", ",", 1))
	return b.String()
}

func (e *Engine) cmdReport(ctx context.Context, t *conversation.Turn) error {
	now := e.Now().In(e.Location)
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, e.Location)
	to := from.AddDate(0, 1, 0)
	totals, err := e.Store.InvoiceTotals(ctx, from, to)
	if err != nil {
		return fmt.Errorf("invoice totals: %w", err)
	}
	t.Reply(ctx, conversation.Message{Text: BuildReport(from, totals).String()})
	return nil
}
