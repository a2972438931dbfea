package finance

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"dispatch_bot_backend/internal/adapters/storage"
	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/internal/email"
	"dispatch_bot_backend/internal/session"
)

func (e *Engine) onPaymentProof(ctx context.Context, t *conversation.Turn) error {
	data := t.Data()
	if strings.EqualFold(t.Event.Body(), "cancelar") {
		t.Replyf(ctx, "Envio de comprovante cancelado.")
		return e.Menu.ShowMenu(ctx, t, data.ClientID, data.Name, data.Address)
	}

	media := t.Event.Media
	if !t.Event.HasMedia() || !(storage.IsImageContentType(media.MimeType) || storage.IsDocumentContentType(media.MimeType)) {
		t.Replyf(ctx, "Por favor, envie uma imagem ou PDF do comprovante, ou digite 'cancelar'.")
		return nil
	}

	content, err := media.Fetch(ctx)
	if err != nil {
		t.Log(ctx).Warn("proof download failed", "error", err)
		t.Replyf(ctx, "Não conseguimos receber o arquivo. Por favor, tente enviar novamente.")
		return nil
	}

	now := e.Now()
	fileName := fmt.Sprintf("comprovante_%d%s", now.Unix(), storage.Extension(media.MimeType))
	key, err := e.Files.UploadFile(ctx, e.ProofBucket, strconv.FormatInt(data.ClientID, 10), fileName, media.MimeType, bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Log(ctx).Warn("proof upload failed", "client_id", data.ClientID, "error", err)
		t.Replyf(ctx, "Não conseguimos salvar o comprovante agora. Por favor, tente novamente em instantes.")
		return nil
	}

	proof := domain.NewPaymentProof{
		ClientID:    data.ClientID,
		FilePath:    key,
		Description: "Comprovante enviado via WhatsApp",
	}
	if data.Invoice != nil {
		proof.InvoiceID = &data.Invoice.ID
		proof.Description = fmt.Sprintf("Comprovante da fatura #%d (%s)", data.Invoice.ID, domain.FormatBRL(data.Invoice.AmountCents))
	}
	proofID, err := e.Store.InsertPaymentProof(ctx, proof)
	if err != nil {
		return fmt.Errorf("insert payment proof: %w", err)
	}

	e.notifyAgents(ctx, t, proofID, proof, media, content)
	e.mailFinance(ctx, t, proofID, key, media, content)

	t.Replyf(ctx, "Comprovante recebido! ✅ Nossa equipe financeira vai conferir o pagamento.")
	e.Rating.Prompt(ctx, t, data.ClientID, session.Rating{Type: RatingProof})
	return nil
}

func (e *Engine) notifyAgents(ctx context.Context, t *conversation.Turn, proofID int64, proof domain.NewPaymentProof, media *conversation.Media, content []byte) {
	data := t.Data()
	notice := fmt.Sprintf("📄 *Novo comprovante de pagamento* (#%d)\nCliente: %s\nNúmero: %s\n%s", proofID, data.Name, t.Sender(), proof.Description)
	msgs := []conversation.Message{{Text: notice}}
	if storage.IsImageContentType(media.MimeType) {
		msgs = append(msgs, conversation.Image("Comprovante de "+data.Name, media.MimeType, "comprovante"+storage.Extension(media.MimeType), content))
	} else {
		msgs = append(msgs, conversation.Message{Text: "Comprovante de " + data.Name, Media: &conversation.Attachment{MimeType: media.MimeType, Filename: "comprovante" + storage.Extension(media.MimeType), Data: content}})
	}
	if n, err := e.Agents.NotifyAvailableAgents(ctx, msgs...); err != nil {
		t.Log(ctx).Warn("proof fan-out incomplete", "proof_id", proofID, "agents", n, "error", err)
	}
}

func (e *Engine) mailFinance(ctx context.Context, t *conversation.Turn, proofID int64, key string, media *conversation.Media, content []byte) {
	data := t.Data()
	notice := email.PaymentProof{
		ProofID:     proofID,
		ClientName:  data.Name,
		ClientPhone: t.Sender(),
		StoredAt:    key,
		ReceivedAt:  e.Now().In(e.Location),
		Attachment: &email.Attachment{
			FileName:    "comprovante" + storage.Extension(media.MimeType),
			ContentType: media.MimeType,
			Content:     content,
		},
	}
	if data.Invoice != nil {
		notice.InvoiceID = &data.Invoice.ID
		notice.AmountCents = data.Invoice.AmountCents
		due := data.Invoice.DueDate.In(e.Location)
		notice.DueDate = &due
	}
	if err := e.Mail.SendPaymentProof(ctx, notice); err != nil {
		t.Log(ctx).Warn("finance mailbox copy failed", "proof_id", proofID, "error", err)
	}
}
