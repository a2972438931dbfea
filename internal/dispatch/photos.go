package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dispatch_bot_backend/internal/adapters/storage"
	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/internal/session"

	"github.com/rwcarlsen/goexif/exif"
)

func (e *Engine) startPhotos(ctx context.Context, t *conversation.Turn, orderID int64, kind domain.PhotoType) error {
	t.Start(AwaitingTechnicianPhotos, session.Data{OrderID: orderID, PhotoType: kind})
	t.Replyf(ctx, "📸 Envie as fotos de %s (ordem #%d). Quando terminar, digite 'pronto'.", strings.ToUpper(kind.Label()), orderID)
	return nil
}

func (e *Engine) onPhotoType(ctx context.Context, t *conversation.Turn) error {
	orderID := t.Data().OrderID
	id, ok := conversation.Pick(t.Event.Choice(), photoTypeButtons(orderID)...)
	if !ok {
		t.Replyf(ctx, "Opção inválida. Digite 1 para fotos de antes, 2 para embalagem ou 3 para depois.")
		return nil
	}
	action, _, _ := ParsePayload(id)
	kind, _ := photoTypeOf(action)
	return e.startPhotos(ctx, t, orderID, kind)
}

func isBatchEnd(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "pronto", "finalizar", "concluir":
		return true
	}
	return false
}

func (e *Engine) onPhotos(ctx context.Context, t *conversation.Turn) error {
	if t.Event.HasMedia() && isServiceMedia(t.Event.Media.MimeType) {
		return e.storePhoto(ctx, t)
	}
	if isBatchEnd(t.Event.Body()) {
		return e.finishBatch(ctx, t)
	}
	t.Replyf(ctx, "Envie uma foto ou vídeo, ou digite 'pronto' para encerrar o envio.")
	return nil
}

func isServiceMedia(mimeType string) bool {
	return storage.IsImageContentType(mimeType) || storage.IsVideoContentType(mimeType)
}

func (e *Engine) storePhoto(ctx context.Context, t *conversation.Turn) error {
	data := t.Data()
	media := t.Event.Media
	content, err := media.Fetch(ctx)
	if err != nil {
		t.Log(ctx).Warn("photo download failed", "order_id", data.OrderID, "error", err)
		t.Replyf(ctx, "Não foi possível receber a foto. Tente enviar novamente.")
		return nil
	}

	now := e.Now()
	fileName := fmt.Sprintf("%s_%d%s", data.PhotoType, now.Unix(), storage.Extension(media.MimeType))
	key, err := e.Files.UploadFile(ctx, e.PhotoBucket, strconv.FormatInt(data.OrderID, 10), fileName, media.MimeType, bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Log(ctx).Warn("photo upload failed", "order_id", data.OrderID, "error", err)
		t.Replyf(ctx, "Não foi possível salvar a foto. Tente enviar novamente.")
		return nil
	}

	noun := "Foto"
	if storage.IsVideoContentType(media.MimeType) {
		noun = "Vídeo"
	}
	description := noun + " de " + data.PhotoType.Label()
	if noun == "Foto" {
		if captured, ok := captureTime(content); ok {
			description += " capturada em " + domain.FormatDateTime(e.local(captured))
		}
	}
	if _, err := e.Store.AddServicePhoto(ctx, domain.ServicePhoto{
		ServiceOrderID: data.OrderID,
		Type:           data.PhotoType,
		Path:           key,
		Description:    description,
	}); err != nil {
		return fmt.Errorf("add service photo: %w", err)
	}

	data.PhotoCount++
	t.Replyf(ctx, "📸 %s %d (%s) recebido(a). Envie mais fotos ou digite 'pronto'.", noun, data.PhotoCount, data.PhotoType.Label())
	return nil
}

// captureTime reads the EXIF DateTimeOriginal of a JPEG.
func captureTime(content []byte) (time.Time, bool) {
	x, err := exif.Decode(bytes.NewReader(content))
	if err != nil {
		return time.Time{}, false
	}
	ts, err := x.DateTime()
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func (e *Engine) finishBatch(ctx context.Context, t *conversation.Turn) error {
	data := t.Data()
	if data.PhotoCount == 0 {
		t.Replyf(ctx, "Nenhuma foto recebida ainda. Envie ao menos uma foto de %s.", data.PhotoType.Label())
		return nil
	}

	orderID, kind, count := data.OrderID, data.PhotoType, data.PhotoCount
	t.End()
	body := fmt.Sprintf("%d foto(s) de %s registradas na ordem #%d.", count, kind.Label(), orderID)
	if kind == domain.PhotoAfter {
		t.Reply(ctx, conversation.Buttons("Fotos registradas", body+" Deseja concluir o serviço?",
			button(ActionCompleteService, orderID, "Concluir serviço"),
			button(ActionUploadPhotos, orderID, "Enviar mais fotos"),
		))
		return nil
	}
	t.Reply(ctx, conversation.Buttons("Fotos registradas", body, button(ActionUploadPhotos, orderID, "Enviar outras fotos")))
	return nil
}
