package dispatch

import (
	"fmt"
	"strconv"
	"strings"

	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/internal/domain"
)

// Action is the verb of a technician or customer button.
type Action string

const (
	ActionNavigate        Action = "navigate"
	ActionArrived         Action = "arrived"
	ActionStartService    Action = "start_service"
	ActionUploadPhotos    Action = "upload_photos"
	ActionPhotoBefore     Action = "photo_before"
	ActionPhotoPackaging  Action = "photo_packaging"
	ActionPhotoAfter      Action = "photo_after"
	ActionCompleteService Action = "complete_service"
	ActionReject          Action = "reject"
	ActionClientAbsent    Action = "client_absent"
	ActionRescheduleYes   Action = "reschedule_yes"
	ActionRescheduleNo    Action = "reschedule_no"

	ActionConfirmPresence Action = "confirm_presence"
	ActionReschedule      Action = "reschedule"
)

// Payload encodes a button id carrying the order it acts on.
func Payload(a Action, orderID int64) string {
	return fmt.Sprintf("%s:%d", a, orderID)
}

// ParsePayload splits "<action>:<orderID>". A payload without an id yields
// orderID 0.
func ParsePayload(id string) (Action, int64, bool) {
	action, rawID, found := strings.Cut(strings.TrimSpace(id), ":")
	if action == "" {
		return "", 0, false
	}
	if !found {
		return Action(action), 0, true
	}
	orderID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || orderID <= 0 {
		return "", 0, false
	}
	return Action(action), orderID, true
}

func button(a Action, orderID int64, label string) conversation.Option {
	return conversation.Option{ID: Payload(a, orderID), Label: label}
}

// ActionButtons are the next steps a technician can take on an order.
func ActionButtons(o domain.OrderDetail) []conversation.Option {
	switch o.Status {
	case domain.OrderAssigned:
		return []conversation.Option{button(ActionNavigate, o.ID, "Iniciar navegação"), button(ActionReject, o.ID, "Recusar ordem")}
	case domain.OrderEnRoute:
		return []conversation.Option{button(ActionNavigate, o.ID, "Ver rota"), button(ActionArrived, o.ID, "Cheguei ao local")}
	case domain.OrderArrived:
		return []conversation.Option{button(ActionStartService, o.ID, "Iniciar serviço"), button(ActionClientAbsent, o.ID, "Cliente ausente")}
	case domain.OrderInProgress:
		return []conversation.Option{button(ActionUploadPhotos, o.ID, "Enviar fotos"), button(ActionCompleteService, o.ID, "Concluir serviço")}
	case domain.OrderClientAbsent:
		return []conversation.Option{button(ActionRescheduleYes, o.ID, "Reagendar"), button(ActionRescheduleNo, o.ID, "Cancelar visita")}
	default:
		return nil
	}
}

func photoTypeButtons(orderID int64) []conversation.Option {
	return []conversation.Option{
		button(ActionPhotoBefore, orderID, "Fotos de antes"),
		button(ActionPhotoPackaging, orderID, "Fotos da embalagem"),
		button(ActionPhotoAfter, orderID, "Fotos de depois"),
	}
}

func photoTypeOf(a Action) (domain.PhotoType, bool) {
	switch a {
	case ActionPhotoBefore:
		return domain.PhotoBefore, true
	case ActionPhotoPackaging:
		return domain.PhotoPackaging, true
	case ActionPhotoAfter:
		return domain.PhotoAfter, true
	}
	return "", false
}
