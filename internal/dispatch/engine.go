// Package dispatch drives service orders from assignment to completion: the
// technician's buttons, commands and photo uploads, and the customer's answer
// to the arrival notice.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dispatch_bot_backend/internal/adapters/storage"
	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/internal/maps"
	"dispatch_bot_backend/internal/rating"
	"dispatch_bot_backend/internal/session"
	"dispatch_bot_backend/platform/apperr"
)

// Store is the persistence the engine needs.
type Store interface {
	GetOrderDetail(ctx context.Context, id int64) (domain.OrderDetail, error)
	ActiveOrders(ctx context.Context, technicianID int64) ([]domain.OrderDetail, error)
	TransitionOrder(ctx context.Context, t domain.OrderTransition) (domain.OrderDetail, error)
	AddServicePhoto(ctx context.Context, p domain.ServicePhoto) (int64, error)
	PhotoCounts(ctx context.Context, orderID int64) (map[domain.PhotoType]int, error)
	SetTechnicianStatus(ctx context.Context, id int64, status domain.StaffStatus) error
	SetTechnicianLocation(ctx context.Context, id int64, location string) error
	GetAppointment(ctx context.Context, id int64) (domain.Appointment, error)
}

// Router computes the route to the customer.
type Router interface {
	Route(ctx context.Context, origin, destination string) maps.Route
}

// Calendar removes the event of a cancelled visit.
type Calendar interface {
	DeleteEvent(ctx context.Context, id string) error
}

// Sessions seeds another party's session.
type Sessions interface {
	Seed(ctx context.Context, to string, sess session.Session) error
}

// Rater prompts the customer of a completed order.
type Rater interface {
	PromptOther(ctx context.Context, t *conversation.Turn, seeder rating.Seeder, to string, clientID int64, state rating.State, rc session.Rating, lead string) error
}

// Deps wires the engine. Calendar is optional.
type Deps struct {
	Store       Store
	Router      Router
	Files       storage.FileStore
	PhotoBucket string
	Calendar    Calendar
	Sessions    Sessions
	Rating      Rater
	Location    *time.Location
	Now         func() time.Time
}

// Engine is the dispatch engine.
type Engine struct {
	Deps
}

// New creates the engine.
func New(d Deps) *Engine {
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Engine{Deps: d}
}

const (
	minDescriptionLen = 10
	minReasonLen      = 5
	minLocationLen    = 5
	maxRouteSteps     = 5
)

var errOrderNotFound = errors.New("ordem não encontrada")

// Handle advances the dispatch flow by one event.
func (e *Engine) Handle(ctx context.Context, t *conversation.Turn) error {
	st, ok := t.State().(State)
	if !ok {
		return fmt.Errorf("dispatch: unexpected state %v", t.State())
	}

	switch st {
	case AwaitingTechnicianLocation:
		return e.onLocation(ctx, t, t.Event.Body())
	case AwaitingPhotoType:
		return e.onPhotoType(ctx, t)
	case AwaitingTechnicianPhotos:
		return e.onPhotos(ctx, t)
	case AwaitingServiceDescription:
		return e.onServiceDescription(ctx, t)
	case AwaitingRejectionReason:
		return e.onRejectionReason(ctx, t)
	case AwaitingRescheduleDecision:
		return e.onRescheduleDecision(ctx, t)
	case AwaitingArrivalConfirmation:
		return e.onArrivalConfirmation(ctx, t)
	default:
		return fmt.Errorf("dispatch: unhandled state %s", st)
	}
}

// HandleButton runs a technician button press. The order id comes from the
// payload, falling back to the session for bare actions.
func (e *Engine) HandleButton(ctx context.Context, t *conversation.Turn) error {
	action, orderID, ok := ParsePayload(t.Event.ButtonID)
	if ok && orderID == 0 && t.Session() != nil {
		orderID = t.Session().Data.OrderID
	}
	if !ok || orderID == 0 {
		t.Replyf(ctx, "Ação não reconhecida. Use /ordens para ver suas ordens.")
		return nil
	}
	return e.runAction(ctx, t, action, orderID)
}

func (e *Engine) runAction(ctx context.Context, t *conversation.Turn, action Action, orderID int64) error {
	order, err := e.technicianOrder(ctx, t, orderID)
	if errors.Is(err, errOrderNotFound) {
		t.Replyf(ctx, "Ordem #%d não encontrada.", orderID)
		return nil
	}
	if err != nil {
		return err
	}

	switch action {
	case ActionNavigate:
		return e.navigate(ctx, t, order, t.Identity.Technician.Location)
	case ActionArrived:
		return e.arrived(ctx, t, order)
	case ActionStartService:
		return e.startService(ctx, t, order)
	case ActionUploadPhotos:
		t.Start(AwaitingPhotoType, session.Data{OrderID: order.ID})
		t.Reply(ctx, conversation.Buttons("Fotos", fmt.Sprintf("Ordem #%d: qual tipo de foto você vai enviar?", order.ID), photoTypeButtons(order.ID)...))
		return nil
	case ActionPhotoBefore, ActionPhotoPackaging, ActionPhotoAfter:
		kind, _ := photoTypeOf(action)
		return e.startPhotos(ctx, t, order.ID, kind)
	case ActionCompleteService:
		return e.requestCompletion(ctx, t, order)
	case ActionReject:
		return e.requestRejection(ctx, t, order)
	case ActionClientAbsent:
		return e.clientAbsent(ctx, t, order)
	case ActionRescheduleYes:
		return e.decideReschedule(ctx, t, order, domain.OrderRescheduled)
	case ActionRescheduleNo:
		return e.decideReschedule(ctx, t, order, domain.OrderCancelled)
	default:
		t.Replyf(ctx, "Ação não reconhecida. Use /ordens para ver suas ordens.")
		return nil
	}
}

// technicianOrder loads an order owned by the technician of t.
func (e *Engine) technicianOrder(ctx context.Context, t *conversation.Turn, orderID int64) (domain.OrderDetail, error) {
	tech := t.Identity.Technician
	if tech == nil {
		return domain.OrderDetail{}, errOrderNotFound
	}
	order, err := e.Store.GetOrderDetail(ctx, orderID)
	if apperr.Is(err, apperr.KindNotFound) {
		return domain.OrderDetail{}, errOrderNotFound
	}
	if err != nil {
		return domain.OrderDetail{}, fmt.Errorf("load order %d: %w", orderID, err)
	}
	if order.TechnicianID != tech.ID {
		return domain.OrderDetail{}, errOrderNotFound
	}
	return order, nil
}

// transition applies from -> to. ok is false when the move was refused and
// the sender was told why; the order is then unchanged.
func (e *Engine) transition(ctx context.Context, t *conversation.Turn, order domain.OrderDetail, to domain.OrderStatus, note string) (domain.OrderDetail, bool, error) {
	if !domain.CanTransition(order.Status, to) {
		t.Replyf(ctx, "Não é possível mudar a ordem #%d para \"%s\": ela está \"%s\".", order.ID, to.Label(), order.Status.Label())
		return order, false, nil
	}
	updated, err := e.Store.TransitionOrder(ctx, domain.OrderTransition{OrderID: order.ID, From: order.Status, To: to, Note: note})
	if apperr.Is(err, apperr.KindValidation) || apperr.Is(err, apperr.KindConflict) {
		t.Replyf(ctx, "Não foi possível atualizar a ordem #%d: %s.", order.ID, apperr.MessageOf(err))
		return order, false, nil
	}
	if err != nil {
		return order, false, fmt.Errorf("transition order %d to %s: %w", order.ID, to, err)
	}
	return updated, true, nil
}

func (e *Engine) local(ts time.Time) time.Time {
	return ts.In(e.Location)
}
