package dispatch

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/internal/conversation/conversationtest"
	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/internal/maps"
	"dispatch_bot_backend/internal/rating"
	"dispatch_bot_backend/internal/session"
	"dispatch_bot_backend/platform/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	techAddr     = "5541977770000"
	customerAddr = "5541999990000"
	techID       = int64(4)
	orderID      = int64(5)
)

type fakeStore struct {
	orders      map[int64]domain.OrderDetail
	transitions []domain.OrderTransition
	photos      []domain.ServicePhoto
	statuses    []domain.StaffStatus
	locations   []string
	appts       map[int64]domain.Appointment
}

func (f *fakeStore) GetOrderDetail(_ context.Context, id int64) (domain.OrderDetail, error) {
	o, ok := f.orders[id]
	if !ok {
		return o, apperr.NotFound("ordem não encontrada")
	}
	return o, nil
}

func (f *fakeStore) ActiveOrders(_ context.Context, technicianID int64) ([]domain.OrderDetail, error) {
	var out []domain.OrderDetail
	for _, o := range f.orders {
		if o.TechnicianID == technicianID && !o.Status.Terminal() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeStore) TransitionOrder(_ context.Context, t domain.OrderTransition) (domain.OrderDetail, error) {
	f.transitions = append(f.transitions, t)
	if !domain.CanTransition(t.From, t.To) {
		return domain.OrderDetail{}, apperr.Validation("transição inválida")
	}
	o := f.orders[t.OrderID]
	if o.Status != t.From {
		return domain.OrderDetail{}, apperr.Conflict("a ordem mudou de status")
	}
	if t.To == domain.OrderCompleted && f.count(t.OrderID, domain.PhotoAfter) == 0 {
		return domain.OrderDetail{}, apperr.Validation("envie ao menos uma foto de depois")
	}
	o.Status = t.To
	if t.Note != "" {
		o.Notes = t.Note
	}
	f.orders[t.OrderID] = o
	return o, nil
}

func (f *fakeStore) AddServicePhoto(_ context.Context, p domain.ServicePhoto) (int64, error) {
	f.photos = append(f.photos, p)
	return int64(len(f.photos)), nil
}

func (f *fakeStore) count(orderID int64, kind domain.PhotoType) int {
	n := 0
	for _, p := range f.photos {
		if p.ServiceOrderID == orderID && p.Type == kind {
			n++
		}
	}
	return n
}

func (f *fakeStore) PhotoCounts(_ context.Context, orderID int64) (map[domain.PhotoType]int, error) {
	return map[domain.PhotoType]int{
		domain.PhotoBefore:    f.count(orderID, domain.PhotoBefore),
		domain.PhotoPackaging: f.count(orderID, domain.PhotoPackaging),
		domain.PhotoAfter:     f.count(orderID, domain.PhotoAfter),
	}, nil
}

func (f *fakeStore) SetTechnicianStatus(_ context.Context, _ int64, status domain.StaffStatus) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeStore) SetTechnicianLocation(_ context.Context, _ int64, location string) error {
	f.locations = append(f.locations, location)
	return nil
}

func (f *fakeStore) GetAppointment(_ context.Context, id int64) (domain.Appointment, error) {
	a, ok := f.appts[id]
	if !ok {
		return a, apperr.NotFound("agendamento não encontrado")
	}
	return a, nil
}

type fakeRouter struct {
	route maps.Route
	calls int
}

func (f *fakeRouter) Route(context.Context, string, string) maps.Route {
	f.calls++
	return f.route
}

type fakeFiles struct{ keys []string }

func (f *fakeFiles) UploadFile(_ context.Context, _, folder, fileName, _ string, r io.Reader, _ int64) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	key := folder + "/" + fileName
	f.keys = append(f.keys, key)
	return key, nil
}

type fakeCalendar struct{ deleted []string }

func (f *fakeCalendar) DeleteEvent(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeSessions struct {
	seeded map[string]session.Session
	err    error
}

func (f *fakeSessions) Seed(_ context.Context, to string, sess session.Session) error {
	if f.err != nil {
		return f.err
	}
	f.seeded[to] = sess
	return nil
}

type otherPrompt struct {
	to    string
	state rating.State
	rc    session.Rating
}

type fakeRater struct{ prompts []otherPrompt }

func (f *fakeRater) PromptOther(ctx context.Context, _ *conversation.Turn, seeder rating.Seeder, to string, clientID int64, state rating.State, rc session.Rating, _ string) error {
	f.prompts = append(f.prompts, otherPrompt{to, state, rc})
	return seeder.Seed(ctx, to, session.Session{State: state, Data: session.Data{ClientID: clientID, Rating: rc}})
}

type fixture struct {
	engine   *Engine
	store    *fakeStore
	router   *fakeRouter
	files    *fakeFiles
	calendar *fakeCalendar
	sessions *fakeSessions
	rater    *fakeRater
	out      *conversationtest.Messenger
	tech     domain.Identity
}

func newFixture(status domain.OrderStatus) *fixture {
	f := &fixture{
		store: &fakeStore{
			orders: map[int64]domain.OrderDetail{orderID: {
				ServiceOrder:      domain.ServiceOrder{ID: orderID, AppointmentID: 9, TechnicianID: techID, Status: status},
				ClientID:          10,
				ClientName:        "Maria",
				ClientAddress:     customerAddr,
				ServiceAddress:    "Rua das Flores, 123, Centro, Curitiba - PR",
				Specialty:         "Elétrica",
				TechnicianName:    "Paulo",
				TechnicianAddress: techAddr,
				ScheduledAt:       time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC),
			}},
			appts: map[int64]domain.Appointment{9: {ID: 9, CalendarEventID: "evt-9"}},
		},
		router: &fakeRouter{route: maps.Route{
			DistanceText: "5,2 km",
			DurationText: "14 minutos",
			ETA:          time.Date(2026, 3, 3, 12, 14, 0, 0, time.UTC),
			Steps:        []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7"},
			MapLink:      "https://maps.example/dir",
		}},
		files:    &fakeFiles{},
		calendar: &fakeCalendar{},
		sessions: &fakeSessions{seeded: map[string]session.Session{}},
		rater:    &fakeRater{},
		out:      &conversationtest.Messenger{},
		tech:     conversationtest.Technician(techAddr, techID, "Paulo", "Rua XV de Novembro, 100"),
	}
	f.engine = New(Deps{
		Store:       f.store,
		Router:      f.router,
		Files:       f.files,
		PhotoBucket: "service-photos",
		Calendar:    f.calendar,
		Sessions:    f.sessions,
		Rating:      f.rater,
		Now:         func() time.Time { return time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC) },
	})
	return f
}

func (f *fixture) status() domain.OrderStatus {
	return f.store.orders[orderID].Status
}

func (f *fixture) press(t *testing.T, sess *session.Session, payload string) *session.Session {
	t.Helper()
	turn := conversationtest.ButtonTurn(f.out, f.tech, sess, payload)
	require.NoError(t, f.engine.HandleButton(context.Background(), turn))
	return turn.Session()
}

func (f *fixture) text(t *testing.T, id domain.Identity, sess *session.Session, text string) *session.Session {
	t.Helper()
	turn := conversationtest.Turn(f.out, id, sess, text)
	require.NoError(t, f.engine.Handle(context.Background(), turn))
	return turn.Session()
}

func (f *fixture) photo(t *testing.T, sess *session.Session) *session.Session {
	t.Helper()
	turn := conversationtest.MediaTurn(f.out, f.tech, sess, "image/jpeg", []byte{0xff, 0xd8, 0xff, 0xd9})
	require.NoError(t, f.engine.Handle(context.Background(), turn))
	return turn.Session()
}

func (f *fixture) video(t *testing.T, sess *session.Session) *session.Session {
	t.Helper()
	turn := conversationtest.MediaTurn(f.out, f.tech, sess, "video/mp4", []byte("ftypmp42"))
	require.NoError(t, f.engine.Handle(context.Background(), turn))
	return turn.Session()
}

func (f *fixture) command(t *testing.T, sess *session.Session, text string) *session.Session {
	t.Helper()
	turn := conversationtest.Turn(f.out, f.tech, sess, text)
	name, args, ok := turn.Event.Command()
	require.True(t, ok)
	handled, err := f.engine.HandleCommand(context.Background(), turn, name, args)
	require.NoError(t, err)
	require.True(t, handled)
	return turn.Session()
}

func TestArrivedOnAssignedOrderIsRefused(t *testing.T) {
	f := newFixture(domain.OrderAssigned)

	f.press(t, nil, Payload(ActionArrived, orderID))

	assert.Equal(t, domain.OrderAssigned, f.status())
	assert.Empty(t, f.store.transitions)
	assert.Empty(t, f.out.To(customerAddr))
	assert.True(t, f.out.Contains(techAddr, "Não é possível"))
}

func TestCompletionRefusedWithoutAfterPhotos(t *testing.T) {
	f := newFixture(domain.OrderInProgress)
	f.store.photos = []domain.ServicePhoto{{ServiceOrderID: orderID, Type: domain.PhotoBefore}}

	sess := f.press(t, nil, Payload(ActionCompleteService, orderID))

	assert.Nil(t, sess)
	assert.Equal(t, domain.OrderInProgress, f.status())
	assert.Empty(t, f.store.transitions)
	assert.True(t, f.out.Contains(techAddr, "foto de DEPOIS"))
	assert.Empty(t, f.rater.prompts)
}

func TestOrderOfAnotherTechnicianIsNotFound(t *testing.T) {
	f := newFixture(domain.OrderEnRoute)
	o := f.store.orders[orderID]
	o.TechnicianID = 99
	f.store.orders[orderID] = o

	f.press(t, nil, Payload(ActionArrived, orderID))
	assert.Equal(t, domain.OrderEnRoute, f.status())
	assert.True(t, f.out.Contains(techAddr, "não encontrada"))
}

func TestUnknownPayloadIsRejected(t *testing.T) {
	f := newFixture(domain.OrderAssigned)
	f.press(t, nil, "navigate:abc")
	assert.True(t, f.out.Contains(techAddr, "Ação não reconhecida"))
	assert.Equal(t, 0, f.router.calls)
}

func TestFirstNavigationMovesEnRouteAndNotifiesCustomer(t *testing.T) {
	f := newFixture(domain.OrderAssigned)

	f.press(t, nil, Payload(ActionNavigate, orderID))

	assert.Equal(t, domain.OrderEnRoute, f.status())
	assert.True(t, f.out.Contains(customerAddr, "a caminho"))
	assert.True(t, f.out.Contains(customerAddr, "12:14"))
	summary := f.out.Last(techAddr)
	assert.Contains(t, summary, "5. s5")
	assert.NotContains(t, summary, "s6")
	assert.Contains(t, summary, "... e mais 2 passos")
	assert.Contains(t, summary, "https://maps.example/dir")

	// A second navigation only resends the route.
	f.out.Reset()
	f.press(t, nil, Payload(ActionNavigate, orderID))
	assert.Len(t, f.store.transitions, 1)
	assert.Empty(t, f.out.To(customerAddr))
}

func TestDegradedRouteKeepsStatus(t *testing.T) {
	f := newFixture(domain.OrderAssigned)
	f.router.route = maps.Route{Err: errors.New("boom"), MapLink: "https://maps.example/search"}

	f.press(t, nil, Payload(ActionNavigate, orderID))
	assert.Equal(t, domain.OrderAssigned, f.status())
	assert.True(t, f.out.Contains(techAddr, "https://maps.example/search"))
	assert.Empty(t, f.out.To(customerAddr))
}

func TestNavigationWaitsForLocationThenResumes(t *testing.T) {
	f := newFixture(domain.OrderAssigned)
	f.tech.Technician.Location = ""

	sess := f.press(t, nil, Payload(ActionNavigate, orderID))
	require.NotNil(t, sess)
	assert.Equal(t, AwaitingTechnicianLocation, sess.State)
	assert.True(t, sess.Data.PendingNavigate)
	assert.Equal(t, 0, f.router.calls)

	sess = f.command(t, sess, "/localizacao Rua XV de Novembro, 100")
	assert.Nil(t, sess)
	assert.Equal(t, []string{"Rua XV de Novembro, 100"}, f.store.locations)
	assert.Equal(t, 1, f.router.calls)
	assert.Equal(t, domain.OrderEnRoute, f.status())
}

func TestTypedLocationShorterThanFiveReprompts(t *testing.T) {
	f := newFixture(domain.OrderAssigned)
	sess := &session.Session{State: AwaitingTechnicianLocation, Data: session.Data{OrderID: orderID, PendingNavigate: true}}
	next := f.text(t, f.tech, sess, "rua")
	assert.Equal(t, AwaitingTechnicianLocation, next.State)
	assert.Empty(t, f.store.locations)
}

func TestArrivalAndCustomerConfirmation(t *testing.T) {
	f := newFixture(domain.OrderEnRoute)

	f.press(t, nil, Payload(ActionArrived, orderID))
	assert.Equal(t, domain.OrderArrived, f.status())
	seeded, ok := f.sessions.seeded[customerAddr]
	require.True(t, ok)
	assert.Equal(t, AwaitingArrivalConfirmation, seeded.State)
	assert.Equal(t, orderID, seeded.Data.OrderID)
	assert.True(t, f.out.Contains(customerAddr, "["+Payload(ActionConfirmPresence, orderID)+"]"))

	customer := conversationtest.Customer(customerAddr, &domain.Client{ID: 10, Name: "Maria"})
	turn := conversationtest.ButtonTurn(f.out, customer, &seeded, Payload(ActionConfirmPresence, orderID))
	require.NoError(t, f.engine.Handle(context.Background(), turn))
	assert.Nil(t, turn.Session())
	assert.True(t, f.out.Contains(techAddr, "confirmou presença"))
	assert.Equal(t, domain.OrderArrived, f.status())
}

func TestArrivalWhenCustomerIsBusyStillAcceptsTheirButtons(t *testing.T) {
	f := newFixture(domain.OrderEnRoute)
	f.sessions.err = errors.New("lock timeout")

	f.press(t, nil, Payload(ActionArrived, orderID))
	assert.Equal(t, domain.OrderArrived, f.status())
	assert.Empty(t, f.sessions.seeded)
	assert.Contains(t, f.out.Last(techAddr), "só será registrada se usar os botões")
	assert.True(t, f.out.Contains(customerAddr, "["+Payload(ActionConfirmPresence, orderID)+"]"))

	customer := conversationtest.Customer(customerAddr, &domain.Client{ID: 10, Name: "Maria"})
	turn := conversationtest.ButtonTurn(f.out, customer, nil, Payload(ActionReschedule, orderID))
	handled, err := f.engine.HandleCustomerButton(context.Background(), turn)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Nil(t, turn.Session())
	assert.Equal(t, domain.OrderRescheduled, f.status())
	assert.True(t, f.out.Contains(techAddr, "reagendar"))

	turn = conversationtest.ButtonTurn(f.out, customer, nil, Payload(ActionArrived, orderID))
	handled, err = f.engine.HandleCustomerButton(context.Background(), turn)
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestCustomerRequestsRescheduleOnArrival(t *testing.T) {
	f := newFixture(domain.OrderArrived)
	customer := conversationtest.Customer(customerAddr, &domain.Client{ID: 10, Name: "Maria"})
	sess := &session.Session{State: AwaitingArrivalConfirmation, Data: session.Data{ClientID: 10, OrderID: orderID}}

	next := f.text(t, customer, sess, "2")
	assert.Nil(t, next)
	assert.Equal(t, domain.OrderRescheduled, f.status())
	assert.True(t, f.out.Contains(techAddr, "reagendar"))
}

func TestCustomerCannotAnswerForAnotherClient(t *testing.T) {
	f := newFixture(domain.OrderArrived)
	stranger := conversationtest.Customer("5541911110000", &domain.Client{ID: 77})
	sess := &session.Session{State: AwaitingArrivalConfirmation, Data: session.Data{ClientID: 77, OrderID: orderID}}

	f.text(t, stranger, sess, "2")
	assert.Equal(t, domain.OrderArrived, f.status())
	assert.Empty(t, f.store.transitions)
}

func TestServiceWithPhotosToCompletion(t *testing.T) {
	f := newFixture(domain.OrderArrived)

	sess := f.press(t, nil, Payload(ActionStartService, orderID))
	require.NotNil(t, sess)
	assert.Equal(t, domain.OrderInProgress, f.status())
	assert.Equal(t, AwaitingTechnicianPhotos, sess.State)
	assert.Equal(t, domain.PhotoBefore, sess.Data.PhotoType)
	assert.True(t, f.out.Contains(customerAddr, "iniciou o serviço"))

	sess = f.text(t, f.tech, sess, "pronto")
	assert.Equal(t, AwaitingTechnicianPhotos, sess.State, "an empty batch cannot be closed")

	sess = f.photo(t, sess)
	assert.Equal(t, 1, sess.Data.PhotoCount)
	require.Len(t, f.files.keys, 1)
	assert.Contains(t, f.files.keys[0], "5/before_")

	sess = f.text(t, f.tech, sess, "pronto")
	assert.Nil(t, sess)

	sess = f.press(t, nil, Payload(ActionPhotoAfter, orderID))
	assert.Equal(t, domain.PhotoAfter, sess.Data.PhotoType)
	sess = f.photo(t, sess)
	sess = f.video(t, sess)
	assert.Equal(t, 2, sess.Data.PhotoCount)
	require.Len(t, f.files.keys, 3)
	assert.True(t, strings.HasSuffix(f.files.keys[2], ".mp4"))
	last := f.store.photos[len(f.store.photos)-1]
	assert.Equal(t, domain.PhotoAfter, last.Type)
	assert.Equal(t, "Vídeo de "+domain.PhotoAfter.Label(), last.Description)
	assert.Contains(t, f.out.Last(techAddr), "Vídeo 2")
	sess = f.text(t, f.tech, sess, "Concluir")
	assert.Nil(t, sess)
	assert.True(t, f.out.Contains(techAddr, "["+Payload(ActionCompleteService, orderID)+"]"))

	sess = f.press(t, nil, Payload(ActionCompleteService, orderID))
	require.NotNil(t, sess)
	assert.Equal(t, AwaitingServiceDescription, sess.State)

	sess = f.text(t, f.tech, sess, "curto")
	assert.Equal(t, AwaitingServiceDescription, sess.State)
	assert.Equal(t, domain.OrderInProgress, f.status())

	sess = f.text(t, f.tech, sess, "Troca do disjuntor geral e revisão do quadro")
	assert.Nil(t, sess)
	assert.Equal(t, domain.OrderCompleted, f.status())
	require.Len(t, f.rater.prompts, 1)
	p := f.rater.prompts[0]
	assert.Equal(t, customerAddr, p.to)
	assert.Equal(t, rating.AwaitingServiceRating, p.state)
	assert.Equal(t, rating.TypeServiceVisit, p.rc.Type)
	require.NotNil(t, p.rc.ServiceOrderID)
	assert.Equal(t, orderID, *p.rc.ServiceOrderID)
	assert.Equal(t, rating.AwaitingServiceRating, f.sessions.seeded[customerAddr].State)
	assert.True(t, f.out.Contains(techAddr, "0 ordem(ns) pendente(s)"))
}

func TestRejectWithReason(t *testing.T) {
	f := newFixture(domain.OrderAssigned)

	sess := f.press(t, nil, Payload(ActionReject, orderID))
	require.Equal(t, AwaitingRejectionReason, sess.State)

	sess = f.text(t, f.tech, sess, "não")
	assert.Equal(t, AwaitingRejectionReason, sess.State)

	sess = f.text(t, f.tech, sess, "Sem peça disponível")
	assert.Nil(t, sess)
	assert.Equal(t, domain.OrderRejected, f.status())
	assert.Contains(t, f.store.orders[orderID].Notes, "Sem peça disponível")
	assert.True(t, f.out.Contains(customerAddr, "não poderá atender"))
}

func TestClientAbsentThenCancelRemovesCalendarEvent(t *testing.T) {
	f := newFixture(domain.OrderArrived)

	sess := f.press(t, nil, Payload(ActionClientAbsent, orderID))
	require.Equal(t, AwaitingRescheduleDecision, sess.State)
	assert.Equal(t, domain.OrderClientAbsent, f.status())
	assert.True(t, f.out.Contains(customerAddr, "não encontrou ninguém"))

	sess = f.text(t, f.tech, sess, "2")
	assert.Nil(t, sess)
	assert.Equal(t, domain.OrderCancelled, f.status())
	assert.Equal(t, []string{"evt-9"}, f.calendar.deleted)
	assert.True(t, f.out.Contains(customerAddr, "cancelada"))
}

func TestRescheduleYesButton(t *testing.T) {
	f := newFixture(domain.OrderClientAbsent)
	f.press(t, nil, Payload(ActionRescheduleYes, orderID))
	assert.Equal(t, domain.OrderRescheduled, f.status())
	assert.Empty(t, f.calendar.deleted)
}

func TestOrderCommandShowsPhotoCountsAndButtons(t *testing.T) {
	f := newFixture(domain.OrderInProgress)
	f.store.photos = []domain.ServicePhoto{{ServiceOrderID: orderID, Type: domain.PhotoBefore}}

	f.command(t, nil, "/ordem 5")
	last := f.out.Last(techAddr)
	assert.Contains(t, last, "antes 1, embalagem 0, depois 0")
	assert.Contains(t, last, "["+Payload(ActionCompleteService, orderID)+"]")

	f.command(t, nil, "/ordem 77")
	assert.Contains(t, f.out.Last(techAddr), "não encontrada")
}

func TestStatusAndOrdersCommands(t *testing.T) {
	f := newFixture(domain.OrderAssigned)

	f.command(t, nil, "/status offline")
	assert.Equal(t, []domain.StaffStatus{domain.StaffOffline}, f.store.statuses)

	f.command(t, nil, "/status dormindo")
	assert.Len(t, f.store.statuses, 1)
	assert.Contains(t, f.out.Last(techAddr), "Uso: /status")

	f.command(t, nil, "/ordens")
	assert.Contains(t, f.out.Last(techAddr), "#5 - Elétrica - Maria")
}

func TestParsePayload(t *testing.T) {
	a, id, ok := ParsePayload("arrived:42")
	assert.True(t, ok)
	assert.Equal(t, ActionArrived, a)
	assert.Equal(t, int64(42), id)

	a, id, ok = ParsePayload("upload_photos")
	assert.True(t, ok)
	assert.Equal(t, ActionUploadPhotos, a)
	assert.Zero(t, id)

	_, _, ok = ParsePayload("arrived:-1")
	assert.False(t, ok)
	_, _, ok = ParsePayload("")
	assert.False(t, ok)
}
