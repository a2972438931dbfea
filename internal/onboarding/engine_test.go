package onboarding

import (
	"context"
	"testing"
	"time"

	"dispatch_bot_backend/internal/calendar"
	"dispatch_bot_backend/internal/catalog"
	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/internal/conversation/conversationtest"
	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/internal/session"
	"dispatch_bot_backend/platform/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const customerAddr = "5541999990000"

type upsertCall struct {
	address, name, postal string
}

type fakeStore struct {
	upserts      []upsertCall
	interactions []string
	created      []domain.NewAppointment
	upcoming     []domain.Appointment
	cancelled    []int64
	appointments map[int64]domain.Appointment
}

func (f *fakeStore) UpsertClient(_ context.Context, address, name, postal string) (domain.Client, error) {
	f.upserts = append(f.upserts, upsertCall{address, name, postal})
	return domain.Client{ID: 10, Address: address, Name: name, PostalAddress: postal}, nil
}

func (f *fakeStore) RecordInteraction(_ context.Context, _ int64, kind string) error {
	f.interactions = append(f.interactions, kind)
	return nil
}

func (f *fakeStore) GetAppointment(_ context.Context, id int64) (domain.Appointment, error) {
	a, ok := f.appointments[id]
	if !ok {
		return a, apperr.NotFound("agendamento não encontrado")
	}
	return a, nil
}

func (f *fakeStore) CreateAppointment(_ context.Context, p domain.NewAppointment) (domain.Appointment, error) {
	f.created = append(f.created, p)
	return domain.Appointment{ID: 77, ClientID: p.ClientID, Specialty: p.Specialty, ScheduledAt: p.ScheduledAt, Status: domain.AppointmentScheduled, CalendarEventID: p.CalendarEventID}, nil
}

func (f *fakeStore) UpcomingAppointments(context.Context, int64) ([]domain.Appointment, error) {
	return f.upcoming, nil
}

func (f *fakeStore) CancelAppointment(_ context.Context, _ int64, id int64) (domain.Appointment, error) {
	f.cancelled = append(f.cancelled, id)
	for _, a := range f.upcoming {
		if a.ID == id {
			a.Status = domain.AppointmentCancelled
			return a, nil
		}
	}
	return domain.Appointment{}, apperr.NotFound("agendamento não encontrado")
}

type fakeCalendar struct {
	created []calendar.Event
	deleted []string
}

func (f *fakeCalendar) CreateEvent(_ context.Context, ev calendar.Event) (string, error) {
	f.created = append(f.created, ev)
	return "evt-1", nil
}

func (f *fakeCalendar) DeleteEvent(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeReminders struct{ scheduled []int64 }

func (f *fakeReminders) RemindBefore(_ context.Context, appt domain.Appointment, _ string) error {
	f.scheduled = append(f.scheduled, appt.ID)
	return nil
}

type fakeRater struct{ prompts []session.Rating }

func (f *fakeRater) Prompt(_ context.Context, t *conversation.Turn, clientID int64, rc session.Rating) {
	f.prompts = append(f.prompts, rc)
	t.Start(testRatingState{}, session.Data{ClientID: clientID, Rating: rc})
}

type testRatingState struct{}

func (testRatingState) Flow() session.Flow { return session.FlowRating }
func (testRatingState) String() string     { return "awaiting_rating" }

type fakeStarter struct{ started int }

func (f *fakeStarter) Start(context.Context, *conversation.Turn) error {
	f.started++
	return nil
}

type fixture struct {
	engine    *Engine
	store     *fakeStore
	calendar  *fakeCalendar
	reminders *fakeReminders
	rater     *fakeRater
	finance   *fakeStarter
	support   *fakeStarter
	out       *conversationtest.Messenger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat, err := catalog.Load("")
	require.NoError(t, err)

	f := &fixture{
		store:     &fakeStore{appointments: map[int64]domain.Appointment{}},
		calendar:  &fakeCalendar{},
		reminders: &fakeReminders{},
		rater:     &fakeRater{},
		finance:   &fakeStarter{},
		support:   &fakeStarter{},
		out:       &conversationtest.Messenger{},
	}
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	f.engine = New(Deps{
		Store:     f.store,
		Calendar:  f.calendar,
		Reminders: f.reminders,
		Catalog:   cat,
		Rating:    f.rater,
		Finance:   f.finance,
		Support:   f.support,
		Location:  loc,
		Now:       func() time.Time { return time.Date(2026, 3, 2, 12, 0, 0, 0, loc) },
	})
	return f
}

// send runs one text event against sess and returns the resulting session.
func (f *fixture) send(t *testing.T, id domain.Identity, sess *session.Session, text string) *session.Session {
	t.Helper()
	turn := conversationtest.Turn(f.out, id, sess, text)
	if sess == nil {
		require.NoError(t, f.engine.Start(context.Background(), turn))
	} else {
		require.NoError(t, f.engine.Handle(context.Background(), turn))
	}
	return turn.Session()
}

func TestRegistrationScenario(t *testing.T) {
	f := newFixture(t)
	id := conversationtest.Customer(customerAddr, nil)

	sess := f.send(t, id, nil, "oi")
	require.NotNil(t, sess)
	assert.Equal(t, AwaitingName, sess.State)

	sess = f.send(t, id, sess, "João Silva")
	assert.Equal(t, AwaitingAddress, sess.State)

	sess = f.send(t, id, sess, "Rua das Flores, 123, Centro, Curitiba - PR")
	assert.Equal(t, AwaitingAddressConfirmation, sess.State)
	assert.True(t, f.out.Contains(customerAddr, "João Silva"))

	sess = f.send(t, id, sess, "1")
	require.Len(t, f.store.upserts, 1)
	assert.Equal(t, upsertCall{customerAddr, "João Silva", "Rua das Flores, 123, Centro, Curitiba - PR"}, f.store.upserts[0])
	assert.Equal(t, AwaitingMenuChoice, sess.State)
	assert.Equal(t, int64(10), sess.Data.ClientID)
	assert.True(t, f.out.Contains(customerAddr, "Agendar Serviço Técnico"))
}

func TestInvalidNameRepromptsWithoutStateChange(t *testing.T) {
	f := newFixture(t)
	id := conversationtest.Customer(customerAddr, nil)
	sess := &session.Session{State: AwaitingName}

	next := f.send(t, id, sess, "J")
	assert.Equal(t, AwaitingName, next.State)
	assert.True(t, f.out.Contains(customerAddr, "nome válido"))

	next = f.send(t, id, next, "R2-D2")
	assert.Equal(t, AwaitingName, next.State)
}

func TestInvalidAddressReprompts(t *testing.T) {
	f := newFixture(t)
	id := conversationtest.Customer(customerAddr, nil)
	sess := &session.Session{State: AwaitingAddress, Data: session.Data{DraftName: "Ana"}}

	next := f.send(t, id, sess, "Rua sem número")
	assert.Equal(t, AwaitingAddress, next.State)
	assert.Empty(t, next.Data.DraftAddress)
}

func TestRedoNameKeepsAddress(t *testing.T) {
	f := newFixture(t)
	id := conversationtest.Customer(customerAddr, nil)
	sess := &session.Session{State: AwaitingAddressConfirmation, Data: session.Data{DraftName: "Joao", DraftAddress: "Rua B, 100, Centro"}}

	sess = f.send(t, id, sess, "2")
	assert.Equal(t, AwaitingName, sess.State)

	sess = f.send(t, id, sess, "João Souza")
	assert.Equal(t, AwaitingAddressConfirmation, sess.State)
	assert.Equal(t, "Rua B, 100, Centro", sess.Data.DraftAddress)
}

func returning(last string, lastAppt *int64) domain.Identity {
	return conversationtest.Customer(customerAddr, &domain.Client{
		ID:                  10,
		Name:                "Maria",
		PostalAddress:       "Rua C, 45, Batel",
		LastInteractionType: last,
		LastAppointmentID:   lastAppt,
	})
}

func TestReturningCustomerUpdateAddressUpserts(t *testing.T) {
	f := newFixture(t)
	id := returning("", nil)

	sess := f.send(t, id, nil, "olá")
	assert.Equal(t, AwaitingWelcomeChoice, sess.State)
	assert.False(t, f.out.Contains(customerAddr, "repeat_last"))

	turn := conversationtest.ButtonTurn(f.out, id, sess, "update_data")
	require.NoError(t, f.engine.Handle(context.Background(), turn))
	sess = turn.Session()
	assert.Equal(t, AwaitingDataUpdateChoice, sess.State)

	sess = f.send(t, id, sess, "2")
	assert.Equal(t, AwaitingNewAddress, sess.State)

	sess = f.send(t, id, sess, "Av. Sete de Setembro, 2000, Curitiba")
	assert.Equal(t, AwaitingUpdateConfirmation, sess.State)

	sess = f.send(t, id, sess, "1")
	require.Len(t, f.store.upserts, 1)
	assert.Equal(t, upsertCall{customerAddr, "Maria", "Av. Sete de Setembro, 2000, Curitiba"}, f.store.upserts[0])
	assert.Equal(t, AwaitingMenuChoice, sess.State)
}

func TestUpdateConfirmationCancelWritesNothing(t *testing.T) {
	f := newFixture(t)
	id := returning("", nil)
	sess := &session.Session{State: AwaitingUpdateConfirmation, Data: session.Data{ClientID: 10, Name: "Maria", DraftName: "Mariana"}}

	sess = f.send(t, id, sess, "2")
	assert.Empty(t, f.store.upserts)
	assert.Equal(t, AwaitingMenuChoice, sess.State)
	assert.Equal(t, "Maria", sess.Data.Name)
}

func TestRepeatLastBookingStartsAtProblem(t *testing.T) {
	f := newFixture(t)
	apptID := int64(5)
	f.store.appointments[apptID] = domain.Appointment{ID: apptID, Specialty: "Eletricista", ScheduledAt: time.Date(2026, 2, 1, 13, 0, 0, 0, time.UTC)}
	id := returning(domain.InteractionBooking, &apptID)

	sess := f.send(t, id, nil, "oi")
	assert.True(t, f.out.Contains(customerAddr, "Eletricista"))

	sess = f.send(t, id, sess, "1")
	assert.Equal(t, AwaitingProblemDescription, sess.State)
	assert.Equal(t, "Eletricista", sess.Data.Specialty)
}

func TestRepeatLastFinanceDelegates(t *testing.T) {
	f := newFixture(t)
	id := returning(domain.InteractionFinance, nil)

	sess := f.send(t, id, nil, "oi")
	f.send(t, id, sess, "repeat_last")
	assert.Equal(t, 1, f.finance.started)
}

func TestMenuChoiceRecordsInteraction(t *testing.T) {
	f := newFixture(t)
	id := returning("", nil)
	sess := &session.Session{State: AwaitingMenuChoice, Data: session.Data{ClientID: 10}}

	f.send(t, id, sess, "3")
	assert.Equal(t, []string{domain.InteractionSupport}, f.store.interactions)
	assert.Equal(t, 1, f.support.started)

	next := f.send(t, id, sess, "9")
	assert.Equal(t, AwaitingMenuChoice, next.State)
	assert.Len(t, f.store.interactions, 1)
}

func TestBookingCreatesEventAppointmentReminderAndRating(t *testing.T) {
	f := newFixture(t)
	id := returning("", nil)
	sess := &session.Session{State: AwaitingMenuChoice, Data: session.Data{ClientID: 10, Name: "Maria", Address: "Rua C, 45, Batel"}}

	sess = f.send(t, id, sess, "2")
	assert.Equal(t, AwaitingSpecialty, sess.State)
	sess = f.send(t, id, sess, "Eletricista")
	sess = f.send(t, id, sess, "Tomada da cozinha queimada")
	assert.Equal(t, AwaitingAvailability, sess.State)
	sess = f.send(t, id, sess, "10/03 às 14:30")

	require.Len(t, f.calendar.created, 1)
	require.Len(t, f.store.created, 1)
	created := f.store.created[0]
	assert.Equal(t, "evt-1", created.CalendarEventID)
	assert.Equal(t, "10/03 às 14:30", created.RequestedText)
	assert.Equal(t, 14, created.ScheduledAt.Hour())
	assert.Equal(t, time.Hour, f.calendar.created[0].End.Sub(f.calendar.created[0].Start))
	assert.Equal(t, []int64{77}, f.reminders.scheduled)

	require.Len(t, f.rater.prompts, 1)
	assert.Equal(t, domain.InteractionBooking, f.rater.prompts[0].Type)
	assert.Equal(t, session.FlowRating, sess.State.Flow())
}

func TestCancelFlow(t *testing.T) {
	f := newFixture(t)
	f.store.upcoming = []domain.Appointment{
		{ID: 3, Specialty: "Hidráulica", ScheduledAt: time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC), CalendarEventID: "evt-3"},
	}
	id := returning("", nil)
	sess := &session.Session{State: AwaitingMenuChoice, Data: session.Data{ClientID: 10}}

	sess = f.send(t, id, sess, "5")
	assert.Equal(t, AwaitingCancelChoice, sess.State)

	next := f.send(t, id, sess, "4")
	assert.Equal(t, AwaitingCancelChoice, next.State)
	assert.Empty(t, f.store.cancelled)

	next = f.send(t, id, sess, "1")
	assert.Equal(t, []int64{3}, f.store.cancelled)
	assert.Equal(t, []string{"evt-3"}, f.calendar.deleted)
	require.Len(t, f.rater.prompts, 1)
	assert.Equal(t, domain.InteractionCancelation, f.rater.prompts[0].Type)
	assert.Equal(t, session.FlowRating, next.State.Flow())
}

func TestCancelWithoutAppointmentsReturnsToMenu(t *testing.T) {
	f := newFixture(t)
	id := returning("", nil)
	sess := &session.Session{State: AwaitingMenuChoice, Data: session.Data{ClientID: 10}}

	sess = f.send(t, id, sess, "5")
	assert.Equal(t, AwaitingMenuChoice, sess.State)
	assert.True(t, f.out.Contains(customerAddr, "não possui agendamentos"))
}

func TestInfoShowsServiceThenRating(t *testing.T) {
	f := newFixture(t)
	id := returning("", nil)
	sess := &session.Session{State: AwaitingMenuChoice, Data: session.Data{ClientID: 10}}

	sess = f.send(t, id, sess, "4")
	assert.Equal(t, AwaitingInfoChoice, sess.State)

	sess = f.send(t, id, sess, "2")
	assert.True(t, f.out.Contains(customerAddr, "Hidráulica"))
	require.Len(t, f.rater.prompts, 1)
	assert.Equal(t, domain.InteractionInfo, f.rater.prompts[0].Type)
	assert.Equal(t, session.FlowRating, sess.State.Flow())
}

func TestParseAvailability(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, loc)

	at, ok := ParseAvailability("20/06 às 10:00", now, loc)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 6, 20, 10, 0, 0, 0, loc), at)

	at, ok = ParseAvailability("01/02 9h", now, loc)
	require.True(t, ok)
	assert.Equal(t, time.Date(2027, 2, 1, 9, 0, 0, 0, loc), at)

	at, ok = ParseAvailability("15/04/2026 08:15", now, loc)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 4, 15, 8, 15, 0, 0, loc), at)

	at, ok = ParseAvailability("amanhã de manhã", now, loc)
	assert.False(t, ok)
	assert.Equal(t, time.Date(2026, 3, 3, 9, 0, 0, 0, loc), at)

	_, ok = ParseAvailability("31/02 10:00", now, loc)
	assert.False(t, ok)
}
