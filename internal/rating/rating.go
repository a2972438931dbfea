// Package rating is the shared terminal of every customer flow: a 1-5 score
// stored as a review, after which the session ends.
package rating

import (
	"context"
	"fmt"
	"strings"

	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/internal/session"
)

// State of the rating terminal.
type State uint8

const (
	AwaitingRating State = iota + 1
	AwaitingServiceRating
)

func (State) Flow() session.Flow { return session.FlowRating }

func (s State) String() string {
	switch s {
	case AwaitingRating:
		return "awaiting_rating"
	case AwaitingServiceRating:
		return "awaiting_service_rating"
	default:
		return "rating_unknown"
	}
}

// TypeServiceVisit tags reviews of technician visits.
const TypeServiceVisit = "Serviço Técnico"

const fallbackPhrase = "Agradecemos seu contato!"

// Store is the persistence the terminal needs.
type Store interface {
	InsertReview(ctx context.Context, r domain.Review) error
	RandomPhrase(ctx context.Context) (string, error)
}

// Seeder writes another party's session.
type Seeder interface {
	Seed(ctx context.Context, to string, sess session.Session) error
}

// Engine handles the rating terminal.
type Engine struct {
	store Store
}

// New creates the rating engine.
func New(store Store) *Engine {
	return &Engine{store: store}
}

// Prompt asks the sender of t for a rating and moves them to AwaitingRating.
func (e *Engine) Prompt(ctx context.Context, t *conversation.Turn, clientID int64, rc session.Rating) {
	t.Reply(ctx, e.message(ctx, t))
	t.Start(AwaitingRating, session.Data{ClientID: clientID, Rating: rc})
}

// PromptOther asks another customer for a rating, seeding their session.
func (e *Engine) PromptOther(ctx context.Context, t *conversation.Turn, seeder Seeder, to string, clientID int64, state State, rc session.Rating, lead string) error {
	msg := e.message(ctx, t)
	if lead != "" {
		msg.Text = lead + "\n\n" + msg.Text
	}
	t.SendTo(ctx, to, msg)
	return seeder.Seed(ctx, to, session.Session{State: state, Data: session.Data{ClientID: clientID, Rating: rc}})
}

func (e *Engine) message(ctx context.Context, t *conversation.Turn) conversation.Message {
	phrase, err := e.store.RandomPhrase(ctx)
	if err != nil || phrase == "" {
		if err != nil {
			t.Log(ctx).Warn("daily phrase unavailable", "error", err)
		}
		phrase = fallbackPhrase
	}
	return conversation.Text("%s\n\nPor favor, avalie nosso atendimento com uma nota de *1 a 5*:", phrase)
}

// Handle consumes the answer to a rating prompt.
func (e *Engine) Handle(ctx context.Context, t *conversation.Turn) error {
	st, ok := t.State().(State)
	if !ok {
		return fmt.Errorf("rating: unexpected state %v", t.State())
	}

	switch st {
	case AwaitingRating, AwaitingServiceRating:
		score, valid := Parse(t.Event.Body())
		if !valid {
			t.Replyf(ctx, "Por favor, envie apenas um número de 1 a 5.")
			return nil
		}
		data := t.Data()
		review := domain.Review{
			ClientID:       data.ClientID,
			Rating:         score,
			Type:           data.Rating.Type,
			AgentID:        data.Rating.AgentID,
			AppointmentID:  data.Rating.AppointmentID,
			ServiceOrderID: data.Rating.ServiceOrderID,
		}
		if err := e.store.InsertReview(ctx, review); err != nil {
			return fmt.Errorf("insert review: %w", err)
		}
		t.Replyf(ctx, "Obrigado pela sua avaliação! Até a próxima. 😊")
		t.End()
		return nil
	default:
		return fmt.Errorf("rating: unhandled state %s", st)
	}
}

// Parse accepts a single digit from 1 to 5.
func Parse(input string) (int, bool) {
	input = strings.TrimSpace(input)
	if len(input) != 1 || input[0] < '1' || input[0] > '5' {
		return 0, false
	}
	return int(input[0] - '0'), true
}
