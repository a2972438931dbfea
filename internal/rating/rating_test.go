package rating

import (
	"context"
	"testing"

	"dispatch_bot_backend/internal/conversation/conversationtest"
	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	reviews []domain.Review
	phrase  string
}

func (f *fakeStore) InsertReview(_ context.Context, r domain.Review) error {
	f.reviews = append(f.reviews, r)
	return nil
}

func (f *fakeStore) RandomPhrase(context.Context) (string, error) { return f.phrase, nil }

const customer = "5541999990000"

func ratingSession() *session.Session {
	agentID := int64(7)
	return &session.Session{
		State: AwaitingRating,
		Data:  session.Data{ClientID: 3, Rating: session.Rating{Type: "Suporte com Ana", AgentID: &agentID}},
	}
}

func TestOutOfRangeRatingNeverWritesReview(t *testing.T) {
	store := &fakeStore{}
	engine := New(store)
	out := &conversationtest.Messenger{}

	for _, input := range []string{"0", "6", "-1", "abc", "", "3.5", "10", "cinco"} {
		turn := conversationtest.Turn(out, conversationtest.Customer(customer, &domain.Client{ID: 3}), ratingSession(), input)
		require.NoError(t, engine.Handle(context.Background(), turn))

		assert.Equal(t, AwaitingRating, turn.State(), input)
		assert.Contains(t, out.Last(customer), "1 a 5", input)
	}
	assert.Empty(t, store.reviews)
}

func TestValidRatingStoresReviewAndEndsSession(t *testing.T) {
	store := &fakeStore{}
	engine := New(store)
	out := &conversationtest.Messenger{}

	turn := conversationtest.Turn(out, conversationtest.Customer(customer, &domain.Client{ID: 3}), ratingSession(), " 4 ")
	require.NoError(t, engine.Handle(context.Background(), turn))

	require.Len(t, store.reviews, 1)
	got := store.reviews[0]
	assert.Equal(t, int64(3), got.ClientID)
	assert.Equal(t, 4, got.Rating)
	assert.Equal(t, "Suporte com Ana", got.Type)
	require.NotNil(t, got.AgentID)
	assert.Equal(t, int64(7), *got.AgentID)
	assert.Nil(t, turn.Session())
}

func TestPromptFallsBackToDefaultPhrase(t *testing.T) {
	engine := New(&fakeStore{})
	out := &conversationtest.Messenger{}
	turn := conversationtest.Turn(out, conversationtest.Customer(customer, &domain.Client{ID: 3}), nil, "")

	engine.Prompt(context.Background(), turn, 3, session.Rating{Type: domain.InteractionFinance})

	assert.Contains(t, out.Last(customer), "Agradecemos seu contato!")
	assert.Equal(t, AwaitingRating, turn.State())
	assert.Equal(t, domain.InteractionFinance, turn.Data().Rating.Type)
}

func TestParse(t *testing.T) {
	for i := 1; i <= 5; i++ {
		n, ok := Parse(string(rune('0' + i)))
		assert.True(t, ok)
		assert.Equal(t, i, n)
	}
	n, ok := Parse(" 4 ")
	assert.True(t, ok)
	assert.Equal(t, 4, n)
	for _, in := range []string{"", "0", "6", "+3", "03", "3.0", "１", "10", "três"} {
		_, ok := Parse(in)
		assert.False(t, ok, in)
	}
}
