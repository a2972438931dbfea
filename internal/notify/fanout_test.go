package notify

import (
	"context"
	"testing"
	"time"

	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/internal/conversation/conversationtest"
	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/internal/session"
	"dispatch_bot_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticStaff []domain.Staff

func (s staticStaff) AvailableAgents(context.Context) ([]domain.Staff, error) { return s, nil }

type probeState struct{}

func (probeState) Flow() session.Flow { return session.FlowDispatch }
func (probeState) String() string     { return "probe" }

func TestNotifyAvailableAgentsKeepsPerAgentOrder(t *testing.T) {
	out := &conversationtest.Messenger{}
	staff := staticStaff{{ID: 1, Address: "a1"}, {ID: 2, Address: "a2"}}
	f := New(out, session.NewStore(time.Hour), staff, time.Second, logger.Discard())

	n, err := f.NotifyAvailableAgents(context.Background(), conversation.Text("first"), conversation.Text("second"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, addr := range []string{"a1", "a2"} {
		msgs := out.To(addr)
		require.Len(t, msgs, 2)
		assert.Equal(t, "first", msgs[0].Text)
		assert.Equal(t, "second", msgs[1].Text)
	}
}

func TestSeedTimesOutWhenTargetIsBusy(t *testing.T) {
	store := session.NewStore(time.Hour)
	f := New(&conversationtest.Messenger{}, store, staticStaff{}, 20*time.Millisecond, logger.Discard())

	unlock, err := store.Lock(context.Background(), "customer")
	require.NoError(t, err)
	defer unlock()

	err = f.Seed(context.Background(), "customer", session.Session{State: probeState{}})
	require.Error(t, err)
	_, ok := store.Get("customer")
	assert.False(t, ok)
}
