package outbound

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	sent []string
	fail string
}

func (r *recorder) Send(_ context.Context, to string, msg conversation.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg.Text == r.fail {
		return errors.New("gateway down")
	}
	r.sent = append(r.sent, to+":"+msg.Text)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func TestQueueDeliversInPublishOrder(t *testing.T) {
	rec := &recorder{fail: "m3"}
	q := New(rec, logger.Discard())
	require.NoError(t, q.Start(context.Background()))

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Send(context.Background(), "5541999990000", conversation.Text("m%d", i)))
	}
	require.Eventually(t, func() bool { return rec.count() == 9 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, q.Close())

	want := make([]string, 0, 9)
	for i := 0; i < 10; i++ {
		if i != 3 {
			want = append(want, fmt.Sprintf("5541999990000:m%d", i))
		}
	}
	assert.Equal(t, want, rec.sent)
}

func TestQueueCarriesMedia(t *testing.T) {
	var got conversation.Message
	done := make(chan struct{})
	q := New(messengerFunc(func(_ context.Context, _ string, msg conversation.Message) error {
		got = msg
		close(done)
		return nil
	}), logger.Discard())
	require.NoError(t, q.Start(context.Background()))
	defer q.Close()

	require.NoError(t, q.Send(context.Background(), "1", conversation.Image("qr", "image/png", "pix.png", []byte{9, 8})))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
	require.NotNil(t, got.Media)
	assert.Equal(t, []byte{9, 8}, got.Media.Data)
	assert.Equal(t, "qr", got.Text)
}

type messengerFunc func(ctx context.Context, to string, msg conversation.Message) error

func (f messengerFunc) Send(ctx context.Context, to string, msg conversation.Message) error {
	return f(ctx, to, msg)
}
