package whatsapp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	path   string
	auth   string
	ctype  string
	body   []byte
	fields map[string]string
	file   []byte
}

type recorder struct {
	mu    sync.Mutex
	calls []captured
}

func (r *recorder) all() []captured {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]captured(nil), r.calls...)
}

func gateway(t *testing.T) (*Client, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := captured{path: r.URL.Path, auth: r.Header.Get("Authorization"), ctype: r.Header.Get("Content-Type")}
		switch {
		case r.Method == http.MethodGet:
		case strings.HasPrefix(c.ctype, "multipart/"):
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			c.fields = map[string]string{}
			for k, v := range r.MultipartForm.Value {
				c.fields[k] = v[0]
			}
			for _, fhs := range r.MultipartForm.File {
				if f, err := fhs[0].Open(); err == nil {
					c.file, _ = io.ReadAll(f)
					_ = f.Close()
				}
			}
		default:
			c.body, _ = io.ReadAll(r.Body)
		}
		rec.mu.Lock()
		rec.calls = append(rec.calls, c)
		rec.mu.Unlock()
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte("media-bytes"))
		}
	}))
	t.Cleanup(srv.Close)
	return newClient(srv.URL, "user:pass", "dev-1", srv.Client(), logger.Discard()), rec
}

func TestSendPicksEndpointByShape(t *testing.T) {
	c, calls := gateway(t)
	ctx := context.Background()

	require.NoError(t, c.Send(ctx, "5541999990000@s.whatsapp.net", conversation.Text("olá")))
	require.NoError(t, c.Send(ctx, "5541999990000", conversation.Buttons("Menu", "Escolha", conversation.Option{ID: "a", Label: "Alfa"})))
	require.NoError(t, c.Send(ctx, "5541999990000", conversation.Image("qr", "image/png", "pix.png", []byte{1, 2, 3})))
	require.NoError(t, c.Send(ctx, "5541999990000", conversation.Image("fatura", "application/pdf", "fatura.pdf", []byte{4})))

	got := calls.all()
	require.Len(t, got, 4)

	assert.Equal(t, "/send/message", got[0].path)
	assert.Equal(t, "Basic dXNlcjpwYXNz", got[0].auth)
	var text textRequest
	require.NoError(t, json.Unmarshal(got[0].body, &text))
	assert.Equal(t, "5541999990000", text.Phone)
	assert.Equal(t, "olá", text.Message)

	assert.Equal(t, "/send/buttons", got[1].path)
	var buttons buttonRequest
	require.NoError(t, json.Unmarshal(got[1].body, &buttons))
	assert.Equal(t, "Escolha\n\n1. Alfa", buttons.Body)
	assert.Equal(t, []button{{ID: "a", Text: "Alfa"}}, buttons.Buttons)

	assert.Equal(t, "/send/image", got[2].path)
	assert.Equal(t, "qr", got[2].fields["caption"])
	assert.Equal(t, []byte{1, 2, 3}, got[2].file)

	assert.Equal(t, "/send/file", got[3].path)
	assert.Equal(t, "5541999990000", got[3].fields["phone"])
}

func TestSendReportsGatewayErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "device offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	c := newClient(srv.URL, "", "", srv.Client(), logger.Discard())

	err := c.Send(context.Background(), "5541999990000", conversation.Text("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "device offline")
}

func TestNilClientDropsMessages(t *testing.T) {
	var c *Client
	assert.NoError(t, c.Send(context.Background(), "1", conversation.Text("x")))
}

func TestEventFromPayload(t *testing.T) {
	c, calls := gateway(t)
	raw := `{
		"sender_id": "5541999990000",
		"chat_id": "5541999990000@s.whatsapp.net",
		"from": "5541999990000@s.whatsapp.net",
		"pushname": "João",
		"message": {"id": "3EB0A", "text": ""},
		"image": {"media_path": "statics/media/abc.jpg", "mime_type": "image/jpeg; codecs=x", "caption": "antes"}
	}`
	var p WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	ev, ok := c.Event(p, time.Now())
	require.True(t, ok)
	assert.Equal(t, "3EB0A", ev.MessageID)
	assert.Equal(t, conversation.TypeImage, ev.Type)
	assert.Equal(t, "antes", ev.Text)
	assert.False(t, ev.IsGroup)
	require.True(t, ev.HasMedia())
	assert.Equal(t, "image/jpeg", ev.Media.MimeType)

	data, err := ev.Media.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "media-bytes", string(data))
	assert.Equal(t, "/statics/media/abc.jpg", calls.all()[0].path)
}

func TestEventFromButtonAndGroupPayloads(t *testing.T) {
	c, _ := gateway(t)

	var p WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(`{
		"from": "5541977770000@s.whatsapp.net",
		"message": {"id": "B1"},
		"buttons_response_message": {"selected_button_id": "arrived:5", "selected_display_text": "Cheguei"}
	}`), &p))
	ev, ok := c.Event(p, time.Now())
	require.True(t, ok)
	assert.Equal(t, conversation.TypeButton, ev.Type)
	assert.Equal(t, "arrived:5", ev.ButtonID)
	assert.Equal(t, "Cheguei", ev.Text)

	p = WebhookPayload{From: "5541977770000@s.whatsapp.net", ChatID: "120363@g.us"}
	p.Message.ID = "G1"
	ev, ok = c.Event(p, time.Now())
	require.True(t, ok)
	assert.True(t, ev.IsGroup)

	_, ok = c.Event(WebhookPayload{From: "5541977770000"}, time.Now())
	assert.False(t, ok)
}
