package whatsapp

import (
	"context"
	"strings"
	"time"

	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/platform/phone"
)

// WebhookPayload is the gateway's inbound message notification.
type WebhookPayload struct {
	SenderID  string `json:"sender_id"`
	ChatID    string `json:"chat_id"`
	From      string `json:"from"`
	PushName  string `json:"pushname"`
	Timestamp string `json:"timestamp"`
	IsGroup   bool   `json:"is_group"`
	Message   struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"message"`
	ButtonsResponse *struct {
		SelectedButtonID    string `json:"selected_button_id"`
		SelectedDisplayText string `json:"selected_display_text"`
	} `json:"buttons_response_message,omitempty"`
	Image    *WebhookMedia `json:"image,omitempty"`
	Video    *WebhookMedia `json:"video,omitempty"`
	Document *WebhookMedia `json:"document,omitempty"`
	Audio    *WebhookMedia `json:"audio,omitempty"`
}

// WebhookMedia describes an attachment stored by the gateway.
type WebhookMedia struct {
	MediaPath string `json:"media_path"`
	MimeType  string `json:"mime_type"`
	Caption   string `json:"caption"`
	Filename  string `json:"filename"`
}

// Event converts a payload into an inbound event. It reports false for
// notifications that carry no message (receipts, presence).
func (c *Client) Event(p WebhookPayload, received time.Time) (conversation.Event, bool) {
	sender := p.From
	if sender == "" {
		sender = p.SenderID
	}
	if sender == "" || p.Message.ID == "" {
		return conversation.Event{}, false
	}

	ev := conversation.Event{
		MessageID:  p.Message.ID,
		Sender:     sender,
		ChatID:     p.ChatID,
		PushName:   p.PushName,
		Type:       conversation.TypeText,
		Text:       p.Message.Text,
		IsGroup:    p.IsGroup || phone.IsGroupOrBroadcast(p.ChatID) || phone.IsGroupOrBroadcast(p.From),
		ReceivedAt: received,
	}
	if p.ButtonsResponse != nil && p.ButtonsResponse.SelectedButtonID != "" {
		ev.Type = conversation.TypeButton
		ev.ButtonID = p.ButtonsResponse.SelectedButtonID
		if ev.Text == "" {
			ev.Text = p.ButtonsResponse.SelectedDisplayText
		}
	}

	for _, m := range []struct {
		kind  conversation.MessageType
		media *WebhookMedia
	}{
		{conversation.TypeImage, p.Image},
		{conversation.TypeVideo, p.Video},
		{conversation.TypeDocument, p.Document},
		{conversation.TypeAudio, p.Audio},
	} {
		if m.media == nil || m.media.MediaPath == "" {
			continue
		}
		ev.Type = m.kind
		if ev.Text == "" {
			ev.Text = m.media.Caption
		}
		path := m.media.MediaPath
		ev.Media = &conversation.Media{
			MimeType: strings.ToLower(strings.TrimSpace(strings.SplitN(m.media.MimeType, ";", 2)[0])),
			Filename: m.media.Filename,
			Fetch: func(ctx context.Context) ([]byte, error) {
				return c.FetchMedia(ctx, path)
			},
		}
		break
	}
	return ev, true
}
