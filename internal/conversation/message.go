// Package conversation defines what flows in and out of the engines: inbound
// channel events, outbound messages and the per-event Turn.
package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MessageType is the kind of inbound event.
type MessageType string

const (
	TypeText     MessageType = "text"
	TypeImage    MessageType = "image"
	TypeVideo    MessageType = "video"
	TypeDocument MessageType = "document"
	TypeAudio    MessageType = "audio"
	TypeButton   MessageType = "button"
	TypeOther    MessageType = "other"
)

// Media is an attachment on an inbound event. Fetch downloads it on demand.
type Media struct {
	MimeType string
	Filename string
	Fetch    func(ctx context.Context) ([]byte, error)
}

// Event is one inbound channel event.
type Event struct {
	MessageID  string
	Sender     string
	ChatID     string
	PushName   string
	Type       MessageType
	Text       string
	ButtonID   string
	Media      *Media
	IsGroup    bool
	ReceivedAt time.Time
}

// Command splits "/enviarpix 5541..." into ("/enviarpix", "5541...").
func (e Event) Command() (name, args string, ok bool) {
	text := strings.TrimSpace(e.Text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	name, args, _ = strings.Cut(text, " ")
	return strings.ToLower(name), strings.TrimSpace(args), true
}

// Choice is the pressed button id, or the lower-cased trimmed text.
func (e Event) Choice() string {
	if e.ButtonID != "" {
		return e.ButtonID
	}
	return strings.ToLower(strings.TrimSpace(e.Text))
}

// Body is the trimmed text.
func (e Event) Body() string {
	return strings.TrimSpace(e.Text)
}

// HasMedia reports whether the event carries an image, video or document.
func (e Event) HasMedia() bool {
	return e.Media != nil && e.Media.Fetch != nil
}

// Attachment is an outbound file.
type Attachment struct {
	MimeType string `json:"mimeType"`
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}

// Option is one button or list row.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Prompt is a structured button/list message.
type Prompt struct {
	Title   string   `json:"title,omitempty"`
	Body    string   `json:"body"`
	Options []Option `json:"options"`
}

// Message is one outbound message. Text doubles as the caption of Media.
type Message struct {
	Text   string      `json:"text,omitempty"`
	Media  *Attachment `json:"media,omitempty"`
	Prompt *Prompt     `json:"prompt,omitempty"`
}

// Text builds a plain text message.
func Text(format string, args ...any) Message {
	if len(args) == 0 {
		return Message{Text: format}
	}
	return Message{Text: fmt.Sprintf(format, args...)}
}

// Buttons builds a button prompt.
func Buttons(title, body string, options ...Option) Message {
	return Message{Prompt: &Prompt{Title: title, Body: body, Options: options}}
}

// Image builds a media message with caption.
func Image(caption, mimeType, filename string, data []byte) Message {
	return Message{Text: caption, Media: &Attachment{MimeType: mimeType, Filename: filename, Data: data}}
}

// Messenger delivers outbound messages. Delivery is fire-and-forget.
type Messenger interface {
	Send(ctx context.Context, to string, msg Message) error
}

// Pick resolves a choice against options by id, by 1-based position or by
// label, returning the option id.
func Pick(choice string, options ...Option) (string, bool) {
	choice = strings.ToLower(strings.TrimSpace(choice))
	if choice == "" {
		return "", false
	}
	if n, err := strconv.Atoi(choice); err == nil {
		if n >= 1 && n <= len(options) {
			return options[n-1].ID, true
		}
		return "", false
	}
	for _, o := range options {
		if choice == o.ID || choice == strings.ToLower(o.Label) {
			return o.ID, true
		}
	}
	return "", false
}

// Index parses a 1-based position within a list of n items.
func Index(choice string, n int) (int, bool) {
	i, err := strconv.Atoi(strings.TrimSpace(choice))
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}
