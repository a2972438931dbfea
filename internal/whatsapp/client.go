// Package whatsapp talks to the messaging gateway: outbound sends, media
// downloads and the inbound webhook payload.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/platform/config"
	"dispatch_bot_backend/platform/logger"
	"dispatch_bot_backend/platform/phone"
)

const maxMediaBytes = 32 << 20

type Client struct {
	baseURL  string
	apiKey   string
	deviceID string
	http     *http.Client
	log      *logger.Logger
}

type textRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type buttonRequest struct {
	Phone   string   `json:"phone"`
	Title   string   `json:"title,omitempty"`
	Body    string   `json:"body"`
	Buttons []button `json:"buttons"`
}

type button struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func NewClient(cfg config.WhatsAppConfig, log *logger.Logger) *Client {
	if cfg.GetWhatsAppURL() == "" {
		return nil
	}
	return newClient(cfg.GetWhatsAppURL(), cfg.GetWhatsAppKey(), cfg.GetWhatsAppDeviceID(), &http.Client{Timeout: 20 * time.Second}, log)
}

func newClient(baseURL, apiKey, deviceID string, hc *http.Client, log *logger.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		deviceID: deviceID,
		http:     hc,
		log:      log,
	}
}

// Send delivers one outbound message, choosing the gateway endpoint by shape.
func (c *Client) Send(ctx context.Context, to string, msg conversation.Message) error {
	if c == nil {
		return nil
	}
	target := phone.Address(to)

	switch {
	case msg.Media != nil:
		field, path := "file", "/send/file"
		if strings.HasPrefix(msg.Media.MimeType, "image/") {
			field, path = "image", "/send/image"
		}
		return c.sendMedia(ctx, path, field, target, msg)
	case msg.Prompt != nil:
		req := buttonRequest{Phone: target, Title: msg.Prompt.Title, Body: PromptText(*msg.Prompt)}
		for _, o := range msg.Prompt.Options {
			req.Buttons = append(req.Buttons, button{ID: o.ID, Text: o.Label})
		}
		return c.postJSON(ctx, "/send/buttons", req)
	default:
		return c.postJSON(ctx, "/send/message", textRequest{Phone: target, Message: msg.Text})
	}
}

// PromptText renders a prompt with numbered options, so a reply by number
// works where buttons are not shown.
func PromptText(p conversation.Prompt) string {
	var b strings.Builder
	b.WriteString(p.Body)
	if len(p.Options) > 0 {
		b.WriteString("\n")
	}
	for i, o := range p.Options {
		fmt.Fprintf(&b, "\n%d. %s", i+1, o.Label)
	}
	return b.String()
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path)
}

func (c *Client) sendMedia(ctx context.Context, path, field, to string, msg conversation.Message) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("phone", to)
	if msg.Text != "" {
		_ = w.WriteField("caption", msg.Text)
	}
	filename := msg.Media.Filename
	if filename == "" {
		filename = field
	}
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("build whatsapp media form: %w", err)
	}
	if _, err := part.Write(msg.Media.Data); err != nil {
		return fmt.Errorf("build whatsapp media form: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("build whatsapp media form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req, path)
}

func (c *Client) do(req *http.Request, path string) error {
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Debug("whatsapp sent via gateway", "endpoint", path)
	return nil
}

// FetchMedia downloads an inbound attachment by the path the gateway reported.
func (c *Client) FetchMedia(ctx context.Context, mediaPath string) ([]byte, error) {
	url := mediaPath
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = c.baseURL + "/" + strings.TrimLeft(mediaPath, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch whatsapp media: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("fetch whatsapp media: gateway returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read whatsapp media: %w", err)
	}
	if len(data) > maxMediaBytes {
		return nil, fmt.Errorf("whatsapp media exceeds %d bytes", maxMediaBytes)
	}
	return data, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", formatAuthHeader(c.apiKey))
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-Id", c.deviceID)
	}
}

func formatAuthHeader(apiKey string) string {
	if strings.HasPrefix(strings.ToLower(apiKey), "basic ") {
		return apiKey
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(apiKey))
	return "Basic " + encoded
}
