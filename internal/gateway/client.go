// Package gateway talks to the messaging gateway that owns the chat session.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	appErrors "github.com/unclebandit/leadpilot-backend/internal/errors"
	"github.com/unclebandit/leadpilot-backend/internal/model"
)

// Payload is either plain text or a media message with an optional caption.
type Payload struct {
	Text  string
	Media *model.Media
}

type Sender interface {
	Send(ctx context.Context, destination string, p Payload) (string, error)
}

type Messenger interface {
	Sender
	SetTyping(ctx context.Context, destination string, on bool) error
	MarkSeen(ctx context.Context, destination string) error
}

type SettingsProvider interface {
	GatewaySettings(ctx context.Context) (model.GatewaySettings, error)
}

// StaticSettings serves fixed settings, typically taken from the environment.
type StaticSettings model.GatewaySettings

func (s StaticSettings) GatewaySettings(context.Context) (model.GatewaySettings, error) {
	return model.GatewaySettings(s), nil
}

type Client struct {
	Settings SettingsProvider
	HTTP     *http.Client

	limiter *rate.Limiter
}

// NewClient builds a gateway client. rps <= 0 disables client-side throttling.
func NewClient(settings SettingsProvider, rps float64) *Client {
	c := &Client{
		Settings: settings,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return c
}

type sendResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
}

func (c *Client) Send(ctx context.Context, destination string, p Payload) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	number := NormalizeAddress(destination)
	var (
		path string
		body map[string]any
	)
	if p.Media != nil {
		path = "/message/sendMedia/"
		body = map[string]any{
			"number":   number,
			"media":    p.Media.URL,
			"mimetype": p.Media.MimeType,
			"caption":  p.Media.Caption,
		}
	} else {
		path = "/message/sendText/"
		body = map[string]any{"number": number, "text": p.Text}
	}

	var resp sendResponse
	if err := c.post(ctx, path, body, &resp); err != nil {
		return "", err
	}
	return resp.Key.ID, nil
}

func (c *Client) SetTyping(ctx context.Context, destination string, on bool) error {
	presence := model.PresencePaused
	if on {
		presence = model.PresenceComposing
	}
	body := map[string]any{"number": NormalizeAddress(destination), "presence": string(presence)}
	return c.post(ctx, "/chat/sendPresence/", body, nil)
}

func (c *Client) MarkSeen(ctx context.Context, destination string) error {
	body := map[string]any{"number": NormalizeAddress(destination)}
	return c.post(ctx, "/chat/markMessageAsRead/", body, nil)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	s, err := c.Settings.GatewaySettings(ctx)
	if err != nil {
		return fmt.Errorf("gateway: resolve settings: %w", err)
	}
	if s.BaseURL == "" || s.Instance == "" {
		return appErrors.ErrGatewayNotConfigured
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("gateway: marshal request: %w", err)
	}

	url := strings.TrimRight(s.BaseURL, "/") + path + s.Instance
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("gateway: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return appErrors.ErrGatewayUnauthorized
	}
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("gateway error: %d %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("gateway: decode response: %w", err)
	}
	return nil
}

// NormalizeAddress strips the session suffix and any non-digit characters.
func NormalizeAddress(address string) string {
	if i := strings.IndexByte(address, '@'); i >= 0 {
		address = address[:i]
	}
	var b strings.Builder
	for _, r := range address {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var _ Messenger = (*Client)(nil)
