// Package generator calls the language model that drafts conversational replies.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/unclebandit/leadpilot-backend/internal/model"
)

// PartSeparator splits one reply into several chat messages.
const PartSeparator = "|||"

const outputContract = `Answer ONLY with a JSON object:
{"intent": "won|lost|negotiation|info|neutral", "value": number or null, "name": string or null, "reply": string, "reasoning": string}
Use "won" only when the customer clearly agreed to buy, "value" for an agreed price and "name" for the customer's real name if they told it.
To send the reply as several messages separate them with ` + PartSeparator + `.`

// Prompt is the assembled context for one turn.
type Prompt struct {
	Model        string
	Temperature  float64
	Instructions string
	DisplayName  string
	History      []model.Message
	Message      string
}

type Generator interface {
	Generate(ctx context.Context, p Prompt) (*model.Reply, error)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client speaks the chat-completions protocol.
type Client struct {
	BaseURL      string
	APIKey       string
	DefaultModel string
	HTTP         *http.Client
}

func NewClient(baseURL, apiKey, defaultModel string) *Client {
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		APIKey:       apiKey,
		DefaultModel: defaultModel,
		HTTP:         &http.Client{Timeout: 60 * time.Second},
	}
}

// BuildMessages lays out system instructions, history and the new turn.
func BuildMessages(p Prompt) []chatMessage {
	system := strings.TrimSpace(p.Instructions + "\n\n" + outputContract)
	if p.DisplayName != "" {
		system += "\nThe customer's name is " + p.DisplayName + "."
	}
	msgs := []chatMessage{{Role: "system", Content: system}}
	for _, m := range p.History {
		role := "user"
		if m.Direction == model.DirectionOutbound {
			role = "assistant"
		}
		msgs = append(msgs, chatMessage{Role: role, Content: m.Body})
	}
	return append(msgs, chatMessage{Role: "user", Content: p.Message})
}

func (c *Client) Generate(ctx context.Context, p Prompt) (*model.Reply, error) {
	modelName := p.Model
	if modelName == "" {
		modelName = c.DefaultModel
	}
	jsonBody, err := json.Marshal(chatRequest{
		Model:       modelName,
		Messages:    BuildMessages(p),
		Temperature: p.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generator: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("generator: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generator error: %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("generator: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("generator: empty choices in response")
	}

	reply := ParseReply(out.Choices[0].Message.Content)
	return &reply, nil
}

var _ Generator = (*Client)(nil)
