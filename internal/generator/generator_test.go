package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/leadpilot-backend/internal/model"
)

func TestClientGenerate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"intent":"negotiation","reply":"Can do 10% off"}`}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "default-model")
	reply, err := c.Generate(context.Background(), Prompt{
		Temperature:  0.3,
		Instructions: "You sell gym plans.",
		History: []model.Message{
			{Direction: model.DirectionOutbound, Body: "Hi, interested in a plan?"},
			{Direction: model.DirectionInbound, Body: "maybe"},
		},
		Message: "too expensive\nany discount?",
	})
	require.NoError(t, err)

	assert.Equal(t, model.IntentNegotiation, reply.Intent)
	assert.Equal(t, []string{"Can do 10% off"}, reply.Parts)
	assert.Equal(t, "default-model", got.Model)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "assistant", got.Messages[1].Role)
	assert.Equal(t, "user", got.Messages[2].Role)
	assert.Equal(t, "too expensive\nany discount?", got.Messages[3].Content)
}

func TestClientGenerateHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "m")
	_, err := c.Generate(context.Background(), Prompt{Message: "hi"})
	assert.Error(t, err)
}
