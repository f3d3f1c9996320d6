package generator

import (
	"encoding/json"
	"strings"

	"github.com/unclebandit/leadpilot-backend/internal/model"
)

type rawReply struct {
	Intent    string          `json:"intent"`
	Value     *float64        `json:"value"`
	Name      *string         `json:"name"`
	Reply     json.RawMessage `json:"reply"`
	Reasoning string          `json:"reasoning"`
}

// ParseReply never fails: output it cannot decode becomes an Unparsed reply
// carrying the raw text, so the customer still gets an answer. A decoded
// object with an empty reply yields no parts; its raw JSON is never sent.
func ParseReply(raw string) model.Reply {
	text := strings.TrimSpace(raw)
	fallback := model.Reply{Intent: model.IntentUnparsed, Parts: SplitParts(stripFences(text))}

	body := extractObject(stripFences(text))
	if body == "" {
		return fallback
	}

	var r rawReply
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return fallback
	}

	var parts []string
	var single string
	var many []string
	switch {
	case json.Unmarshal(r.Reply, &single) == nil:
		parts = SplitParts(single)
	case json.Unmarshal(r.Reply, &many) == nil:
		for _, m := range many {
			parts = append(parts, SplitParts(m)...)
		}
	}

	out := model.Reply{
		Intent:    model.ParseIntent(strings.ToLower(strings.TrimSpace(r.Intent))),
		Value:     r.Value,
		Parts:     parts,
		Reasoning: r.Reasoning,
	}
	if r.Name != nil {
		out.ExtractedName = strings.TrimSpace(*r.Name)
	}
	return out
}

// SplitParts splits on PartSeparator and drops empty parts.
func SplitParts(text string) []string {
	var parts []string
	for _, p := range strings.Split(text, PartSeparator) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
