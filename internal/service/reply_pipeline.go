// internal/service/reply_pipeline.go
package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	appErrors "github.com/unclebandit/leadpilot-backend/internal/errors"
	"github.com/unclebandit/leadpilot-backend/internal/gateway"
	"github.com/unclebandit/leadpilot-backend/internal/generator"
	"github.com/unclebandit/leadpilot-backend/internal/model"
	"github.com/unclebandit/leadpilot-backend/internal/repository"
)

// ReplyPipeline answers one coalesced turn: it picks the agent, asks the
// generator for a reply, delivers it part by part and applies the intent.
type ReplyPipeline struct {
	Leads         repository.LeadRepositoryInterface
	Agents        repository.AgentRepositoryInterface
	Conversations repository.ConversationRepositoryInterface
	Generator     generator.Generator
	Gateway       gateway.Messenger

	HistoryLimit int

	// Typing is simulated at TypingPerChar, clamped to [MinTyping, MaxTyping].
	TypingPerChar time.Duration
	MinTyping     time.Duration
	MaxTyping     time.Duration
	PartPause     time.Duration
}

func NewReplyPipeline(
	leads repository.LeadRepositoryInterface,
	agents repository.AgentRepositoryInterface,
	conversations repository.ConversationRepositoryInterface,
	gen generator.Generator,
	messenger gateway.Messenger,
) *ReplyPipeline {
	return &ReplyPipeline{
		Leads:         leads,
		Agents:        agents,
		Conversations: conversations,
		Generator:     gen,
		Gateway:       messenger,
		HistoryLimit:  20,
		TypingPerChar: 50 * time.Millisecond,
		MinTyping:     1500 * time.Millisecond,
		MaxTyping:     8 * time.Second,
		PartPause:     1200 * time.Millisecond,
	}
}

func (p *ReplyPipeline) HandleTurn(ctx context.Context, turn model.Turn) error {
	if strings.TrimSpace(turn.ConversationID) == "" {
		return appErrors.ErrMissingIdentifier
	}
	message := turnMessage(turn)
	if message == "" {
		return nil
	}

	history, err := p.Conversations.RecentHistory(ctx, turn.ConversationID, p.HistoryLimit)
	if err != nil {
		log.Printf("⚠️ [conversation %s] failed to load history: %v", turn.ConversationID, err)
		history = nil
	}
	if err := p.Conversations.AppendMessage(ctx, turn.ConversationID, model.DirectionInbound, message, time.Now()); err != nil {
		log.Printf("⚠️ [conversation %s] failed to store inbound message: %v", turn.ConversationID, err)
	}

	lead, err := p.Leads.FindByAddress(ctx, gateway.NormalizeAddress(turn.ConversationID))
	if err != nil {
		log.Printf("⚠️ [conversation %s] lead lookup failed: %v", turn.ConversationID, err)
		lead = nil
	}

	category := ""
	displayName := turn.DisplayName
	if lead != nil {
		category = lead.Category
		if displayName == "" {
			displayName = lead.Name
		}
	}

	agent, err := p.Agents.FindActiveByCategory(ctx, category)
	if err != nil {
		return fmt.Errorf("find agent for category %q: %w", category, err)
	}
	if agent == nil {
		log.Printf("[conversation %s] no active agent for category %q, not replying", turn.ConversationID, category)
		return nil
	}

	reply, err := p.Generator.Generate(ctx, generator.Prompt{
		Model:        agent.Model,
		Temperature:  agent.Temperature,
		Instructions: agent.Instructions,
		DisplayName:  displayName,
		History:      history,
		Message:      message,
	})
	if err != nil {
		return fmt.Errorf("generate reply: %w", err)
	}

	if err := p.deliver(ctx, turn.ConversationID, reply.Parts); err != nil {
		return err
	}
	p.applyIntent(ctx, turn.ConversationID, lead, displayName, reply)
	return nil
}

// turnMessage renders the turn as one message body, text before media.
func turnMessage(turn model.Turn) string {
	lines := []string{}
	if t := strings.TrimSpace(turn.Text); t != "" {
		lines = append(lines, t)
	}
	if turn.Media != nil {
		media := "[media"
		if turn.Media.MimeType != "" {
			media += " " + turn.Media.MimeType
		}
		media += "]"
		if c := strings.TrimSpace(turn.Media.Caption); c != "" {
			media += " " + c
		}
		lines = append(lines, media)
	}
	return strings.Join(lines, "\n")
}

// deliver sends the parts in order: seen once, then per part typing on,
// typing wait, typing off, send. A failed send abandons the remaining parts.
func (p *ReplyPipeline) deliver(ctx context.Context, destination string, parts []string) error {
	if len(parts) == 0 {
		return nil
	}
	if err := p.Gateway.MarkSeen(ctx, destination); err != nil {
		log.Printf("⚠️ [conversation %s] mark seen failed: %v", destination, err)
	}

	for i, part := range parts {
		if err := p.Gateway.SetTyping(ctx, destination, true); err != nil {
			log.Printf("⚠️ [conversation %s] typing on failed: %v", destination, err)
		}
		if err := sleepCtx(ctx, p.typingDelay(part)); err != nil {
			return err
		}
		if err := p.Gateway.SetTyping(ctx, destination, false); err != nil {
			log.Printf("⚠️ [conversation %s] typing off failed: %v", destination, err)
		}

		if _, err := p.Gateway.Send(ctx, destination, gateway.Payload{Text: part}); err != nil {
			return fmt.Errorf("send reply part %d/%d: %w", i+1, len(parts), err)
		}
		if err := p.Conversations.AppendMessage(ctx, destination, model.DirectionOutbound, part, time.Now()); err != nil {
			log.Printf("⚠️ [conversation %s] failed to store reply: %v", destination, err)
		}

		if i < len(parts)-1 {
			if err := sleepCtx(ctx, p.PartPause); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *ReplyPipeline) typingDelay(part string) time.Duration {
	d := time.Duration(utf8.RuneCountInString(part)) * p.TypingPerChar
	if d < p.MinTyping {
		return p.MinTyping
	}
	if p.MaxTyping > 0 && d > p.MaxTyping {
		return p.MaxTyping
	}
	return d
}

func (p *ReplyPipeline) applyIntent(ctx context.Context, conversationID string, lead *model.Lead, displayName string, reply *model.Reply) {
	switch reply.Intent {
	case model.IntentWon:
		if lead == nil {
			log.Printf("[conversation %s] won without a matching lead, nothing to promote", conversationID)
			return
		}
		name := reply.ExtractedName
		if name == "" {
			name = displayName
		}
		customer, err := p.Leads.PromoteToCustomer(ctx, lead.ID, name, reply.Value)
		if err != nil {
			log.Printf("❌ [conversation %s] failed to promote lead %d: %v", conversationID, lead.ID, err)
			return
		}
		log.Printf("✅ [conversation %s] lead %d promoted to customer %d (%s)", conversationID, lead.ID, customer.ID, name)
	case model.IntentLost:
		if lead == nil {
			return
		}
		if err := p.Leads.UpdateStatus(ctx, lead.ID, model.ContactStatusLost); err != nil {
			log.Printf("⚠️ [conversation %s] failed to mark lead %d lost: %v", conversationID, lead.ID, err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
