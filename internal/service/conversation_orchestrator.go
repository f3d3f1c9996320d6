// internal/service/conversation_orchestrator.go
package service

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	appErrors "github.com/unclebandit/leadpilot-backend/internal/errors"
	"github.com/unclebandit/leadpilot-backend/internal/model"
)

type TurnHandler interface {
	HandleTurn(ctx context.Context, turn model.Turn) error
}

// OrchestratorTimings controls when a buffered conversation is flushed.
type OrchestratorTimings struct {
	SilenceWindow        time.Duration
	SafetyValve          time.Duration
	SafetyValveFragments int
	PauseConfirm         time.Duration
}

func DefaultOrchestratorTimings() OrchestratorTimings {
	return OrchestratorTimings{
		SilenceWindow:        3500 * time.Millisecond,
		SafetyValve:          15 * time.Second,
		SafetyValveFragments: 5,
		PauseConfirm:         time.Second,
	}
}

// WithDefaults replaces unset or non-positive values with the defaults.
func (t OrchestratorTimings) WithDefaults() OrchestratorTimings {
	d := DefaultOrchestratorTimings()
	if t.SilenceWindow <= 0 {
		t.SilenceWindow = d.SilenceWindow
	}
	if t.SafetyValve <= 0 {
		t.SafetyValve = d.SafetyValve
	}
	if t.SafetyValveFragments <= 0 {
		t.SafetyValveFragments = d.SafetyValveFragments
	}
	if t.PauseConfirm <= 0 {
		t.PauseConfirm = d.PauseConfirm
	}
	return t
}

// ConversationOrchestrator coalesces inbound fragments into turns and hands
// each turn to the Handler. Turns of one conversation are delivered in order,
// one at a time; different conversations never wait on each other.
type ConversationOrchestrator struct {
	Handler TurnHandler
	Timings OrchestratorTimings

	mu      sync.Mutex
	buffers map[string]*conversationBuffer
	closed  bool

	qmu    sync.Mutex
	queues map[string]*turnQueue
	wg     sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewConversationOrchestrator fills unset timings with their defaults.
func NewConversationOrchestrator(handler TurnHandler, timings OrchestratorTimings) *ConversationOrchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &ConversationOrchestrator{
		Handler: handler,
		Timings: timings.WithDefaults(),
		buffers: make(map[string]*conversationBuffer),
		queues:  make(map[string]*turnQueue),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// conversationBuffer holds the fragments of a turn still being typed.
// Once closed it belongs to the flush that closed it.
type conversationBuffer struct {
	id string

	mu          sync.Mutex
	fragments   []string
	displayName string
	closed      bool

	// silence is the armed silence or pause-confirmation timer, nil when none.
	silence    *time.Timer
	silenceGen uint64
	safety     *time.Timer
}

type turnQueue struct {
	pending []model.Turn
}

func (o *ConversationOrchestrator) OnInboundText(conversationID, displayName, text string) error {
	if strings.TrimSpace(conversationID) == "" {
		return appErrors.ErrMissingIdentifier
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	for {
		b := o.acquire(conversationID)
		if b == nil {
			return nil
		}
		b.mu.Lock()
		if b.closed {
			// Lost the race with a flush; the next acquire creates a fresh buffer.
			b.mu.Unlock()
			continue
		}
		b.fragments = append(b.fragments, text)
		if displayName != "" {
			b.displayName = displayName
		}
		o.armSilence(b, o.Timings.SilenceWindow)
		if b.safety == nil {
			o.armSafetyValve(b)
		}
		b.mu.Unlock()
		return nil
	}
}

// OnInboundMedia ends the sender's turn at once: pending text goes first,
// the media second, in a single turn.
func (o *ConversationOrchestrator) OnInboundMedia(conversationID, displayName string, media model.Media) error {
	if strings.TrimSpace(conversationID) == "" {
		return appErrors.ErrMissingIdentifier
	}

	turn := model.Turn{ConversationID: conversationID, DisplayName: displayName, Media: &media}

	o.mu.Lock()
	b := o.buffers[conversationID]
	o.mu.Unlock()
	if b != nil {
		b.mu.Lock()
		if !b.closed {
			fragments, name := o.takeLocked(b)
			turn.Text = strings.Join(fragments, "\n")
			if turn.DisplayName == "" {
				turn.DisplayName = name
			}
		}
		b.mu.Unlock()
	}

	o.dispatch(turn)
	return nil
}

func (o *ConversationOrchestrator) OnPresenceSignal(conversationID string, signal model.PresenceSignal) error {
	if strings.TrimSpace(conversationID) == "" {
		return appErrors.ErrMissingIdentifier
	}

	o.mu.Lock()
	b := o.buffers[conversationID]
	o.mu.Unlock()
	if b == nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	switch signal {
	case model.PresenceComposing:
		o.disarmSilence(b)
	case model.PresencePaused:
		if b.silence == nil {
			o.armSilence(b, o.Timings.PauseConfirm)
		}
	}
	return nil
}

// PendingConversations is the number of conversations with buffered text.
func (o *ConversationOrchestrator) PendingConversations() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.buffers)
}

// Close drops every buffered fragment, waits for turns already handed off,
// then cancels anything still in flight when ctx expires.
func (o *ConversationOrchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	buffers := o.buffers
	o.buffers = make(map[string]*conversationBuffer)
	o.mu.Unlock()

	for _, b := range buffers {
		b.mu.Lock()
		if !b.closed {
			b.closed = true
			o.stopTimers(b)
			if n := len(b.fragments); n > 0 {
				log.Printf("⚠️ [conversation %s] dropping %d buffered fragment(s) on shutdown", b.id, n)
			}
		}
		b.mu.Unlock()
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	defer o.cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *ConversationOrchestrator) acquire(conversationID string) *conversationBuffer {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	b := o.buffers[conversationID]
	if b == nil {
		b = &conversationBuffer{id: conversationID}
		o.buffers[conversationID] = b
	}
	return b
}

// armSilence replaces any armed silence timer. Callers hold b.mu.
func (o *ConversationOrchestrator) armSilence(b *conversationBuffer, d time.Duration) {
	o.disarmSilence(b)
	gen := b.silenceGen
	b.silence = time.AfterFunc(d, func() { o.onSilence(b, gen) })
}

// disarmSilence cancels the silence timer. The generation bump turns a
// callback that already started into a no-op.
func (o *ConversationOrchestrator) disarmSilence(b *conversationBuffer) {
	if b.silence != nil {
		b.silence.Stop()
		b.silence = nil
	}
	b.silenceGen++
}

// armSafetyValve starts the safety valve timer. Callers hold b.mu.
func (o *ConversationOrchestrator) armSafetyValve(b *conversationBuffer) {
	b.safety = time.AfterFunc(o.Timings.SafetyValve, func() { o.onSafetyValve(b) })
}

func (o *ConversationOrchestrator) stopTimers(b *conversationBuffer) {
	o.disarmSilence(b)
	if b.safety != nil {
		b.safety.Stop()
	}
}

func (o *ConversationOrchestrator) onSilence(b *conversationBuffer, gen uint64) {
	b.mu.Lock()
	if b.closed || gen != b.silenceGen {
		b.mu.Unlock()
		return
	}
	fragments, name := o.takeLocked(b)
	b.mu.Unlock()

	o.dispatchFragments(b.id, name, fragments)
}

func (o *ConversationOrchestrator) onSafetyValve(b *conversationBuffer) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	// A conversation still inside a silence window is left to that timer
	// unless it has piled up too many fragments. The valve stays armed in
	// case a later composing signal cancels that timer.
	if len(b.fragments) <= o.Timings.SafetyValveFragments && b.silence != nil {
		o.armSafetyValve(b)
		b.mu.Unlock()
		return
	}
	fragments, name := o.takeLocked(b)
	b.mu.Unlock()

	log.Printf("⚠️ [conversation %s] safety valve flushed %d fragment(s)", b.id, len(fragments))
	o.dispatchFragments(b.id, name, fragments)
}

// takeLocked closes the buffer, unregisters it and returns its contents.
// Callers hold b.mu.
func (o *ConversationOrchestrator) takeLocked(b *conversationBuffer) ([]string, string) {
	b.closed = true
	o.stopTimers(b)

	o.mu.Lock()
	if o.buffers[b.id] == b {
		delete(o.buffers, b.id)
	}
	o.mu.Unlock()

	fragments := b.fragments
	b.fragments = nil
	return fragments, b.displayName
}

func (o *ConversationOrchestrator) dispatchFragments(conversationID, displayName string, fragments []string) {
	if len(fragments) == 0 {
		return
	}
	o.dispatch(model.Turn{
		ConversationID: conversationID,
		DisplayName:    displayName,
		Text:           strings.Join(fragments, "\n"),
	})
}

// dispatch queues the turn behind earlier turns of the same conversation.
func (o *ConversationOrchestrator) dispatch(turn model.Turn) {
	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		log.Printf("⚠️ [conversation %s] orchestrator closed, dropping turn", turn.ConversationID)
		return
	}

	o.qmu.Lock()
	defer o.qmu.Unlock()

	q, running := o.queues[turn.ConversationID]
	if !running {
		q = &turnQueue{}
		o.queues[turn.ConversationID] = q
	}
	q.pending = append(q.pending, turn)
	if !running {
		o.wg.Add(1)
		go o.drain(turn.ConversationID, q)
	}
}

func (o *ConversationOrchestrator) drain(conversationID string, q *turnQueue) {
	defer o.wg.Done()
	for {
		o.qmu.Lock()
		if len(q.pending) == 0 {
			delete(o.queues, conversationID)
			o.qmu.Unlock()
			return
		}
		turn := q.pending[0]
		q.pending = q.pending[1:]
		o.qmu.Unlock()

		if err := o.Handler.HandleTurn(o.ctx, turn); err != nil {
			log.Printf("⚠️ [conversation %s] turn failed: %v", conversationID, err)
		}
	}
}
