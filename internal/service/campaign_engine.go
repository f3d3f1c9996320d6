// internal/service/campaign_engine.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/unclebandit/leadpilot-backend/internal/dedup"
	appErrors "github.com/unclebandit/leadpilot-backend/internal/errors"
	"github.com/unclebandit/leadpilot-backend/internal/gateway"
	"github.com/unclebandit/leadpilot-backend/internal/model"
	"github.com/unclebandit/leadpilot-backend/internal/repository"
)

var errRunStopped = errors.New("run stopped")

// CampaignEngine drives campaign runs. Each run gets one loop goroutine;
// runs share nothing but the stores and the gateway.
type CampaignEngine struct {
	Leads    repository.LeadRepositoryInterface
	Runs     repository.CampaignRunRepositoryInterface
	Logs     repository.CampaignLogRepositoryInterface
	Gateway  gateway.Sender
	Attempts dedup.Tracker

	// DelayUnit is the length of one configured delay second.
	DelayUnit    time.Duration
	FetchRetries int
	FetchBackoff time.Duration

	mu       sync.Mutex
	active   map[string]*runHandle
	closed   bool
	shutdown chan struct{}
	wg       sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewCampaignEngine(
	leads repository.LeadRepositoryInterface,
	runs repository.CampaignRunRepositoryInterface,
	logs repository.CampaignLogRepositoryInterface,
	sender gateway.Sender,
	attempts dedup.Tracker,
) *CampaignEngine {
	ctx, cancel := context.WithCancel(context.Background())
	if attempts == nil {
		attempts = dedup.NewMemoryTracker()
	}
	return &CampaignEngine{
		Leads:        leads,
		Runs:         runs,
		Logs:         logs,
		Gateway:      sender,
		Attempts:     attempts,
		DelayUnit:    time.Second,
		FetchRetries: 3,
		FetchBackoff: 2 * time.Second,
		active:       make(map[string]*runHandle),
		shutdown:     make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// runHandle is the in-memory control record of one active run.
type runHandle struct {
	id       string
	stop     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	status  model.RunStatus
	cursor  int64
	success int
	failed  int
}

func (h *runHandle) requestStop() bool {
	first := false
	h.stopOnce.Do(func() {
		close(h.stop)
		first = true
	})
	return first
}

func (h *runHandle) stopRequested() bool {
	select {
	case <-h.stop:
		return true
	default:
		return false
	}
}

func (h *runHandle) setStatus(s model.RunStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	// A stop that arrives after the loop finished must not reopen the run.
	if h.status.Terminal() {
		return
	}
	h.status = s
}

func (h *runHandle) record(leadID int64, outcome model.LogOutcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cursor = leadID
	switch outcome {
	case model.OutcomeSent:
		h.success++
	case model.OutcomeFailed:
		h.failed++
	}
}

func (h *runHandle) snapshot() (model.RunStatus, int64, int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status, h.cursor, h.success, h.failed
}

// ValidateRunConfig rejects configs the loop cannot execute.
func ValidateRunConfig(cfg model.RunConfig) error {
	if cfg.BatchSize < 1 {
		return appErrors.NewInvalidRunConfig("batch size must be at least 1, got %d", cfg.BatchSize)
	}
	if cfg.MinDelaySeconds < 0 || cfg.MaxDelaySeconds < 0 {
		return appErrors.NewInvalidRunConfig("delays cannot be negative")
	}
	if cfg.MinDelaySeconds > cfg.MaxDelaySeconds {
		return appErrors.NewInvalidRunConfig("min delay %ds exceeds max delay %ds", cfg.MinDelaySeconds, cfg.MaxDelaySeconds)
	}
	if !cfg.Filter.Strategy.Valid() {
		return appErrors.NewInvalidRunConfig("unknown strategy %q", cfg.Filter.Strategy)
	}
	if strings.TrimSpace(cfg.Template) == "" {
		return appErrors.NewInvalidRunConfig("template cannot be empty")
	}
	return nil
}

// Start begins the run loop in the background. A second Start for a run that
// is already active is a no-op.
func (e *CampaignEngine) Start(runID string, cfg model.RunConfig) error {
	if strings.TrimSpace(runID) == "" {
		return appErrors.ErrMissingIdentifier
	}
	if err := ValidateRunConfig(cfg); err != nil {
		return err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("campaign engine is shut down")
	}
	if _, ok := e.active[runID]; ok {
		e.mu.Unlock()
		log.Printf("[campaign %s] already active, ignoring start", runID)
		return nil
	}
	h := &runHandle{id: runID, stop: make(chan struct{}), status: model.RunStatusRunning}
	e.active[runID] = h
	e.wg.Add(1)
	e.mu.Unlock()

	go e.loop(h, cfg)
	return nil
}

// Stop asks an active run to stop. The loop checks before every recipient, so
// at most the in-flight send completes. Unknown or finished runs are ignored.
func (e *CampaignEngine) Stop(runID string) error {
	if strings.TrimSpace(runID) == "" {
		return appErrors.ErrMissingIdentifier
	}

	e.mu.Lock()
	h := e.active[runID]
	e.mu.Unlock()
	if h == nil {
		return nil
	}

	if h.requestStop() {
		h.setStatus(model.RunStatusStopping)
		if err := e.Runs.MarkStopping(e.ctx, runID); err != nil {
			log.Printf("⚠️ [campaign %s] failed to persist stopping status: %v", runID, err)
		}
		log.Printf("[campaign %s] stop requested", runID)
	}
	return nil
}

// Resume restarts a stopped or failed run from its persisted cursor, or
// re-attaches a loop to a run left running by a previous process.
func (e *CampaignEngine) Resume(ctx context.Context, runID string) error {
	if strings.TrimSpace(runID) == "" {
		return appErrors.ErrMissingIdentifier
	}
	if e.isActive(runID) {
		return nil
	}

	run, err := e.Runs.GetByID(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status != model.RunStatusRunning {
		ok, err := e.Runs.Reopen(ctx, runID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s is %s", appErrors.ErrRunNotResumable, runID, run.Status)
		}
	}
	return e.Start(runID, run.Config)
}

// RecoverRuns re-attaches loops to runs a previous process left running and
// settles runs it left stopping as stopped.
func (e *CampaignEngine) RecoverRuns(ctx context.Context) (int, error) {
	runs, err := e.Runs.ListUnfinished(ctx)
	if err != nil {
		return 0, err
	}
	resumed := 0
	for _, run := range runs {
		if run.Status == model.RunStatusStopping {
			if err := e.Runs.Finish(ctx, run.ID, model.RunStatusStopped, ""); err != nil {
				log.Printf("⚠️ [campaign %s] failed to settle interrupted stop: %v", run.ID, err)
			}
			continue
		}
		if err := e.Start(run.ID, run.Config); err != nil {
			log.Printf("❌ [campaign %s] cannot recover run: %v", run.ID, err)
			if ferr := e.Runs.Finish(ctx, run.ID, model.RunStatusFailed, err.Error()); ferr != nil {
				log.Printf("⚠️ [campaign %s] failed to mark run failed: %v", run.ID, ferr)
			}
			continue
		}
		resumed++
	}
	return resumed, nil
}

// GetRunStatus returns the persisted run overlaid with live counts while the
// run is active.
func (e *CampaignEngine) GetRunStatus(ctx context.Context, runID string) (*model.CampaignRun, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, appErrors.ErrMissingIdentifier
	}
	run, err := e.Runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	h := e.active[runID]
	e.mu.Unlock()
	if h != nil {
		status, cursor, success, failed := h.snapshot()
		run.Status = status
		if cursor > run.Cursor {
			run.Cursor = cursor
		}
		if success > run.SuccessCount {
			run.SuccessCount = success
		}
		if failed > run.FailedCount {
			run.FailedCount = failed
		}
	}
	return run, nil
}

func (e *CampaignEngine) ListRunLogs(ctx context.Context, runID string) ([]model.CampaignLogEntry, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, appErrors.ErrMissingIdentifier
	}
	return e.Logs.ListByRun(ctx, runID)
}

func (e *CampaignEngine) ActiveRuns() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.active))
	for id := range e.active {
		ids = append(ids, id)
	}
	return ids
}

func (e *CampaignEngine) isActive(runID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.active[runID]
	return ok
}

// Shutdown interrupts every active loop and waits for it to save progress,
// or for ctx to expire. Interrupted runs stay running so RecoverRuns picks
// them up on the next start.
func (e *CampaignEngine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.shutdown)
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	defer e.cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *CampaignEngine) loop(h *runHandle, cfg model.RunConfig) {
	defer e.wg.Done()
	defer e.release(h)

	ctx := e.ctx
	run, err := e.Runs.GetByID(ctx, h.id)
	if err != nil {
		log.Printf("❌ [campaign %s] failed to load run: %v", h.id, err)
		e.finish(h, model.RunStatusFailed, err.Error())
		return
	}
	h.mu.Lock()
	h.cursor, h.success, h.failed = run.Cursor, run.SuccessCount, run.FailedCount
	h.mu.Unlock()

	log.Printf("🚀 [campaign %s] started from cursor %d (strategy %s, batch %d)", h.id, run.Cursor, cfg.Filter.Strategy, cfg.BatchSize)

	for {
		if e.interrupted(h) {
			e.interrupt(h)
			return
		}

		_, cursor, _, _ := h.snapshot()
		leads, err := e.fetch(h, cfg, cursor)
		if err != nil {
			if errors.Is(err, errRunStopped) {
				e.interrupt(h)
			} else {
				e.finish(h, model.RunStatusFailed, err.Error())
			}
			return
		}
		if len(leads) == 0 {
			e.complete(h)
			return
		}

		for _, lead := range leads {
			if e.interrupted(h) {
				e.interrupt(h)
				return
			}
			outcome, fatal := e.processLead(ctx, h, cfg, lead)
			h.record(lead.ID, outcome)
			if fatal != nil {
				e.saveProgress(h)
				e.finish(h, model.RunStatusFailed, fatal.Error())
				return
			}
		}
		e.saveProgress(h)

		if len(leads) < cfg.BatchSize {
			e.complete(h)
			return
		}
		if !e.wait(h, e.randomDelay(cfg)) {
			e.interrupt(h)
			return
		}
	}
}

// fetch pulls the next batch, pausing FetchBackoff between failed attempts.
func (e *CampaignEngine) fetch(h *runHandle, cfg model.RunConfig, cursor int64) ([]model.Lead, error) {
	var lastErr error
	for attempt := 0; attempt <= e.FetchRetries; attempt++ {
		leads, err := e.Leads.Query(e.ctx, cfg.Filter, cursor, cfg.BatchSize)
		if err == nil {
			return leads, nil
		}
		lastErr = err
		log.Printf("⚠️ [campaign %s] fetch after cursor %d failed (attempt %d/%d): %v", h.id, cursor, attempt+1, e.FetchRetries+1, err)

		if attempt < e.FetchRetries && !e.wait(h, e.FetchBackoff) {
			return nil, errRunStopped
		}
	}
	return nil, fmt.Errorf("fetch leads failed after %d attempts: %w", e.FetchRetries+1, lastErr)
}

// processLead sends to one lead. The returned error is non-nil only when the
// run cannot go on (the gateway refused our credentials).
func (e *CampaignEngine) processLead(ctx context.Context, h *runHandle, cfg model.RunConfig, lead model.Lead) (model.LogOutcome, error) {
	key := gateway.NormalizeAddress(lead.Address)
	if key == "" {
		key = lead.Address
	}
	isNew, err := e.Attempts.MarkAttempted(ctx, h.id, key)
	if err != nil {
		log.Printf("⚠️ [campaign %s] dedup check failed for lead %d: %v", h.id, lead.ID, err)
		isNew = true
	}
	if !isNew {
		log.Printf("[campaign %s] skipping lead %d, address already attempted in this run", h.id, lead.ID)
		return "", nil
	}

	message := RenderForLead(cfg, lead)
	_, sendErr := e.Gateway.Send(ctx, lead.Address, gateway.Payload{Text: message})

	entry := &model.CampaignLogEntry{
		RunID:     h.id,
		LeadID:    lead.ID,
		Address:   lead.Address,
		Outcome:   model.OutcomeSent,
		CreatedAt: time.Now(),
	}
	status := model.ContactStatusContacted
	if sendErr != nil {
		entry.Outcome = model.OutcomeFailed
		entry.Error = sendErr.Error()
		status = model.ContactStatusErrored
		log.Printf("⚠️ [campaign %s] send to lead %d failed: %v", h.id, lead.ID, sendErr)
	}

	if err := e.Logs.Append(ctx, entry); err != nil {
		log.Printf("⚠️ [campaign %s] failed to write log for lead %d: %v", h.id, lead.ID, err)
	}

	if errors.Is(sendErr, appErrors.ErrGatewayUnauthorized) || errors.Is(sendErr, appErrors.ErrGatewayNotConfigured) {
		return model.OutcomeFailed, sendErr
	}

	if err := e.Leads.UpdateStatus(ctx, lead.ID, status); err != nil {
		log.Printf("⚠️ [campaign %s] failed to update lead %d status: %v", h.id, lead.ID, err)
	}
	return entry.Outcome, nil
}

// wait sleeps for d unless the run is stopped or the engine shuts down
// first. It reports whether the full delay elapsed.
func (e *CampaignEngine) wait(h *runHandle, d time.Duration) bool {
	if d <= 0 {
		return !e.interrupted(h)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-h.stop:
		return false
	case <-e.shutdown:
		return false
	}
}

func (e *CampaignEngine) interrupted(h *runHandle) bool {
	if h.stopRequested() {
		return true
	}
	select {
	case <-e.shutdown:
		return true
	default:
		return false
	}
}

// interrupt ends the loop early. A requested stop is final; a shutdown
// leaves the run running at its saved cursor.
func (e *CampaignEngine) interrupt(h *runHandle) {
	e.saveProgress(h)
	if h.stopRequested() {
		e.finish(h, model.RunStatusStopped, "")
		return
	}
	_, cursor, _, _ := h.snapshot()
	log.Printf("⏸️ [campaign %s] interrupted by shutdown at cursor %d, left running for recovery", h.id, cursor)
}

// complete ends a run whose leads ran out. A stop that arrived during the
// last send still wins.
func (e *CampaignEngine) complete(h *runHandle) {
	if h.stopRequested() {
		e.finish(h, model.RunStatusStopped, "")
		return
	}
	e.finish(h, model.RunStatusCompleted, "")
}

// randomDelay is uniform in [min, max] so batches do not form a fixed rhythm.
func (e *CampaignEngine) randomDelay(cfg model.RunConfig) time.Duration {
	lo := time.Duration(cfg.MinDelaySeconds) * e.DelayUnit
	span := time.Duration(cfg.MaxDelaySeconds-cfg.MinDelaySeconds) * e.DelayUnit
	if span <= 0 {
		return lo
	}
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return lo + time.Duration(e.rng.Int63n(int64(span)+1))
}

func (e *CampaignEngine) saveProgress(h *runHandle) {
	_, cursor, success, failed := h.snapshot()
	if err := e.Runs.SaveProgress(e.ctx, h.id, cursor, success, failed); err != nil {
		log.Printf("⚠️ [campaign %s] failed to save progress: %v", h.id, err)
	}
}

func (e *CampaignEngine) finish(h *runHandle, status model.RunStatus, errMsg string) {
	h.setStatus(status)
	if err := e.Runs.Finish(e.ctx, h.id, status, errMsg); err != nil {
		log.Printf("❌ [campaign %s] failed to persist %s status: %v", h.id, status, err)
	}
	// A stopped run keeps its dedup scope so a resume does not resend.
	if status != model.RunStatusStopped {
		if err := e.Attempts.Forget(e.ctx, h.id); err != nil {
			log.Printf("⚠️ [campaign %s] failed to drop dedup set: %v", h.id, err)
		}
	}

	_, cursor, success, failed := h.snapshot()
	switch status {
	case model.RunStatusFailed:
		log.Printf("❌ [campaign %s] failed at cursor %d (sent %d, failed %d): %s", h.id, cursor, success, failed, errMsg)
	default:
		log.Printf("✅ [campaign %s] %s at cursor %d (sent %d, failed %d)", h.id, status, cursor, success, failed)
	}
}

func (e *CampaignEngine) release(h *runHandle) {
	e.mu.Lock()
	delete(e.active, h.id)
	e.mu.Unlock()
}
