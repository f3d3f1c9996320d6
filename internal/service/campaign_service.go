// internal/service/campaign_service.go
package service

import (
    "context"
    "fmt"
    "log"

    "github.com/google/uuid"

    "github.com/unclebandit/leadpilot-backend/internal/model"
    "github.com/unclebandit/leadpilot-backend/internal/repository"
)

// CampaignService is the control surface used by the HTTP layer.
type CampaignService struct {
    Engine *CampaignEngine
    Leads  repository.LeadRepositoryInterface
    Runs   repository.CampaignRunRepositoryInterface
}

func NewCampaignService(engine *CampaignEngine) *CampaignService {
    return &CampaignService{Engine: engine, Leads: engine.Leads, Runs: engine.Runs}
}

// CreateRun persists a new run for cfg and starts it.
func (s *CampaignService) CreateRun(ctx context.Context, cfg model.RunConfig) (*model.CampaignRun, error) {
    if err := ValidateRunConfig(cfg); err != nil {
        return nil, err
    }

    total, err := s.Leads.CountEligible(ctx, cfg.Filter)
    if err != nil {
        return nil, fmt.Errorf("count eligible leads: %w", err)
    }

    run := &model.CampaignRun{
        ID:          uuid.NewString(),
        TotalTarget: total,
        Config:      cfg,
        Status:      model.RunStatusRunning,
    }
    if err := s.Runs.Create(ctx, run); err != nil {
        return nil, fmt.Errorf("create run: %w", err)
    }

    if err := s.Engine.Start(run.ID, cfg); err != nil {
        if ferr := s.Runs.Finish(ctx, run.ID, model.RunStatusFailed, err.Error()); ferr != nil {
            log.Printf("⚠️ [campaign %s] failed to mark unstarted run failed: %v", run.ID, ferr)
        }
        return nil, err
    }

    log.Printf("✅ [campaign %s] created for %d eligible leads", run.ID, total)
    return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *CampaignService) ListRuns(ctx context.Context, limit int) ([]*model.CampaignRun, error) {
    if limit < 1 {
        limit = 20
    }
    if limit > 100 {
        limit = 100
    }
    return s.Runs.List(ctx, limit)
}

func (s *CampaignService) GetRun(ctx context.Context, id string) (*model.CampaignRun, error) {
    return s.Engine.GetRunStatus(ctx, id)
}

// StopRun returns the run as seen right after the stop request.
func (s *CampaignService) StopRun(ctx context.Context, id string) (*model.CampaignRun, error) {
    if _, err := s.Engine.GetRunStatus(ctx, id); err != nil {
        return nil, err
    }
    if err := s.Engine.Stop(id); err != nil {
        return nil, err
    }
    return s.Engine.GetRunStatus(ctx, id)
}

func (s *CampaignService) ResumeRun(ctx context.Context, id string) (*model.CampaignRun, error) {
    if err := s.Engine.Resume(ctx, id); err != nil {
        return nil, err
    }
    return s.Engine.GetRunStatus(ctx, id)
}

func (s *CampaignService) RunLogs(ctx context.Context, id string) ([]model.CampaignLogEntry, error) {
    if _, err := s.Runs.GetByID(ctx, id); err != nil {
        return nil, err
    }
    return s.Engine.ListRunLogs(ctx, id)
}
