// internal/controller/campaign_controller.go
package controller

import (
    "context"
    "encoding/json"
    "errors"
    "log"
    "net/http"
    "strconv"

    "github.com/go-chi/chi/v5"

    appErrors "github.com/unclebandit/leadpilot-backend/internal/errors"
    "github.com/unclebandit/leadpilot-backend/internal/model"
)

// CampaignRunService is what the controller needs from the service layer.
type CampaignRunService interface {
    CreateRun(ctx context.Context, cfg model.RunConfig) (*model.CampaignRun, error)
    ListRuns(ctx context.Context, limit int) ([]*model.CampaignRun, error)
    GetRun(ctx context.Context, id string) (*model.CampaignRun, error)
    StopRun(ctx context.Context, id string) (*model.CampaignRun, error)
    ResumeRun(ctx context.Context, id string) (*model.CampaignRun, error)
    RunLogs(ctx context.Context, id string) ([]model.CampaignLogEntry, error)
}

type CampaignController struct {
    CampaignService CampaignRunService
}

// Routes mounts the campaign run endpoints on r.
func (c *CampaignController) Routes(r chi.Router) {
    r.Post("/campaign-runs", c.CreateRun)
    r.Get("/campaign-runs", c.ListRuns)
    r.Get("/campaign-runs/{id}", c.GetRun)
    r.Post("/campaign-runs/{id}/stop", c.StopRun)
    r.Post("/campaign-runs/{id}/resume", c.ResumeRun)
    r.Get("/campaign-runs/{id}/logs", c.RunLogs)
}

func (c *CampaignController) CreateRun(w http.ResponseWriter, r *http.Request) {
    var body model.RunConfig
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        http.Error(w, "invalid body", http.StatusBadRequest)
        return
    }

    run, err := c.CampaignService.CreateRun(r.Context(), body)
    if err != nil {
        writeError(w, err)
        return
    }

    writeJSON(w, http.StatusCreated, run)
}

func (c *CampaignController) ListRuns(w http.ResponseWriter, r *http.Request) {
    limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

    runs, err := c.CampaignService.ListRuns(r.Context(), limit)
    if err != nil {
        writeError(w, err)
        return
    }

    writeJSON(w, http.StatusOK, map[string]interface{}{
        "data":  runs,
        "count": len(runs),
    })
}

func (c *CampaignController) GetRun(w http.ResponseWriter, r *http.Request) {
    run, err := c.CampaignService.GetRun(r.Context(), chi.URLParam(r, "id"))
    if err != nil {
        writeError(w, err)
        return
    }
    writeJSON(w, http.StatusOK, run)
}

func (c *CampaignController) StopRun(w http.ResponseWriter, r *http.Request) {
    run, err := c.CampaignService.StopRun(r.Context(), chi.URLParam(r, "id"))
    if err != nil {
        writeError(w, err)
        return
    }
    writeJSON(w, http.StatusAccepted, run)
}

func (c *CampaignController) ResumeRun(w http.ResponseWriter, r *http.Request) {
    run, err := c.CampaignService.ResumeRun(r.Context(), chi.URLParam(r, "id"))
    if err != nil {
        writeError(w, err)
        return
    }
    writeJSON(w, http.StatusAccepted, run)
}

func (c *CampaignController) RunLogs(w http.ResponseWriter, r *http.Request) {
    logs, err := c.CampaignService.RunLogs(r.Context(), chi.URLParam(r, "id"))
    if err != nil {
        writeError(w, err)
        return
    }
    writeJSON(w, http.StatusOK, map[string]interface{}{
        "data":  logs,
        "count": len(logs),
    })
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    if err := json.NewEncoder(w).Encode(v); err != nil {
        log.Println("⚠️ failed to encode response:", err)
    }
}

func writeError(w http.ResponseWriter, err error) {
    status := http.StatusInternalServerError
    switch {
    case errors.Is(err, appErrors.ErrMissingIdentifier), appErrors.IsInvalidRunConfig(err):
        status = http.StatusBadRequest
    case appErrors.IsRunNotFound(err):
        status = http.StatusNotFound
    case errors.Is(err, appErrors.ErrRunNotResumable):
        status = http.StatusConflict
    default:
        log.Println("❌ request failed:", err)
    }
    http.Error(w, err.Error(), status)
}
