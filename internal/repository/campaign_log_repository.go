package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/unclebandit/leadpilot-backend/internal/model"
)

type CampaignLogRepositoryInterface interface {
	Append(ctx context.Context, entry *model.CampaignLogEntry) error
	ListByRun(ctx context.Context, runID string) ([]model.CampaignLogEntry, error)
}

type CampaignLogRepository struct {
	DB *sql.DB
}

func (r *CampaignLogRepository) Append(ctx context.Context, entry *model.CampaignLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	query := `
        INSERT INTO campaign_logs (run_id, lead_id, address, outcome, error, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `
	return r.DB.QueryRowContext(ctx, query, entry.RunID, entry.LeadID, entry.Address,
		string(entry.Outcome), entry.Error, entry.CreatedAt).Scan(&entry.ID)
}

func (r *CampaignLogRepository) ListByRun(ctx context.Context, runID string) ([]model.CampaignLogEntry, error) {
	query := `
        SELECT id, run_id, lead_id, address, outcome, error, created_at
        FROM campaign_logs
        WHERE run_id=$1
        ORDER BY id ASC
    `
	rows, err := r.DB.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.CampaignLogEntry{}
	for rows.Next() {
		var (
			e       model.CampaignLogEntry
			outcome string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.LeadID, &e.Address, &outcome, &e.Error, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Outcome = model.LogOutcome(outcome)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ CampaignLogRepositoryInterface = (*CampaignLogRepository)(nil)
