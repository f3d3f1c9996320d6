package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	appErrors "github.com/unclebandit/leadpilot-backend/internal/errors"
	"github.com/unclebandit/leadpilot-backend/internal/model"
)

type CampaignRunRepositoryInterface interface {
	Create(ctx context.Context, run *model.CampaignRun) error
	GetByID(ctx context.Context, id string) (*model.CampaignRun, error)
	List(ctx context.Context, limit int) ([]*model.CampaignRun, error)
	ListUnfinished(ctx context.Context) ([]*model.CampaignRun, error)
	SaveProgress(ctx context.Context, id string, cursor int64, success, failed int) error
	MarkStopping(ctx context.Context, id string) error
	Finish(ctx context.Context, id string, status model.RunStatus, errMsg string) error
	Reopen(ctx context.Context, id string) (bool, error)
}

type CampaignRunRepository struct {
	DB *sql.DB
}

const runColumns = `id, total_target, config, status, lead_cursor, success_count, failed_count, error, created_at, finished_at`

func (r *CampaignRunRepository) Create(ctx context.Context, run *model.CampaignRun) error {
	run.CreatedAt = time.Now()
	if run.Status == "" {
		run.Status = model.RunStatusRunning
	}
	cfg, err := json.Marshal(run.Config)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO campaign_runs (id, total_target, config, status, lead_cursor, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	_, err = r.DB.ExecContext(ctx, query, run.ID, run.TotalTarget, cfg, string(run.Status), run.Cursor, run.CreatedAt)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.CampaignRun, error) {
	var (
		run    model.CampaignRun
		cfg    []byte
		status string
	)
	err := row.Scan(&run.ID, &run.TotalTarget, &cfg, &status, &run.Cursor, &run.SuccessCount,
		&run.FailedCount, &run.Error, &run.CreatedAt, &run.FinishedAt)
	if err != nil {
		return nil, err
	}
	run.Status = model.RunStatus(status)
	if err := json.Unmarshal(cfg, &run.Config); err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *CampaignRunRepository) GetByID(ctx context.Context, id string) (*model.CampaignRun, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM campaign_runs WHERE id=$1`, id)
	run, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewRunNotFound(id)
		}
		return nil, err
	}
	return run, nil
}

func (r *CampaignRunRepository) List(ctx context.Context, limit int) ([]*model.CampaignRun, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+runColumns+` FROM campaign_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return scanRuns(rows)
}

// ListUnfinished returns runs a previous process left running or stopping.
func (r *CampaignRunRepository) ListUnfinished(ctx context.Context) ([]*model.CampaignRun, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+runColumns+` FROM campaign_runs WHERE status IN ($1, $2) ORDER BY created_at ASC`,
		string(model.RunStatusRunning), string(model.RunStatusStopping))
	if err != nil {
		return nil, err
	}
	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]*model.CampaignRun, error) {
	defer rows.Close()

	runs := []*model.CampaignRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SaveProgress persists the cursor and counts after a batch. Counts only grow.
func (r *CampaignRunRepository) SaveProgress(ctx context.Context, id string, cursor int64, success, failed int) error {
	query := `
        UPDATE campaign_runs
        SET lead_cursor=GREATEST(lead_cursor, $1),
            success_count=GREATEST(success_count, $2),
            failed_count=GREATEST(failed_count, $3)
        WHERE id=$4
    `
	_, err := r.DB.ExecContext(ctx, query, cursor, success, failed, id)
	return err
}

// MarkStopping only moves a running run; a finished run keeps its terminal status.
func (r *CampaignRunRepository) MarkStopping(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE campaign_runs SET status=$1 WHERE id=$2 AND status=$3`,
		string(model.RunStatusStopping), id, string(model.RunStatusRunning))
	return err
}

func (r *CampaignRunRepository) Finish(ctx context.Context, id string, status model.RunStatus, errMsg string) error {
	query := `UPDATE campaign_runs SET status=$1, error=$2, finished_at=$3 WHERE id=$4`
	_, err := r.DB.ExecContext(ctx, query, string(status), errMsg, time.Now(), id)
	return err
}

// Reopen moves a stopped or failed run back to running so it can resume from its cursor.
func (r *CampaignRunRepository) Reopen(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE campaign_runs SET status=$1, error='', finished_at=NULL
        WHERE id=$2 AND status IN ($3, $4)
    `, string(model.RunStatusRunning), id, string(model.RunStatusStopped), string(model.RunStatusFailed))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

var _ CampaignRunRepositoryInterface = (*CampaignRunRepository)(nil)
