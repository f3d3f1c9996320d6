package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/leadpilot-backend/internal/errors"
	"github.com/unclebandit/leadpilot-backend/internal/model"
)

var runCols = []string{"id", "total_target", "config", "status", "lead_cursor", "success_count", "failed_count", "error", "created_at", "finished_at"}

func TestRunGetByIDDecodesConfig(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &CampaignRunRepository{DB: db}
	cfg := `{"filter":{"category":"gym","strategy":"smart-mix"},"template":"Hi {name}","batch_size":10,"min_delay_seconds":5,"max_delay_seconds":9}`

	mock.ExpectQuery(regexp.QuoteMeta(`FROM campaign_runs WHERE id=$1`)).
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows(runCols).
			AddRow("run-1", 120, []byte(cfg), "running", 55, 30, 2, "", time.Now(), nil))

	run, err := repo.GetByID(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.Equal(t, int64(55), run.Cursor)
	assert.Equal(t, model.StrategySmartMix, run.Config.Filter.Strategy)
	assert.Equal(t, 10, run.Config.BatchSize)
}

func TestRunGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &CampaignRunRepository{DB: db}

	mock.ExpectQuery(regexp.QuoteMeta(`FROM campaign_runs WHERE id=$1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(runCols))

	_, err = repo.GetByID(context.Background(), "missing")
	assert.True(t, appErrors.IsRunNotFound(err))
}

func TestRunMarkStoppingOnlyFromRunning(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &CampaignRunRepository{DB: db}

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE campaign_runs SET status=$1 WHERE id=$2 AND status=$3`)).
		WithArgs("stopping", "run-1", "running").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkStopping(context.Background(), "run-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunSaveProgressNeverDecreases(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &CampaignRunRepository{DB: db}

	mock.ExpectExec(regexp.QuoteMeta(`SET lead_cursor=GREATEST(lead_cursor, $1)`)).
		WithArgs(int64(80), 12, 1, "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SaveProgress(context.Background(), "run-1", 80, 12, 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunReopen(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &CampaignRunRepository{DB: db}

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE campaign_runs SET status=$1, error='', finished_at=NULL`)).
		WithArgs("running", "run-1", "stopped", "failed").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE campaign_runs SET status=$1, error='', finished_at=NULL`)).
		WithArgs("running", "run-2", "stopped", "failed").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Reopen(context.Background(), "run-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Reopen(context.Background(), "run-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunListUnfinished(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &CampaignRunRepository{DB: db}
	cfg := []byte(`{"filter":{"strategy":"new-only"},"template":"Hi","batch_size":5}`)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM campaign_runs WHERE status IN ($1, $2)`)).
		WithArgs("running", "stopping").
		WillReturnRows(sqlmock.NewRows(runCols).
			AddRow("run-1", 10, cfg, "running", 4, 4, 0, "", time.Now(), nil).
			AddRow("run-2", 10, cfg, "stopping", 7, 6, 1, "", time.Now(), nil))

	runs, err := repo.ListUnfinished(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, model.RunStatusStopping, runs[1].Status)
	assert.Equal(t, 5, runs[0].Config.BatchSize)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignLogListByRunMultipleOutcomes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &CampaignLogRepository{DB: db}
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM campaign_logs`)).
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "run_id", "lead_id", "address", "outcome", "error", "created_at"}).
			AddRow(1, "run-1", 4, "5511", "sent", "", now).
			AddRow(2, "run-1", 5, "5522", "failed", "timeout", now))

	entries, err := repo.ListByRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.OutcomeFailed, entries[1].Outcome)
	assert.Equal(t, "timeout", entries[1].Error)
}
