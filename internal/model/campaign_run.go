// internal/model/campaign_run.go
package model

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusStopping  RunStatus = "stopping"
	RunStatusCompleted RunStatus = "completed"
	RunStatusStopped   RunStatus = "stopped"
	RunStatusFailed    RunStatus = "failed"
)

// Terminal reports whether no loop will touch the run again.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusStopped || s == RunStatusFailed
}

type Strategy string

const (
	StrategyNewOnly      Strategy = "new-only"
	StrategyFollowUpOnly Strategy = "follow-up-only"
	StrategySmartMix     Strategy = "smart-mix"
)

func (s Strategy) Valid() bool {
	switch s {
	case StrategyNewOnly, StrategyFollowUpOnly, StrategySmartMix:
		return true
	}
	return false
}

// LeadFilter selects leads for a run. Empty fields match everything.
type LeadFilter struct {
	Category string   `json:"category,omitempty"`
	City     string   `json:"city,omitempty"`
	State    string   `json:"state,omitempty"`
	Strategy Strategy `json:"strategy"`
}

// RunConfig is everything the engine needs to drive a run.
type RunConfig struct {
	Filter           LeadFilter `json:"filter"`
	Template         string     `json:"template"`
	FollowUpTemplate string     `json:"follow_up_template,omitempty"`
	BatchSize        int        `json:"batch_size"`
	MinDelaySeconds  int        `json:"min_delay_seconds"`
	MaxDelaySeconds  int        `json:"max_delay_seconds"`
}

type CampaignRun struct {
	ID           string     `db:"id" json:"id"`
	TotalTarget  int        `db:"total_target" json:"total_target"`
	Config       RunConfig  `db:"config" json:"config"`
	Status       RunStatus  `db:"status" json:"status"`
	Cursor       int64      `db:"cursor" json:"cursor"`
	SuccessCount int        `db:"success_count" json:"success_count"`
	FailedCount  int        `db:"failed_count" json:"failed_count"`
	Error        string     `db:"error" json:"error,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}
