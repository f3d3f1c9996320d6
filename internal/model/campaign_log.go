// internal/model/campaign_log.go
package model

import "time"

type LogOutcome string

const (
	OutcomeSent   LogOutcome = "sent"
	OutcomeFailed LogOutcome = "failed"
)

// CampaignLogEntry is written once per attempted recipient and never updated.
type CampaignLogEntry struct {
	ID        int64      `db:"id" json:"id"`
	RunID     string     `db:"run_id" json:"run_id"`
	LeadID    int64      `db:"lead_id" json:"lead_id"`
	Address   string     `db:"address" json:"address"`
	Outcome   LogOutcome `db:"outcome" json:"outcome"`
	Error     string     `db:"error" json:"error,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
