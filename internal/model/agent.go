// internal/model/agent.go
package model

// GenericCategory is the agent category used when no agent serves the lead's own category.
const GenericCategory = "general"

type Agent struct {
	ID           int64   `db:"id" json:"id"`
	Name         string  `db:"name" json:"name"`
	Category     string  `db:"category" json:"category"`
	Model        string  `db:"model" json:"model"`
	Temperature  float64 `db:"temperature" json:"temperature"`
	Instructions string  `db:"instructions" json:"instructions"`
	Active       bool    `db:"active" json:"active"`
}
