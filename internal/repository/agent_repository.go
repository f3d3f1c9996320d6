package repository

import (
	"context"
	"database/sql"

	"github.com/unclebandit/leadpilot-backend/internal/model"
)

type AgentRepositoryInterface interface {
	FindActiveByCategory(ctx context.Context, category string) (*model.Agent, error)
	Upsert(ctx context.Context, a *model.Agent) error
}

type AgentRepository struct {
	DB *sql.DB
}

// FindActiveByCategory prefers an exact category match and falls back to the
// generic agent. It returns nil, nil when neither exists.
func (r *AgentRepository) FindActiveByCategory(ctx context.Context, category string) (*model.Agent, error) {
	query := `
        SELECT id, name, category, model, temperature, instructions, active
        FROM agents
        WHERE active AND category IN ($1, $2)
        ORDER BY (category = $1) DESC
        LIMIT 1
    `
	var a model.Agent
	err := r.DB.QueryRowContext(ctx, query, category, model.GenericCategory).
		Scan(&a.ID, &a.Name, &a.Category, &a.Model, &a.Temperature, &a.Instructions, &a.Active)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *AgentRepository) Upsert(ctx context.Context, a *model.Agent) error {
	query := `
        INSERT INTO agents (name, category, model, temperature, instructions, active)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (category) DO UPDATE
        SET name=EXCLUDED.name, model=EXCLUDED.model, temperature=EXCLUDED.temperature,
            instructions=EXCLUDED.instructions, active=EXCLUDED.active
        RETURNING id
    `
	return r.DB.QueryRowContext(ctx, query, a.Name, a.Category, a.Model, a.Temperature, a.Instructions, a.Active).Scan(&a.ID)
}

var _ AgentRepositoryInterface = (*AgentRepository)(nil)
