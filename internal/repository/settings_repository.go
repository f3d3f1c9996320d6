package repository

import (
	"context"
	"database/sql"

	"github.com/unclebandit/leadpilot-backend/internal/model"
)

const (
	settingGatewayBaseURL  = "gateway_base_url"
	settingGatewayInstance = "gateway_instance"
	settingGatewayAPIKey   = "gateway_api_key"
)

// SettingsRepository reads gateway settings edited from the console. Missing
// keys fall back to Defaults.
type SettingsRepository struct {
	DB       *sql.DB
	Defaults model.GatewaySettings
}

func (r *SettingsRepository) GatewaySettings(ctx context.Context) (model.GatewaySettings, error) {
	s := r.Defaults
	rows, err := r.DB.QueryContext(ctx, `SELECT key, value FROM settings WHERE key IN ($1, $2, $3)`,
		settingGatewayBaseURL, settingGatewayInstance, settingGatewayAPIKey)
	if err != nil {
		return s, err
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return s, err
		}
		if value == "" {
			continue
		}
		switch key {
		case settingGatewayBaseURL:
			s.BaseURL = value
		case settingGatewayInstance:
			s.Instance = value
		case settingGatewayAPIKey:
			s.APIKey = value
		}
	}
	return s, rows.Err()
}
