package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/leadpilot-backend/internal/model"
)

func TestAgentFindActiveByCategoryFallsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &AgentRepository{DB: db}

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE active AND category IN ($1, $2)`)).
		WithArgs("bakery", "general").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "model", "temperature", "instructions", "active"}).
			AddRow(1, "Generic", "general", "gpt-4o-mini", 0.4, "be brief", true))

	a, err := repo.FindActiveByCategory(context.Background(), "bakery")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, model.GenericCategory, a.Category)
}

func TestAgentFindActiveByCategoryNone(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &AgentRepository{DB: db}

	mock.ExpectQuery(regexp.QuoteMeta(`FROM agents`)).
		WithArgs("bakery", "general").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	a, err := repo.FindActiveByCategory(context.Background(), "bakery")
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestConversationRecentHistoryOldestFirstByAddress(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &ConversationRepository{DB: db}
	t0 := time.Now().Add(-time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM conversation_messages`)).
		WithArgs("5511", 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "conversation_id", "direction", "body", "created_at"}).
			AddRow(1, "5511", "outbound", "hello", t0).
			AddRow(2, "5511", "inbound", "hi", t0.Add(time.Second)))

	msgs, err := repo.RecentHistory(context.Background(), "5511", 20)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.DirectionOutbound, msgs[0].Direction)
	assert.Equal(t, "hi", msgs[1].Body)
}

func TestSettingsGatewaySettingsOverridesDefaults(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &SettingsRepository{DB: db, Defaults: model.GatewaySettings{BaseURL: "http://env", Instance: "env-instance", APIKey: "env-key"}}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT key, value FROM settings`)).
		WithArgs("gateway_base_url", "gateway_instance", "gateway_api_key").
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow("gateway_instance", "sales-01").
			AddRow("gateway_api_key", ""))

	s, err := repo.GatewaySettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://env", s.BaseURL)
	assert.Equal(t, "sales-01", s.Instance)
	assert.Equal(t, "env-key", s.APIKey)
}
