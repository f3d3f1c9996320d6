package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var customerCols = []string{"id", "address", "name", "category", "city", "state", "deal_value", "created_at"}

func TestCustomerListNewestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &CustomerRepository{DB: db}
	mock.ExpectQuery(regexp.QuoteMeta(`FROM customers ORDER BY created_at DESC LIMIT $1`)).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows(customerCols).
			AddRow(2, "5511", "Rosa Lima", "bakery", "Campinas", "SP", 450.0, time.Now()).
			AddRow(1, "5522", "Caio", "gym", "Santos", "SP", nil, time.Now()))

	customers, err := repo.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, customers, 2)
	require.NotNil(t, customers[0].DealValue)
	assert.Equal(t, 450.0, *customers[0].DealValue)
	assert.Nil(t, customers[1].DealValue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerGetByIDMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &CustomerRepository{DB: db}
	mock.ExpectQuery(regexp.QuoteMeta(`FROM customers WHERE id = $1`)).
		WithArgs(int64(9)).
		WillReturnError(sql.ErrNoRows)

	c, err := repo.GetByID(context.Background(), 9)
	require.NoError(t, err)
	assert.Nil(t, c)
}
