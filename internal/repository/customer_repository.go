package repository

import (
	"context"
	"database/sql"

	"github.com/unclebandit/leadpilot-backend/internal/model"
)

// CustomerRepositoryInterface defines methods used by the customer endpoints
type CustomerRepositoryInterface interface {
	GetByID(ctx context.Context, id int64) (*model.Customer, error)
	List(ctx context.Context, limit int) ([]model.Customer, error)
}

// CustomerRepository reads leads that were promoted after a won conversation.
type CustomerRepository struct {
	DB *sql.DB
}

const customerColumns = `id, address, name, category, city, state, deal_value, created_at`

// GetByID fetches a customer by ID
func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*model.Customer, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)

	var c model.Customer
	if err := row.Scan(&c.ID, &c.Address, &c.Name, &c.Category, &c.City, &c.State, &c.DealValue, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	return &c, nil
}

// List fetches the most recently won customers
func (r *CustomerRepository) List(ctx context.Context, limit int) ([]model.Customer, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := []model.Customer{}
	for rows.Next() {
		var c model.Customer
		if err := rows.Scan(&c.ID, &c.Address, &c.Name, &c.Category, &c.City, &c.State, &c.DealValue, &c.CreatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}
