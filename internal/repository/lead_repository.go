package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	appErrors "github.com/unclebandit/leadpilot-backend/internal/errors"
	"github.com/unclebandit/leadpilot-backend/internal/model"
)

// LeadRepositoryInterface is the lead store contract used by the engines.
type LeadRepositoryInterface interface {
	Query(ctx context.Context, filter model.LeadFilter, cursor int64, limit int) ([]model.Lead, error)
	CountEligible(ctx context.Context, filter model.LeadFilter) (int, error)
	UpdateStatus(ctx context.Context, leadID int64, status model.ContactStatus) error
	FindByAddress(ctx context.Context, address string) (*model.Lead, error)
	PromoteToCustomer(ctx context.Context, leadID int64, name string, value *float64) (*model.Customer, error)
}

type LeadRepository struct {
	DB *sql.DB
}

const leadColumns = `id, address, name, category, city, state, contact_status`

// whereClause builds the shared filter. argPos is the next placeholder index.
func whereClause(filter model.LeadFilter, argPos int) (string, []interface{}, int) {
	var b strings.Builder
	b.WriteString(" WHERE 1=1")
	args := []interface{}{}

	if filter.Category != "" {
		b.WriteString(fmt.Sprintf(" AND category=$%d", argPos))
		args = append(args, filter.Category)
		argPos++
	}
	if filter.City != "" {
		b.WriteString(fmt.Sprintf(" AND city=$%d", argPos))
		args = append(args, filter.City)
		argPos++
	}
	if filter.State != "" {
		b.WriteString(fmt.Sprintf(" AND state=$%d", argPos))
		args = append(args, filter.State)
		argPos++
	}

	switch filter.Strategy {
	case model.StrategyNewOnly:
		b.WriteString(fmt.Sprintf(" AND contact_status=$%d", argPos))
		args = append(args, string(model.ContactStatusUntouched))
		argPos++
	case model.StrategyFollowUpOnly:
		b.WriteString(fmt.Sprintf(" AND contact_status=$%d", argPos))
		args = append(args, string(model.ContactStatusContacted))
		argPos++
	}

	return b.String(), args, argPos
}

// Query returns up to limit leads with id > cursor in ascending id order.
func (r *LeadRepository) Query(ctx context.Context, filter model.LeadFilter, cursor int64, limit int) ([]model.Lead, error) {
	where, args, argPos := whereClause(filter, 1)
	query := `SELECT ` + leadColumns + ` FROM leads` + where +
		fmt.Sprintf(" AND id > $%d ORDER BY id ASC LIMIT $%d", argPos, argPos+1)
	args = append(args, cursor, limit)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := []model.Lead{}
	for rows.Next() {
		var l model.Lead
		if err := rows.Scan(&l.ID, &l.Address, &l.Name, &l.Category, &l.City, &l.State, &l.ContactStatus); err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// CountEligible is a point-in-time estimate of the run's target size.
func (r *LeadRepository) CountEligible(ctx context.Context, filter model.LeadFilter) (int, error) {
	where, args, _ := whereClause(filter, 1)
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`+where, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// UpdateStatus touches exactly one lead; never a bulk update by address.
func (r *LeadRepository) UpdateStatus(ctx context.Context, leadID int64, status model.ContactStatus) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE leads SET contact_status=$1 WHERE id=$2`, string(status), leadID)
	return err
}

func (r *LeadRepository) FindByAddress(ctx context.Context, address string) (*model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE address=$1 ORDER BY id ASC LIMIT 1`
	var l model.Lead
	err := r.DB.QueryRowContext(ctx, query, address).Scan(&l.ID, &l.Address, &l.Name, &l.Category, &l.City, &l.State, &l.ContactStatus)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

// PromoteToCustomer moves a lead into customers in one transaction.
func (r *LeadRepository) PromoteToCustomer(ctx context.Context, leadID int64, name string, value *float64) (*model.Customer, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var l model.Lead
	err = tx.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id=$1 FOR UPDATE`, leadID).
		Scan(&l.ID, &l.Address, &l.Name, &l.Category, &l.City, &l.State, &l.ContactStatus)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrLeadNotFound
		}
		return nil, err
	}

	if name == "" {
		name = l.Name
	}
	c := &model.Customer{
		Address:   l.Address,
		Name:      name,
		Category:  l.Category,
		City:      l.City,
		State:     l.State,
		DealValue: value,
	}
	err = tx.QueryRowContext(ctx, `
        INSERT INTO customers (address, name, category, city, state, deal_value, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW())
        RETURNING id, created_at
    `, c.Address, c.Name, c.Category, c.City, c.State, c.DealValue).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM leads WHERE id=$1`, leadID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return c, nil
}

var _ LeadRepositoryInterface = (*LeadRepository)(nil)
